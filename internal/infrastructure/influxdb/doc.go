// Package influxdb records camera firings and solar anchors in InfluxDB.
//
// It wraps the influxdb-client-go v2 non-blocking write API. Points are
// batched according to batch_size and flush_interval; write errors are
// delivered through SetOnError and never reach the scheduler.
//
// Measurements:
//   - camera_firings: tags camera, action, dry_run; fields status_code,
//     success, lateness_seconds, expression
//   - solar_anchors: tag day (today or tomorrow); fields sunrise_hour,
//     noon_hour, sunset_hour, day_length_hours, day_type
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sched, _ := schedule.New(schedule.Options{Observers: []schedule.Observer{client}, ...})
package influxdb
