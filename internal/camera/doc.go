// Package camera defines the cameras sunspy schedules and the executors
// that switch them between active and passive recording modes.
//
// # Executors
//
//   - SecuritySpyClient drives a SecuritySpy server over its HTTP web API.
//   - MQTTExecutor publishes mode commands for a bridge to act on.
//   - DryRunExecutor logs what would happen and touches nothing.
//
// Every executor reports an HTTP-style status code; StatusOK means the
// camera accepted the change. Failures are reported, never retried here.
package camera
