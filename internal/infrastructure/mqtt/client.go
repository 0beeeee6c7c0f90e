package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/sunspy/internal/infrastructure/config"
)

// Client is sunspy's broker connection. The scheduler publishes camera
// commands and state through it and receives bridge acks on it.
//
// Subscriptions are remembered and replayed after every reconnect.
// All methods are safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	cfg    config.MQTTConfig
	online atomic.Bool

	mu           sync.Mutex
	subs         map[string]subscription
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger is satisfied by logging.Logger and *slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option customises a Client at Connect.
type Option func(*Client)

// WithLogger routes connection and handler problems to l.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// MessageHandler handles one received message. paho runs handlers on its
// own goroutines; a returned error is logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

// newClient builds an unconnected Client.
func newClient(cfg config.MQTTConfig, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		subs:   make(map[string]subscription),
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the broker and announces sunspy as online on
// sunspy/system/status. The broker publishes the offline will if the
// process dies without calling Close.
//
// Parameters:
//   - cfg: Broker, credentials, QoS and reconnect backoff
//   - opts: Optional settings such as WithLogger
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnectionFailed when the first attempt fails or times out
func Connect(cfg config.MQTTConfig, opts ...Option) (*Client, error) {
	c := newClient(cfg, opts...)

	po := buildClientOptions(cfg)
	configureLWT(po, cfg.Broker.ClientID)
	po.SetOnConnectHandler(func(pahomqtt.Client) { c.connected() })
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) })
	po.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log().Info("MQTT reconnecting", "broker", c.cfg.Broker.Host)
	})

	c.paho = pahomqtt.NewClient(po)
	if err := await(c.paho.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The connect handler runs asynchronously; mark online now so callers
	// can publish straight away.
	c.online.Store(true)
	return c, nil
}

// connected runs on every (re)connect.
func (c *Client) connected() {
	c.online.Store(true)
	c.resubscribe()
	c.announce(buildOnlinePayload(c.cfg.Broker.ClientID))

	c.mu.Lock()
	hook := c.onConnect
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// lost runs when the broker connection drops.
func (c *Client) lost(err error) {
	c.online.Store(false)

	c.mu.Lock()
	hook := c.onDisconnect
	c.mu.Unlock()
	if hook != nil {
		hook(err)
	}
}

// resubscribe replays every remembered subscription.
func (c *Client) resubscribe() {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, s := range c.subs {
		subs[topic] = s
	}
	c.mu.Unlock()

	for topic, s := range subs {
		token := c.paho.Subscribe(topic, s.qos, c.wrapHandler(s.handler))
		if err := await(token, defaultOpTimeout, ErrSubscribeFailed); err != nil {
			c.log().Warn("MQTT resubscribe failed", "topic", topic, "error", err)
		}
	}
}

// announce publishes a retained status message and waits briefly for it.
func (c *Client) announce(payload string) {
	token := c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, payload)
	if err := await(token, defaultOpTimeout, ErrPublishFailed); err != nil {
		c.log().Warn("MQTT status publish failed", "error", err)
	}
}

// Close announces a graceful shutdown and disconnects. It is safe on a
// Client that never connected.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.announce(buildOfflinePayload(c.cfg.Broker.ClientID))
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.online.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.online.Load() && c.paho.IsConnected()
}

// SetOnConnect sets a callback run after every connect and reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect sets a callback run when the connection drops.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logger == nil {
		return noopLogger{}
	}
	return c.logger
}

// wrapHandler adapts h to paho, logging returned errors and recovering
// panics so one bad message cannot kill paho's router.
func (c *Client) wrapHandler(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log().Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			c.log().Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
