package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sony/gobreaker"

	"github.com/sweeney/occupancy-sensor/internal/log"
	"github.com/sweeney/occupancy-sensor/internal/logic"
)

const (
	// DefaultBufferSize is the number of messages kept while disconnected.
	DefaultBufferSize = 256
	// DefaultConnectTimeout bounds the initial connection attempt.
	DefaultConnectTimeout = 10 * time.Second

	publishTimeout = 5 * time.Second
	quiesceMs      = 250
)

// ErrNotConnected is returned by Flush when the broker is unreachable.
var ErrNotConnected = errors.New("mqtt: not connected")

// client is the subset of paho.Client the publisher uses.
type client interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnectionOpen() bool
}

// Options configures a RealPublisher.
type Options struct {
	Broker         string
	ClientID       string
	BufferSize     int
	ConnectTimeout time.Duration
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed in order on reconnect.
//
// It doubles as the node's diagnostics channel: the sleep sequence closes it
// before suspending and reopens it on wake.
type RealPublisher struct {
	client  client
	breaker *gobreaker.CircuitBreaker

	mu     sync.Mutex
	buffer *ringBuffer
	closed bool // closed on purpose (sleep or shutdown)
	lost   bool // connection dropped while open
}

// NewRealPublisher creates a publisher and connects to the broker. A broker
// that is unreachable within the connect timeout is not an error: messages
// are buffered until the connection comes up.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	if o.ClientID == "" {
		o.ClientID = "occupancy-sensor"
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}

	p := newPublisher(nil, o.BufferSize)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventShutdown,
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, false).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.onConnectionLost(err) })

	p.client = paho.NewClient(opts)
	if err := p.Open(); err != nil {
		return nil, err
	}
	if err := p.waitReady(context.Background(), o.ConnectTimeout); err != nil {
		log.Warnf("mqtt: broker %s not reachable yet, buffering: %v", o.Broker, err)
	}
	return p, nil
}

func newPublisher(c client, bufferSize int) *RealPublisher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &RealPublisher{
		client: c,
		buffer: newRingBuffer(bufferSize),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "mqtt-publish",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Infof("mqtt: circuit %s: %s -> %s", name, from, to)
			},
		}),
	}
}

// Publish sends a state transition to the broker.
func (p *RealPublisher) Publish(tr logic.Transition) error {
	payload, err := FormatPayload(tr)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once): lifecycle events are rare and worth the round trip
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || !p.client.IsConnectionOpen() {
		p.buffer.push(msg)
		return nil
	}
	if err := p.publish(msg); err != nil {
		p.buffer.push(msg)
		return err
	}
	return nil
}

// publish does the broker round trip through the circuit breaker.
// Callers hold p.mu.
func (p *RealPublisher) publish(msg bufferedMsg) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !token.WaitTimeout(publishTimeout) {
			return nil, errors.New("publish timeout")
		}
		return nil, token.Error()
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// replay publishes buffered messages in order. Messages that fail are put
// back. Callers hold p.mu.
func (p *RealPublisher) replay() error {
	msgs, dropped := p.buffer.drainAll()
	if dropped > 0 {
		log.Warnf("mqtt: %d buffered messages were dropped", dropped)
	}
	for i, msg := range msgs {
		if err := p.publish(msg); err != nil {
			for _, m := range msgs[i:] {
				p.buffer.push(m)
			}
			return err
		}
	}
	if len(msgs) > 0 {
		log.Debugf("mqtt: replayed %d buffered messages", len(msgs))
	}
	return nil
}

func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lost {
		p.lost = false
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventReconnected})
		if err == nil {
			p.buffer.push(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1})
		}
	}
	if err := p.replay(); err != nil {
		log.Warnf("mqtt: replay: %v", err)
	}
}

func (p *RealPublisher) onConnectionLost(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.lost = true
		log.Warnf("mqtt: connection lost: %v", err)
	}
}

// Open starts connecting. Reconnection happens in the background.
func (p *RealPublisher) Open() error {
	p.mu.Lock()
	p.closed = false
	p.mu.Unlock()
	// With connect retry enabled the token only completes once connected,
	// so it is not waited on here.
	p.client.Connect()
	return nil
}

// IsReady reports whether the broker connection is up.
func (p *RealPublisher) IsReady() bool {
	return p.client.IsConnectionOpen()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.IsReady()
}

// Flush replays anything still buffered.
func (p *RealPublisher) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buffer.len() == 0 {
		return nil
	}
	if p.closed || !p.client.IsConnectionOpen() {
		return fmt.Errorf("%w: %d messages buffered", ErrNotConnected, p.buffer.len())
	}
	return p.replay()
}

// Close disconnects from the broker. Messages published afterwards are
// buffered until the next Open.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.client.Disconnect(quiesceMs)
	return nil
}

// Buffered returns the number of messages waiting for the broker.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

func (p *RealPublisher) waitReady(ctx context.Context, timeout time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = timeout
	return backoff.Retry(func() error {
		if p.IsReady() {
			return nil
		}
		return ErrNotConnected
	}, backoff.WithContext(bo, ctx))
}
