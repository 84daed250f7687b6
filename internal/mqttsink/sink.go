// Package mqttsink publishes display writes to an MQTT broker.
//
// Each display target becomes a retained topic under a common prefix, so a
// subscriber that connects late still sees the latest text:
//
//	serra/display/internal-temperature  ->  "22.5"
//	serra/display/soil-humidity1        ->  "41%"
//
// A [Sink] satisfies the poller's surface contract and can be combined with
// the web dashboard.
package mqttsink

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	// DefaultTopicPrefix is used when no prefix is configured.
	DefaultTopicPrefix = "serra/display"

	// DefaultClientID is used when no client ID is configured.
	DefaultClientID = "serra"

	connectTimeout    = 10 * time.Second
	publishTimeout    = 2 * time.Second
	disconnectQuiesce = 250 // milliseconds

	// maxPendingPublishes bounds the publishes whose outcome is still
	// being watched.
	maxPendingPublishes = 64
)

// Publisher is the part of an MQTT client the sink needs. mqtt.Client
// satisfies it.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Config holds broker connection settings.
type Config struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker string

	// TopicPrefix is prepended to every target ID.
	TopicPrefix string

	// ClientID identifies this connection to the broker.
	ClientID string
}

// Sink publishes target text as retained MQTT messages.
//
// SetText never waits for the broker. Publish outcomes are logged from a
// bounded set of watcher goroutines.
type Sink struct {
	pub     Publisher
	client  mqtt.Client
	prefix  string
	targets map[string]bool
	logger  *slog.Logger

	publishTimeout time.Duration
	pending        chan struct{}
	watchers       sync.WaitGroup
}

// New creates a sink that publishes through pub. Only the listed targets
// are accepted.
func New(pub Publisher, prefix string, targets []string, logger *slog.Logger) *Sink {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[string]bool, len(targets))
	for _, id := range targets {
		set[id] = true
	}
	return &Sink{
		pub:            pub,
		prefix:         prefix,
		targets:        set,
		logger:         logger,
		publishTimeout: publishTimeout,
		pending:        make(chan struct{}, maxPendingPublishes),
	}
}

// Connect dials the broker and returns a sink publishing through it.
func Connect(cfg Config, targets []string, logger *slog.Logger) (*Sink, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetWriteTimeout(publishTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker, "client_id", clientID)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.Broker, err)
	}

	s := New(client, cfg.TopicPrefix, targets, logger)
	s.client = client
	return s, nil
}

// Topic returns the topic a target is published on.
func (s *Sink) Topic(id string) string {
	return s.prefix + "/" + id
}

// HasTarget reports whether id is published by this sink.
func (s *Sink) HasTarget(id string) bool {
	return s.targets[id]
}

// SetText publishes text as the retained value of the target's topic and
// returns without waiting for the broker. Failures and timeouts are logged;
// the write is not retried. When too many publishes are outstanding the
// outcome of this one is not watched.
func (s *Sink) SetText(id, text string) {
	if !s.targets[id] {
		return
	}
	topic := s.Topic(id)
	token := s.pub.Publish(topic, 0, true, text)

	select {
	case <-token.Done():
		s.logOutcome(topic, token)
		return
	default:
	}

	select {
	case s.pending <- struct{}{}:
	default:
		s.logger.Warn("mqtt publish backlog full", "topic", topic, "pending", cap(s.pending))
		return
	}

	s.watchers.Add(1)
	go func() {
		defer func() {
			<-s.pending
			s.watchers.Done()
		}()
		timer := time.NewTimer(s.publishTimeout)
		defer timer.Stop()
		select {
		case <-token.Done():
			s.logOutcome(topic, token)
		case <-timer.C:
			s.logger.Warn("mqtt publish timed out", "topic", topic)
		}
	}()
}

func (s *Sink) logOutcome(topic string, token mqtt.Token) {
	if err := token.Error(); err != nil {
		s.logger.Error("mqtt publish failed", "topic", topic, "error", err)
	}
}

// Close waits for outstanding publish watchers, then disconnects from the
// broker if the sink owns the connection.
func (s *Sink) Close() {
	s.watchers.Wait()
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(disconnectQuiesce)
	}
}
