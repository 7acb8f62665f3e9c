// Package ingest subscribes to detection samples published over MQTT and
// feeds them into live cleaning sessions.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"sanitization-status-backend/config"
	"sanitization-status-backend/internal/engine"
)

// Results reported to the Observer.
const (
	ResultObserved = "observed"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
)

const (
	connectTimeout   = 10 * time.Second
	subscribeTimeout = 5 * time.Second
)

// Sessions is the part of the engine the subscriber drives.
type Sessions interface {
	Observe(sessionID string, delta float64) (engine.SessionOutcome, error)
	FailSession(sessionID, notes string) (engine.SessionOutcome, error)
}

// Observer is told the result of every message.
type Observer interface {
	ObserveIngest(result string)
}

// Message is one detection sample. Failed reports that the pipeline judged
// the coverage insufficient; ConfidenceDelta is ignored in that case.
type Message struct {
	SessionID       string  `json:"session_id"`
	ConfidenceDelta float64 `json:"confidence_delta"`
	Failed          bool    `json:"failed"`
	Notes           string  `json:"notes"`
}

// Subscriber consumes detection samples from a broker topic.
type Subscriber struct {
	cfg       config.MQTTConfig
	sessions  Sessions
	observer  Observer
	logger    *log.Logger
	newClient func(*paho.ClientOptions) paho.Client
}

// Option configures a Subscriber.
type Option func(*Subscriber)

// WithObserver reports message results to o.
func WithObserver(o Observer) Option {
	return func(s *Subscriber) { s.observer = o }
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Subscriber) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClientFactory replaces paho.NewClient.
func WithClientFactory(fn func(*paho.ClientOptions) paho.Client) Option {
	return func(s *Subscriber) {
		if fn != nil {
			s.newClient = fn
		}
	}
}

// NewSubscriber creates a subscriber for cfg.Topic on cfg.Broker.
func NewSubscriber(cfg config.MQTTConfig, sessions Sessions, opts ...Option) *Subscriber {
	s := &Subscriber{
		cfg:       cfg,
		sessions:  sessions,
		logger:    log.Default(),
		newClient: paho.NewClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run connects, subscribes and blocks until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c paho.Client) {
			// Subscriptions do not survive a clean-session reconnect.
			if err := s.subscribe(c); err != nil {
				s.logger.Printf("mqtt: %v", err)
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.logger.Printf("mqtt: connection lost: %v", err)
		})

	client := s.newClient(opts)
	token := client.Connect()
	switch {
	case !token.WaitTimeout(connectTimeout):
		// The client keeps retrying and subscribes from the connect handler.
		s.logger.Printf("mqtt: %s not reachable after %s, retrying in background", s.cfg.Broker, connectTimeout)
	case token.Error() != nil:
		client.Disconnect(0)
		return fmt.Errorf("mqtt: connect to broker: %w", token.Error())
	default:
		s.logger.Printf("mqtt: subscribed to %s on %s", s.cfg.Topic, s.cfg.Broker)
	}

	<-ctx.Done()
	client.Disconnect(1000)
	return nil
}

func (s *Subscriber) subscribe(c paho.Client) error {
	token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, func(_ paho.Client, m paho.Message) {
		s.HandleMessage(m.Payload())
	})
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("subscribe %s: timeout", s.cfg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.cfg.Topic, err)
	}
	return nil
}

// HandleMessage decodes one payload and applies it to its session. Errors
// are logged and returned; they never stop the subscription.
func (s *Subscriber) HandleMessage(payload []byte) (engine.SessionOutcome, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.report(ResultRejected)
		s.logger.Printf("mqtt: bad payload: %v", err)
		return engine.SessionOutcome{}, fmt.Errorf("%w: decode sample: %v", engine.ErrValidation, err)
	}
	msg.SessionID = strings.TrimSpace(msg.SessionID)
	if msg.SessionID == "" {
		s.report(ResultRejected)
		return engine.SessionOutcome{}, fmt.Errorf("%w: session_id is required", engine.ErrValidation)
	}

	var (
		outcome engine.SessionOutcome
		err     error
	)
	if msg.Failed {
		outcome, err = s.sessions.FailSession(msg.SessionID, msg.Notes)
	} else {
		outcome, err = s.sessions.Observe(msg.SessionID, msg.ConfidenceDelta)
	}
	if err != nil {
		s.report(ResultRejected)
		if !errors.Is(err, engine.ErrNotFound) {
			s.logger.Printf("mqtt: session %s: %v", msg.SessionID, err)
		}
		return outcome, err
	}

	if outcome.Result == engine.OutcomeFailed {
		s.report(ResultFailed)
	} else {
		s.report(ResultObserved)
	}
	return outcome, nil
}

func (s *Subscriber) report(result string) {
	if s.observer != nil {
		s.observer.ObserveIngest(result)
	}
}
