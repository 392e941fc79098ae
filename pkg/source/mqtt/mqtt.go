// Package mqtt provides a job source backed by a persistent MQTT
// subscription.
//
// The paho client delivers messages on its own goroutines; the message
// handler decodes each message and hands the payload to the job loop
// through a buffered channel. The loop stays the only consumer. Messages
// that are not valid JSON are logged and dropped.
package mqtt

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/job"
	"github.com/matzehuels/mockup/pkg/source"
)

// Defaults applied by [Config.withDefaults].
const (
	DefaultTopic          = "mockup/jobs"
	DefaultQoS            = 1
	DefaultBuffer         = 64
	DefaultConnectTimeout = 10 * time.Second
)

// Config configures the MQTT source.
type Config struct {
	Broker         string        `toml:"broker"`
	ClientID       string        `toml:"client_id"`
	Topic          string        `toml:"topic"`
	QoS            byte          `toml:"qos"`
	Username       string        `toml:"username"`
	Password       string        `toml:"password"`
	Buffer         int           `toml:"buffer"`
	ConnectTimeout time.Duration `toml:"connect_timeout"`
}

func (c Config) withDefaults() Config {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.QoS > 2 {
		c.QoS = DefaultQoS
	}
	if c.Buffer <= 0 {
		c.Buffer = DefaultBuffer
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ClientID == "" {
		c.ClientID = "mockup-" + uuid.NewString()[:8]
	}
	return c
}

// BrokerURL returns broker with a tcp:// scheme when none is given.
func BrokerURL(broker string) string {
	broker = strings.TrimSpace(broker)
	if broker == "" || strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Source is an MQTT-backed job source.
type Source struct {
	cfg      Config
	client   paho.Client
	logger   *log.Logger
	payloads chan job.Payload
	done     chan struct{}

	subscribed atomic.Bool
	closeOnce  sync.Once
	dropped    atomic.Int64
}

// Open connects to the broker and subscribes to the job topic.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (*Source, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, errs.New(errs.ErrCodeConfig, "mqtt broker is not configured")
	}
	s := newSource(cfg, logger)

	opts := paho.NewClientOptions()
	opts.AddBroker(BrokerURL(s.cfg.Broker))
	opts.SetClientID(s.cfg.ClientID)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetOrderMatters(false)
	opts.OnConnect = func(c paho.Client) {
		s.logger.Info("mqtt connection established", "broker", s.cfg.Broker, "client_id", s.cfg.ClientID)
		if s.subscribed.Load() {
			if err := s.subscribe(c); err != nil {
				s.logger.Error("mqtt resubscribe failed", "topic", s.cfg.Topic, "err", err)
			}
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		s.logger.Warn("mqtt connection lost, will auto-reconnect", "broker", s.cfg.Broker, "err", err)
	}

	s.client = paho.NewClient(opts)
	s.logger.Info("connecting to mqtt broker", "broker", s.cfg.Broker)

	if err := wait(ctx, s.client.Connect(), s.cfg.ConnectTimeout); err != nil {
		s.client.Disconnect(0)
		return nil, errs.Wrap(errs.ErrCodeNetwork, err, "connect to mqtt broker %s", s.cfg.Broker)
	}
	if err := s.subscribe(s.client); err != nil {
		s.client.Disconnect(250)
		return nil, err
	}
	s.subscribed.Store(true)
	return s, nil
}

func newSource(cfg Config, logger *log.Logger) *Source {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	cfg = cfg.withDefaults()
	return &Source{
		cfg:      cfg,
		logger:   logger,
		payloads: make(chan job.Payload, cfg.Buffer),
		done:     make(chan struct{}),
	}
}

func (s *Source) subscribe(c paho.Client) error {
	s.logger.Info("subscribing to job topic", "topic", s.cfg.Topic, "qos", s.cfg.QoS)
	if err := wait(context.Background(), c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.handle), s.cfg.ConnectTimeout); err != nil {
		return errs.Wrap(errs.ErrCodeNetwork, err, "subscribe to %s", s.cfg.Topic)
	}
	return nil
}

func wait(ctx context.Context, t paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.Done():
		return t.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handle is the paho message handler.
func (s *Source) handle(_ paho.Client, msg paho.Message) {
	p, err := job.Decode(msg.Payload())
	if err != nil {
		s.dropped.Add(1)
		s.logger.Warn("dropping malformed job message", "topic", msg.Topic(), "err", err)
		return
	}
	s.logger.Debug("job message received", "topic", msg.Topic(), "job", p.ID)

	select {
	case s.payloads <- p:
	case <-s.done:
		s.logger.Warn("source closed, dropping job message", "job", p.ID)
	}
}

// Dropped returns the number of malformed messages discarded so far.
func (s *Source) Dropped() int64 { return s.dropped.Load() }

// Next implements source.Source. It blocks until a payload arrives, ctx is
// done, or the source is closed.
func (s *Source) Next(ctx context.Context) (job.Payload, error) {
	select {
	case p := <-s.payloads:
		return p, nil
	case <-ctx.Done():
		return job.Payload{}, ctx.Err()
	case <-s.done:
		return job.Payload{}, source.ErrEndOfStream
	}
}

// Close unsubscribes and disconnects.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.client != nil && s.client.IsConnected() {
			s.client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
			s.client.Disconnect(250)
		}
		s.logger.Info("mqtt source closed")
	})
	return nil
}

var _ source.Source = (*Source)(nil)
