package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/job"
	"github.com/matzehuels/mockup/pkg/source"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestHandleDeliversPayloads(t *testing.T) {
	s := newSource(Config{Buffer: 4}, nil)
	defer s.Close()

	s.handle(nil, fakeMessage{"mockup/jobs", []byte(`{"url":"https://x/a.png","id":7,"category":"cropped"}`)})
	s.handle(nil, fakeMessage{"mockup/jobs", []byte(`{"url":"https://x/b.png","id":"8","category":"CANECA"}`)})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	p, err := s.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, job.Payload{URL: "https://x/a.png", ID: "7", Category: "cropped"}, p)

	p, err = s.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, job.ID("8"), p.ID)
}

func TestHandleSkipsMalformed(t *testing.T) {
	s := newSource(Config{}, nil)
	defer s.Close()

	s.handle(nil, fakeMessage{"mockup/jobs", []byte(`{not json`)})
	s.handle(nil, fakeMessage{"mockup/jobs", []byte(`{"url":"u","id":"1","category":"INFANTIL"}`)})
	require.Equal(t, int64(1), s.Dropped())

	p, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "INFANTIL", p.Category)
}

func TestHandleKeepsIncompletePayloads(t *testing.T) {
	// Semantic validation happens in the pipeline so rejections are counted.
	s := newSource(Config{}, nil)
	defer s.Close()

	s.handle(nil, fakeMessage{"mockup/jobs", []byte(`{"url":"u"}`)})
	p, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u", p.URL)
	require.Equal(t, int64(0), s.Dropped())
}

func TestNextBlocksUntilCancelled(t *testing.T) {
	s := newSource(Config{}, nil)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseEndsStream(t *testing.T) {
	s := newSource(Config{Buffer: 1}, nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close should be idempotent")

	_, err := s.Next(context.Background())
	require.True(t, errors.Is(err, source.ErrEndOfStream))

	// A handler blocked on a full buffer is released by Close.
	s2 := newSource(Config{Buffer: 1}, nil)
	s2.handle(nil, fakeMessage{"t", []byte(`{"id":"1"}`)})
	released := make(chan struct{})
	go func() {
		s2.handle(nil, fakeMessage{"t", []byte(`{"id":"2"}`)})
		close(released)
	}()
	s2.Close()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("handler should return after Close")
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{QoS: 9}.withDefaults()
	require.Equal(t, DefaultTopic, c.Topic)
	require.Equal(t, byte(DefaultQoS), c.QoS)
	require.Equal(t, DefaultBuffer, c.Buffer)
	require.Equal(t, DefaultConnectTimeout, c.ConnectTimeout)
	require.Contains(t, c.ClientID, "mockup-")
}

func TestBrokerURL(t *testing.T) {
	require.Equal(t, "tcp://localhost:1883", BrokerURL("localhost:1883"))
	require.Equal(t, "ssl://b:8883", BrokerURL("ssl://b:8883"))
	require.Equal(t, "", BrokerURL(" "))
}

func TestOpenRequiresBroker(t *testing.T) {
	_, err := Open(context.Background(), Config{}, nil)
	require.True(t, errs.Is(err, errs.ErrCodeConfig))
}
