package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/overhead/internal/storage"
	"github.com/yegors/overhead/pkg/logger"
)

var _ storage.Sink = (*Producer)(nil)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestEmitKeysByHex(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "sightings", logger.NewNop())
	seen := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, p.Emit(context.Background(), storage.Sighting{ID: 7, SeenAt: seen, Hex: "738065", Identity: "ELY001"}))
	require.NoError(t, p.Emit(context.Background(), storage.Sighting{SeenAt: seen, Identity: "4XCGK"}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "738065", string(w.msgs[0].Key))
	assert.Equal(t, "4XCGK", string(w.msgs[1].Key), "identity is the fallback key")
	assert.Equal(t, seen, w.msgs[0].Time)

	var decoded storage.Sighting
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, int64(7), decoded.ID)
	assert.Equal(t, "ELY001", decoded.Identity)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestEmitWrapsWriterError(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("leader not available")}, "sightings", logger.NewNop())
	err := p.Emit(context.Background(), storage.Sighting{Identity: "X"})
	assert.ErrorContains(t, err, "sightings")
	assert.ErrorContains(t, err, "leader not available")
}

func TestNewProducerValidates(t *testing.T) {
	_, err := NewProducer(Config{Topic: "t"}, logger.NewNop())
	assert.Error(t, err)
	_, err = NewProducer(Config{Brokers: []string{"localhost:9092"}}, logger.NewNop())
	assert.Error(t, err)

	p, err := NewProducer(Config{Brokers: []string{"localhost:9092"}, Topic: "sightings", ClientID: "overhead"}, logger.NewNop())
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
