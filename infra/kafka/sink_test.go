package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/homesim/core/factory"
	"github.com/kilianp07/homesim/core/model"
	"github.com/kilianp07/homesim/core/simulation"
	"github.com/kilianp07/homesim/core/sink"
)

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

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error { return m.Called().Error(0) }

func TestSinkWriteUsesDeadline(t *testing.T) {
	w := &mockWriter{}
	hasDeadline := mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})
	w.On("WriteMessages", hasDeadline, mock.AnythingOfType("[]kafka.Message")).Return(nil).Once()
	w.On("Close").Return(nil)

	s := newSink(Config{Topic: "snaps"}, w)
	require.NoError(t, s.RecordSnapshot("abc", model.Snapshot{Step: 1}))
	require.NoError(t, s.Close())
	w.AssertExpectations(t)
}

func TestSinkRecordSnapshot(t *testing.T) {
	w := &fakeWriter{}
	s := newSink(Config{Topic: "snaps"}, w)

	snap := model.Snapshot{Step: 7, Day: 1, TimeOfDay: "01:45", GridImport: 2.5}
	require.NoError(t, s.RecordSnapshot("abc", snap))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "snaps", msg.Topic)
	assert.Equal(t, "abc", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "7", string(msg.Headers[0].Value))

	var rec record
	require.NoError(t, json.Unmarshal(msg.Value, &rec))
	assert.Equal(t, "abc", rec.SessionID)
	assert.Equal(t, "01:45", rec.Snapshot.TimeOfDay)
	assert.InDelta(t, 2.5, rec.Snapshot.GridImport, 1e-9)
}

func TestSinkDaySummaryTopic(t *testing.T) {
	w := &fakeWriter{}
	s := newSink(Config{Topic: "snaps"}, w)
	require.NoError(t, s.RecordDaySummary("abc", simulation.DaySummary{Day: 1, Steps: 95}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "snaps.days", w.msgs[0].Topic)
}

func TestSinkWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	w := &fakeWriter{err: boom}
	s := newSink(Config{}, w)
	err := s.RecordSnapshot("abc", model.Snapshot{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "homesim.snapshots")

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

func TestRegisterRequiresBrokers(t *testing.T) {
	reg := sink.NewRegistry()
	require.NoError(t, Register(reg))
	_, err := reg.Create(factory.ModuleConfig{Type: "kafka", Conf: map[string]any{"topic": "x"}})
	require.Error(t, err)

	s, err := reg.Create(factory.ModuleConfig{Type: "kafka", Conf: map[string]any{
		"brokers":       []any{"localhost:9092"},
		"write_timeout": "2s",
	}})
	require.NoError(t, err)
	ks, ok := s.(*Sink)
	require.True(t, ok)
	assert.Equal(t, "homesim.snapshots", ks.cfg.Topic)
	assert.Equal(t, "2s", ks.cfg.WriteTimeout.String())
	require.NoError(t, ks.Close())
}
