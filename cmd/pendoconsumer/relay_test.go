package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortontech/pendoconsumer/internal/consumer"
)

type trackedEvent struct {
	Name   consumer.TrimmedEventName
	Params map[string]consumer.ParameterValue
}

type setProperty struct {
	Key   consumer.TrimmedUserPropertyName
	Value *string
}

// recordingConsumer captures relayed calls. It trims like the real adapter.
type recordingConsumer struct {
	mu       sync.Mutex
	events   []trackedEvent
	props    []setProperty
	trackErr error
}

func (r *recordingConsumer) Initialize(context.Context, consumer.InstallType, consumer.HostContext) error {
	return nil
}

func (r *recordingConsumer) TrackEvent(name consumer.TrimmedEventName, params map[string]consumer.ParameterValue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trackErr != nil {
		return r.trackErr
	}
	r.events = append(r.events, trackedEvent{Name: name, Params: params})
	return nil
}

func (r *recordingConsumer) SetUserProperty(key consumer.TrimmedUserPropertyName, value *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.props = append(r.props, setProperty{Key: key, Value: value})
	return nil
}

func (r *recordingConsumer) TrimEventName(name consumer.EventName) consumer.TrimmedEventName {
	return consumer.TrimEvent(name)
}

func (r *recordingConsumer) TrimUserPropertyName(name consumer.UserPropertyName) consumer.TrimmedUserPropertyName {
	return consumer.TrimUserProperty(name)
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := decodeCommand([]byte(`{"track":"purchase","params":{"items":2,"amount":9.99}}`))
	require.NoError(t, err)
	require.NotNil(t, cmd.Track)
	assert.Equal(t, "purchase", *cmd.Track)
	assert.Equal(t, json.Number("2"), cmd.Params["items"])
	assert.Equal(t, json.Number("9.99"), cmd.Params["amount"])
	assert.Nil(t, cmd.Set)

	cmd, err = decodeCommand([]byte(`{"set":"plan","value":null}`))
	require.NoError(t, err)
	require.NotNil(t, cmd.Set)
	assert.Nil(t, cmd.Value)

	_, err = decodeCommand([]byte(`{"track":`))
	assert.Error(t, err)
}

func TestToParameters(t *testing.T) {
	logger := hclog.NewNullLogger()

	assert.Nil(t, toParameters(nil, logger))

	params := toParameters(map[string]any{
		"screen":  "home",
		"premium": false,
		"count":   json.Number("42"),
		"ratio":   json.Number("0.25"),
		"huge":    json.Number("1e400"),
		"nested":  map[string]any{"a": 1},
		"missing": nil,
	}, logger)

	assert.Equal(t, map[string]consumer.ParameterValue{
		"screen":  consumer.String("home"),
		"premium": consumer.Bool(false),
		"count":   consumer.Int(42),
		"ratio":   consumer.Float(0.25),
	}, params)
}

func TestApply(t *testing.T) {
	logger := hclog.NewNullLogger()
	rc := &recordingConsumer{}

	track := "a_very_long_event_name_that_exceeds_the_vendor_limit"
	require.NoError(t, apply(rc, command{Track: &track}, logger))
	require.Len(t, rc.events, 1)
	assert.Equal(t, consumer.TrimmedEventName("a_very_long_event_name_that_exceeds_the_"), rc.events[0].Name)
	assert.Nil(t, rc.events[0].Params)

	set := "plan"
	value := "pro"
	require.NoError(t, apply(rc, command{Set: &set, Value: &value}, logger))
	require.Len(t, rc.props, 1)
	assert.Equal(t, consumer.TrimmedUserPropertyName("plan"), rc.props[0].Key)
	assert.Equal(t, "pro", *rc.props[0].Value)

	assert.ErrorIs(t, apply(rc, command{}, logger), errUnknownCommand)

	assert.ErrorIs(t, apply(rc, command{Track: &track, Set: &set, Value: &value}, logger), errUnknownCommand)
	assert.Len(t, rc.events, 1, "ambiguous command must not be tracked")
	assert.Len(t, rc.props, 1, "ambiguous command must not set a property")
}

func TestRelay(t *testing.T) {
	logger := hclog.NewNullLogger()

	t.Run("counts relayed and failed lines", func(t *testing.T) {
		rc := &recordingConsumer{}
		in := strings.NewReader(strings.Join([]string{
			`{"track":"app_open"}`,
			`   `,
			`{"set":"plan","value":"free"}`,
			`{"bogus":true}`,
			`{broken`,
			`{"track":"app_open","set":"plan","value":"pro"}`,
		}, "\n"))

		stats, err := relay(context.Background(), rc, in, logger)
		require.NoError(t, err)
		assert.Equal(t, relayStats{Relayed: 2, Failed: 3}, stats)
		assert.Len(t, rc.events, 1)
		assert.Len(t, rc.props, 1)
	})

	t.Run("consumer errors are counted", func(t *testing.T) {
		rc := &recordingConsumer{trackErr: consumer.ErrNotInitialized}
		stats, err := relay(context.Background(), rc, strings.NewReader(`{"track":"app_open"}`), logger)
		require.NoError(t, err)
		assert.Equal(t, relayStats{Failed: 1}, stats)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		pr, pw := io.Pipe()
		t.Cleanup(func() { _ = pw.Close() })

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := relay(ctx, &recordingConsumer{}, pr, logger)
			done <- err
		}()

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("relay did not stop after cancel")
		}
	})

	t.Run("reports read errors", func(t *testing.T) {
		pr, pw := io.Pipe()
		readErr := errors.New("stdin went away")
		go func() {
			_, _ = pw.Write([]byte(`{"track":"app_open"}` + "\n"))
			_ = pw.CloseWithError(readErr)
		}()

		rc := &recordingConsumer{}
		stats, err := relay(context.Background(), rc, pr, logger)
		assert.ErrorIs(t, err, readErr)
		assert.Equal(t, 1, stats.Relayed)
	})
}
