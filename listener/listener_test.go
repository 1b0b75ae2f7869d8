package listener

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/wavescope/codec"
	"github.com/c360/wavescope/errors"
	"github.com/c360/wavescope/store"
)

// fakeStream is an in-memory EntryStream with controllable read batching
// and failure injection.
type fakeStream struct {
	mu         sync.Mutex
	entries    []store.Entry
	nextID     uint64
	maxPerRead int
	readErr    error
}

func (f *fakeStream) StreamAppend(_ context.Context, _ string, fields map[string][]byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.entries = append(f.entries, store.Entry{ID: f.nextID, Fields: fields})
	return f.nextID, nil
}

func (f *fakeStream) StreamReadBlocking(
	ctx context.Context, _ string, afterID uint64, timeout time.Duration,
) ([]store.Entry, error) {
	deadline := time.Now().Add(timeout)
	for {
		f.mu.Lock()
		if f.readErr != nil {
			err := f.readErr
			f.mu.Unlock()
			return nil, err
		}
		var out []store.Entry
		for _, e := range f.entries {
			if e.ID > afterID {
				out = append(out, e)
				if f.maxPerRead > 0 && len(out) == f.maxPerRead {
					break
				}
			}
		}
		f.mu.Unlock()

		if len(out) > 0 {
			return out, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *fakeStream) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

func appendSamples(t *testing.T, fs *fakeStream, samples []float64) {
	t.Helper()
	data, saturated := codec.Encode(samples, codec.Int32, codec.Little)
	require.Zero(t, saturated)
	_, err := fs.StreamAppend(context.Background(), "k", map[string][]byte{"data": data})
	require.NoError(t, err)
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.PollTimeout = 20 * time.Millisecond
	cfg.BackpressureBudget = 2 * time.Millisecond
	return cfg
}

func newTestTask(fs *fakeStream, cfg Config) *Task {
	return NewTask(Deps{
		Store:      fs,
		Key:        "k",
		Type:       codec.Int32,
		Endianness: codec.Little,
		Config:     cfg,
	})
}

func collectData(t *testing.T, task *Task, wantSamples int, within time.Duration) []float64 {
	t.Helper()
	var got []float64
	deadline := time.After(within)
	for len(got) < wantSamples {
		select {
		case ev := <-task.Events():
			if ev.Type == EventData {
				got = append(got, ev.Batch.Samples...)
			}
		case <-deadline:
			t.Fatalf("timed out with %d of %d samples", len(got), wantSamples)
		}
	}
	return got
}

func TestDeliversEntriesInOrder(t *testing.T) {
	fs := &fakeStream{}
	appendSamples(t, fs, []float64{1})
	appendSamples(t, fs, []float64{2})
	appendSamples(t, fs, []float64{3})

	task := newTestTask(fs, fastConfig())
	require.NoError(t, task.Initialize())
	require.NoError(t, task.Start(context.Background()))
	defer func() { _ = task.Stop(time.Second) }()

	got := collectData(t, task, 3, 2*time.Second)
	assert.Equal(t, []float64{1, 2, 3}, got)
	assert.Equal(t, uint64(3), task.Cursor())
}

func TestOrderPreservedAcrossPollCycles(t *testing.T) {
	fs := &fakeStream{maxPerRead: 1}
	for i := 1; i <= 5; i++ {
		appendSamples(t, fs, []float64{float64(i)})
	}

	task := newTestTask(fs, fastConfig())
	require.NoError(t, task.Initialize())
	require.NoError(t, task.Start(context.Background()))
	defer func() { _ = task.Stop(time.Second) }()

	got := collectData(t, task, 5, 2*time.Second)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, got)
}

func TestStopObservedWithinPollTimeout(t *testing.T) {
	fs := &fakeStream{}
	cfg := fastConfig()
	cfg.PollTimeout = 50 * time.Millisecond

	task := newTestTask(fs, cfg)
	require.NoError(t, task.Initialize())
	require.NoError(t, task.Start(context.Background()))
	require.True(t, task.Running())

	start := time.Now()
	require.NoError(t, task.Stop(500*time.Millisecond))
	assert.Less(t, time.Since(start), 200*time.Millisecond,
		"stop must be felt within roughly one poll timeout")
	assert.False(t, task.Running())
}

func TestTerminalStoreErrorSurfacesOnce(t *testing.T) {
	fs := &fakeStream{}
	task := newTestTask(fs, fastConfig())
	require.NoError(t, task.Initialize())
	require.NoError(t, task.Start(context.Background()))

	fs.failWith(stderrors.New("connection refused"))

	select {
	case ev := <-task.Events():
		require.Equal(t, EventError, ev.Type)
		assert.Error(t, ev.Err)
	case <-time.After(time.Second):
		t.Fatal("no error event received")
	}

	// The task stops itself; Stop is a no-op afterwards.
	require.Eventually(t, func() bool { return !task.Running() }, time.Second, 5*time.Millisecond)
	assert.Error(t, task.LastError())
	assert.NoError(t, task.Stop(time.Second))
}

func TestOverflowDropsOldestAndReportsOnce(t *testing.T) {
	fs := &fakeStream{maxPerRead: 1}
	for i := 1; i <= 6; i++ {
		appendSamples(t, fs, []float64{float64(i)})
	}

	cfg := fastConfig()
	cfg.ChannelCapacity = 1
	cfg.MaxBufferedBatches = 2

	task := newTestTask(fs, cfg)
	require.NoError(t, task.Initialize())
	require.NoError(t, task.Start(context.Background()))
	defer func() { _ = task.Stop(time.Second) }()

	// Let the task read everything with nobody draining.
	require.Eventually(t, func() bool { return task.Cursor() == 6 }, 2*time.Second, 5*time.Millisecond)

	var overflow []Event
	var samples []float64
	deadline := time.After(2 * time.Second)
	for len(samples) < 3 {
		select {
		case ev := <-task.Events():
			switch ev.Type {
			case EventOverflow:
				overflow = append(overflow, ev)
			case EventData:
				samples = append(samples, ev.Batch.Samples...)
			}
		case <-deadline:
			t.Fatalf("timed out, samples=%v overflow=%d", samples, len(overflow))
		}
	}

	require.Len(t, overflow, 1, "one overflow event per episode")
	assert.Equal(t, 3, overflow[0].Dropped)
	// First batch plus the two ring survivors; the middle three were dropped.
	assert.Equal(t, []float64{1, 5, 6}, samples)
}

func TestSecondStartRejected(t *testing.T) {
	fs := &fakeStream{}
	task := newTestTask(fs, fastConfig())
	require.NoError(t, task.Initialize())
	require.NoError(t, task.Start(context.Background()))
	defer func() { _ = task.Stop(time.Second) }()

	err := task.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyStarted)
}

func TestDecodingFollowsLiveChanges(t *testing.T) {
	fs := &fakeStream{}
	task := newTestTask(fs, fastConfig())
	require.NoError(t, task.Initialize())
	require.NoError(t, task.Start(context.Background()))
	defer func() { _ = task.Stop(time.Second) }()

	task.SetDecoding(codec.UInt8, codec.Little)
	_, err := fs.StreamAppend(context.Background(), "k", map[string][]byte{"data": {10, 20}})
	require.NoError(t, err)

	got := collectData(t, task, 2, 2*time.Second)
	assert.Equal(t, []float64{10, 20}, got)
}

func TestInitializeValidation(t *testing.T) {
	task := NewTask(Deps{Key: "k", Config: DefaultConfig()})
	assert.Error(t, task.Initialize(), "nil store rejected")

	task = NewTask(Deps{Store: &fakeStream{}, Config: DefaultConfig()})
	assert.Error(t, task.Initialize(), "empty key rejected")

	bad := DefaultConfig()
	bad.PollTimeout = 0
	task = NewTask(Deps{Store: &fakeStream{}, Key: "k", Config: bad})
	assert.Error(t, task.Initialize())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cases := []func(*Config){
		func(c *Config) { c.PollTimeout = -time.Second },
		func(c *Config) { c.ChannelCapacity = 0 },
		func(c *Config) { c.MaxBufferedBatches = 0 },
		func(c *Config) { c.BackpressureBudget = -time.Millisecond },
		func(c *Config) { c.Field = "" },
	}
	for i, mutate := range cases {
		c := DefaultConfig()
		mutate(&c)
		err := c.Validate()
		require.Error(t, err, "case %d", i)
		assert.True(t, errors.IsInvalid(err), "case %d", i)
	}
}
