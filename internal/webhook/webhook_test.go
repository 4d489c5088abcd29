package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignature(t *testing.T) {
	payload := []byte(`{"type":"content.created"}`)
	sig := GenerateSignature(payload, "secret")

	assert.Len(t, sig, 64)
	assert.Equal(t, sig, GenerateSignature(payload, "secret"))
	assert.True(t, VerifySignature(payload, sig, "secret"))
	assert.False(t, VerifySignature(payload, sig, "other"))
	assert.False(t, VerifySignature([]byte(`{"type":"content.updated"}`), sig, "secret"))
	// SHA256 HMAC of "test" with an empty key.
	assert.Equal(t, "43b0cef99265f9e34c10ea9d3501926d27b39f57c6d674561d8ba236e7a819fb", GenerateSignature([]byte("test"), ""))
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 32 * time.Second},
		{7, time.Minute},
		{100, time.Minute},
	}
	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt, time.Second, time.Minute); got != tt.expected {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		status      int
		success     bool
		shouldRetry bool
	}{
		{200, true, false},
		{204, true, false},
		{400, false, false},
		{404, false, false},
		{408, false, true},
		{429, false, true},
		{500, false, true},
		{503, false, true},
	}
	for _, tt := range tests {
		r := classifyResponse(tt.status, "")
		assert.Equal(t, tt.success, r.Success, "status %d", tt.status)
		assert.Equal(t, tt.shouldRetry, r.ShouldRetry, "status %d", tt.status)
		assert.Equal(t, tt.status, r.StatusCode)
	}
}

func testConfig(urls ...string) Config {
	return Config{
		URLs:           urls,
		Secret:         "s3cret",
		Workers:        2,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

type received struct {
	header http.Header
	body   []byte
}

func TestDispatcher_Delivers(t *testing.T) {
	got := make(chan received, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{header: r.Header.Clone(), body: body}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDispatcher(testConfig(srv.URL, srv.URL+"/second"), nil)
	d.Start(context.Background())
	defer d.Stop()

	data := ContentEventData{ID: 9, TenantID: 1, Title: "Hello", State: "draft"}
	require.NoError(t, d.DispatchEvent(context.Background(), EventContentCreated, data))

	for range 2 {
		select {
		case r := <-got:
			assert.Equal(t, EventContentCreated, r.header.Get("X-Webhook-Event"))
			assert.Equal(t, "application/json", r.header.Get("Content-Type"))
			assert.Equal(t, "1", r.header.Get("X-Webhook-Attempt"))
			assert.True(t, VerifySignature(r.body, r.header.Get("X-Webhook-Signature"), "s3cret"))

			var ev struct {
				ID   string           `json:"id"`
				Type string           `json:"type"`
				Data ContentEventData `json:"data"`
			}
			require.NoError(t, json.Unmarshal(r.body, &ev))
			assert.Equal(t, r.header.Get("X-Webhook-Delivery-ID"), ev.ID)
			assert.NotEmpty(t, ev.ID)
			assert.Equal(t, data, ev.Data)
		case <-time.After(2 * time.Second):
			t.Fatal("delivery not received")
		}
	}
}

func TestDispatcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		close(done)
	}))
	defer srv.Close()

	d := NewDispatcher(testConfig(srv.URL), nil)
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.DispatchEvent(context.Background(), EventContentUpdated, nil))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("delivery never succeeded, calls = %d", calls.Load())
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestDispatcher_GivesUp(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   int32
	}{
		{"client error is final", http.StatusBadRequest, 1},
		{"server error exhausts attempts", http.StatusBadGateway, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			d := NewDispatcher(testConfig(srv.URL), nil)
			d.Start(context.Background())

			require.NoError(t, d.DispatchEvent(context.Background(), EventContentUpdated, nil))

			assert.Eventually(t, func() bool { return calls.Load() == tt.want }, 2*time.Second, 5*time.Millisecond)
			time.Sleep(50 * time.Millisecond)
			d.Stop()
			assert.Equal(t, tt.want, calls.Load())
		})
	}
}

func TestDispatcher_NotRunningOrNoEndpoints(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	d := NewDispatcher(testConfig(srv.URL), nil)
	assert.NoError(t, d.DispatchEvent(context.Background(), EventContentCreated, nil))

	empty := NewDispatcher(testConfig(), nil)
	assert.False(t, empty.Enabled())
	empty.Start(context.Background())
	assert.NoError(t, empty.DispatchEvent(context.Background(), EventContentCreated, nil))
	empty.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestDispatcher_StopDeliversAfterContextCancel(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(testConfig(srv.URL), nil)
	d.Start(ctx)
	deb := NewDebouncer(d, DebounceConfig{
		Interval: time.Hour,
		MaxWait:  time.Hour,
		Types:    []string{EventContentUpdated},
	}, nil)

	require.NoError(t, deb.Dispatch(ctx, NewEvent(EventContentUpdated, ContentEventData{ID: 7, TenantID: 1})))
	cancel()

	deb.Stop()
	d.Stop()

	assert.Equal(t, int32(1), calls.Load(), "pending update must be delivered during shutdown")
}

func TestDispatcher_StopGivesUpAfterDrainTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(srv.URL)
	cfg.Workers = 1
	cfg.DrainTimeout = 50 * time.Millisecond
	d := NewDispatcher(cfg, nil)
	d.Start(context.Background())

	require.NoError(t, d.DispatchEvent(context.Background(), EventContentCreated, nil))
	require.NoError(t, d.DispatchEvent(context.Background(), EventContentCreated, nil))

	start := time.Now()
	d.Stop()
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, float64(5), cfg.Rate)
	assert.Equal(t, 10*time.Second, cfg.DrainTimeout)

	d := NewDispatcher(Config{}, nil)
	assert.Equal(t, 3, d.cfg.Workers)
	assert.Equal(t, 100, cap(d.queue))
}

type recordingSender struct {
	mu     sync.Mutex
	events []*Event
}

func (r *recordingSender) Dispatch(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSender) snapshot() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

func TestEventKey(t *testing.T) {
	assert.Equal(t, "content.updated:1:5", eventKey(NewEvent(EventContentUpdated, ContentEventData{ID: 5, TenantID: 1})))
	assert.Equal(t, "content.updated:2:5", eventKey(NewEvent(EventContentUpdated, &ContentEventData{ID: 5, TenantID: 2})))
	assert.Equal(t, "content.updated", eventKey(NewEvent(EventContentUpdated, "other")))
	assert.Equal(t, "content.updated", eventKey(NewEvent(EventContentUpdated, nil)))
}

func TestDebouncer_Coalesces(t *testing.T) {
	rec := &recordingSender{}
	d := NewDebouncer(rec, DebounceConfig{
		Interval: 100 * time.Millisecond,
		MaxWait:  time.Second,
		Types:    []string{EventContentUpdated},
	}, nil)
	defer d.Stop()
	ctx := context.Background()

	for rev := int64(1); rev <= 3; rev++ {
		require.NoError(t, d.Dispatch(ctx, NewEvent(EventContentUpdated, ContentEventData{ID: 1, TenantID: 1, Revision: rev})))
	}
	require.NoError(t, d.Dispatch(ctx, NewEvent(EventContentUpdated, ContentEventData{ID: 2, TenantID: 1, Revision: 1})))
	assert.Equal(t, 2, d.PendingCount())

	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)

	var latest int64
	for _, e := range rec.snapshot() {
		data := e.Data.(ContentEventData)
		if data.ID == 1 {
			latest = data.Revision
		}
	}
	assert.Equal(t, int64(3), latest)
	assert.Zero(t, d.PendingCount())
}

func TestDebouncer_PassThroughAndFlush(t *testing.T) {
	rec := &recordingSender{}
	d := NewDebouncer(rec, DebounceConfig{
		Interval: time.Hour,
		MaxWait:  time.Hour,
		Types:    []string{EventContentUpdated},
	}, nil)
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, NewEvent(EventContentStateChanged, ContentEventData{ID: 1})))
	assert.Len(t, rec.snapshot(), 1, "state changes are never debounced")

	require.NoError(t, d.Dispatch(ctx, NewEvent(EventContentUpdated, ContentEventData{ID: 1})))
	assert.Len(t, rec.snapshot(), 1)

	d.Stop()
	assert.Len(t, rec.snapshot(), 2)
}
