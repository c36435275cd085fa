package activity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestTrackerSummarises(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	tr := NewTracker()
	tr.now = func() time.Time { return base.Add(100 * time.Second) }

	mustTrack := func(status Visibility, offset time.Duration) {
		t.Helper()
		if _, err := tr.Track("s1", status, base.Add(offset)); err != nil {
			t.Fatalf("track: %v", err)
		}
	}
	mustTrack(Hidden, 0)
	mustTrack(Visible, 30*time.Second)
	mustTrack(Hidden, 60*time.Second)

	report := tr.Report("s1")
	if len(report.Activities) != 3 {
		t.Fatalf("expected 3 events, got %d", len(report.Activities))
	}
	m := report.Metrics
	if m.TabSwitchCount != 2 || m.TimeAwaySeconds != 70 || m.TimeAwayFormatted != "1m 10s" {
		t.Fatalf("unexpected metrics %+v", m)
	}
	if report.Activities[1].FormattedTime != "10:00:30" {
		t.Fatalf("unexpected formatted time %q", report.Activities[1].FormattedTime)
	}

	if _, err := tr.Track("s1", "blurred", time.Time{}); !errors.Is(err, ErrInvalidVisibility) {
		t.Fatalf("expected ErrInvalidVisibility, got %v", err)
	}

	tr.Forget("s1")
	if got := tr.Report("s1"); len(got.Activities) != 0 || got.Metrics.TabSwitchCount != 0 {
		t.Fatalf("expected empty report after forget, got %+v", got)
	}
}

func TestPollerStopsCleanly(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int32
	var updates atomic.Int32
	source := SourceFunc(func(context.Context) (Metrics, error) {
		n := fetches.Add(1)
		return Metrics{TabSwitchCount: int(n)}, nil
	})

	p := NewPoller(source, 5*time.Millisecond, func(Metrics) { updates.Add(1) })
	p.Start(context.Background())
	p.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for updates.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("poller did not tick")
		}
		time.Sleep(time.Millisecond)
	}

	p.Stop()
	after := updates.Load()
	time.Sleep(20 * time.Millisecond)
	if updates.Load() != after {
		t.Fatalf("update delivered after Stop")
	}
	if m, ok := p.Latest(); !ok || m.TabSwitchCount == 0 {
		t.Fatalf("expected latest metrics, got %+v %v", m, ok)
	}
	p.Stop()
}

func TestPollerKeepsLastValueOnError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	source := SourceFunc(func(context.Context) (Metrics, error) {
		if calls.Add(1) == 1 {
			return Metrics{TabSwitchCount: 4}, nil
		}
		return Metrics{}, errors.New("backend down")
	})
	p := NewPoller(source, 5*time.Millisecond, nil)
	p.Start(context.Background())
	for calls.Load() < 3 {
		time.Sleep(time.Millisecond)
	}
	p.Stop()

	if m, ok := p.Latest(); !ok || m.TabSwitchCount != 4 {
		t.Fatalf("expected the first value to be kept, got %+v", m)
	}
}

func TestHTTPSource(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("userId") != "u-1" {
			http.Error(w, "userId is required", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(Report{Metrics: Metrics{TabSwitchCount: 2, TimeAwayFormatted: "0m 5s"}})
	}))
	defer server.Close()

	m, err := (&HTTPSource{URL: server.URL + "/api/get-tab-activity", UserID: "u-1"}).Fetch(context.Background())
	if err != nil || m.TabSwitchCount != 2 {
		t.Fatalf("Fetch() = %+v, %v", m, err)
	}
	if _, err := (&HTTPSource{URL: server.URL}).Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for a rejected request")
	}
}
