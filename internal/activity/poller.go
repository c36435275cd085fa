package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// DefaultInterval is how often metrics are re-fetched.
const DefaultInterval = 10 * time.Second

// Source fetches the current metrics for a session.
type Source interface {
	Fetch(ctx context.Context) (Metrics, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Metrics, error)

func (f SourceFunc) Fetch(ctx context.Context) (Metrics, error) { return f(ctx) }

// TrackerSource reads a session's metrics from a local tracker.
func TrackerSource(t *Tracker, sessionID string) Source {
	return SourceFunc(func(context.Context) (Metrics, error) {
		return t.Report(sessionID).Metrics, nil
	})
}

// HTTPSource fetches `<url>?userId=<id>` and decodes a Report.
type HTTPSource struct {
	URL    string
	UserID string
	Client *http.Client
}

func (s *HTTPSource) Fetch(ctx context.Context) (Metrics, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return Metrics{}, fmt.Errorf("parse activity url: %w", err)
	}
	q := u.Query()
	q.Set("userId", s.UserID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Metrics{}, fmt.Errorf("create activity request: %w", err)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Metrics{}, fmt.Errorf("fetch activity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metrics{}, fmt.Errorf("fetch activity: status %d", resp.StatusCode)
	}
	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return Metrics{}, fmt.Errorf("decode activity: %w", err)
	}
	return report.Metrics, nil
}

// Poller fetches metrics immediately and then on every tick until stopped. Fetch errors
// are logged and the previous value is kept.
type Poller struct {
	source   Source
	interval time.Duration
	onUpdate func(Metrics)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	latest  Metrics
	fetched bool
}

func NewPoller(source Source, interval time.Duration, onUpdate func(Metrics)) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if onUpdate == nil {
		onUpdate = func(Metrics) {}
	}
	return &Poller{source: source, interval: interval, onUpdate: onUpdate}
}

// Start begins polling. Calling Start on a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop cancels polling and waits for the loop to exit; no update is delivered afterwards.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Latest returns the last fetched metrics.
func (p *Poller) Latest() (Metrics, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.fetched
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	m, err := p.source.Fetch(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Printf("activity: poll failed: %v", err)
		return
	}

	p.mu.Lock()
	p.latest, p.fetched = m, true
	p.mu.Unlock()

	p.onUpdate(m)
}
