// Package probe implements the balancer's periodic RTT probe loop: a
// single timer task that fans out one short-lived TCP connection per
// backend each tick, speaking a ping/pong wire contract, and feeding
// results back into the registry. It also keeps a bounded per-backend
// RTT history for the admin console's P50/P90 display.
package probe

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pranshu258/linebalancer/internal/contracts"
	"github.com/pranshu258/linebalancer/internal/metrics"
	"github.com/pranshu258/linebalancer/internal/registry"
)

const historySize = 32

// Sampler keeps a bounded window of recent RTT samples per backend,
// used only for the admin console's P50/P90 display. The scheduler's
// min-RTT decision still reads the single latest sample from the
// registry.
type Sampler struct {
	mu      sync.Mutex
	samples map[contracts.Backend][]float64
}

func newSampler() *Sampler {
	return &Sampler{samples: make(map[contracts.Backend][]float64)}
}

func (s *Sampler) add(b contracts.Backend, ms float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.samples[b]
	if len(h) >= historySize {
		h = h[1:]
	}
	s.samples[b] = append(h, ms)
}

// Quantiles returns (p50, p90, ok). ok is false if no samples exist.
func (s *Sampler) Quantiles(b contracts.Backend) (p50, p90 float64, ok bool) {
	s.mu.Lock()
	sorted := append([]float64(nil), s.samples[b]...)
	s.mu.Unlock()
	if len(sorted) == 0 {
		return 0, 0, false
	}
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil),
		stat.Quantile(0.9, stat.Empirical, sorted, nil), true
}

// Loop runs the periodic probe task against the registry's backend set.
// Changing the interval cancels the running tick goroutine and starts a
// fresh one; in-flight probes are allowed to finish and still publish
// their result.
type Loop struct {
	reg     *registry.Registry
	metrics *metrics.Metrics
	log     *log.Logger
	Sampler *Sampler

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New builds a probe loop bound to reg. logger may be nil, in which
// case log.Default() is used.
func New(reg *registry.Registry, m *metrics.Metrics, logger *log.Logger) *Loop {
	if logger == nil {
		logger = log.Default()
	}
	return &Loop{reg: reg, metrics: m, log: logger, Sampler: newSampler()}
}

// Start launches the tick goroutine at the registry's current ping
// interval. Restart must be called whenever the interval changes.
func (l *Loop) Start(ctx context.Context) {
	l.Restart(ctx, l.reg.Snapshot().PingIntervalMs)
}

// Restart cancels any running tick goroutine and starts a new one at
// the given period.
func (l *Loop) Restart(ctx context.Context, periodMs int) {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	tickCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	period := time.Duration(periodMs) * time.Millisecond
	timeout := period / 2
	if timeout < 200*time.Millisecond {
		timeout = 200 * time.Millisecond
	}

	go l.run(tickCtx, period, timeout)
}

func (l *Loop) run(ctx context.Context, period, timeout time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(timeout)
		}
	}
}

// tick fans out one outbound connection per backend concurrently; no
// tick waits for the previous one's stragglers before proceeding.
func (l *Loop) tick(timeout time.Duration) {
	for _, b := range l.reg.Backends() {
		go l.probeOne(b, timeout)
	}
}

func (l *Loop) probeOne(b contracts.Backend, timeout time.Duration) {
	addr := fmt.Sprintf("%s:%d", b.Address, b.Port)
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		l.fail(b, err)
		return
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))
	if _, err := conn.Write([]byte("ping\n")); err != nil {
		l.fail(b, err)
		return
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		l.fail(b, err)
		return
	}
	elapsed := time.Since(start)

	if !strings.EqualFold(strings.TrimSpace(line), "pong") {
		l.fail(b, fmt.Errorf("unexpected probe response %q", line))
		return
	}

	ms := int(elapsed.Milliseconds())
	if err := l.reg.SetRTT(b, ms); err != nil {
		// Backend was removed between snapshot and probe completion.
		return
	}
	l.Sampler.add(b, float64(ms))
	if l.metrics != nil {
		l.metrics.ProbeSuccessTotal.Inc()
	}
}

func (l *Loop) fail(b contracts.Backend, err error) {
	l.log.Printf("probe %s failed: %v", b, err)
	if l.metrics != nil {
		l.metrics.ProbeFailureTotal.Inc()
	}
}
