// Package scheduler triggers the crawl on a coarse interval with bounded
// random jitter, guaranteeing at most one active run at a time.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "announced/pkg/logx"
)

type Config struct {
	Enabled bool

	// Interval between runs. Default 24h.
	Interval time.Duration

	// MaxJitter bounds the random delay before each run, spreading load on
	// the origin across independent deployments. Default 60m.
	MaxJitter time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 24 * time.Hour
	}
	if c.MaxJitter < 0 {
		c.MaxJitter = 0
	} else if c.MaxJitter == 0 {
		c.MaxJitter = time.Hour
	}
	return c
}

// Service runs one job on the configured interval. The job owns its own
// error handling; the scheduler only ever observes normal completion.
type Service struct {
	cfg Config
	log logx.Logger
	job func(ctx context.Context)

	rng *rand.Rand

	mu      sync.Mutex
	c       *cron.Cron
	runCtx  context.Context
	cancel  context.CancelFunc
	running atomic.Bool
}

func New(cfg Config, job func(ctx context.Context), log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg.withDefaults(),
		log: log,
		job: job,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.c != nil {
		return
	}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New()
	s.c.Schedule(cron.Every(s.cfg.Interval), cron.FuncJob(s.fire))
	s.c.Start()
	s.log.Info("scheduler started",
		logx.Duration("interval", s.cfg.Interval),
		logx.Duration("max_jitter", s.cfg.MaxJitter))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// fire runs the job once: jitter sleep, overlap skip, run.
func (s *Service) fire() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	// At-most-one active run per deployment.
	if !s.running.CompareAndSwap(false, true) {
		s.log.Info("previous run still active; skipping trigger")
		return
	}
	defer s.running.Store(false)

	if jitter := s.jitter(); jitter > 0 {
		s.log.Debug("jitter sleep before run", logx.Duration("jitter", jitter))
		timer := time.NewTimer(jitter)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
	}

	s.job(ctx)
}

func (s *Service) jitter() time.Duration {
	if s.cfg.MaxJitter <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.rng.Int63n(int64(s.cfg.MaxJitter) + 1))
}
