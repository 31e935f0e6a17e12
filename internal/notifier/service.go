package notifier

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	logx "announced/pkg/logx"
)

type Config struct {
	// RatePerSec caps outbound deliveries. Default 5.
	RatePerSec int
	// HistorySize bounds the in-memory delivery history ring. Default 300.
	HistorySize int
}

// Service wraps a Sink with rate limiting, per-recipient error isolation
// and a bounded history ring for introspection.
type Service struct {
	sink Sink
	log  logx.Logger

	limiter *rate.Limiter
	histMax int

	mu      sync.Mutex
	history []Notification
}

func New(cfg Config, sink Sink, log logx.Logger) *Service {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	histMax := cfg.HistorySize
	if histMax <= 0 {
		histMax = 300
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		sink:    sink,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		histMax: histMax,
	}
}

// Notify submits one notification. The error is returned for accounting
// but is already logged; callers treat delivery as best-effort.
func (s *Service) Notify(ctx context.Context, n Notification) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	err := s.sink.Send(ctx, n)
	if err != nil {
		s.log.Warn("notification send failed",
			logx.String("user", n.UserID),
			logx.String("object", n.ObjectID),
			logx.Err(err))
	} else {
		s.log.Debug("notification sent",
			logx.String("user", n.UserID),
			logx.String("object", n.ObjectID))
	}
	s.appendHistory(n)
	return err
}

func (s *Service) appendHistory(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, n)
	if len(s.history) > s.histMax {
		s.history = s.history[len(s.history)-s.histMax:]
	}
}

// History returns a copy of the recent delivery history.
func (s *Service) History() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.history))
	copy(out, s.history)
	return out
}
