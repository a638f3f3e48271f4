package ondusauth

import (
	"context"
	"time"

	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
)

const minRefreshInterval = time.Second

// Start launches the background refresh task.  It runs until Teardown and
// does nothing if the task is already running.
func (s *Session) Start() {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()

	if s.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.refreshLoop(ctx, s.done)
}

func (s *Session) stop() {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()

	if s.done == nil {
		return
	}

	s.cancel()
	<-s.done

	s.cancel = nil
	s.done = nil
}

// refreshInterval is half the current token lifetime
func (s *Session) refreshInterval() time.Duration {
	d := s.ExpiresIn() / 2
	if d < minRefreshInterval {
		d = minRefreshInterval
	}

	return d
}

func (s *Session) refreshLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ctxLogger := logging.Logger(ctx)

	timer := time.NewTimer(s.refreshInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-timer.C:
			if err := s.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}

				ctxLogger.WithError(err).Warn("scheduled Ondus token refresh failed")

				s.mu.RLock()
				fn := s.onRefreshError
				s.mu.RUnlock()
				// on its own goroutine: fn may tear the session down,
				// which waits for this loop to exit
				if fn != nil {
					go fn(err)
				}
			}

			timer.Reset(s.refreshInterval())
		}
	}
}
