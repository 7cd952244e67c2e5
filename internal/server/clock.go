package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tcgoverlay/overlay-server-go/internal/match"
	"github.com/tcgoverlay/overlay-server-go/internal/store"
)

// Clocks runs the match timer and the round countdown. At most one ticker
// of each kind exists; starting one cancels its predecessor first. Every
// tick re-reads the authoritative document instead of counting down a
// captured value, so operator edits to the timer text take effect mid-run.
type Clocks struct {
	store  *store.Store
	logger *zap.Logger

	mu              sync.Mutex
	timerCancel     context.CancelFunc
	countdownCancel context.CancelFunc
}

// NewClocks returns stopped clocks bound to st.
func NewClocks(st *store.Store, logger *zap.Logger) *Clocks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Clocks{store: st, logger: logger}
}

// StartTimer begins ticking the timer text down once per second, stopping
// at zero.
func (c *Clocks) StartTimer(ctx context.Context) {
	c.mu.Lock()
	if c.timerCancel != nil {
		c.timerCancel()
	}
	tctx, cancel := context.WithCancel(ctx)
	c.timerCancel = cancel
	c.mu.Unlock()

	go c.tickLoop(tctx, c.timerTick)
}

// StopTimer halts the timer ticker.
func (c *Clocks) StopTimer() {
	c.mu.Lock()
	if c.timerCancel != nil {
		c.timerCancel()
		c.timerCancel = nil
	}
	c.mu.Unlock()
}

// StartCountdown begins the round countdown. The starting value is seeded
// from the timer text when it parses, else the current countdown, else the
// session default, and CountdownRunning is flagged in the document so other
// surfaces can reflect it.
func (c *Clocks) StartCountdown(ctx context.Context) {
	c.mu.Lock()
	if c.countdownCancel != nil {
		c.countdownCancel()
	}
	cctx, cancel := context.WithCancel(ctx)
	c.countdownCancel = cancel
	c.mu.Unlock()

	_, err := c.store.Mutate(func(doc *match.Document) error {
		if secs := match.ParseTimer(doc.Timer); secs > 0 {
			doc.Countdown = secs
		} else if doc.Countdown <= 0 {
			doc.Countdown = match.DefaultCountdownSeconds
		}
		doc.CountdownRunning = true
		return nil
	})
	if err != nil {
		c.logger.Warn("seed countdown failed", zap.Error(err))
	}

	go c.tickLoop(cctx, c.countdownTick)
}

// StopCountdown halts the countdown and clears the running flag.
func (c *Clocks) StopCountdown() {
	c.mu.Lock()
	if c.countdownCancel != nil {
		c.countdownCancel()
		c.countdownCancel = nil
	}
	c.mu.Unlock()

	if _, err := c.store.Mutate(func(doc *match.Document) error {
		doc.CountdownRunning = false
		return nil
	}); err != nil {
		c.logger.Warn("stop countdown failed", zap.Error(err))
	}
}

func (c *Clocks) tickLoop(ctx context.Context, tick func() bool) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !tick() {
				return
			}
		}
	}
}

// timerTick decrements the timer text by one second. Returns false once the
// timer reaches zero or stops parsing.
func (c *Clocks) timerTick() bool {
	done := false
	_, err := c.store.Mutate(func(doc *match.Document) error {
		secs := match.ParseTimer(doc.Timer)
		if secs <= 0 {
			done = true
			return nil
		}
		secs--
		doc.Timer = match.FormatTimer(secs)
		if secs == 0 {
			done = true
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("timer tick failed", zap.Error(err))
		return false
	}
	return !done
}

// countdownTick decrements the countdown, clearing the running flag at
// zero. Returns false when finished or externally stopped.
func (c *Clocks) countdownTick() bool {
	done := false
	_, err := c.store.Mutate(func(doc *match.Document) error {
		if !doc.CountdownRunning || doc.Countdown <= 0 {
			doc.CountdownRunning = false
			done = true
			return nil
		}
		doc.Countdown--
		if doc.Countdown == 0 {
			doc.CountdownRunning = false
			done = true
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("countdown tick failed", zap.Error(err))
		return false
	}
	return !done
}
