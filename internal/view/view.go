// Package view derives the animation and visibility state a renderer
// consumes from successive match document snapshots. Everything here is
// ephemeral and locally owned: nothing is persisted or broadcast, so any
// number of readers recompute the same frame independently from the same
// authoritative document stream.
package view

import (
	"time"

	"github.com/tcgoverlay/overlay-server-go/internal/match"
)

const (
	// RevealDuration is how long a used-card banner stays visible.
	RevealDuration = 5 * time.Second
	// UseRecencyWindow bounds how old a lastUsedAt stamp may be and still
	// start a reveal. Reconnecting readers must not replay old uses.
	UseRecencyWindow = 10 * time.Second
	// SwapAnimationSkip suppresses HP animations right after a swap, where
	// the HP delta is a positional side effect rather than damage.
	SwapAnimationSkip = 360 * time.Millisecond
	// KOFlashDuration is the knockout flash length.
	KOFlashDuration = 900 * time.Millisecond
	// StadiumFlashDuration highlights a newly played stadium.
	StadiumFlashDuration = 1600 * time.Millisecond
)

// HPDirection describes how an HP change should animate.
type HPDirection int

const (
	HPNone HPDirection = iota
	HPIncrease
	HPDecrease
)

// PlayerFrame is the per-player slice of a derived frame.
type PlayerFrame struct {
	// RevealVisible is true while the used-card banner should show.
	RevealVisible bool
	RevealName    string
	RevealType    string

	// ActiveHP animates the active creature's HP counter.
	ActiveHP HPDirection

	// KOFlash is true during the knockout flash window.
	KOFlash bool
}

// Frame is the complete derived view for one reconciliation cycle.
type Frame struct {
	Left  PlayerFrame
	Right PlayerFrame

	// StadiumFlash is true while a newly played stadium is highlighted.
	StadiumFlash bool
}

// playerState is the ephemeral per-player memory between cycles.
type playerState struct {
	seenUsedAt      int64
	revealUntil     time.Time
	revealName      string
	revealType      string
	supporterShown  bool
	turnWas         bool
	seenSwappedAt   int64
	swapSkipUntil   time.Time
	prevActiveSet   bool
	prevActiveAlive bool
	prevActiveHP    int
	koFlashUntil    time.Time
}

// Computer turns document snapshots into frames. Not safe for concurrent
// use; each surface owns one.
type Computer struct {
	left  playerState
	right playerState

	prevStadium       string
	stadiumSeen       bool
	stadiumFlashUntil time.Time
}

// NewComputer returns a computer with no history. The first Advance call
// establishes a baseline and triggers no transition effects.
func NewComputer() *Computer {
	return &Computer{}
}

// Advance consumes the next document snapshot observed at now and returns
// the frame to render.
func (c *Computer) Advance(doc *match.Document, now time.Time) Frame {
	var f Frame
	if doc == nil {
		return f
	}
	f.Left = c.left.advance(doc.Left, doc.Turn == match.SideLeft, now)
	f.Right = c.right.advance(doc.Right, doc.Turn == match.SideRight, now)

	if c.stadiumSeen && doc.Stadium != c.prevStadium && doc.Stadium != "" {
		c.stadiumFlashUntil = now.Add(StadiumFlashDuration)
	}
	c.prevStadium = doc.Stadium
	c.stadiumSeen = true
	f.StadiumFlash = now.Before(c.stadiumFlashUntil)
	return f
}

func (s *playerState) advance(p *match.PlayerState, isTurn bool, now time.Time) PlayerFrame {
	var f PlayerFrame
	if p == nil {
		p = match.EmptyPlayer()
	}

	// A new turn for this player re-arms the one-shot supporter reveal.
	if isTurn && !s.turnWas {
		s.supporterShown = false
	}
	s.turnWas = isTurn

	// Used-card reveal. Only a freshly observed stamp inside the recency
	// window starts one; a tool name already sitting on a creature does not.
	if p.LastUsedAt > s.seenUsedAt {
		s.seenUsedAt = p.LastUsedAt
		age := now.Sub(time.UnixMilli(p.LastUsedAt))
		fresh := age >= 0 && age < UseRecencyWindow
		if fresh && isTurn {
			if p.LastUsedType == "supporter" {
				if !s.supporterShown {
					s.supporterShown = true
					s.startReveal(p, now)
				}
			} else {
				s.startReveal(p, now)
			}
		}
	}
	if !isTurn {
		// Banners never outlive the turn they belong to.
		s.revealUntil = time.Time{}
	}
	if now.Before(s.revealUntil) {
		f.RevealVisible = true
		f.RevealName = s.revealName
		f.RevealType = s.revealType
	}

	// Swap suppression window.
	if p.SwappedAt > s.seenSwappedAt {
		s.seenSwappedAt = p.SwappedAt
		s.swapSkipUntil = now.Add(SwapAnimationSkip)
	}

	alive := p.Active != nil
	hp := 0
	if alive {
		hp = p.Active.HP
	}

	// HP animation direction, only for a creature that stayed in place.
	if s.prevActiveSet && s.prevActiveAlive && alive && now.After(s.swapSkipUntil) {
		switch {
		case hp > s.prevActiveHP:
			f.ActiveHP = HPIncrease
		case hp < s.prevActiveHP:
			f.ActiveHP = HPDecrease
		}
	}

	// Knockout flash on the non-nil to nil transition.
	if s.prevActiveSet && s.prevActiveAlive && !alive {
		s.koFlashUntil = now.Add(KOFlashDuration)
	}
	f.KOFlash = now.Before(s.koFlashUntil)

	s.prevActiveSet = true
	s.prevActiveAlive = alive
	s.prevActiveHP = hp
	return f
}

func (s *playerState) startReveal(p *match.PlayerState, now time.Time) {
	s.revealUntil = now.Add(RevealDuration)
	s.revealName = p.LastUsedName
	s.revealType = p.LastUsedType
}
