// Package rules encapsulates the game-specific write operations layered on
// top of the raw match document. Every operation is expressed as a
// transform over the document so it composes with the state store's atomic
// mutate; domain-rule violations resolve locally as no-ops or explicit
// refusals and never fault the caller.
package rules

import (
	"errors"

	"github.com/tcgoverlay/overlay-server-go/internal/match"
)

// Transform mutates a working copy of the document. Returning an error
// aborts the mutation with no state change.
type Transform = func(*match.Document) error

var (
	// ErrInvalidSide is returned when an operation addresses neither player.
	ErrInvalidSide = errors.New("invalid side")
	// ErrBenchIndex is returned for a bench index outside the addressable range.
	ErrBenchIndex = errors.New("bench index out of range")
	// ErrSupporterUsed is the explicit refusal when a supporter has already
	// been played this turn for that side.
	ErrSupporterUsed = errors.New("supporter already used this turn")
	// ErrInvalidChoice is returned when a disambiguating choice is out of
	// range or does not match any offered candidate.
	ErrInvalidChoice = errors.New("invalid choice")
)

// SlotRef addresses a creature position: the active slot or a bench index.
type SlotRef struct {
	Bench bool
	Index int
}

// ActiveSlot addresses the active position.
func ActiveSlot() SlotRef { return SlotRef{} }

// BenchSlotRef addresses bench position idx.
func BenchSlotRef(idx int) SlotRef { return SlotRef{Bench: true, Index: idx} }

func playerFor(doc *match.Document, side match.Side) (*match.PlayerState, error) {
	p := doc.Player(side)
	if p == nil {
		return nil, ErrInvalidSide
	}
	return p, nil
}

// stampUse records an explicit use action, keeping the timestamp
// monotonically non-decreasing per player.
func stampUse(p *match.PlayerState, name, kind string, nowMillis int64) {
	if nowMillis < p.LastUsedAt {
		nowMillis = p.LastUsedAt
	}
	p.LastUsedAt = nowMillis
	p.LastUsedName = name
	p.LastUsedType = kind
}
