package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcgoverlay/overlay-server-go/internal/match"
)

var base = time.UnixMilli(1_700_000_000_000)

func docWithActive(hp int) *match.Document {
	doc := match.Default()
	doc.Left = match.EmptyPlayer()
	doc.Right = match.EmptyPlayer()
	doc.Left.Active = &match.CreatureSlot{Name: "Pikachu", HP: hp, MaxHP: 60}
	doc.Turn = match.SideLeft
	return doc
}

func TestUsedCardRevealLifecycle(t *testing.T) {
	c := NewComputer()
	doc := docWithActive(60)
	c.Advance(doc, base)

	next := doc.Clone()
	next.Left.LastUsedAt = base.Add(time.Second).UnixMilli()
	next.Left.LastUsedName = "Rare Candy"
	next.Left.LastUsedType = "item"

	f := c.Advance(next, base.Add(time.Second))
	require.True(t, f.Left.RevealVisible)
	assert.Equal(t, "Rare Candy", f.Left.RevealName)
	assert.Equal(t, "item", f.Left.RevealType)

	// Still visible inside the five second window.
	f = c.Advance(next, base.Add(time.Second+4*time.Second))
	assert.True(t, f.Left.RevealVisible)

	// Expired after it.
	f = c.Advance(next, base.Add(time.Second+6*time.Second))
	assert.False(t, f.Left.RevealVisible)
}

func TestStaleUseStampNeverReveals(t *testing.T) {
	c := NewComputer()
	doc := docWithActive(60)
	c.Advance(doc, base)

	// A reconnecting reader sees a stamp from half a minute ago.
	next := doc.Clone()
	next.Left.LastUsedAt = base.Add(-30 * time.Second).UnixMilli()
	next.Left.LastUsedName = "Professor's Research"
	next.Left.LastUsedType = "supporter"

	f := c.Advance(next, base)
	assert.False(t, f.Left.RevealVisible)
}

func TestRevealOnlyForTurnPlayer(t *testing.T) {
	c := NewComputer()
	doc := docWithActive(60)
	doc.Turn = match.SideRight
	c.Advance(doc, base)

	next := doc.Clone()
	next.Left.LastUsedAt = base.UnixMilli()
	next.Left.LastUsedName = "Rare Candy"
	next.Left.LastUsedType = "item"

	f := c.Advance(next, base)
	assert.False(t, f.Left.RevealVisible)
}

func TestRevealEndsWhenTurnEnds(t *testing.T) {
	c := NewComputer()
	doc := docWithActive(60)
	c.Advance(doc, base)

	next := doc.Clone()
	next.Left.LastUsedAt = base.UnixMilli()
	next.Left.LastUsedName = "Rare Candy"
	next.Left.LastUsedType = "item"
	f := c.Advance(next, base)
	require.True(t, f.Left.RevealVisible)

	passed := next.Clone()
	passed.Turn = match.SideRight
	f = c.Advance(passed, base.Add(time.Second))
	assert.False(t, f.Left.RevealVisible)
}

func TestSupporterRevealOncePerTurn(t *testing.T) {
	c := NewComputer()
	doc := docWithActive(60)
	c.Advance(doc, base)

	use := doc.Clone()
	use.Left.LastUsedAt = base.UnixMilli()
	use.Left.LastUsedName = "Professor's Research"
	use.Left.LastUsedType = "supporter"
	f := c.Advance(use, base)
	require.True(t, f.Left.RevealVisible)

	// Redundant delivery repeats the same stamp after expiry: no re-show.
	later := use.Clone()
	later.Left.LastUsedAt = base.Add(7 * time.Second).UnixMilli()
	f = c.Advance(later, base.Add(7*time.Second))
	assert.False(t, f.Left.RevealVisible)

	// A new turn re-arms the supporter reveal.
	theirTurn := later.Clone()
	theirTurn.Turn = match.SideRight
	c.Advance(theirTurn, base.Add(8*time.Second))

	myTurn := theirTurn.Clone()
	myTurn.Turn = match.SideLeft
	myTurn.Left.LastUsedAt = base.Add(9 * time.Second).UnixMilli()
	myTurn.Left.LastUsedName = "Boss's Orders"
	f = c.Advance(myTurn, base.Add(9*time.Second))
	assert.True(t, f.Left.RevealVisible)
}

func TestItemRevealRepeats(t *testing.T) {
	c := NewComputer()
	doc := docWithActive(60)
	c.Advance(doc, base)

	first := doc.Clone()
	first.Left.LastUsedAt = base.UnixMilli()
	first.Left.LastUsedName = "Nest Ball"
	first.Left.LastUsedType = "item"
	f := c.Advance(first, base)
	require.True(t, f.Left.RevealVisible)

	second := first.Clone()
	second.Left.LastUsedAt = base.Add(10 * time.Second).UnixMilli()
	f = c.Advance(second, base.Add(10*time.Second))
	assert.True(t, f.Left.RevealVisible)
}

func TestHPAnimationDirection(t *testing.T) {
	c := NewComputer()
	c.Advance(docWithActive(60), base)

	f := c.Advance(docWithActive(40), base.Add(time.Second))
	assert.Equal(t, HPDecrease, f.Left.ActiveHP)

	f = c.Advance(docWithActive(55), base.Add(2*time.Second))
	assert.Equal(t, HPIncrease, f.Left.ActiveHP)

	f = c.Advance(docWithActive(55), base.Add(3*time.Second))
	assert.Equal(t, HPNone, f.Left.ActiveHP)
}

func TestHPAnimationSuppressedAfterSwap(t *testing.T) {
	c := NewComputer()
	c.Advance(docWithActive(60), base)

	// The swap changes HP mechanically alongside swappedAt.
	swapped := docWithActive(200)
	swapped.Left.Active.Name = "Charizard ex"
	swapped.Left.Active.MaxHP = 330
	swapped.Left.SwappedAt = base.Add(100 * time.Millisecond).UnixMilli()
	f := c.Advance(swapped, base.Add(100*time.Millisecond))
	assert.Equal(t, HPNone, f.Left.ActiveHP)

	// Inside the suppression window a further delta still does not animate.
	hit := swapped.Clone()
	hit.Left.Active.HP = 170
	f = c.Advance(hit, base.Add(300*time.Millisecond))
	assert.Equal(t, HPNone, f.Left.ActiveHP)

	// After the window real damage animates again.
	hit2 := hit.Clone()
	hit2.Left.Active.HP = 140
	f = c.Advance(hit2, base.Add(time.Second))
	assert.Equal(t, HPDecrease, f.Left.ActiveHP)
}

func TestKOFlash(t *testing.T) {
	c := NewComputer()
	c.Advance(docWithActive(60), base)

	koed := docWithActive(60)
	koed.Left.Active = nil
	f := c.Advance(koed, base.Add(time.Second))
	assert.True(t, f.Left.KOFlash)

	// Still flashing inside the window.
	f = c.Advance(koed, base.Add(time.Second+500*time.Millisecond))
	assert.True(t, f.Left.KOFlash)

	// Over after it.
	f = c.Advance(koed, base.Add(2*time.Second))
	assert.False(t, f.Left.KOFlash)

	// No flash when a creature appears again.
	f = c.Advance(docWithActive(60), base.Add(3*time.Second))
	assert.False(t, f.Left.KOFlash)
}

func TestNoKOFlashOnFirstObservation(t *testing.T) {
	c := NewComputer()
	doc := docWithActive(60)
	doc.Left.Active = nil
	f := c.Advance(doc, base)
	assert.False(t, f.Left.KOFlash)
}

func TestStadiumFlash(t *testing.T) {
	c := NewComputer()
	doc := docWithActive(60)
	doc.Stadium = "Artazon"
	f := c.Advance(doc, base)
	// Baseline observation flashes nothing.
	assert.False(t, f.StadiumFlash)

	changed := doc.Clone()
	changed.Stadium = "Temple of Sinnoh"
	f = c.Advance(changed, base.Add(time.Second))
	assert.True(t, f.StadiumFlash)

	f = c.Advance(changed, base.Add(time.Second+StadiumFlashDuration+time.Millisecond))
	assert.False(t, f.StadiumFlash)

	// Removal does not flash.
	removed := changed.Clone()
	removed.Stadium = ""
	f = c.Advance(removed, base.Add(5*time.Second))
	assert.False(t, f.StadiumFlash)
}
