package match

import "strings"

const (
	// BaseBenchLength is the number of bench positions without modifiers.
	BaseBenchLength = 5
	// PrizeCount is the fixed number of prize markers per player.
	PrizeCount = 6
	// ZoneCount is the fixed number of free-text zone labels per player.
	ZoneCount = 4
	// DefaultMaxHP is the ceiling assumed when a card provides no HP.
	DefaultMaxHP = 300
	// DefaultCountdownSeconds is the initial match countdown (30:00).
	DefaultCountdownSeconds = 1800
)

// stadiumBenchGrants maps lowercase stadium name fragments to the bench
// capacity they grant when the player controls a tera-tagged creature.
var stadiumBenchGrants = map[string]int{
	"area zero underdepths": 8,
}

// SubtypeLookup resolves a creature name to its catalog subtypes. Used as a
// fallback when an in-play slot carries no subtype tags of its own. May be
// nil, in which case only the slot's own tags are consulted.
type SubtypeLookup func(name string) []string

func slotHasTag(slot *CreatureSlot, tag string, lookup SubtypeLookup) bool {
	if slot == nil {
		return false
	}
	for _, s := range slot.Subtypes {
		if strings.EqualFold(s, tag) {
			return true
		}
	}
	if len(slot.Subtypes) == 0 && slot.Name != "" && lookup != nil {
		for _, s := range lookup(slot.Name) {
			if strings.EqualFold(s, tag) {
				return true
			}
		}
	}
	return false
}

// HasTera reports whether the player controls at least one creature tagged
// "tera", in the active slot or on the bench.
func HasTera(p *PlayerState, lookup SubtypeLookup) bool {
	if p == nil {
		return false
	}
	if slotHasTag(p.Active, "tera", lookup) {
		return true
	}
	for _, b := range p.Bench {
		if slotHasTag(b, "tera", lookup) {
			return true
		}
	}
	return false
}

// StadiumBenchGrant returns the bench capacity granted by the named
// stadium, or 0 when the stadium grants none. Matching is by lowercase
// substring so set-qualified names still hit the table.
func StadiumBenchGrant(stadium string) int {
	key := strings.ToLower(strings.TrimSpace(stadium))
	if key == "" {
		return 0
	}
	for frag, n := range stadiumBenchGrants {
		if strings.Contains(key, frag) {
			return n
		}
	}
	return 0
}

// DesiredBenchLength computes the number of addressable bench positions for
// the player under the given stadium. The base is five; a stadium grant
// applies only while the player controls a tera-tagged creature; the result
// never shrinks below the currently occupied bench length. Recomputed on
// every use, never cached, since both inputs change mid-match.
func DesiredBenchLength(p *PlayerState, stadium string, lookup SubtypeLookup) int {
	desired := BaseBenchLength
	if p == nil {
		return desired
	}
	if occ := occupiedBenchSpan(p); occ > desired {
		desired = occ
	}
	if grant := StadiumBenchGrant(stadium); grant > desired && HasTera(p, lookup) {
		desired = grant
	}
	return desired
}

// occupiedBenchSpan is the highest occupied index plus one, so trailing
// empty positions do not inflate the bench.
func occupiedBenchSpan(p *PlayerState) int {
	span := 0
	for i, b := range p.Bench {
		if !b.Empty() {
			span = i + 1
		}
	}
	return span
}
