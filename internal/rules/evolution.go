package rules

import (
	"strings"

	"github.com/tcgoverlay/overlay-server-go/internal/catalog"
	"github.com/tcgoverlay/overlay-server-go/internal/match"
)

const maxChainDepth = 10

// RareCandyLabel is the fixed name stamped as the consumed item when a
// skip-stage evolution is applied without an explicit card name.
const RareCandyLabel = "Rare Candy"

// ApplyEvolution evolves the creature at the target slot in place. The
// damage already taken carries over absolutely: new HP is the new maximum
// minus (old maximum - old HP), floored at zero. The new maximum comes
// from the evolution card, falling back to the prior maximum when the card
// provides none. A target with no creature present is a no-op.
func ApplyEvolution(side match.Side, slot SlotRef, card *catalog.Card) Transform {
	return func(doc *match.Document) error {
		p, err := playerFor(doc, side)
		if err != nil {
			return err
		}
		if slot.Bench {
			return evolveBench(p, slot.Index, card)
		}
		return evolveActive(p, card)
	}
}

func carryDamage(oldHP, oldMax, newMax int) int {
	damage := oldMax - oldHP
	if damage < 0 {
		damage = 0
	}
	hp := newMax - damage
	if hp < 0 {
		hp = 0
	}
	return hp
}

func evolveActive(p *match.PlayerState, card *catalog.Card) error {
	cur := p.Active
	if cur == nil {
		return nil // nothing to evolve
	}
	oldMax := cur.MaxHP
	if oldMax <= 0 {
		oldMax = cur.HP
	}
	if oldMax <= 0 {
		oldMax = match.DefaultMaxHP
	}
	newMax := match.ParseHP(card.HP)
	if newMax <= 0 {
		newMax = oldMax
	}
	scale, pos := ActiveTransform(card.Subtypes)
	p.Active = &match.CreatureSlot{
		Name:       card.Name,
		HP:         carryDamage(cur.HP, oldMax, newMax),
		MaxHP:      newMax,
		Image:      card.BestImage(),
		Tool:       cur.Tool,
		Subtypes:   append([]string(nil), card.Subtypes...),
		ImageScale: scale,
		ImagePos:   pos,
	}
	p.Ability, p.Attack, p.Attack2 = battleData(card)
	return nil
}

func evolveBench(p *match.PlayerState, idx int, card *catalog.Card) error {
	cur := p.BenchSlot(idx)
	if cur == nil {
		return nil // nothing to evolve
	}
	oldMax := cur.MaxHP
	if oldMax <= 0 {
		oldMax = cur.HP
	}
	newMax := match.ParseHP(card.HP)
	if newMax <= 0 {
		newMax = oldMax
	}
	ability, a1, a2 := battleData(card)
	scale, pos := ThumbTransform(card.Subtypes)
	p.Bench[idx] = &match.CreatureSlot{
		Name:       card.Name,
		HP:         carryDamage(cur.HP, oldMax, newMax),
		MaxHP:      newMax,
		Image:      card.BestImage(),
		Tool:       cur.Tool,
		Subtypes:   append([]string(nil), card.Subtypes...),
		Ability:    ability,
		Attack:     a1,
		Attack2:    a2,
		ThumbScale: scale,
		ThumbPos:   pos,
	}
	return nil
}

// EvolutionDistance computes the number of evolution steps separating a
// candidate card from a base creature name. It first walks the candidate's
// evolves-from chain upward; if the base is not reached it walks forward
// from the base through evolves-to links breadth-first. The catalog is not
// guaranteed to encode both directions consistently, so both are tried.
// Returns -1 when the cards are unrelated.
func EvolutionDistance(lookup catalog.Lookup, candidate *catalog.Card, baseName string) int {
	if candidate == nil || baseName == "" {
		return -1
	}
	baseNorm := catalog.NormalizeName(baseName)
	if baseNorm == "" {
		return -1
	}

	// Upward walk: candidate -> parent -> ... -> base.
	cur := candidate
	steps := 0
	for depth := 0; depth < maxChainDepth && cur != nil; depth++ {
		parent := strings.TrimSpace(cur.EvolvesFrom)
		if parent == "" {
			break
		}
		steps++
		if catalog.NormalizeName(parent) == baseNorm {
			return steps
		}
		cur = lookup.FindByFuzzyName(parent)
	}

	// Forward search: base -> children -> ... -> candidate.
	start := lookup.FindByFuzzyName(baseName)
	if start == nil {
		return -1
	}
	targetNorm := catalog.NormalizeName(candidate.Name)
	type node struct {
		card  *catalog.Card
		depth int
	}
	visited := map[string]bool{}
	queue := []node{{start, 0}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		norm := catalog.NormalizeName(n.card.Name)
		if visited[norm] {
			continue
		}
		visited[norm] = true
		for _, childName := range n.card.EvolvesTo {
			child := lookup.FindByFuzzyName(childName)
			if child == nil {
				continue
			}
			childNorm := catalog.NormalizeName(child.Name)
			if childNorm == targetNorm {
				return n.depth + 1
			}
			if !visited[childNorm] {
				queue = append(queue, node{child, n.depth + 1})
			}
		}
	}
	return -1
}

// RareCandyCandidates lists catalog cards exactly two evolution steps above
// the base creature, i.e. the final forms a skip-stage item can jump to.
// Results are deduplicated by normalized name.
func RareCandyCandidates(lookup catalog.Lookup, baseName string) []*catalog.Card {
	if baseName == "" {
		return nil
	}
	seen := map[string]bool{}
	var out []*catalog.Card
	for _, c := range lookup.HigherEvolutions(baseName) {
		if EvolutionDistance(lookup, c, baseName) != 2 {
			continue
		}
		norm := catalog.NormalizeName(c.Name)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, c)
	}
	return out
}

// EligibleSlot names a board position holding a creature with at least one
// skip-stage evolution available.
type EligibleSlot struct {
	Slot SlotRef
	Name string
}

// EligibleRareCandySlots lists the player's positions a skip-stage item
// could target. Choosing among several is the operator's job; the core
// only enumerates.
func EligibleRareCandySlots(lookup catalog.Lookup, p *match.PlayerState) []EligibleSlot {
	var out []EligibleSlot
	if p == nil {
		return out
	}
	if p.Active != nil && p.Active.Name != "" && len(RareCandyCandidates(lookup, p.Active.Name)) > 0 {
		out = append(out, EligibleSlot{Slot: ActiveSlot(), Name: p.Active.Name})
	}
	for i, b := range p.Bench {
		if b != nil && b.Name != "" && len(RareCandyCandidates(lookup, b.Name)) > 0 {
			out = append(out, EligibleSlot{Slot: BenchSlotRef(i), Name: b.Name})
		}
	}
	return out
}

// ApplyRareCandy confirms a skip-stage evolution choice: the chosen card
// must be a valid distance-2 candidate for the creature at the target
// slot, otherwise the action aborts with no state change. On success the
// evolution transform runs and the consumed item is stamped as the
// player's last used card.
func ApplyRareCandy(lookup catalog.Lookup, side match.Side, slot SlotRef, chosen *catalog.Card, itemName string, nowMillis int64) Transform {
	return func(doc *match.Document) error {
		p, err := playerFor(doc, side)
		if err != nil {
			return err
		}
		baseName := ""
		if slot.Bench {
			if b := p.BenchSlot(slot.Index); b != nil {
				baseName = b.Name
			}
		} else if p.Active != nil {
			baseName = p.Active.Name
		}
		if baseName == "" || chosen == nil {
			return ErrInvalidChoice
		}
		if EvolutionDistance(lookup, chosen, baseName) != 2 {
			return ErrInvalidChoice
		}
		if err := ApplyEvolution(side, slot, chosen)(doc); err != nil {
			return err
		}
		if itemName == "" {
			itemName = RareCandyLabel
		}
		stampUse(p, itemName, "item", nowMillis)
		return nil
	}
}
