package rules

import (
	"strings"

	"github.com/tcgoverlay/overlay-server-go/internal/catalog"
	"github.com/tcgoverlay/overlay-server-go/internal/match"
)

// battleData extracts the denormalized battle lines from a catalog card:
// the first ability and the first two attacks. Damage values are parsed by
// stripping non-numeric characters; absent or non-numeric damage is
// omitted rather than zeroed.
func battleData(card *catalog.Card) (string, *match.Attack, *match.Attack) {
	ability := card.FirstAbility()
	var a1, a2 *match.Attack
	if len(card.Attacks) > 0 {
		a1 = toAttack(card.Attacks[0])
	}
	if len(card.Attacks) > 1 {
		a2 = toAttack(card.Attacks[1])
	}
	return ability, a1, a2
}

func toAttack(a catalog.CardAttack) *match.Attack {
	out := &match.Attack{Name: a.Name}
	if strings.ContainsAny(a.Damage, "0123456789") {
		dmg := match.ParseHP(a.Damage)
		out.Damage = &dmg
	}
	if len(a.Cost) > 0 {
		out.Cost = append([]string(nil), a.Cost...)
	}
	return out
}

// ThumbTransform derives the bench thumbnail scale and position from a
// card's subtype tags. The fixed table keeps visuals stable when a card
// moves between the search panel, the bench and the active slot.
func ThumbTransform(subtypes []string) (float64, string) {
	tags := make(map[string]bool, len(subtypes))
	for _, s := range subtypes {
		tags[strings.ToLower(s)] = true
	}
	scale, pos := 1.1, "0px -20px"
	if tags["stage 2"] || tags["stage2"] {
		scale, pos = 1.2, "0px -10px"
	}
	switch {
	case tags["tera"]:
		scale, pos = 1.2, "0px -18px"
	case tags["stage 1"] || tags["stage1"]:
		scale, pos = 1.25, "0px -10px"
	case tags["basic"]:
		scale, pos = 1.2, "0px -10px"
	}
	return scale, pos
}

// ActiveTransform derives the active-portrait scale and position from a
// card's subtype tags. Actives render larger than bench thumbnails, so the
// two tables differ.
func ActiveTransform(subtypes []string) (float64, string) {
	tags := make(map[string]bool, len(subtypes))
	for _, s := range subtypes {
		tags[strings.ToLower(s)] = true
	}
	switch {
	case tags["tera"]:
		return 1.2, "0px -58px"
	case tags["stage 2"] || tags["stage2"]:
		return 1.3, "0px -40px"
	case tags["ancient"]:
		return 1.3, "0px -50px"
	case tags["stage 1"] || tags["stage1"]:
		return 1.3, "0px -40px"
	case tags["basic"]:
		return 1.3, "0px -40px"
	}
	return 1.3, "0px -55px"
}

// subtypesFor returns the card's own tags, falling back to a catalog lookup
// by name when the card object carries none.
func subtypesFor(lookup catalog.Lookup, name string, subtypes []string) []string {
	if len(subtypes) > 0 {
		return subtypes
	}
	if lookup != nil && name != "" {
		return lookup.SubtypesOf(name)
	}
	return nil
}

// SetActiveFromCard populates the active slot and the player's denormalized
// battle data from a catalog card. This is the single normalization path
// for active writes: readers never observe the creature name without its
// coupled battle data.
func SetActiveFromCard(side match.Side, card *catalog.Card) Transform {
	return func(doc *match.Document) error {
		p, err := playerFor(doc, side)
		if err != nil {
			return err
		}
		hp := match.ParseHP(card.HP)
		maxHP := hp
		if maxHP <= 0 {
			maxHP = match.DefaultMaxHP
		}
		scale, pos := ActiveTransform(card.Subtypes)
		p.Active = &match.CreatureSlot{
			Name:       card.Name,
			HP:         hp,
			MaxHP:      maxHP,
			Image:      card.BestImage(),
			Subtypes:   append([]string(nil), card.Subtypes...),
			ImageScale: scale,
			ImagePos:   pos,
		}
		p.Ability, p.Attack, p.Attack2 = battleData(card)
		return nil
	}
}

// SetBenchFromCard populates bench position idx from a catalog card. The
// battle data stays embedded in the slot rather than being denormalized to
// the player, and the thumbnail transform is derived from the subtype tags.
func SetBenchFromCard(side match.Side, idx int, card *catalog.Card, lookup catalog.Lookup) Transform {
	return func(doc *match.Document) error {
		p, err := playerFor(doc, side)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= match.DesiredBenchLength(p, doc.Stadium, lookupFunc(lookup)) {
			return ErrBenchIndex
		}
		hp := match.ParseHP(card.HP)
		ability, a1, a2 := battleData(card)
		scale, pos := ThumbTransform(subtypesFor(lookup, card.Name, card.Subtypes))
		p.EnsureBench(idx)
		p.Bench[idx] = &match.CreatureSlot{
			Name:       card.Name,
			HP:         hp,
			MaxHP:      hp,
			Image:      card.BestImage(),
			Subtypes:   append([]string(nil), card.Subtypes...),
			Ability:    ability,
			Attack:     a1,
			Attack2:    a2,
			ThumbScale: scale,
			ThumbPos:   pos,
		}
		return nil
	}
}

func lookupFunc(lookup catalog.Lookup) match.SubtypeLookup {
	if lookup == nil {
		return nil
	}
	return lookup.SubtypesOf
}

// SwapActiveWithBench exchanges the active creature and bench position idx
// in full. The creature leaving the active slot takes its denormalized
// battle data with it as embedded slot fields and gets a fresh thumbnail
// transform; the creature entering the active slot carries its rendering
// hints over so the visual scale and position survive the swap. Swapping
// against an empty bench slot knocks the active out instead of swapping in
// an empty object. Other bench slots and the player's use history are left
// untouched; swappedAt is stamped so readers can suppress the resulting
// mechanical HP flicker.
func SwapActiveWithBench(side match.Side, idx int, nowMillis int64) Transform {
	return func(doc *match.Document) error {
		p, err := playerFor(doc, side)
		if err != nil {
			return err
		}
		if idx < 0 {
			return ErrBenchIndex
		}
		p.EnsureBench(idx)

		outgoing := p.Active
		incoming := p.Bench[idx]

		if outgoing.Empty() {
			p.Bench[idx] = nil
		} else {
			slot := outgoing.Clone()
			slot.Ability = p.Ability
			slot.Attack = p.Attack.Clone()
			slot.Attack2 = p.Attack2.Clone()
			if slot.MaxHP <= 0 {
				slot.MaxHP = match.DefaultMaxHP
			}
			slot.ThumbScale, slot.ThumbPos = ThumbTransform(slot.Subtypes)
			slot.ImageScale, slot.ImagePos = 0, ""
			p.Bench[idx] = slot
		}

		if incoming.Empty() {
			p.Active = nil
			p.ClearActiveBattleData()
		} else {
			active := incoming.Clone()
			if active.MaxHP <= 0 {
				active.MaxHP = match.DefaultMaxHP
			}
			if active.ImageScale == 0 && incoming.ThumbScale != 0 {
				active.ImageScale = incoming.ThumbScale
			}
			if active.ImagePos == "" && incoming.ThumbPos != "" {
				active.ImagePos = incoming.ThumbPos
			}
			p.Ability = incoming.Ability
			p.Attack = incoming.Attack.Clone()
			p.Attack2 = incoming.Attack2.Clone()
			active.Ability, active.Attack, active.Attack2 = "", nil, nil
			active.ThumbScale, active.ThumbPos = 0, ""
			p.Active = active
		}

		if nowMillis > p.SwappedAt {
			p.SwappedAt = nowMillis
		} else {
			p.SwappedAt++
		}
		return nil
	}
}

// SetActiveHP sets the active creature's current HP. Dropping to zero or
// below knocks the creature out through normalization.
func SetActiveHP(side match.Side, hp int) Transform {
	return func(doc *match.Document) error {
		p, err := playerFor(doc, side)
		if err != nil {
			return err
		}
		if p.Active == nil {
			return nil
		}
		if hp < 0 {
			hp = 0
		}
		p.Active.HP = hp
		return nil
	}
}

// AdjustActiveHP applies a signed HP delta to the active creature.
func AdjustActiveHP(side match.Side, delta int) Transform {
	return func(doc *match.Document) error {
		p, err := playerFor(doc, side)
		if err != nil {
			return err
		}
		if p.Active == nil || delta == 0 {
			return nil
		}
		hp := p.Active.HP + delta
		if hp < 0 {
			hp = 0
		}
		p.Active.HP = hp
		return nil
	}
}

// AdjustBenchHP applies a signed HP delta to bench position idx.
func AdjustBenchHP(side match.Side, idx, delta int) Transform {
	return func(doc *match.Document) error {
		p, err := playerFor(doc, side)
		if err != nil {
			return err
		}
		slot := p.BenchSlot(idx)
		if slot == nil || delta == 0 {
			return nil
		}
		hp := slot.HP + delta
		if hp < 0 {
			hp = 0
		}
		slot.HP = hp
		return nil
	}
}

// KnockOutActive removes the active creature and its battle data.
func KnockOutActive(side match.Side) Transform {
	return func(doc *match.Document) error {
		p, err := playerFor(doc, side)
		if err != nil {
			return err
		}
		p.Active = nil
		p.ClearActiveBattleData()
		return nil
	}
}

// KnockOutBench clears bench position idx, keeping the position itself so
// indices stay stable.
func KnockOutBench(side match.Side, idx int) Transform {
	return func(doc *match.Document) error {
		p, err := playerFor(doc, side)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(p.Bench) {
			return nil
		}
		p.Bench[idx] = nil
		return nil
	}
}

// CanPlaceOnBench reports whether a card may be placed directly on the
// bench: basics may, evolved stages may not, and the call denies by
// default when the card's stage cannot be determined.
func CanPlaceOnBench(lookup catalog.Lookup, card *catalog.Card) bool {
	if card == nil {
		return false
	}
	if verdict, ok := benchVerdict(card.Subtypes); ok {
		return verdict
	}
	if card.EvolvesFrom != "" {
		return false
	}
	if lookup != nil && card.Name != "" {
		if found := lookup.FindByFuzzyName(card.Name); found != nil {
			if verdict, ok := benchVerdict(found.Subtypes); ok {
				return verdict
			}
		}
	}
	return false
}

func benchVerdict(subtypes []string) (bool, bool) {
	for _, s := range subtypes {
		switch strings.ToLower(s) {
		case "basic":
			return true, true
		case "stage 1", "stage1", "stage 2", "stage2":
			return false, true
		}
	}
	return false, false
}
