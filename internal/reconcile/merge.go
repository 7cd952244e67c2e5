// Package reconcile applies incoming full-state and patch messages onto a
// local document copy. The merge rules here are the single implementation
// used by every transport path; no path gets a simplified variant. The
// rules are idempotent and tolerate duplicate or out-of-order delivery.
package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tcgoverlay/overlay-server-go/internal/match"
	"github.com/tcgoverlay/overlay-server-go/internal/transport"
)

var jsonNull = []byte("null")

// Apply merges an incoming message into local and returns the resulting
// document. local is never mutated; on any parse failure the original
// pointer is returned unchanged alongside the error, so a malformed
// message is discarded rather than partially applied.
func Apply(local *match.Document, env transport.Envelope) (*match.Document, error) {
	switch env.Type {
	case transport.MessageFullState:
		return applyFull(local, env.Payload)
	case transport.MessagePatch:
		return applyPatch(local, env.Payload)
	default:
		return local, fmt.Errorf("unknown message type %q", env.Type)
	}
}

// applyFull replaces the whole document. This is the terminal case and is
// always safe regardless of ordering.
func applyFull(local *match.Document, payload json.RawMessage) (*match.Document, error) {
	var doc match.Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return local, fmt.Errorf("decode full state: %w", err)
	}
	if doc.Left == nil {
		doc.Left = match.EmptyPlayer()
	}
	if doc.Right == nil {
		doc.Right = match.EmptyPlayer()
	}
	return &doc, nil
}

func applyPatch(local *match.Document, payload json.RawMessage) (*match.Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return local, fmt.Errorf("decode patch: %w", err)
	}

	next := local.Clone()
	if next == nil {
		next = match.Default()
	}
	for key, raw := range fields {
		var err error
		switch key {
		case "left":
			if next.Left == nil {
				next.Left = match.EmptyPlayer()
			}
			err = mergePlayer(next.Left, raw)
		case "right":
			if next.Right == nil {
				next.Right = match.EmptyPlayer()
			}
			err = mergePlayer(next.Right, raw)
		case "canvas":
			err = json.Unmarshal(raw, &next.Canvas)
		case "stadium":
			err = json.Unmarshal(raw, &next.Stadium)
		case "showHp":
			err = json.Unmarshal(raw, &next.ShowHP)
		case "countdown":
			err = json.Unmarshal(raw, &next.Countdown)
		case "countdownRunning":
			err = json.Unmarshal(raw, &next.CountdownRunning)
		case "turn":
			err = json.Unmarshal(raw, &next.Turn)
		case "roundLabel":
			err = json.Unmarshal(raw, &next.RoundLabel)
		case "timer":
			err = json.Unmarshal(raw, &next.Timer)
		default:
			// Unknown top-level fields are ignored rather than failing
			// the whole patch.
		}
		if err != nil {
			return local, fmt.Errorf("patch field %q: %w", key, err)
		}
	}
	return next, nil
}

// mergePlayer applies a player-shaped patch with structured merge
// semantics: a wholesale overwrite here would wipe sibling fields the
// patch did not mention.
func mergePlayer(p *match.PlayerState, raw json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("decode player patch: %w", err)
	}

	if activeRaw, ok := fields["active"]; ok {
		p.Active = nil
		if err := json.Unmarshal(activeRaw, &p.Active); err != nil {
			return fmt.Errorf("decode active: %w", err)
		}
		// Replacing the active wholesale invalidates the denormalized
		// battle data unless the patch restates it.
		if _, ok := fields["ability"]; !ok {
			p.Ability = ""
		}
		if _, ok := fields["attack"]; !ok {
			p.Attack = nil
		}
		if _, ok := fields["attack2"]; !ok {
			p.Attack2 = nil
		}
	}

	if benchRaw, ok := fields["bench"]; ok {
		if err := mergeBench(p, benchRaw); err != nil {
			return err
		}
	}

	for key, fieldRaw := range fields {
		var err error
		switch key {
		case "active", "bench":
			// handled above
		case "name":
			err = json.Unmarshal(fieldRaw, &p.Name)
		case "record":
			err = json.Unmarshal(fieldRaw, &p.Record)
		case "deck":
			err = json.Unmarshal(fieldRaw, &p.Deck)
		case "ability":
			err = json.Unmarshal(fieldRaw, &p.Ability)
		case "attack":
			p.Attack = nil
			err = json.Unmarshal(fieldRaw, &p.Attack)
		case "attack2":
			p.Attack2 = nil
			err = json.Unmarshal(fieldRaw, &p.Attack2)
		case "tool":
			err = json.Unmarshal(fieldRaw, &p.Tool)
		case "supporterUsed":
			err = json.Unmarshal(fieldRaw, &p.SupporterUsed)
		case "energy":
			err = json.Unmarshal(fieldRaw, &p.Energy)
		case "retreatUsed":
			err = json.Unmarshal(fieldRaw, &p.RetreatUsed)
		case "lastUsedAt":
			err = json.Unmarshal(fieldRaw, &p.LastUsedAt)
		case "lastUsedName":
			err = json.Unmarshal(fieldRaw, &p.LastUsedName)
		case "lastUsedType":
			err = json.Unmarshal(fieldRaw, &p.LastUsedType)
		case "swappedAt":
			err = json.Unmarshal(fieldRaw, &p.SwappedAt)
		case "prizes":
			err = json.Unmarshal(fieldRaw, &p.Prizes)
		case "zones":
			err = json.Unmarshal(fieldRaw, &p.Zones)
		}
		if err != nil {
			return fmt.Errorf("player field %q: %w", key, err)
		}
	}
	return nil
}

// mergeBench merges bench entries by index. Indices absent from the patch
// are untouched; a JSON null at an index clears that slot; an object at an
// index merges field-by-field into the existing slot. Both the array shape
// and the index-keyed object shape are accepted.
func mergeBench(p *match.PlayerState, raw json.RawMessage) error {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err == nil {
		for idx, entry := range entries {
			if err := mergeBenchEntry(p, idx, entry); err != nil {
				return err
			}
		}
		return nil
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return fmt.Errorf("decode bench patch: %w", err)
	}
	for key, entry := range keyed {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			continue
		}
		if err := mergeBenchEntry(p, idx, entry); err != nil {
			return err
		}
	}
	return nil
}

func mergeBenchEntry(p *match.PlayerState, idx int, entry json.RawMessage) error {
	p.EnsureBench(idx)
	if entry == nil || bytes.Equal(bytes.TrimSpace(entry), jsonNull) {
		p.Bench[idx] = nil
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		return fmt.Errorf("decode bench[%d]: %w", idx, err)
	}
	slot := p.Bench[idx]
	if slot == nil {
		slot = &match.CreatureSlot{}
		p.Bench[idx] = slot
	}
	for key, fieldRaw := range fields {
		var err error
		switch key {
		case "name":
			err = json.Unmarshal(fieldRaw, &slot.Name)
		case "hp":
			err = json.Unmarshal(fieldRaw, &slot.HP)
		case "maxHp":
			err = json.Unmarshal(fieldRaw, &slot.MaxHP)
		case "image":
			err = json.Unmarshal(fieldRaw, &slot.Image)
		case "tool":
			err = json.Unmarshal(fieldRaw, &slot.Tool)
		case "abilityUsed":
			err = json.Unmarshal(fieldRaw, &slot.AbilityUsed)
		case "subtypes":
			err = json.Unmarshal(fieldRaw, &slot.Subtypes)
		case "ability":
			err = json.Unmarshal(fieldRaw, &slot.Ability)
		case "attack":
			slot.Attack = nil
			err = json.Unmarshal(fieldRaw, &slot.Attack)
		case "attack2":
			slot.Attack2 = nil
			err = json.Unmarshal(fieldRaw, &slot.Attack2)
		case "thumbScale":
			err = json.Unmarshal(fieldRaw, &slot.ThumbScale)
		case "thumbPos":
			err = json.Unmarshal(fieldRaw, &slot.ThumbPos)
		case "imageScale":
			err = json.Unmarshal(fieldRaw, &slot.ImageScale)
		case "imagePos":
			err = json.Unmarshal(fieldRaw, &slot.ImagePos)
		}
		if err != nil {
			return fmt.Errorf("bench[%d] field %q: %w", idx, key, err)
		}
	}
	return nil
}
