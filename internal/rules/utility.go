package rules

import (
	"strings"

	"github.com/tcgoverlay/overlay-server-go/internal/catalog"
	"github.com/tcgoverlay/overlay-server-go/internal/match"
)

// UtilityKind classifies a non-creature card by its subtype tags, in the
// precedence order used for the use-event stamp.
func UtilityKind(card *catalog.Card) string {
	switch {
	case card.HasSubtype("supporter"):
		return "supporter"
	case card.HasSubtype("stadium"):
		return "stadium"
	case card.HasSubtype("item"):
		return "item"
	case card.HasSubtype("tool"):
		return "tool"
	default:
		return ""
	}
}

// ApplyUtility plays a non-creature card for the effective side: the
// current turn player when a turn is set, otherwise the given fallback
// side. Stadium cards set the document-level stadium; tool and item cards
// attach to the active creature (or the player's legacy tool field when no
// active is present); supporters are refused outright when one was already
// used this turn. Every successful application stamps the use-event
// fields; that stamp, not the attached data itself, is what marks an
// intentional action for the transient reveal.
func ApplyUtility(fallback match.Side, card *catalog.Card, nowMillis int64) Transform {
	return func(doc *match.Document) error {
		side := doc.Turn
		if !side.Valid() {
			side = fallback
		}
		p, err := playerFor(doc, side)
		if err != nil {
			return err
		}

		if card.HasSubtype("supporter") && p.SupporterUsed {
			return ErrSupporterUsed
		}

		if card.HasSubtype("stadium") {
			doc.Stadium = card.Name
		}
		if card.HasSubtype("item") || card.HasSubtype("tool") {
			if p.Active != nil {
				p.Active.Tool = card.Name
			} else {
				p.Tool = card.Name
			}
		}
		if card.HasSubtype("supporter") {
			p.SupporterUsed = true
		}

		stampUse(p, card.Name, UtilityKind(card), nowMillis)
		return nil
	}
}

// RemoveStadium clears the active stadium. Use events pointing at the
// removed stadium are cleared on both sides so the overlay does not keep
// revealing a card that is no longer in play.
func RemoveStadium() Transform {
	return func(doc *match.Document) error {
		removed := doc.Stadium
		doc.Stadium = ""
		if removed == "" {
			return nil
		}
		for _, p := range []*match.PlayerState{doc.Left, doc.Right} {
			if p != nil && strings.EqualFold(p.LastUsedName, removed) {
				p.LastUsedName = ""
				p.LastUsedType = ""
				p.LastUsedAt = 0
			}
		}
		return nil
	}
}
