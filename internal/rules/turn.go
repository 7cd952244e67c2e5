package rules

import "github.com/tcgoverlay/overlay-server-go/internal/match"

// SetTurn hands the turn to a side. The player whose turn begins gets
// their once-per-turn supporter flag back at exactly this instant; setting
// SideNone clears the turn and resets both flags.
func SetTurn(side match.Side) Transform {
	return func(doc *match.Document) error {
		doc.Turn = side
		switch side {
		case match.SideLeft:
			doc.Left.SupporterUsed = false
		case match.SideRight:
			doc.Right.SupporterUsed = false
		default:
			doc.Turn = match.SideNone
			doc.Left.SupporterUsed = false
			doc.Right.SupporterUsed = false
		}
		return nil
	}
}

// ResetSupporters clears both once-per-turn supporter flags without
// touching the turn.
func ResetSupporters() Transform {
	return func(doc *match.Document) error {
		doc.Left.SupporterUsed = false
		doc.Right.SupporterUsed = false
		return nil
	}
}

// SwapSides exchanges the two whole player states. This is the only
// operation that moves data between the sides.
func SwapSides() Transform {
	return func(doc *match.Document) error {
		doc.Left, doc.Right = doc.Right, doc.Left
		return nil
	}
}

// ClearZones blanks both players' zone labels.
func ClearZones() Transform {
	return func(doc *match.Document) error {
		doc.Left.Zones = make([]string, match.ZoneCount)
		doc.Right.Zones = make([]string, match.ZoneCount)
		return nil
	}
}

// ClearBoard replaces both players with empty defaults and clears the
// stadium and all timers, preserving only the canvas dimensions. The
// destructive confirmation belongs to the operator surface, not here.
func ClearBoard() Transform {
	return func(doc *match.Document) error {
		canvas := doc.Canvas
		fresh := match.Default()
		*doc = *fresh
		doc.Canvas = canvas
		doc.Stadium = ""
		doc.Timer = ""
		doc.Countdown = 0
		doc.CountdownRunning = false
		doc.Left = match.EmptyPlayer()
		doc.Right = match.EmptyPlayer()
		return nil
	}
}
