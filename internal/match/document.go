package match

// Side identifies one of the two player positions on the overlay.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
	SideNone  Side = ""
)

// Valid reports whether s addresses an actual player.
func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

// Other returns the opposing side, or SideNone for SideNone.
func (s Side) Other() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	default:
		return SideNone
	}
}

// Canvas holds the render target dimensions, static per session.
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Attack is a single attack line shown for a creature.
type Attack struct {
	Name   string   `json:"name"`
	Damage *int     `json:"dmg,omitempty"`
	Cost   []string `json:"cost,omitempty"`
}

// Clone returns a deep copy of the attack.
func (a *Attack) Clone() *Attack {
	if a == nil {
		return nil
	}
	cp := *a
	if a.Damage != nil {
		d := *a.Damage
		cp.Damage = &d
	}
	if a.Cost != nil {
		cp.Cost = append([]string(nil), a.Cost...)
	}
	return &cp
}

// CreatureSlot is one in-play creature, either the active slot or a bench
// entry. It is a value type with no identity beyond its position. Bench
// entries embed their own ability/attack lines; for the active slot those
// are denormalized onto the owning PlayerState instead.
type CreatureSlot struct {
	Name        string   `json:"name"`
	HP          int      `json:"hp"`
	MaxHP       int      `json:"maxHp,omitempty"`
	Image       string   `json:"image,omitempty"`
	Tool        string   `json:"tool,omitempty"`
	AbilityUsed bool     `json:"abilityUsed,omitempty"`
	Subtypes    []string `json:"subtypes,omitempty"`

	Ability string  `json:"ability,omitempty"`
	Attack  *Attack `json:"attack,omitempty"`
	Attack2 *Attack `json:"attack2,omitempty"`

	// Presentation hints so visuals stay stable across a swap.
	ThumbScale float64 `json:"thumbScale,omitempty"`
	ThumbPos   string  `json:"thumbPos,omitempty"`
	ImageScale float64 `json:"imageScale,omitempty"`
	ImagePos   string  `json:"imagePos,omitempty"`
}

// Clone returns a deep copy of the slot.
func (c *CreatureSlot) Clone() *CreatureSlot {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Subtypes != nil {
		cp.Subtypes = append([]string(nil), c.Subtypes...)
	}
	cp.Attack = c.Attack.Clone()
	cp.Attack2 = c.Attack2.Clone()
	return &cp
}

// Empty reports whether the slot carries no creature worth keeping: no
// name, no image and no remaining HP.
func (c *CreatureSlot) Empty() bool {
	return c == nil || (c.Name == "" && c.Image == "" && c.HP <= 0)
}

// PlayerState is one player's half of the document. It has no lifecycle
// independent of its parent Document and is replaced by value.
type PlayerState struct {
	Name   string `json:"name"`
	Record string `json:"record"`
	Deck   string `json:"deck"`

	Active *CreatureSlot `json:"active"`

	// Denormalized battle data for the active creature. Cleared whenever
	// Active is nil.
	Ability string  `json:"ability,omitempty"`
	Attack  *Attack `json:"attack,omitempty"`
	Attack2 *Attack `json:"attack2,omitempty"`

	// Legacy attachment path, superseded by Active.Tool when present.
	Tool string `json:"tool,omitempty"`

	SupporterUsed bool `json:"supporterUsed"`
	Energy        bool `json:"energy,omitempty"`
	RetreatUsed   bool `json:"retreatUsed,omitempty"`

	// Most recent explicit "use" action, consumed by the derived view to
	// decide whether to show a transient reveal. LastUsedAt is unix millis
	// and monotonically non-decreasing.
	LastUsedAt   int64  `json:"lastUsedAt,omitempty"`
	LastUsedName string `json:"lastUsedName,omitempty"`
	LastUsedType string `json:"lastUsedType,omitempty"`

	// Unix millis of the most recent active/bench swap.
	SwappedAt int64 `json:"swappedAt,omitempty"`

	Bench  []*CreatureSlot `json:"bench"`
	Prizes []bool          `json:"prizes"`
	Zones  []string        `json:"zones"`
}

// Clone returns a deep copy of the player state.
func (p *PlayerState) Clone() *PlayerState {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Active = p.Active.Clone()
	cp.Attack = p.Attack.Clone()
	cp.Attack2 = p.Attack2.Clone()
	if p.Bench != nil {
		cp.Bench = make([]*CreatureSlot, len(p.Bench))
		for i, b := range p.Bench {
			cp.Bench[i] = b.Clone()
		}
	}
	if p.Prizes != nil {
		cp.Prizes = append([]bool(nil), p.Prizes...)
	}
	if p.Zones != nil {
		cp.Zones = append([]string(nil), p.Zones...)
	}
	return &cp
}

// BenchSlot returns the bench entry at idx, or nil when out of range.
func (p *PlayerState) BenchSlot(idx int) *CreatureSlot {
	if idx < 0 || idx >= len(p.Bench) {
		return nil
	}
	return p.Bench[idx]
}

// EnsureBench grows the bench with nil entries so idx is addressable.
func (p *PlayerState) EnsureBench(idx int) {
	for len(p.Bench) <= idx {
		p.Bench = append(p.Bench, nil)
	}
}

// OccupiedBench counts non-empty bench entries.
func (p *PlayerState) OccupiedBench() int {
	n := 0
	for _, b := range p.Bench {
		if !b.Empty() {
			n++
		}
	}
	return n
}

// ClearActiveBattleData removes the denormalized ability/attack lines.
// Required whenever Active becomes nil.
func (p *PlayerState) ClearActiveBattleData() {
	p.Ability = ""
	p.Attack = nil
	p.Attack2 = nil
}

// Document is the shared state document describing the whole match. It is
// the single unit of persistence and transport; readers never observe a
// partially written copy.
type Document struct {
	Canvas           Canvas   `json:"canvas"`
	Stadium          string   `json:"stadium"`
	ShowHP           bool     `json:"showHp"`
	Countdown        int      `json:"countdown"`
	CountdownRunning bool     `json:"countdownRunning"`
	Turn             Side     `json:"turn"`
	RoundLabel       string   `json:"roundLabel"`
	Timer            string   `json:"timer"`
	Left             *PlayerState `json:"left"`
	Right            *PlayerState `json:"right"`
}

// Player returns the player state for side, or nil when side is SideNone.
func (d *Document) Player(side Side) *PlayerState {
	switch side {
	case SideLeft:
		return d.Left
	case SideRight:
		return d.Right
	default:
		return nil
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Left = d.Left.Clone()
	cp.Right = d.Right.Clone()
	return &cp
}

func defaultPlayer() *PlayerState {
	return &PlayerState{
		Active: &CreatureSlot{Name: "", HP: 0, MaxHP: DefaultMaxHP},
		Bench:  make([]*CreatureSlot, BaseBenchLength),
		Prizes: make([]bool, PrizeCount),
		Zones:  make([]string, ZoneCount),
	}
}

// EmptyPlayer returns a fresh player with no creatures, a five-slot bench
// and cleared zones. Used by the full board reset.
func EmptyPlayer() *PlayerState {
	return &PlayerState{
		Active: nil,
		Bench:  make([]*CreatureSlot, BaseBenchLength),
		Prizes: make([]bool, PrizeCount),
		Zones:  make([]string, ZoneCount),
	}
}

// Default returns a new document with the session defaults: a 1920x1080
// canvas, the Artazon stadium, left to move and a 30:00 countdown.
func Default() *Document {
	return &Document{
		Canvas:           Canvas{Width: 1920, Height: 1080},
		Stadium:          "Artazon",
		ShowHP:           true,
		Countdown:        DefaultCountdownSeconds,
		CountdownRunning: false,
		Turn:             SideLeft,
		Left:             defaultPlayer(),
		Right:            defaultPlayer(),
	}
}

// Normalize enforces the document invariants in place:
//   - an active slot at 0 HP or below is knocked out (set to nil) and the
//     denormalized battle data is cleared alongside it;
//   - bench entries at 0 HP or below are cleared to nil, keeping their
//     position so indices stay stable;
//   - benches are padded to the base length and prizes/zones are clamped
//     to their fixed sizes.
func (d *Document) Normalize() {
	normalizePlayer(d.Left)
	normalizePlayer(d.Right)
}

func normalizePlayer(p *PlayerState) {
	if p == nil {
		return
	}
	if p.Active != nil && p.Active.HP <= 0 {
		p.Active = nil
	}
	if p.Active == nil {
		p.ClearActiveBattleData()
	}
	for i, b := range p.Bench {
		if b != nil && b.HP <= 0 {
			p.Bench[i] = nil
		}
	}
	p.EnsureBench(BaseBenchLength - 1)
	p.Prizes = clampBools(p.Prizes, PrizeCount)
	p.Zones = clampStrings(p.Zones, ZoneCount)
}

func clampBools(in []bool, n int) []bool {
	out := make([]bool, n)
	copy(out, in)
	return out
}

func clampStrings(in []string, n int) []string {
	out := make([]string, n)
	copy(out, in)
	return out
}
