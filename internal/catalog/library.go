package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Lookup is the name-resolution surface the rest of the system consumes.
type Lookup interface {
	// FindByExactName resolves a name case-insensitively, or returns nil.
	FindByExactName(name string) *Card
	// FindByFuzzyName falls back through normalized and substring matching.
	FindByFuzzyName(name string) *Card
	// Search returns typeahead matches for a partial query.
	Search(query string) []*Card
	// HigherEvolutions lists cards whose evolution chain contains baseName.
	HigherEvolutions(baseName string) []*Card
	// SubtypesOf resolves a name to its catalog subtype tags.
	SubtypesOf(name string) []string
}

// allowedRegulationMarks filters typeahead results to the current format.
var allowedRegulationMarks = map[string]bool{"G": true, "H": true, "I": true}

// preferredSets orders typeahead results by release recency.
var preferredSets = []string{"sv10", "sv4pt5", "sv4_5", "sv4", "sv3"}

// Library is the in-memory card catalog: a deduplicated static set of card
// records plus the indices needed for name and evolution resolution.
type Library struct {
	cards  []*Card
	byName map[string]*Card // lowercase exact name
	byNorm map[string]*Card // NormalizeName key
	// descendants maps a base creature's normalized name to every card
	// whose evolvesFrom chain passes through it.
	descendants map[string][]*Card

	logger *zap.Logger
}

// rawCard tolerates the alternate field spellings seen in card dumps. This
// is the only place shape guessing happens.
type rawCard struct {
	Card
	EvolveFrom string `json:"evolveFrom,omitempty"`
	AltTo      []string `json:"evolvesTo2,omitempty"`
}

func normalizeCard(r *rawCard) *Card {
	c := r.Card
	if c.EvolvesFrom == "" {
		c.EvolvesFrom = r.EvolveFrom
	}
	if len(c.EvolvesTo) == 0 {
		c.EvolvesTo = r.AltTo
	}
	c.Name = strings.TrimSpace(c.Name)
	return &c
}

// LoadFile reads a JSON array of card records from path and builds a
// deduplicated library.
func LoadFile(path string, logger *zap.Logger) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var raws []*rawCard
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	cards := make([]*Card, 0, len(raws))
	for _, r := range raws {
		if c := normalizeCard(r); c.Name != "" {
			cards = append(cards, c)
		}
	}
	return NewLibrary(cards, logger), nil
}

// NewLibrary builds a library from card records, deduplicating by name with
// a preference for non-promotional printings with art from the newest set.
func NewLibrary(cards []*Card, logger *zap.Logger) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}
	lib := &Library{
		byName:      make(map[string]*Card),
		byNorm:      make(map[string]*Card),
		descendants: make(map[string][]*Card),
		logger:      logger,
	}
	lib.cards = dedupeByName(cards)
	for _, c := range lib.cards {
		lib.byName[strings.ToLower(c.Name)] = c
		norm := NormalizeName(c.Name)
		if norm != "" {
			if _, ok := lib.byNorm[norm]; !ok {
				lib.byNorm[norm] = c
			}
		}
	}
	lib.buildDescendants()
	logger.Info("card catalog loaded",
		zap.Int("cards", len(lib.cards)),
		zap.Int("evolution_bases", len(lib.descendants)),
	)
	return lib
}

func dedupeByName(cards []*Card) []*Card {
	groups := make(map[string][]*Card)
	order := make([]string, 0, len(cards))
	for _, c := range cards {
		key := strings.ToLower(c.Name)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}
	out := make([]*Card, 0, len(order))
	for _, key := range order {
		out = append(out, pickPrinting(groups[key]))
	}
	return out
}

// pickPrinting selects the preferred printing among same-name cards:
// non-promo over promo, with art over without, newest set last.
func pickPrinting(group []*Card) *Card {
	candidates := group
	if nonPromo := filterCards(candidates, func(c *Card) bool { return !c.isPromoOrSpecial() }); len(nonPromo) > 0 {
		candidates = nonPromo
	}
	if withArt := filterCards(candidates, func(c *Card) bool { return c.BestImage() != "" }); len(withArt) > 0 {
		candidates = withArt
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if setOrdinal(c) > setOrdinal(best) {
			best = c
		}
	}
	return best
}

func filterCards(in []*Card, keep func(*Card) bool) []*Card {
	var out []*Card
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// buildDescendants walks each card's evolvesFrom chain upward, registering
// the card under every ancestor it reaches. Depth is bounded because dumps
// occasionally contain cyclic or self-referential chains.
func (l *Library) buildDescendants() {
	for _, card := range l.cards {
		cur := card
		for depth := 0; depth < maxChainDepth && cur != nil; depth++ {
			parent := strings.TrimSpace(cur.EvolvesFrom)
			if parent == "" {
				break
			}
			key := NormalizeName(parent)
			if key == "" {
				break
			}
			if !containsCard(l.descendants[key], card) {
				l.descendants[key] = append(l.descendants[key], card)
			}
			cur = l.byNorm[key]
		}
	}
}

const maxChainDepth = 10

func containsCard(cards []*Card, target *Card) bool {
	for _, c := range cards {
		if c == target {
			return true
		}
	}
	return false
}

// All returns the deduplicated card set in load order.
func (l *Library) All() []*Card {
	return l.cards
}

// FindByExactName implements Lookup.
func (l *Library) FindByExactName(name string) *Card {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return nil
	}
	return l.byName[target]
}

// FindByFuzzyName implements Lookup: exact match first, then normalized
// comparison, then a substring scan preferring non-promotional printings.
func (l *Library) FindByFuzzyName(name string) *Card {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return nil
	}
	if c := l.byName[target]; c != nil {
		return c
	}
	if c := l.byNorm[NormalizeName(target)]; c != nil {
		return c
	}
	var first *Card
	for _, c := range l.cards {
		if !strings.Contains(strings.ToLower(c.Name), target) {
			continue
		}
		if !c.isPromoOrSpecial() {
			return c
		}
		if first == nil {
			first = c
		}
	}
	return first
}

// ByNormalizedName resolves a name through NormalizeName only.
func (l *Library) ByNormalizedName(name string) *Card {
	return l.byNorm[NormalizeName(name)]
}

// HigherEvolutions implements Lookup.
func (l *Library) HigherEvolutions(baseName string) []*Card {
	return l.descendants[NormalizeName(baseName)]
}

// SubtypesOf implements Lookup.
func (l *Library) SubtypesOf(name string) []string {
	if c := l.FindByFuzzyName(name); c != nil {
		return c.Subtypes
	}
	return nil
}

var cardNumberDigits = regexp.MustCompile(`[^0-9]`)

// Search implements Lookup: substring matches restricted to the allowed
// regulation marks, ordered by preferred set then card number descending so
// the newest printings surface first in a typeahead.
func (l *Library) Search(query string) []*Card {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var matches []*Card
	for _, c := range l.cards {
		if !strings.Contains(strings.ToLower(c.Name), q) {
			continue
		}
		if !allowedRegulationMarks[strings.ToUpper(c.RegulationMark)] {
			continue
		}
		matches = append(matches, c)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		ap, bp := setPriority(a), setPriority(b)
		if ap != bp {
			return ap < bp
		}
		an, aok := cardNumber(a)
		bn, bok := cardNumber(b)
		if aok && bok && an != bn {
			return an > bn
		}
		return a.ID > b.ID
	})
	return matches
}

func setPriority(c *Card) int {
	code := strings.ToLower(c.Set.ID)
	if i := strings.IndexFunc(code, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}); i >= 0 {
		code = code[:i]
	}
	for i, s := range preferredSets {
		if code == s {
			return i
		}
	}
	return len(preferredSets)
}

func cardNumber(c *Card) (int, bool) {
	digits := cardNumberDigits.ReplaceAllString(c.Number, "")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	return n, err == nil
}
