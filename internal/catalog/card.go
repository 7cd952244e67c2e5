package catalog

import (
	"regexp"
	"strings"
)

// Card is the read-only catalog record for a single printing. All shape
// ambiguity in the source data is resolved at load time by normalizeCard;
// consumers never deal with alternate field names.
type Card struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Supertype      string        `json:"supertype,omitempty"`
	Subtypes       []string      `json:"subtypes,omitempty"`
	HP             string        `json:"hp,omitempty"`
	EvolvesFrom    string        `json:"evolvesFrom,omitempty"`
	EvolvesTo      []string      `json:"evolvesTo,omitempty"`
	Rarity         string        `json:"rarity,omitempty"`
	RegulationMark string        `json:"regulationMark,omitempty"`
	Number         string        `json:"number,omitempty"`
	Attacks        []CardAttack  `json:"attacks,omitempty"`
	Abilities      []CardAbility `json:"abilities,omitempty"`
	Images         CardImages    `json:"images"`
	Set            CardSet       `json:"set"`
}

// CardAttack is one attack line of a catalog card. Damage stays a string;
// printings carry suffixes like "120+" that the rules layer strips.
type CardAttack struct {
	Name   string   `json:"name"`
	Cost   []string `json:"cost,omitempty"`
	Damage string   `json:"damage,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// CardAbility is one ability line of a catalog card.
type CardAbility struct {
	Name string `json:"name"`
	Text string `json:"text,omitempty"`
	Type string `json:"type,omitempty"`
}

// CardImages holds the card art URLs.
type CardImages struct {
	Small string `json:"small,omitempty"`
	Large string `json:"large,omitempty"`
}

// CardSet identifies the printing's set.
type CardSet struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// HasSubtype reports whether the card carries the tag, case-insensitively.
func (c *Card) HasSubtype(tag string) bool {
	for _, s := range c.Subtypes {
		if strings.EqualFold(s, tag) {
			return true
		}
	}
	return false
}

// BestImage prefers the large art and falls back to the small one.
func (c *Card) BestImage() string {
	if c.Images.Large != "" {
		return c.Images.Large
	}
	return c.Images.Small
}

// FirstAbility returns the display name of the card's first ability,
// falling back to its text when the name is blank.
func (c *Card) FirstAbility() string {
	if len(c.Abilities) == 0 {
		return ""
	}
	if c.Abilities[0].Name != "" {
		return c.Abilities[0].Name
	}
	return c.Abilities[0].Text
}

func (c *Card) isPromoOrSpecial() bool {
	r := strings.ToLower(c.Rarity)
	return r == "promo" || r == "special"
}

var (
	variantTokens   = regexp.MustCompile(`\b(ex|vmax|v|max|gx|full ?art|promo)\b`)
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)
	setNumPattern   = regexp.MustCompile(`(\d+(?:[._]\d+)?)`)
	setSeparators   = regexp.MustCompile(`[._]`)
)

// NormalizeName canonicalizes a card name for fuzzy matching: lowercase,
// variant suffix tokens removed, non-alphanumerics stripped. The catalog is
// inconsistent about suffixes across printings, so every name comparison in
// the evolution logic goes through this.
func NormalizeName(s string) string {
	lower := strings.ToLower(s)
	lower = variantTokens.ReplaceAllString(lower, "")
	return nonAlphanumeric.ReplaceAllString(lower, "")
}

// setOrdinal extracts a best-effort numeric ordering key from a set id such
// as "sv8", "sv8pt5" or "sv10_5", for preferring newer printings.
func setOrdinal(c *Card) int {
	m := setNumPattern.FindString(strings.ToLower(c.Set.ID))
	if m == "" {
		return 0
	}
	n := 0
	for _, ch := range setSeparators.ReplaceAllString(m, "") {
		n = n*10 + int(ch-'0')
	}
	return n
}
