package rules

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/tcgoverlay/overlay-server-go/internal/catalog"
	"github.com/tcgoverlay/overlay-server-go/internal/match"
)

// testCatalog builds a small library covering a full evolution line, a
// skip-stage line and the utility card kinds.
func testCatalog(t *testing.T) *catalog.Library {
	t.Helper()
	cards := []*catalog.Card{
		{
			ID: "sv3-26", Name: "Charmander",
			Subtypes: []string{"Basic"}, HP: "70",
			EvolvesTo: []string{"Charmeleon"}, RegulationMark: "G",
			Attacks: []catalog.CardAttack{{Name: "Ember", Damage: "30", Cost: []string{"Fire"}}},
			Images:  catalog.CardImages{Small: "charmander.png"},
			Set:     catalog.CardSet{ID: "sv3"},
		},
		{
			ID: "sv3-27", Name: "Charmeleon",
			Subtypes: []string{"Stage 1"}, HP: "90",
			EvolvesFrom: "Charmander", EvolvesTo: []string{"Charizard"},
			RegulationMark: "G",
			Set:            catalog.CardSet{ID: "sv3"},
		},
		{
			ID: "sv3-125", Name: "Charizard ex",
			Subtypes: []string{"Stage 2", "Tera"}, HP: "330",
			EvolvesFrom: "Charmeleon", RegulationMark: "G",
			Attacks: []catalog.CardAttack{
				{Name: "Brave Wing", Damage: "60"},
				{Name: "Burning Darkness", Damage: "180+", Cost: []string{"Fire", "Fire"}},
			},
			Abilities: []catalog.CardAbility{{Name: "Infernal Reign"}},
			Images:    catalog.CardImages{Small: "charizard.png"},
			Set:       catalog.CardSet{ID: "sv3"},
		},
		{
			ID: "sv1-84", Name: "Ralts",
			Subtypes: []string{"Basic"}, HP: "60",
			EvolvesTo: []string{"Kirlia"}, RegulationMark: "G",
			Set:       catalog.CardSet{ID: "sv1"},
		},
		{
			ID: "sv1-85", Name: "Kirlia",
			Subtypes: []string{"Stage 1"}, HP: "80",
			EvolvesFrom: "Ralts", EvolvesTo: []string{"Gardevoir"},
			RegulationMark: "G",
			Set:            catalog.CardSet{ID: "sv1"},
		},
		{
			ID: "sv1-86", Name: "Gardevoir ex",
			Subtypes: []string{"Stage 2"}, HP: "310",
			EvolvesFrom: "Kirlia", RegulationMark: "G",
			Abilities: []catalog.CardAbility{{Name: "Psychic Embrace"}},
			Set:       catalog.CardSet{ID: "sv1"},
		},
		{
			ID: "sv4-168", Name: "Professor's Research",
			Subtypes: []string{"Supporter"}, RegulationMark: "H",
			Set: catalog.CardSet{ID: "sv4"},
		},
		{
			ID: "sv4-169", Name: "Boss's Orders",
			Subtypes: []string{"Supporter"}, RegulationMark: "H",
			Set: catalog.CardSet{ID: "sv4"},
		},
		{
			ID: "sv6-131", Name: "Area Zero Underdepths",
			Subtypes: []string{"Stadium"}, RegulationMark: "H",
			Set: catalog.CardSet{ID: "sv6"},
		},
		{
			ID: "sv4-158", Name: "Defiance Band",
			Subtypes: []string{"Item", "Tool"}, RegulationMark: "H",
			Set: catalog.CardSet{ID: "sv4"},
		},
		{
			ID: "sv1-191", Name: "Rare Candy",
			Subtypes: []string{"Item"}, RegulationMark: "G",
			Set: catalog.CardSet{ID: "sv1"},
		},
	}
	return catalog.NewLibrary(cards, zaptest.NewLogger(t))
}

func mustCard(t *testing.T, lib *catalog.Library, name string) *catalog.Card {
	t.Helper()
	c := lib.FindByExactName(name)
	if c == nil {
		t.Fatalf("fixture card missing: %s", name)
	}
	return c
}

func emptyDoc() *match.Document {
	doc := match.Default()
	doc.Left = match.EmptyPlayer()
	doc.Right = match.EmptyPlayer()
	return doc
}
