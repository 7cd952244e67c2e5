package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// LoadPostgres reads the full card set from the cards table and builds the
// same in-memory library the file loader produces. The catalog is static
// for the lifetime of a session, so everything is fetched once at startup
// and the pool is not retained.
func LoadPostgres(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*Library, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, name, supertype, subtypes, hp, evolves_from, evolves_to,
		       rarity, regulation_mark, number, attacks, abilities,
		       image_small, image_large, set_id, set_name
		FROM cards
	`)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	var cards []*Card
	for rows.Next() {
		var (
			c             Card
			attacksJSON   []byte
			abilitiesJSON []byte
		)
		err := rows.Scan(
			&c.ID, &c.Name, &c.Supertype, &c.Subtypes, &c.HP,
			&c.EvolvesFrom, &c.EvolvesTo, &c.Rarity, &c.RegulationMark,
			&c.Number, &attacksJSON, &abilitiesJSON,
			&c.Images.Small, &c.Images.Large, &c.Set.ID, &c.Set.Name,
		)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if len(attacksJSON) > 0 {
			if err := json.Unmarshal(attacksJSON, &c.Attacks); err != nil {
				logger.Warn("skipping malformed attacks column",
					zap.String("card", c.Name), zap.Error(err))
			}
		}
		if len(abilitiesJSON) > 0 {
			if err := json.Unmarshal(abilitiesJSON, &c.Abilities); err != nil {
				logger.Warn("skipping malformed abilities column",
					zap.String("card", c.Name), zap.Error(err))
			}
		}
		cards = append(cards, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return NewLibrary(cards, logger), nil
}
