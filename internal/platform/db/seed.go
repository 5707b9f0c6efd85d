package db

import (
	"context"

	"github.com/rs/zerolog/log"

	"hrpayroll/internal/domain/payroll"
	"hrpayroll/internal/platform/querier"
)

// Seed makes sure the three deduction containers exist. Existing containers
// are left untouched.
func Seed(ctx context.Context, pool querier.Querier) error {
	for position, category := range payroll.Categories {
		tag, err := pool.Exec(ctx, `
      INSERT INTO deduction_categories (type, description, is_active, data, position)
      VALUES ($1, $2, true, '[]'::jsonb, $3)
      ON CONFLICT (type) DO NOTHING
    `, string(category), payroll.DefaultDescription(category), position)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			log.Info().Str("category", string(category)).Msg("deduction category seeded")
		}
	}
	return nil
}
