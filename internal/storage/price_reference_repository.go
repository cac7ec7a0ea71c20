package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/listing-trust/internal/models"
)

const priceReferenceColumns = `
	id, make, model, year, region, fuel, power_band, country,
	price_min, price_median, price_mean, price_max, price_std, price_iqm,
	sample_count, precision_tier, collected_at, refresh_after`

// PriceReferenceRepository persists crowdsourced price references in Postgres
type PriceReferenceRepository struct {
	db *PostgresDB
}

// NewPriceReferenceRepository creates a new price reference repository
func NewPriceReferenceRepository(db *PostgresDB) *PriceReferenceRepository {
	return &PriceReferenceRepository{db: db}
}

// UpsertReference inserts the row or replaces its statistics in one statement.
// Concurrent submissions for the same key serialize on the unique constraint.
func (r *PriceReferenceRepository) UpsertReference(ctx context.Context, ref *models.PriceReference) (*models.PriceReference, error) {
	query := `
		INSERT INTO price_references (` + priceReferenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT ON CONSTRAINT price_references_key DO UPDATE SET
			price_min      = EXCLUDED.price_min,
			price_median   = EXCLUDED.price_median,
			price_mean     = EXCLUDED.price_mean,
			price_max      = EXCLUDED.price_max,
			price_std      = EXCLUDED.price_std,
			price_iqm      = EXCLUDED.price_iqm,
			sample_count   = EXCLUDED.sample_count,
			precision_tier = EXCLUDED.precision_tier,
			collected_at   = EXCLUDED.collected_at,
			refresh_after  = EXCLUDED.refresh_after
		RETURNING id
	`

	id := ref.ID
	if id == "" {
		id = uuid.NewString()
	}

	var storedID string
	err := r.db.Pool().QueryRow(ctx, query,
		id,
		ref.Make,
		ref.Model,
		ref.Year,
		ref.Region,
		ref.Fuel,
		ref.PowerBand,
		ref.Country,
		ref.Min,
		ref.Median,
		ref.Mean,
		ref.Max,
		ref.Std,
		ref.IQM,
		ref.SampleCount,
		ref.PrecisionTier,
		ref.CollectedAt,
		ref.RefreshAfter,
	).Scan(&storedID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert price reference: %w", err)
	}

	out := *ref
	out.ID = storedID
	return &out, nil
}

// GetReference returns the row for key, or nil when none exists
func (r *PriceReferenceRepository) GetReference(ctx context.Context, key models.PriceKey) (*models.PriceReference, error) {
	query := `
		SELECT ` + priceReferenceColumns + `
		FROM price_references
		WHERE make = $1 AND model = $2 AND year = $3 AND region = $4
		  AND fuel = $5 AND power_band = $6 AND country = $7
	`

	ref, err := scanPriceReference(r.db.Pool().QueryRow(ctx, query,
		key.Make, key.Model, key.Year, key.Region, key.Fuel, key.PowerBand, key.Country,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get price reference: %w", err)
	}
	return ref, nil
}

// ListVehicleReferences returns every fuel and power band row of one vehicle scope
func (r *PriceReferenceRepository) ListVehicleReferences(ctx context.Context, scope models.PriceKey) ([]*models.PriceReference, error) {
	query := `
		SELECT ` + priceReferenceColumns + `
		FROM price_references
		WHERE make = $1 AND model = $2 AND year = $3 AND region = $4 AND country = $5
		ORDER BY sample_count DESC, collected_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, scope.Make, scope.Model, scope.Year, scope.Region, scope.Country)
	if err != nil {
		return nil, fmt.Errorf("failed to list price references: %w", err)
	}
	defer rows.Close()

	var refs []*models.PriceReference
	for rows.Next() {
		ref, err := scanPriceReference(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price reference: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price references: %w", err)
	}
	return refs, nil
}

// CountStale counts rows past their refresh window
func (r *PriceReferenceRepository) CountStale(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM price_references WHERE refresh_after < $1`, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count stale price references: %w", err)
	}
	return n, nil
}

func scanPriceReference(row pgx.Row) (*models.PriceReference, error) {
	var ref models.PriceReference
	err := row.Scan(
		&ref.ID,
		&ref.Make,
		&ref.Model,
		&ref.Year,
		&ref.Region,
		&ref.Fuel,
		&ref.PowerBand,
		&ref.Country,
		&ref.Min,
		&ref.Median,
		&ref.Mean,
		&ref.Max,
		&ref.Std,
		&ref.IQM,
		&ref.SampleCount,
		&ref.PrecisionTier,
		&ref.CollectedAt,
		&ref.RefreshAfter,
	)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
