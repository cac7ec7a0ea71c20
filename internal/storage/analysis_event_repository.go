package storage

import (
	"context"
	"fmt"

	"github.com/listing-trust/internal/models"
)

// AnalysisEventRepository appends analyzed listings to ClickHouse
type AnalysisEventRepository struct {
	db *ClickHouseDB
}

// NewAnalysisEventRepository creates a new analysis event repository
func NewAnalysisEventRepository(db *ClickHouseDB) *AnalysisEventRepository {
	return &AnalysisEventRepository{db: db}
}

// RecordEvents inserts events in one batch
func (r *AnalysisEventRepository) RecordEvents(ctx context.Context, events ...*models.AnalysisEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO analysis_events (event_id, listing_id, make, model, year, country, score, partial, statuses, analyzed_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range events {
		if err := batch.Append(
			e.EventID,
			e.ListingID,
			e.Make,
			e.Model,
			e.Year,
			e.Country,
			e.Score,
			e.Partial,
			e.Statuses,
			e.AnalyzedAt,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send analysis events: %w", err)
	}
	return nil
}
