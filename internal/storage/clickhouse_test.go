package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/listing-trust/internal/config"
	"github.com/listing-trust/internal/models"
)

func TestAnalysisEventRepository_RecordEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := NewClickHouseDB(&config.ClickHouseConfig{
		Host:     "localhost",
		Port:     "9000",
		Database: "listing_trust",
		User:     "default",
		Password: "clickhouse_dev_password",
	})
	if err != nil {
		t.Skipf("Skipping test - ClickHouse not available: %v", err)
		return
	}
	defer func() {
		_ = db.Close()
	}()

	ctx := testContext(t)
	if err := RunClickHouseMigrations(ctx, db, "../../migrations/clickhouse"); err != nil {
		t.Fatalf("RunClickHouseMigrations() error = %v", err)
	}

	repo := NewAnalysisEventRepository(db)
	err = repo.RecordEvents(ctx, &models.AnalysisEvent{
		EventID:    uuid.NewString(),
		ListingID:  "listing-1",
		Make:       "peugeot",
		Model:      "308",
		Year:       2019,
		Country:    "FR",
		Score:      72,
		Partial:    true,
		Statuses:   []string{"L1:pass", "L4:skip"},
		AnalyzedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Errorf("RecordEvents() error = %v", err)
	}

	if err := repo.RecordEvents(ctx); err != nil {
		t.Errorf("RecordEvents() with no events error = %v", err)
	}
}
