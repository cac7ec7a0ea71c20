package pricing

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/vehicle"
)

var seedHeader = []string{"make", "model", "region", "year", "price_low", "price_high"}

type seedKey struct {
	makeModel string
	region    string
	year      int
}

// SeedReference holds the static fallback bands. It is read-only after load and
// safe for concurrent use.
type SeedReference struct {
	bands  map[seedKey]models.PriceBand
	models map[string]map[string]bool // folded make -> folded model set
}

// NewSeedReference indexes records by folded make, model, region and year.
// A later record for the same key replaces an earlier one.
func NewSeedReference(records []models.SeedRecord) *SeedReference {
	s := &SeedReference{
		bands:  make(map[seedKey]models.PriceBand, len(records)),
		models: make(map[string]map[string]bool),
	}
	for _, r := range records {
		brand, model := vehicle.Fold(r.Make), vehicle.Fold(r.Model)
		s.bands[seedKey{makeModel: brand + ":" + model, region: vehicle.Fold(r.Region), year: r.Year}] = r.Band
		if s.models[brand] == nil {
			s.models[brand] = make(map[string]bool)
		}
		s.models[brand][model] = true
	}
	return s
}

// LoadSeedFile reads a seed CSV from disk
func LoadSeedFile(path string) (*SeedReference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	records, err := ParseSeedCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return NewSeedReference(records), nil
}

// ParseSeedCSV reads make,model,region,year,price_low,price_high rows. The
// header row is required. An empty region denotes a national band.
func ParseSeedCSV(r io.Reader) ([]models.SeedRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(seedHeader)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, col := range seedHeader {
		if strings.ToLower(strings.TrimSpace(header[i])) != col {
			return nil, fmt.Errorf("unexpected column %q at position %d, want %q", header[i], i, col)
		}
	}

	var records []models.SeedRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		year, err := strconv.Atoi(strings.TrimSpace(row[3]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid year %q", line, row[3])
		}
		low, err := strconv.Atoi(strings.TrimSpace(row[4]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid price_low %q", line, row[4])
		}
		high, err := strconv.Atoi(strings.TrimSpace(row[5]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid price_high %q", line, row[5])
		}
		band := models.PriceBand{Low: low, High: high}
		if !band.Valid() {
			return nil, fmt.Errorf("line %d: invalid band [%d, %d]", line, low, high)
		}

		records = append(records, models.SeedRecord{
			Make:   row[0],
			Model:  row[1],
			Region: row[2],
			Year:   year,
			Band:   band,
		})
	}
	return records, nil
}

// Lookup returns the band for the vehicle in region, falling back to the
// national band (empty region) for the same year.
func (s *SeedReference) Lookup(brand, model, region string, year int) (models.PriceBand, bool) {
	if s == nil {
		return models.PriceBand{}, false
	}
	mm := vehicle.MakeModelKey(brand, model)
	if band, ok := s.bands[seedKey{makeModel: mm, region: vehicle.Fold(region), year: year}]; ok {
		return band, true
	}
	band, ok := s.bands[seedKey{makeModel: mm, year: year}]
	return band, ok
}

// Len returns the number of distinct bands
func (s *SeedReference) Len() int {
	if s == nil {
		return 0
	}
	return len(s.bands)
}

// KnowsMake reports whether any band exists for the make
func (s *SeedReference) KnowsMake(brand string) bool {
	if s == nil {
		return false
	}
	return len(s.models[vehicle.Fold(brand)]) > 0
}

// KnowsModel reports whether any band exists for the make and model
func (s *SeedReference) KnowsModel(brand, model string) bool {
	if s == nil {
		return false
	}
	return s.models[vehicle.Fold(brand)][vehicle.Fold(model)]
}
