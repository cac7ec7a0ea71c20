package filters

import (
	"context"
	"testing"

	"github.com/listing-trust/internal/adapter"
	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhone(t *testing.T) {
	ctx := context.Background()
	f := NewPhoneFilter("FR")

	tests := []struct {
		name       string
		country    string
		phone      string
		wantStatus types.FilterStatus
		wantType   string
	}{
		{"mobile", "FR", "06 12 34 56 78", types.StatusPass, "standard"},
		{"international", "FR", "+33 6 12 34 56 78", types.StatusPass, "standard"},
		{"double zero prefix", "FR", "0033612345678", types.StatusPass, "standard"},
		{"trunk zero kept", "FR", "+33 (0)6 12 34 56 78", types.StatusPass, "standard"},
		{"landline with dots", "FR", "01.23.45.67.89", types.StatusPass, "standard"},
		{"premium", "FR", "0899 12 34 56", types.StatusFail, "premium"},
		{"voip", "FR", "09 50 12 34 56", types.StatusWarning, "voip"},
		{"shared cost", "FR", "0810 12 34 56", types.StatusWarning, "shared_cost"},
		{"premium 081x", "FR", "0812345678", types.StatusFail, "premium"},
		{"belgian number on french ad", "FR", "+32 470 12 34 56", types.StatusWarning, "other_country"},
		{"foreign", "FR", "+49 151 23456789", types.StatusWarning, "foreign"},
		{"too short", "FR", "06 12 34", types.StatusFail, ""},
		{"no trunk prefix", "FR", "12345", types.StatusFail, ""},
		{"letters", "FR", "call me", types.StatusFail, ""},
		{"belgian mobile", "BE", "0470 12 34 56", types.StatusPass, "standard"},
		{"belgian premium", "BE", "0903 12 345", types.StatusFail, "premium"},
		{"swiss premium", "CH", "0901 234 567", types.StatusFail, "premium"},
		{"swiss shared cost", "CH", "0848 123 456", types.StatusWarning, "shared_cost"},
		{"swiss personal number", "CH", "0878 123 456", types.StatusWarning, "personal"},
		{"swiss mobile on belgian ad", "BE", "+41 78 123 45 67", types.StatusWarning, "other_country"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := fullListing()
			l.Country, l.Phone = tt.country, tt.phone
			out, err := f.Run(ctx, l)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, out.Status, out.Message)
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, out.Details["type"])
			}
		})
	}

	t.Run("unchecked country", func(t *testing.T) {
		l := fullListing()
		l.Country, l.Phone = "DE", "0151 2345678"
		out, err := f.Run(ctx, l)
		require.NoError(t, err)
		assert.Equal(t, types.StatusNeutral, out.Status)
	})

	t.Run("invalid foreign number", func(t *testing.T) {
		l := fullListing()
		l.Country, l.Phone = "FR", "+49 123"
		out, err := f.Run(ctx, l)
		require.NoError(t, err)
		assert.Equal(t, types.StatusFail, out.Status)
	})

	t.Run("foreign number reports its country", func(t *testing.T) {
		l := fullListing()
		l.Country, l.Phone = "FR", "+49 151 23456789"
		out, err := f.Run(ctx, l)
		require.NoError(t, err)
		assert.Equal(t, "DE", out.Details["country"])
	})

	t.Run("missing", func(t *testing.T) {
		l := fullListing()
		l.Phone = " "
		_, err := f.Run(ctx, l)
		requireFilterError(t, err, "L6", "no phone number")
	})
}

type stubRegistry struct {
	company *adapter.Company
	err     error
	calls   int
}

func (s *stubRegistry) Lookup(_ context.Context, id string) (*adapter.Company, error) {
	s.calls++
	return s.company, s.err
}

func proListing(companyID string) *models.ListingRecord {
	l := fullListing()
	l.SellerType = types.SellerPro
	l.CompanyID = companyID
	return l
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	active := &stubRegistry{company: &adapter.Company{ID: "73282932000074", Name: "Garage du Centre", Active: true}}

	out, err := NewRegistryFilter(active, "FR").Run(ctx, fullListing())
	require.NoError(t, err)
	assert.Equal(t, types.StatusNeutral, out.Status)
	assert.Equal(t, 0, active.calls)

	out, err = NewRegistryFilter(active, "FR").Run(ctx, proListing("732 829 320 00074"))
	require.NoError(t, err)
	assert.Equal(t, types.StatusPass, out.Status)
	assert.Equal(t, "Garage du Centre", out.Details["company_name"])
	assert.Equal(t, 1, active.calls)

	out, err = NewRegistryFilter(active, "FR").Run(ctx, proListing(""))
	require.NoError(t, err)
	assert.Equal(t, types.StatusFail, out.Status)

	out, err = NewRegistryFilter(active, "FR").Run(ctx, proListing("73282932000075"))
	require.NoError(t, err)
	assert.Equal(t, types.StatusFail, out.Status)
	assert.Equal(t, "invalid company number", out.Message)

	closed := &stubRegistry{company: &adapter.Company{ID: "73282932000074", Active: false}}
	out, err = NewRegistryFilter(closed, "FR").Run(ctx, proListing("73282932000074"))
	require.NoError(t, err)
	assert.Equal(t, types.StatusFail, out.Status)

	missing := &stubRegistry{err: errors.NewNotFoundError("company", "73282932000074")}
	out, err = NewRegistryFilter(missing, "FR").Run(ctx, proListing("73282932000074"))
	require.NoError(t, err)
	assert.Equal(t, types.StatusFail, out.Status)

	down := &stubRegistry{err: errors.NewProviderTimeoutError("company-registry")}
	_, err = NewRegistryFilter(down, "FR").Run(ctx, proListing("73282932000074"))
	requireFilterError(t, err, "L7", "company registry lookup failed")

	_, err = NewRegistryFilter(nil, "FR").Run(ctx, proListing("73282932000074"))
	requireFilterError(t, err, "L7", "company registry unavailable")

	belgian := proListing("0123456789")
	belgian.Country = "BE"
	out, err = NewRegistryFilter(active, "FR").Run(ctx, belgian)
	require.NoError(t, err)
	assert.Equal(t, types.StatusNeutral, out.Status)
}

func TestValidSIRET(t *testing.T) {
	assert.True(t, validSIRET("73282932000074"))
	assert.True(t, validSIRET("732829320"))
	assert.True(t, validSIRET("35600000049837"))
	assert.False(t, validSIRET("35600000049838"))
	assert.False(t, validSIRET("73282932000075"))
	assert.False(t, validSIRET("7328293200007A"))
	assert.False(t, validSIRET("123"))
}

func TestImportSignals(t *testing.T) {
	ctx := context.Background()
	f := NewImportFilter()

	l := fullListing()
	out, err := f.Run(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPass, out.Status)

	l.Description = "Véhicule importé d'Allemagne, COC fourni."
	out, err = f.Run(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, types.StatusWarning, out.Status)
	assert.Equal(t, 0.4, out.Score)
	assert.Equal(t, []string{"importe", "coc"}, out.Details["signals"])

	l = fullListing()
	l.Flags = map[string]bool{"imported": true}
	out, err = f.Run(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, types.StatusWarning, out.Status)
	assert.Equal(t, 0.6, out.Score)

	l.Description = ""
	out, err = f.Run(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, types.StatusWarning, out.Status)

	l.Flags = nil
	_, err = f.Run(ctx, l)
	requireFilterError(t, err, "L8", "no description")
}

func TestScam(t *testing.T) {
	ctx := context.Background()
	f := NewScamFilter()

	tests := []struct {
		name        string
		description string
		wantStatus  types.FilterStatus
		wantScore   float64
	}{
		{"clean", "Très bon état, visible sur Rennes.", types.StatusPass, 1},
		{"money transfer", "Paiement par Western-Union uniquement.", types.StatusFail, 0},
		{"abroad", "Je suis à l'étranger, le véhicule sera livré.", types.StatusFail, 0},
		{"one medium", "Acompte demandé pour réserver.", types.StatusWarning, 0.5},
		{"two medium", "Pas de visite, acompte demandé.", types.StatusWarning, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := fullListing()
			l.Description = tt.description
			out, err := f.Run(ctx, l)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, out.Status, out.Message)
			assert.Equal(t, tt.wantScore, out.Score)
		})
	}

	l := fullListing()
	l.Description = ""
	_, err := f.Run(ctx, l)
	requireFilterError(t, err, "L9", "no description")
}
