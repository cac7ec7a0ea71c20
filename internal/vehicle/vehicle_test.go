package vehicle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Île-de-France", "ile de france"},
		{"  ILE DE   france ", "ile de france"},
		{"Provence-Alpes-Côte d'Azur", "provence alpes cote d azur"},
		{"Citroën", "citroen"},
		{"Bâle-Ville", "bale ville"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Fold(tt.in))
		})
	}
}

func TestNormalizeFuelAndGearbox(t *testing.T) {
	assert.Equal(t, FuelDiesel, NormalizeFuel("Gazole"))
	assert.Equal(t, FuelEssence, NormalizeFuel("Petrol"))
	assert.Equal(t, FuelElectric, NormalizeFuel("Électrique"))
	assert.Equal(t, "hydrogene", NormalizeFuel("Hydrogène"))

	assert.Equal(t, GearboxAutomatic, NormalizeGearbox("Automatic"))
	assert.Equal(t, GearboxManual, NormalizeGearbox("MANUELLE"))
}

func TestOpposites(t *testing.T) {
	f, ok := OppositeFuel("diesel")
	assert.True(t, ok)
	assert.Equal(t, FuelEssence, f)

	f, ok = OppositeFuel("Essence")
	assert.True(t, ok)
	assert.Equal(t, FuelDiesel, f)

	_, ok = OppositeFuel("hybride")
	assert.False(t, ok)

	g, ok := OppositeGearbox("auto")
	assert.True(t, ok)
	assert.Equal(t, GearboxManual, g)

	_, ok = OppositeGearbox("")
	assert.False(t, ok)
}

func TestPowerBand(t *testing.T) {
	hp := func(n int) *int { return &n }

	tests := []struct {
		hp   *int
		want string
	}{
		{nil, ""},
		{hp(0), ""},
		{hp(75), "0-89"},
		{hp(90), "90-129"},
		{hp(129), "90-129"},
		{hp(150), "130-179"},
		{hp(249), "180-249"},
		{hp(300), "250-349"},
		{hp(350), "350+"},
		{hp(700), "350+"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PowerBand(tt.hp))
	}
}

func TestRegions(t *testing.T) {
	assert.Len(t, Regions("FR"), 13)
	assert.Len(t, Regions("be"), 3)
	assert.Len(t, Regions(" CH "), 26)
	assert.Nil(t, Regions("DE"))

	assert.True(t, SupportedCountry("fr"))
	assert.False(t, SupportedCountry("IT"))

	assert.True(t, KnownRegion("FR", "ILE DE FRANCE"))
	assert.True(t, KnownRegion("CH", "Genève"))
	assert.False(t, KnownRegion("BE", "Bretagne"))
}

func TestOtherRegions(t *testing.T) {
	others := OtherRegions("FR", "Île-de-France")
	assert.Len(t, others, 12)
	assert.NotContains(t, others, "ile de france")

	// unknown region: every region is "other"
	assert.Len(t, OtherRegions("BE", "Atlantis"), 3)
}

func TestMakeModelKey(t *testing.T) {
	assert.Equal(t, "alpine:a110", MakeModelKey("Alpine", " A110 "))
	assert.Equal(t, "citroen:c4 picasso", MakeModelKey("Citroën", "C4-Picasso"))
}
