package radar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFiveBand_Breakpoints(t *testing.T) {
	tests := []struct {
		dbz    float64
		precip Precipitation
		color  string
	}{
		{-5, PrecipNone, "#ffffff"},
		{0, PrecipNone, "#ffffff"},
		{9.99, PrecipNone, "#ffffff"},
		{10.0, PrecipLight, "#00ff00"},
		{19.99, PrecipLight, "#00ff00"},
		{20.0, PrecipModerate, "#ffff00"},
		{29.99, PrecipModerate, "#ffff00"},
		{30.0, PrecipHeavy, "#ff8000"},
		{39.99, PrecipHeavy, "#ff8000"},
		{40.0, PrecipExtreme, "#ff0000"},
		{49.99, PrecipExtreme, "#ff0000"},
		{50.0, PrecipExtreme, "#800080"},
		{75, PrecipExtreme, "#800080"},
	}

	for _, tt := range tests {
		got := FiveBand.Classify(tt.dbz)
		assert.Equal(t, tt.precip, got.Precipitation, "dbz %v", tt.dbz)
		assert.Equal(t, tt.color, got.Color, "dbz %v", tt.dbz)
	}
}

func TestThreeBand_Breakpoints(t *testing.T) {
	tests := []struct {
		dbz    float64
		precip Precipitation
		color  string
	}{
		{0, PrecipLight, "#00ff00"},
		{19.99, PrecipLight, "#00ff00"},
		{20, PrecipModerate, "#ffff00"},
		{34.99, PrecipModerate, "#ffff00"},
		{35, PrecipHeavy, "#ff8000"},
		{44.99, PrecipHeavy, "#ff8000"},
		{45, PrecipHeavy, "#ff0000"},
		{70, PrecipHeavy, "#ff0000"},
	}

	for _, tt := range tests {
		got := ThreeBand.Classify(tt.dbz)
		assert.Equal(t, tt.precip, got.Precipitation, "dbz %v", tt.dbz)
		assert.Equal(t, tt.color, got.Color, "dbz %v", tt.dbz)
	}
}

func TestClassify_MonotonicAndDeterministic(t *testing.T) {
	for _, policy := range []Policy{FiveBand, ThreeBand} {
		prev := -1
		for dbz := -10.0; dbz <= 80; dbz += 0.01 {
			got := policy.Classify(dbz)
			assert.Equal(t, got, policy.Classify(dbz))
			rank := got.Precipitation.Rank()
			if rank < prev {
				t.Fatalf("%s: rank dropped from %d to %d at %v dBZ", policy.Name(), prev, rank, dbz)
			}
			prev = rank
		}
	}
}

func TestClassify_NaNFallsIntoLowestBand(t *testing.T) {
	assert.Equal(t, PrecipNone, FiveBand.Classify(math.NaN()).Precipitation)
	assert.Equal(t, PrecipLight, ThreeBand.Classify(math.NaN()).Precipitation)
}

func TestPolicyByName(t *testing.T) {
	p, ok := PolicyByName("three-band")
	assert.True(t, ok)
	assert.Equal(t, "three-band", p.Name())

	p, ok = PolicyByName("bogus")
	assert.False(t, ok)
	assert.Equal(t, "five-band", p.Name())
}
