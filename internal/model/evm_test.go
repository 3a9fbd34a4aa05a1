package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(value string) decimal.Decimal {
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func TestComputeEVMetrics_HealthyProject(t *testing.T) {
	cpi, spi, eac, etc, vac := ComputeEVMetrics(dec("100"), dec("110"), dec("100"), dec("400"))

	require.NotNil(t, cpi)
	require.NotNil(t, spi)
	assert.True(t, cpi.Equal(dec("1.1")))
	assert.True(t, spi.Equal(dec("1.1")))
	// EAC = 100 + 290 / 1.1.
	expected := dec("100").Add(dec("290").Div(dec("1.1")))
	assert.True(t, eac.Equal(expected), "EAC is %s", eac)
	assert.True(t, etc.Equal(eac.Sub(dec("100"))))
	assert.True(t, vac.Equal(dec("400").Sub(eac)))
}

func TestComputeEVMetrics_ZeroActualCost(t *testing.T) {
	cpi, spi, eac, etc, vac := ComputeEVMetrics(dec("50"), dec("40"), decimal.Zero, dec("200"))

	assert.Nil(t, cpi)
	require.NotNil(t, spi)
	assert.True(t, spi.Equal(dec("0.8")))
	// Additive fallback: EAC = 0 + (200 - 40).
	assert.True(t, eac.Equal(dec("160")))
	assert.True(t, etc.Equal(dec("160")))
	assert.True(t, vac.Equal(dec("40")))
}

func TestComputeEVMetrics_ZeroPlannedValue(t *testing.T) {
	cpi, spi, _, _, _ := ComputeEVMetrics(decimal.Zero, dec("40"), dec("50"), dec("200"))

	require.NotNil(t, cpi)
	assert.Nil(t, spi)
}

func TestComputeEVMetrics_AllZero(t *testing.T) {
	cpi, spi, eac, etc, vac := ComputeEVMetrics(decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero)

	assert.Nil(t, cpi)
	assert.Nil(t, spi)
	assert.True(t, eac.IsZero())
	assert.True(t, etc.IsZero())
	assert.True(t, vac.IsZero())
}

func TestPlannedPercentAt_WindowBoundaries(t *testing.T) {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.January, 11, 0, 0, 0, 0, time.UTC)

	assert.True(t, PlannedPercentAt(start, end, start.AddDate(0, 0, -5)).IsZero())
	assert.True(t, PlannedPercentAt(start, end, start).IsZero())
	assert.True(t, PlannedPercentAt(start, end, end).Equal(decimal.NewFromInt(1)))
	assert.True(t, PlannedPercentAt(start, end, end.AddDate(0, 1, 0)).Equal(decimal.NewFromInt(1)))

	// Midway through a ten day window.
	mid := PlannedPercentAt(start, end, start.AddDate(0, 0, 5))
	assert.True(t, mid.Equal(dec("0.5")), "midpoint is %s", mid)
}
