package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EVMRecord is a periodic earned-value snapshot for one control account.
// Records are immutable once created; later corrections append new records so
// the time series is preserved.
type EVMRecord struct {
	ID               uuid.UUID
	ControlAccountID uuid.UUID
	ProjectID        uuid.UUID
	DataDate         time.Time
	PeriodType       PeriodType
	PV               decimal.Decimal
	EV               decimal.Decimal
	AC               decimal.Decimal
	BAC              decimal.Decimal
	CPI              *decimal.Decimal
	SPI              *decimal.Decimal
	EAC              decimal.Decimal
	ETC              decimal.Decimal
	VAC              decimal.Decimal
	CreatedAt        time.Time
	CreatedBy        uuid.UUID
}

// CostPosting is one actual-cost entry against a control account, optionally
// attributed to a work package. Postings give actual cost its time dimension.
type CostPosting struct {
	ID               uuid.UUID
	ControlAccountID uuid.UUID
	WBSElementID     *uuid.UUID
	Amount           decimal.Decimal
	Description      string
	PostedAt         time.Time
	CreatedAt        time.Time
	CreatedBy        uuid.UUID
}

// EVMSummary is a project-level rollup. Base measures are summed across all
// control accounts before indices are derived; averaging child indices
// directly produces a biased indicator.
type EVMSummary struct {
	ProjectID uuid.UUID
	DataDate  time.Time
	PV        decimal.Decimal
	EV        decimal.Decimal
	AC        decimal.Decimal
	BAC       decimal.Decimal
	CPI       *decimal.Decimal
	SPI       *decimal.Decimal
	EAC       decimal.Decimal
	ETC       decimal.Decimal
	VAC       decimal.Decimal
	Accounts  []EVMRecord
}

// ComputeEVMetrics derives the performance indices and forecasts from the base
// measures. CPI and SPI are nil when their denominators are zero; EAC then
// falls back to the additive formula AC + (BAC - EV).
func ComputeEVMetrics(pv, ev, ac, bac decimal.Decimal) (cpi, spi *decimal.Decimal, eac, etc, vac decimal.Decimal) {
	if !ac.IsZero() {
		v := ev.Div(ac)
		cpi = &v
	}
	if !pv.IsZero() {
		v := ev.Div(pv)
		spi = &v
	}

	remaining := bac.Sub(ev)
	if cpi != nil && !cpi.IsZero() {
		eac = ac.Add(remaining.Div(*cpi))
	} else {
		eac = ac.Add(remaining)
	}
	etc = eac.Sub(ac)
	vac = bac.Sub(eac)
	return cpi, spi, eac, etc, vac
}

// PlannedPercentAt interpolates planned progress linearly across a date
// window: 0 before start, 1 after end.
func PlannedPercentAt(start, end, at time.Time) decimal.Decimal {
	if !at.After(start) {
		return decimal.Zero
	}
	if !at.Before(end) {
		return decimal.NewFromInt(1)
	}
	total := end.Sub(start)
	elapsed := at.Sub(start)
	return decimal.NewFromFloat(elapsed.Seconds()).Div(decimal.NewFromFloat(total.Seconds()))
}
