package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PlanningPackageStatus string

const (
	PlanningFuture             PlanningPackageStatus = "FUTURE"
	PlanningNearTerm           PlanningPackageStatus = "NEAR_TERM"
	PlanningReadyForConversion PlanningPackageStatus = "READY_FOR_CONVERSION"
	PlanningConverting         PlanningPackageStatus = "CONVERTING"
	PlanningConverted          PlanningPackageStatus = "CONVERTED"
)

// Convertible reports whether the planning package may enter conversion from
// its current status.
func (s PlanningPackageStatus) Convertible() bool {
	switch s {
	case PlanningFuture, PlanningNearTerm, PlanningReadyForConversion:
		return true
	}
	return false
}

// PlanningPackage holds budget for future scope not yet detailed into
// executable work. Once converted its own budget is zeroed so the funds are
// not counted twice.
type PlanningPackage struct {
	ID               uuid.UUID
	ProjectID        uuid.UUID
	WBSElementID     uuid.UUID
	ControlAccountID uuid.UUID
	Name             string
	Budget           decimal.Decimal
	PlannedStartDate time.Time
	PlannedEndDate   time.Time
	Status           PlanningPackageStatus
	Discipline       string
	ResponsibleUser  uuid.UUID
	Version          int64
	Audit
}

// WorkPackage is the smallest schedulable, budgetable and measurable unit of
// work. Weight is the apportioned-effort factor in [0,1].
type WorkPackage struct {
	ID               uuid.UUID
	ProjectID        uuid.UUID
	WBSElementID     uuid.UUID
	ControlAccountID uuid.UUID
	Name             string
	Budget           decimal.Decimal
	Progress         decimal.Decimal
	PlannedStartDate time.Time
	PlannedEndDate   time.Time
	PlannedHours     decimal.Decimal
	ActualHours      decimal.Decimal
	ActualCost       decimal.Decimal
	Weight           decimal.Decimal
	Status           WBSStatus
	Discipline       string
	ResponsibleUser  uuid.UUID
	Version          int64
	Audit
}

// WorkPackagesTotal sums the budgets of candidate work packages, used for the
// conversion conservation check.
func WorkPackagesTotal(packages []WorkPackage) decimal.Decimal {
	total := decimal.Zero
	for _, wp := range packages {
		total = total.Add(wp.Budget)
	}
	return total
}
