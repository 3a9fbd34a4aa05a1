package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BudgetStatus string

const (
	BudgetDraft     BudgetStatus = "DRAFT"
	BudgetSubmitted BudgetStatus = "SUBMITTED"
	BudgetApproved  BudgetStatus = "APPROVED"
	BudgetRejected  BudgetStatus = "REJECTED"
	BudgetBaselined BudgetStatus = "BASELINED"
	BudgetLocked    BudgetStatus = "LOCKED"
)

// Budget is a versioned, approvable container of budget items scoped to one
// project. At most one budget per project is the current baseline at any time.
type Budget struct {
	ID                 uuid.UUID
	ProjectID          uuid.UUID
	Name               string
	BudgetVersion      int
	Status             BudgetStatus
	TotalAmount        decimal.Decimal
	Contingency        decimal.Decimal
	ManagementReserve  decimal.Decimal
	Currency           string
	ExchangeRate       decimal.Decimal
	IsCurrentBaseline  bool
	RevisionWindowOpen bool
	RejectionReason    *string
	ApprovedBy         *uuid.UUID
	ApprovedAt         *time.Time
	Version            int64
	Audit
}

// ItemsMutable reports whether budget items may be added, updated or removed
// in the current state. After Locked, mutation requires an open revision
// window (quantity/rate updates only, enforced by the service).
func (b Budget) ItemsMutable() bool {
	if b.Status == BudgetDraft {
		return true
	}
	return b.Status == BudgetLocked && b.RevisionWindowOpen
}

// BudgetItem is one priced line of a budget. Amount is always derived from
// quantity and unit rate, never stored independently of its factors.
type BudgetItem struct {
	ID               uuid.UUID
	BudgetID         uuid.UUID
	ControlAccountID *uuid.UUID
	Description      string
	CostType         string
	Category         string
	Quantity         decimal.Decimal
	UnitRate         decimal.Decimal
	Version          int64
	Audit
}

func (i BudgetItem) Amount() decimal.Decimal {
	return i.Quantity.Mul(i.UnitRate)
}

// BudgetRevision is an immutable snapshot appended whenever a budget changes
// after baseline. Revisions are never overwritten.
type BudgetRevision struct {
	ID             uuid.UUID
	BudgetID       uuid.UUID
	RevisionNumber int
	PreviousTotal  decimal.Decimal
	NewTotal       decimal.Decimal
	Reason         string
	ApprovedBy     uuid.UUID
	CreatedAt      time.Time
}

// ItemsTotal sums the derived amounts of the given items.
func ItemsTotal(items []BudgetItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount())
	}
	return total
}

// Reconciles reports whether the item sum matches the budget total within the
// given tolerance.
func (b Budget) Reconciles(items []BudgetItem, tolerance decimal.Decimal) bool {
	diff := ItemsTotal(items).Sub(b.TotalAmount).Abs()
	return diff.LessThanOrEqual(tolerance)
}
