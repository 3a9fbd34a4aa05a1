package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CommitmentStatus string

const (
	CommitmentDraft     CommitmentStatus = "DRAFT"
	CommitmentSubmitted CommitmentStatus = "SUBMITTED"
	CommitmentApproved  CommitmentStatus = "APPROVED"
	CommitmentActive    CommitmentStatus = "ACTIVE"
	CommitmentClosed    CommitmentStatus = "CLOSED"
	CommitmentCancelled CommitmentStatus = "CANCELLED"
)

// Cancellable reports whether the status permits cancellation at all; an
// additional invoice check applies in the service.
func (s CommitmentStatus) Cancellable() bool {
	switch s {
	case CommitmentDraft, CommitmentSubmitted, CommitmentApproved:
		return true
	}
	return false
}

// Commitment is a contractual obligation (purchase order or contract) against
// project funds, optionally tied to a contractor and a control account.
type Commitment struct {
	ID                uuid.UUID
	ProjectID         uuid.UUID
	ControlAccountID  *uuid.UUID
	ContractorID      *uuid.UUID
	Number            string
	Title             string
	IsFixedPrice      bool
	IsTimeAndMaterial bool
	ContractDate      time.Time
	StartDate         time.Time
	EndDate           time.Time
	Currency          string
	OriginalAmount    decimal.Decimal
	RevisedAmount     decimal.Decimal
	CommittedAmount   decimal.Decimal
	InvoicedAmount    decimal.Decimal
	PaidAmount        decimal.Decimal
	RetentionAmount   decimal.Decimal
	InvoiceCount      int
	Status            CommitmentStatus
	RejectionReason   *string
	ApprovedBy        *uuid.UUID
	ApprovedAt        *time.Time
	Version           int64
	Audit
}

// IsOverCommitted is a reported condition, not a failure: real contracts do go
// over and must still be recorded.
func (c Commitment) IsOverCommitted() bool {
	return c.InvoicedAmount.GreaterThan(c.CommittedAmount)
}

// CommitmentItem is one contract line.
type CommitmentItem struct {
	ID           uuid.UUID
	CommitmentID uuid.UUID
	Description  string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	Discount     decimal.Decimal
	TaxRate      decimal.Decimal
	Version      int64
	Audit
}

// Amount is quantity x unit price, less discount, plus tax on the discounted
// base.
func (i CommitmentItem) Amount() decimal.Decimal {
	base := i.Quantity.Mul(i.UnitPrice).Sub(i.Discount)
	tax := base.Mul(i.TaxRate).Div(decimal.NewFromInt(100))
	return base.Add(tax)
}

// CommitmentRevision is an append-only audit entry of an amount change.
type CommitmentRevision struct {
	ID                  uuid.UUID
	CommitmentID        uuid.UUID
	RevisionNumber      int
	PreviousAmount      decimal.Decimal
	NewAmount           decimal.Decimal
	ChangeAmount        decimal.Decimal
	ChangePercentage    decimal.Decimal
	IsSignificantChange bool
	Reason              string
	ChangeOrderRef      string
	ApprovedBy          uuid.UUID
	CreatedAt           time.Time
}

// CommitmentWorkPackageAllocation distributes committed amount across WBS work
// packages.
type CommitmentWorkPackageAllocation struct {
	ID           uuid.UUID
	CommitmentID uuid.UUID
	WBSElementID uuid.UUID
	Amount       decimal.Decimal
	CreatedAt    time.Time
	CreatedBy    uuid.UUID
}

// AllocationsTotal sums existing work-package allocations.
func AllocationsTotal(allocations []CommitmentWorkPackageAllocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	return total
}
