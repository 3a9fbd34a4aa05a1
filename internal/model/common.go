package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit carries creator/updater identity and soft-delete metadata shared by
// every aggregate. Deletion is logical: the row stays for financial history.
type Audit struct {
	CreatedAt time.Time
	CreatedBy uuid.UUID
	UpdatedAt *time.Time
	UpdatedBy *uuid.UUID
	DeletedAt *time.Time
	DeletedBy *uuid.UUID
}

func (a Audit) IsDeleted() bool {
	return a.DeletedAt != nil
}

// MarkDeleted stamps the soft-delete fields. The row is never removed.
func (a *Audit) MarkDeleted(by uuid.UUID, at time.Time) {
	a.DeletedAt = &at
	a.DeletedBy = &by
}

type PeriodType string

const (
	PeriodMonthly   PeriodType = "MONTHLY"
	PeriodQuarterly PeriodType = "QUARTERLY"
)
