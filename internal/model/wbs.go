package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WBSElementType string

const (
	WBSTypeProject         WBSElementType = "PROJECT"
	WBSTypePhase           WBSElementType = "PHASE"
	WBSTypeDeliverable     WBSElementType = "DELIVERABLE"
	WBSTypeWorkPackage     WBSElementType = "WORK_PACKAGE"
	WBSTypePlanningPackage WBSElementType = "PLANNING_PACKAGE"
	WBSTypeSummary         WBSElementType = "SUMMARY"
	WBSTypeMilestone       WBSElementType = "MILESTONE"
)

// CanHaveChildren reports whether elements of this type may own children.
// Work packages, planning packages and milestones are always leaves.
func (t WBSElementType) CanHaveChildren() bool {
	switch t {
	case WBSTypeProject, WBSTypePhase, WBSTypeDeliverable, WBSTypeSummary:
		return true
	default:
		return false
	}
}

func (t WBSElementType) Valid() bool {
	switch t {
	case WBSTypeProject, WBSTypePhase, WBSTypeDeliverable, WBSTypeWorkPackage,
		WBSTypePlanningPackage, WBSTypeSummary, WBSTypeMilestone:
		return true
	}
	return false
}

type WBSStatus string

const (
	WBSStatusNotStarted WBSStatus = "NOT_STARTED"
	WBSStatusInProgress WBSStatus = "IN_PROGRESS"
	WBSStatusCompleted  WBSStatus = "COMPLETED"
	WBSStatusOnHold     WBSStatus = "ON_HOLD"
	WBSStatusCancelled  WBSStatus = "CANCELLED"
	WBSStatusDelayed    WBSStatus = "DELAYED"
	WBSStatusAtRisk     WBSStatus = "AT_RISK"
)

// IsTerminal reports whether the element can no longer accrue work or cost.
func (s WBSStatus) IsTerminal() bool {
	return s == WBSStatusCompleted || s == WBSStatusCancelled
}

func (s WBSStatus) Valid() bool {
	switch s {
	case WBSStatusNotStarted, WBSStatusInProgress, WBSStatusCompleted,
		WBSStatusOnHold, WBSStatusCancelled, WBSStatusDelayed, WBSStatusAtRisk:
		return true
	}
	return false
}

// WBSElement is a node of the work-breakdown structure. Parent/child wiring is
// by identifier only; the tree is materialised on read, never held as mutual
// object references.
type WBSElement struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	ParentID  *uuid.UUID
	Type      WBSElementType
	Code      string
	Name      string
	Position  int
	Status    WBSStatus
	Budget    decimal.Decimal
	Version   int64
	Audit
}

func (e WBSElement) IsLeaf() bool {
	return !e.Type.CanHaveChildren()
}
