package model

import (
	"regexp"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MeasurementMethod string

const (
	MethodPercentComplete   MeasurementMethod = "PERCENT_COMPLETE"
	MethodMilestone         MeasurementMethod = "MILESTONE"
	MethodWeightedMilestone MeasurementMethod = "WEIGHTED_MILESTONE"
	MethodLevelOfEffort     MeasurementMethod = "LEVEL_OF_EFFORT"
)

func (m MeasurementMethod) Valid() bool {
	switch m {
	case MethodPercentComplete, MethodMilestone, MethodWeightedMilestone, MethodLevelOfEffort:
		return true
	}
	return false
}

type ControlAccountStatus string

const (
	ControlAccountActive    ControlAccountStatus = "ACTIVE"
	ControlAccountBaselined ControlAccountStatus = "BASELINED"
	ControlAccountClosed    ControlAccountStatus = "CLOSED"
)

// Control account codes follow "CA-" plus alphanumeric segments, e.g. CA-1000
// or CA-CIV-010.
var controlAccountCodePattern = regexp.MustCompile(`^CA-[A-Z0-9]+(-[A-Z0-9]+)*$`)

func ValidControlAccountCode(code string) bool {
	return controlAccountCodePattern.MatchString(code)
}

// ControlAccount is the point where budget, schedule and actuals integrate for
// earned-value management. It is bound to a WBS branch and a phase, owned by a
// CAM, and carries the Budget-at-Completion frozen at baseline time.
type ControlAccount struct {
	ID                 uuid.UUID
	ProjectID          uuid.UUID
	PhaseID            uuid.UUID
	WBSElementID       uuid.UUID
	CAMUserID          uuid.UUID
	Code               string
	Name               string
	BAC                decimal.Decimal
	ContingencyReserve decimal.Decimal
	ManagementReserve  decimal.Decimal
	Method             MeasurementMethod
	PercentComplete    decimal.Decimal
	Status             ControlAccountStatus
	WasBaselined       bool
	Version            int64
	Audit
}

// CanClose reports whether a direct transition to Closed is structurally
// allowed from the current status. Dependent checks happen in the service.
func (c ControlAccount) CanClose() bool {
	switch c.Status {
	case ControlAccountBaselined:
		return true
	case ControlAccountActive:
		// Direct Active->Closed is reserved for never-baselined accounts
		// (cancelled scope).
		return !c.WasBaselined
	default:
		return false
	}
}
