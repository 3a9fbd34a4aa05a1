package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openpmo/costcontrol/internal/model"
)

// ControlAccountRepository is the persistence boundary for control accounts.
type ControlAccountRepository interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*model.ControlAccount, error)
	GetAccountByCode(ctx context.Context, projectID uuid.UUID, code string) (*model.ControlAccount, error)
	CreateAccount(ctx context.Context, account model.ControlAccount) (*model.ControlAccount, error)
	UpdateAccount(ctx context.Context, account model.ControlAccount) error
	ListAccountsByProject(ctx context.Context, projectID uuid.UUID) ([]model.ControlAccount, error)
	CountOpenWorkPackages(ctx context.Context, accountID uuid.UUID) (int64, error)
	CountOpenCommitments(ctx context.Context, accountID uuid.UUID) (int64, error)
}

type ControlAccountService struct {
	repo ControlAccountRepository
}

func NewControlAccountService(repo ControlAccountRepository) *ControlAccountService {
	return &ControlAccountService{repo: repo}
}

type CreateControlAccountInput struct {
	ProjectID          uuid.UUID
	PhaseID            uuid.UUID
	WBSElementID       uuid.UUID
	CAMUserID          uuid.UUID
	Code               string
	Name               string
	BAC                decimal.Decimal
	ContingencyReserve decimal.Decimal
	ManagementReserve  decimal.Decimal
	Method             model.MeasurementMethod
	Principal          model.Principal
}

func (s *ControlAccountService) Create(ctx context.Context, input CreateControlAccountInput) (*model.ControlAccount, error) {
	if !input.Principal.HasProjectAccess(input.ProjectID, model.RoleCostController) {
		return nil, ErrPermissionDenied
	}

	code := strings.TrimSpace(input.Code)
	if !model.ValidControlAccountCode(code) {
		return nil, fmt.Errorf("%w: control account code %q does not match CA-XXX pattern", ErrValidation, code)
	}
	if !input.BAC.IsPositive() {
		return nil, fmt.Errorf("%w: BAC must be greater than zero", ErrValidation)
	}
	if input.ContingencyReserve.IsNegative() || input.ManagementReserve.IsNegative() {
		return nil, fmt.Errorf("%w: reserves must not be negative", ErrValidation)
	}
	if !input.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown measurement method %q", ErrValidation, input.Method)
	}
	if input.CAMUserID == uuid.Nil {
		return nil, fmt.Errorf("%w: CAM user is required", ErrValidation)
	}

	existing, err := s.repo.GetAccountByCode(ctx, input.ProjectID, code)
	if err != nil && !errors.Is(mapRepoErr(err), ErrNotFound) {
		return nil, mapRepoErr(err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: duplicate control account code %q in project", ErrValidation, code)
	}

	account := model.ControlAccount{
		ID:                 uuid.New(),
		ProjectID:          input.ProjectID,
		PhaseID:            input.PhaseID,
		WBSElementID:       input.WBSElementID,
		CAMUserID:          input.CAMUserID,
		Code:               code,
		Name:               strings.TrimSpace(input.Name),
		BAC:                input.BAC,
		ContingencyReserve: input.ContingencyReserve,
		ManagementReserve:  input.ManagementReserve,
		Method:             input.Method,
		PercentComplete:    decimal.Zero,
		Status:             model.ControlAccountActive,
	}
	account.CreatedBy = input.Principal.UserID

	created, err := s.repo.CreateAccount(ctx, account)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return created, nil
}

var hundred = decimal.NewFromInt(100)

// UpdateProgress is only legal while the account is Active.
func (s *ControlAccountService) UpdateProgress(ctx context.Context, id uuid.UUID, percentComplete decimal.Decimal, principal model.Principal) error {
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(account.ProjectID, model.RoleCAM) {
		return ErrPermissionDenied
	}
	if account.Status != model.ControlAccountActive {
		return fmt.Errorf("%w: cannot update progress in status %s", ErrInvalidTransition, account.Status)
	}
	if percentComplete.IsNegative() || percentComplete.GreaterThan(hundred) {
		return fmt.Errorf("%w: percent complete must be within [0,100]", ErrValidation)
	}

	account.PercentComplete = percentComplete
	account.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateAccount(ctx, *account))
}

// Baseline freezes BAC for subsequent variance comparisons. The transition is
// irreversible outside the administrative Unbaseline path.
func (s *ControlAccountService) Baseline(ctx context.Context, id uuid.UUID, principal model.Principal) error {
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(account.ProjectID, model.RoleCostController) {
		return ErrPermissionDenied
	}
	if account.Status != model.ControlAccountActive {
		return fmt.Errorf("%w: cannot baseline from status %s", ErrInvalidTransition, account.Status)
	}

	account.Status = model.ControlAccountBaselined
	account.WasBaselined = true
	account.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateAccount(ctx, *account))
}

// Unbaseline is an administrative correction, not part of the regular flow.
func (s *ControlAccountService) Unbaseline(ctx context.Context, id uuid.UUID, principal model.Principal) error {
	if !principal.IsAdmin() {
		return ErrPermissionDenied
	}
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if account.Status != model.ControlAccountBaselined {
		return fmt.Errorf("%w: cannot unbaseline from status %s", ErrInvalidTransition, account.Status)
	}

	account.Status = model.ControlAccountActive
	account.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateAccount(ctx, *account))
}

// Close requires every owned work package to be terminal and every commitment
// against the account to be closed or cancelled.
func (s *ControlAccountService) Close(ctx context.Context, id uuid.UUID, principal model.Principal) error {
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(account.ProjectID, model.RoleCostController) {
		return ErrPermissionDenied
	}
	if !account.CanClose() {
		return fmt.Errorf("%w: cannot close from status %s", ErrInvalidTransition, account.Status)
	}

	openWPs, err := s.repo.CountOpenWorkPackages(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if openWPs > 0 {
		return fmt.Errorf("%w: %d work packages are not completed or cancelled", ErrDependencyBlocked, openWPs)
	}
	openCommitments, err := s.repo.CountOpenCommitments(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if openCommitments > 0 {
		return fmt.Errorf("%w: %d commitments are not closed or cancelled", ErrDependencyBlocked, openCommitments)
	}

	account.Status = model.ControlAccountClosed
	account.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateAccount(ctx, *account))
}
