package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openpmo/costcontrol/internal/config"
	"github.com/openpmo/costcontrol/internal/model"
)

// CommitmentRepository is the persistence boundary for commitments, their
// lines, revisions and work-package allocations.
type CommitmentRepository interface {
	GetCommitment(ctx context.Context, id uuid.UUID) (*model.Commitment, error)
	CreateCommitment(ctx context.Context, commitment model.Commitment) (*model.Commitment, error)
	UpdateCommitment(ctx context.Context, commitment model.Commitment) error
	ListCommitmentItems(ctx context.Context, commitmentID uuid.UUID) ([]model.CommitmentItem, error)
	AddCommitmentItem(ctx context.Context, item model.CommitmentItem, commitment model.Commitment) error
	ListCommitmentRevisions(ctx context.Context, commitmentID uuid.UUID) ([]model.CommitmentRevision, error)
	AppendCommitmentRevision(ctx context.Context, revision model.CommitmentRevision, commitment model.Commitment) error
	ListAllocations(ctx context.Context, commitmentID uuid.UUID) ([]model.CommitmentWorkPackageAllocation, error)
	AddAllocation(ctx context.Context, allocation model.CommitmentWorkPackageAllocation, commitment model.Commitment) error
	GetWBSElement(ctx context.Context, id uuid.UUID) (*model.WBSElement, error)
}

type CommitmentService struct {
	repo CommitmentRepository
	cfg  *config.Config
}

func NewCommitmentService(repo CommitmentRepository, cfg *config.Config) *CommitmentService {
	return &CommitmentService{repo: repo, cfg: cfg}
}

type CreateCommitmentInput struct {
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
	Principal         model.Principal
}

func (s *CommitmentService) Create(ctx context.Context, input CreateCommitmentInput) (*model.Commitment, error) {
	if !input.Principal.HasProjectAccess(input.ProjectID, model.RoleCostController) {
		return nil, ErrPermissionDenied
	}
	if strings.TrimSpace(input.Number) == "" {
		return nil, fmt.Errorf("%w: commitment number is required", ErrValidation)
	}
	if input.IsFixedPrice == input.IsTimeAndMaterial {
		return nil, fmt.Errorf("%w: exactly one of fixed-price or time-and-material must be set", ErrValidation)
	}
	if input.StartDate.Before(input.ContractDate) {
		return nil, fmt.Errorf("%w: start date must not precede contract date", ErrValidation)
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, fmt.Errorf("%w: end date must not precede start date", ErrValidation)
	}
	if !input.OriginalAmount.IsPositive() {
		return nil, fmt.Errorf("%w: original amount must be positive", ErrValidation)
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.cfg.Policy.BaseCurrency
	}

	commitment := model.Commitment{
		ID:                uuid.New(),
		ProjectID:         input.ProjectID,
		ControlAccountID:  input.ControlAccountID,
		ContractorID:      input.ContractorID,
		Number:            strings.TrimSpace(input.Number),
		Title:             strings.TrimSpace(input.Title),
		IsFixedPrice:      input.IsFixedPrice,
		IsTimeAndMaterial: input.IsTimeAndMaterial,
		ContractDate:      input.ContractDate,
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
		Currency:          currency,
		OriginalAmount:    input.OriginalAmount,
		RevisedAmount:     input.OriginalAmount,
		CommittedAmount:   input.OriginalAmount,
		InvoicedAmount:    decimal.Zero,
		PaidAmount:        decimal.Zero,
		RetentionAmount:   decimal.Zero,
		Status:            model.CommitmentDraft,
	}
	commitment.CreatedBy = input.Principal.UserID

	created, err := s.repo.CreateCommitment(ctx, commitment)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return created, nil
}

type CommitmentItemInput struct {
	CommitmentID uuid.UUID
	Description  string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	Discount     decimal.Decimal
	TaxRate      decimal.Decimal
	Principal    model.Principal
}

// AddItem attaches a contract line while the commitment is still in Draft.
func (s *CommitmentService) AddItem(ctx context.Context, input CommitmentItemInput) (*model.CommitmentItem, error) {
	commitment, err := s.repo.GetCommitment(ctx, input.CommitmentID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !input.Principal.HasProjectAccess(commitment.ProjectID, model.RoleCostController) {
		return nil, ErrPermissionDenied
	}
	if commitment.Status != model.CommitmentDraft {
		return nil, fmt.Errorf("%w: items can only be added in %s, commitment is %s", ErrInvalidTransition, model.CommitmentDraft, commitment.Status)
	}
	if !input.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if input.UnitPrice.IsNegative() || input.Discount.IsNegative() || input.TaxRate.IsNegative() {
		return nil, fmt.Errorf("%w: unit price, discount and tax rate must not be negative", ErrValidation)
	}

	item := model.CommitmentItem{
		ID:           uuid.New(),
		CommitmentID: commitment.ID,
		Description:  strings.TrimSpace(input.Description),
		Quantity:     input.Quantity,
		UnitPrice:    input.UnitPrice,
		Discount:     input.Discount,
		TaxRate:      input.TaxRate,
	}
	item.CreatedBy = input.Principal.UserID

	commitment.UpdatedBy = &input.Principal.UserID
	if err := s.repo.AddCommitmentItem(ctx, item, *commitment); err != nil {
		return nil, mapRepoErr(err)
	}
	return &item, nil
}

func (s *CommitmentService) SubmitForApproval(ctx context.Context, id uuid.UUID, principal model.Principal) error {
	commitment, err := s.repo.GetCommitment(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(commitment.ProjectID, model.RoleCostController) {
		return ErrPermissionDenied
	}
	if commitment.Status != model.CommitmentDraft {
		return fmt.Errorf("%w: cannot submit from status %s", ErrInvalidTransition, commitment.Status)
	}

	commitment.Status = model.CommitmentSubmitted
	commitment.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateCommitment(ctx, *commitment))
}

func (s *CommitmentService) Approve(ctx context.Context, id uuid.UUID, principal model.Principal) error {
	commitment, err := s.repo.GetCommitment(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(commitment.ProjectID, model.RoleProjectManager) {
		return ErrPermissionDenied
	}
	if commitment.Status != model.CommitmentSubmitted {
		return fmt.Errorf("%w: cannot approve from status %s", ErrInvalidTransition, commitment.Status)
	}

	now := time.Now().UTC()
	commitment.Status = model.CommitmentApproved
	commitment.ApprovedBy = &principal.UserID
	commitment.ApprovedAt = &now
	commitment.RejectionReason = nil
	commitment.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateCommitment(ctx, *commitment))
}

func (s *CommitmentService) Reject(ctx context.Context, id uuid.UUID, reason string, principal model.Principal) error {
	commitment, err := s.repo.GetCommitment(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(commitment.ProjectID, model.RoleProjectManager) {
		return ErrPermissionDenied
	}
	if commitment.Status != model.CommitmentSubmitted {
		return fmt.Errorf("%w: cannot reject from status %s", ErrInvalidTransition, commitment.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	commitment.Status = model.CommitmentDraft
	commitment.RejectionReason = &reason
	commitment.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateCommitment(ctx, *commitment))
}

func (s *CommitmentService) Activate(ctx context.Context, id uuid.UUID, principal model.Principal) error {
	commitment, err := s.repo.GetCommitment(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(commitment.ProjectID, model.RoleCostController) {
		return ErrPermissionDenied
	}
	if commitment.Status != model.CommitmentApproved {
		return fmt.Errorf("%w: cannot activate from status %s", ErrInvalidTransition, commitment.Status)
	}

	commitment.Status = model.CommitmentActive
	commitment.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateCommitment(ctx, *commitment))
}

// Revise changes the committed amount of an active commitment through an
// appended revision. The commitment never leaves Active.
func (s *CommitmentService) Revise(ctx context.Context, id uuid.UUID, newAmount decimal.Decimal, reason, changeOrderRef string, principal model.Principal) (*model.CommitmentRevision, error) {
	commitment, err := s.repo.GetCommitment(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !principal.HasProjectAccess(commitment.ProjectID, model.RoleProjectManager) {
		return nil, ErrPermissionDenied
	}
	if commitment.Status != model.CommitmentActive {
		return nil, fmt.Errorf("%w: revisions require an active commitment, status is %s", ErrInvalidTransition, commitment.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: revision reason is required", ErrValidation)
	}
	if !newAmount.IsPositive() {
		return nil, fmt.Errorf("%w: revised amount must be positive", ErrValidation)
	}

	previous := commitment.CommittedAmount
	change := newAmount.Sub(previous)
	changePct := decimal.Zero
	if !previous.IsZero() {
		changePct = change.Div(previous).Mul(hundred)
	}

	revisions, err := s.repo.ListCommitmentRevisions(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	revision := model.CommitmentRevision{
		ID:                  uuid.New(),
		CommitmentID:        commitment.ID,
		RevisionNumber:      len(revisions) + 1,
		PreviousAmount:      previous,
		NewAmount:           newAmount,
		ChangeAmount:        change,
		ChangePercentage:    changePct,
		IsSignificantChange: changePct.Abs().GreaterThan(s.cfg.Policy.SignificantChangePct),
		Reason:              reason,
		ChangeOrderRef:      strings.TrimSpace(changeOrderRef),
		ApprovedBy:          principal.UserID,
	}

	commitment.RevisedAmount = newAmount
	commitment.CommittedAmount = newAmount
	commitment.UpdatedBy = &principal.UserID
	if err := s.repo.AppendCommitmentRevision(ctx, revision, *commitment); err != nil {
		return nil, mapRepoErr(err)
	}
	return &revision, nil
}

// AddWorkPackageAllocation distributes committed funds to a WBS work package.
// The allocation sum may never exceed the committed amount; a violating call
// leaves the prior allocations untouched.
func (s *CommitmentService) AddWorkPackageAllocation(ctx context.Context, id, wbsElementID uuid.UUID, amount decimal.Decimal, principal model.Principal) (*model.CommitmentWorkPackageAllocation, error) {
	commitment, err := s.repo.GetCommitment(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !principal.HasProjectAccess(commitment.ProjectID, model.RoleCostController) {
		return nil, ErrPermissionDenied
	}
	if commitment.Status != model.CommitmentActive && commitment.Status != model.CommitmentApproved {
		return nil, fmt.Errorf("%w: allocations require an approved or active commitment, status is %s", ErrInvalidTransition, commitment.Status)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: allocation amount must be positive", ErrValidation)
	}

	element, err := s.repo.GetWBSElement(ctx, wbsElementID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if element.Type != model.WBSTypeWorkPackage {
		return nil, fmt.Errorf("%w: allocations target work packages, %s is a %s", ErrValidation, element.Code, element.Type)
	}
	if element.ProjectID != commitment.ProjectID {
		return nil, fmt.Errorf("%w: work package belongs to a different project", ErrValidation)
	}

	allocations, err := s.repo.ListAllocations(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	allocated := model.AllocationsTotal(allocations)
	if allocated.Add(amount).GreaterThan(commitment.CommittedAmount) {
		return nil, fmt.Errorf("%w: over-allocation: %s already allocated of %s committed, requested %s",
			ErrInvariantViolation, allocated, commitment.CommittedAmount, amount)
	}

	allocation := model.CommitmentWorkPackageAllocation{
		ID:           uuid.New(),
		CommitmentID: commitment.ID,
		WBSElementID: wbsElementID,
		Amount:       amount,
		CreatedBy:    principal.UserID,
	}
	if err := s.repo.AddAllocation(ctx, allocation, *commitment); err != nil {
		return nil, mapRepoErr(err)
	}
	return &allocation, nil
}

type InvoiceResult struct {
	Commitment      model.Commitment
	IsOverCommitted bool
}

// RecordInvoice posts invoice, payment and retention figures against an
// active commitment. Over-commitment is surfaced to the caller but does not
// block the write: real contracts do go over and must still be recorded.
func (s *CommitmentService) RecordInvoice(ctx context.Context, id uuid.UUID, invoiceAmount, paidAmount, retentionAmount decimal.Decimal, principal model.Principal) (*InvoiceResult, error) {
	commitment, err := s.repo.GetCommitment(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !principal.HasProjectAccess(commitment.ProjectID, model.RoleCostController) {
		return nil, ErrPermissionDenied
	}
	if commitment.Status != model.CommitmentActive {
		return nil, fmt.Errorf("%w: invoices require an active commitment, status is %s", ErrInvalidTransition, commitment.Status)
	}
	if invoiceAmount.IsNegative() || paidAmount.IsNegative() || retentionAmount.IsNegative() {
		return nil, fmt.Errorf("%w: invoice, paid and retention amounts must not be negative", ErrValidation)
	}

	invoiced := commitment.InvoicedAmount.Add(invoiceAmount)
	paid := commitment.PaidAmount.Add(paidAmount)
	if paid.GreaterThan(invoiced.Sub(retentionAmount)) {
		return nil, fmt.Errorf("%w: paid amount %s would exceed invoiced %s less retention %s",
			ErrInvariantViolation, paid, invoiced, retentionAmount)
	}

	commitment.InvoicedAmount = invoiced
	commitment.PaidAmount = paid
	commitment.RetentionAmount = retentionAmount
	commitment.InvoiceCount++
	commitment.UpdatedBy = &principal.UserID
	if err := s.repo.UpdateCommitment(ctx, *commitment); err != nil {
		return nil, mapRepoErr(err)
	}

	return &InvoiceResult{
		Commitment:      *commitment,
		IsOverCommitted: commitment.IsOverCommitted(),
	}, nil
}

// Close is legal once invoiced and paid amounts reconcile within the policy
// tolerance, retention aside.
func (s *CommitmentService) Close(ctx context.Context, id uuid.UUID, principal model.Principal) error {
	commitment, err := s.repo.GetCommitment(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(commitment.ProjectID, model.RoleCostController) {
		return ErrPermissionDenied
	}
	if commitment.Status != model.CommitmentActive {
		return fmt.Errorf("%w: cannot close from status %s", ErrInvalidTransition, commitment.Status)
	}

	outstanding := commitment.InvoicedAmount.Sub(commitment.PaidAmount).Sub(commitment.RetentionAmount).Abs()
	if outstanding.GreaterThan(s.cfg.Policy.CloseTolerance) {
		return fmt.Errorf("%w: %s remains unreconciled between invoiced and paid amounts", ErrDependencyBlocked, outstanding)
	}

	commitment.Status = model.CommitmentClosed
	commitment.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateCommitment(ctx, *commitment))
}

// Cancel voids a commitment that never reached execution. Once any invoice
// has been recorded the commitment can only be closed, not cancelled.
func (s *CommitmentService) Cancel(ctx context.Context, id uuid.UUID, reason string, principal model.Principal) error {
	commitment, err := s.repo.GetCommitment(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(commitment.ProjectID, model.RoleCostController) {
		return ErrPermissionDenied
	}
	if !commitment.Status.Cancellable() {
		return fmt.Errorf("%w: cannot cancel from status %s", ErrInvalidTransition, commitment.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: cancellation reason is required", ErrValidation)
	}
	if commitment.InvoiceCount > 0 {
		return fmt.Errorf("%w: commitment has %d recorded invoices", ErrDependencyBlocked, commitment.InvoiceCount)
	}

	commitment.Status = model.CommitmentCancelled
	commitment.RejectionReason = &reason
	commitment.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateCommitment(ctx, *commitment))
}
