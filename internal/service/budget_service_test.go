package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpmo/costcontrol/internal/model"
)

func newBudgetService(repo *fakeBudgetRepo) *BudgetService {
	return NewBudgetService(repo, staticRates{"EUR": d("1.08")}, testConfig())
}

func TestBudgetService_Create_BaseAndForeignCurrency(t *testing.T) {
	repo := newFakeBudgetRepo()
	svc := newBudgetService(repo)
	projectID := uuid.New()
	principal := principalWith(projectID, model.RoleCostController)

	base, err := svc.Create(context.Background(), CreateBudgetInput{
		ProjectID: projectID,
		Name:      "Capex 2026",
		Principal: principal,
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", base.Currency)
	assert.True(t, base.ExchangeRate.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, model.BudgetDraft, base.Status)
	assert.Equal(t, 1, base.BudgetVersion)

	foreign, err := svc.Create(context.Background(), CreateBudgetInput{
		ProjectID: projectID,
		Name:      "Capex 2026 EUR",
		Currency:  "eur",
		Principal: principal,
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", foreign.Currency)
	assert.True(t, foreign.ExchangeRate.Equal(d("1.08")))

	_, err = svc.Create(context.Background(), CreateBudgetInput{
		ProjectID: projectID,
		Name:      "No rate",
		Currency:  "JPY",
		Principal: principal,
	})
	require.ErrorIs(t, err, ErrPersistence)
}

func TestBudgetService_AddItem_PropagatesTotal(t *testing.T) {
	repo := newFakeBudgetRepo()
	svc := newBudgetService(repo)
	projectID := uuid.New()
	principal := principalWith(projectID, model.RoleCostController)

	budget, err := svc.Create(context.Background(), CreateBudgetInput{
		ProjectID: projectID,
		Name:      "Capex",
		Principal: principal,
	})
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), BudgetItemInput{
		BudgetID:    budget.ID,
		Description: "Steel",
		Quantity:    d("10"),
		UnitRate:    d("60"),
		Principal:   principal,
	})
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), BudgetItemInput{
		BudgetID:    budget.ID,
		Description: "Labour",
		Quantity:    d("40"),
		UnitRate:    d("10"),
		Principal:   principal,
	})
	require.NoError(t, err)

	stored := repo.budgets[budget.ID]
	assert.True(t, stored.TotalAmount.Equal(d("1000")), "total is %s", stored.TotalAmount)

	// Zero quantity is invalid.
	_, err = svc.AddItem(context.Background(), BudgetItemInput{
		BudgetID:    budget.ID,
		Description: "Nothing",
		Quantity:    decimal.Zero,
		UnitRate:    d("5"),
		Principal:   principal,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestBudgetService_Submit_RequiresItemsAndReconciliation(t *testing.T) {
	repo := newFakeBudgetRepo()
	svc := newBudgetService(repo)
	projectID := uuid.New()
	principal := principalWith(projectID, model.RoleCostController)

	budget, err := svc.Create(context.Background(), CreateBudgetInput{
		ProjectID: projectID,
		Name:      "Capex",
		Principal: principal,
	})
	require.NoError(t, err)

	err = svc.SubmitForApproval(context.Background(), budget.ID, principal)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "empty budget")

	_, err = svc.AddItem(context.Background(), BudgetItemInput{
		BudgetID:    budget.ID,
		Description: "Steel",
		Quantity:    d("10"),
		UnitRate:    d("100"),
		Principal:   principal,
	})
	require.NoError(t, err)

	// Skew the stored total so the item sum no longer reconciles.
	repo.budgets[budget.ID].TotalAmount = d("900")
	err = svc.SubmitForApproval(context.Background(), budget.ID, principal)
	require.ErrorIs(t, err, ErrInvariantViolation)

	repo.budgets[budget.ID].TotalAmount = d("1000")
	require.NoError(t, svc.SubmitForApproval(context.Background(), budget.ID, principal))
	assert.Equal(t, model.BudgetSubmitted, repo.budgets[budget.ID].Status)
}

func TestBudgetService_FullLifecycleWithRevision(t *testing.T) {
	repo := newFakeBudgetRepo()
	svc := newBudgetService(repo)
	projectID := uuid.New()
	controller := principalWith(projectID, model.RoleCostController)
	manager := principalWith(projectID, model.RoleProjectManager)
	ctx := context.Background()

	budget, err := svc.Create(ctx, CreateBudgetInput{
		ProjectID: projectID,
		Name:      "Baseline budget",
		Principal: controller,
	})
	require.NoError(t, err)

	item, err := svc.AddItem(ctx, BudgetItemInput{
		BudgetID:    budget.ID,
		Description: "Works",
		Quantity:    d("100"),
		UnitRate:    d("10"),
		Principal:   controller,
	})
	require.NoError(t, err)

	require.NoError(t, svc.SubmitForApproval(ctx, budget.ID, controller))
	require.NoError(t, svc.Approve(ctx, budget.ID, manager))
	require.NoError(t, svc.SetAsBaseline(ctx, budget.ID, manager))
	assert.True(t, repo.budgets[budget.ID].IsCurrentBaseline)
	require.NoError(t, svc.Lock(ctx, budget.ID, manager))
	assert.Equal(t, model.BudgetLocked, repo.budgets[budget.ID].Status)

	// Direct mutation is frozen after lock.
	_, err = svc.AddItem(ctx, BudgetItemInput{
		BudgetID:    budget.ID,
		Description: "Late",
		Quantity:    d("1"),
		UnitRate:    d("1"),
		Principal:   controller,
	})
	require.ErrorIs(t, err, ErrInvalidTransition)
	err = svc.UpdateItem(ctx, item.ID, d("120"), d("10"), controller)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// Revision to 1200 opens the window and bumps the budget version.
	revision, err := svc.CreateRevision(ctx, budget.ID, "scope growth", d("1200"), manager)
	require.NoError(t, err)
	assert.Equal(t, 1, revision.RevisionNumber)
	assert.True(t, revision.PreviousTotal.Equal(d("1000")))
	assert.True(t, revision.NewTotal.Equal(d("1200")))
	assert.Equal(t, 2, repo.budgets[budget.ID].BudgetVersion)
	assert.True(t, repo.budgets[budget.ID].RevisionWindowOpen)

	// A quantity/rate edit that does not reconcile with 1200 is rejected.
	err = svc.UpdateItem(ctx, item.ID, d("110"), d("10"), controller)
	require.ErrorIs(t, err, ErrInvariantViolation)

	// 120 x 10 = 1200 reconciles.
	require.NoError(t, svc.UpdateItem(ctx, item.ID, d("120"), d("10"), controller))
	require.NoError(t, svc.CloseRevisionWindow(ctx, budget.ID, manager))
	assert.False(t, repo.budgets[budget.ID].RevisionWindowOpen)

	// The revision record is immutable history.
	revisions, err := repo.ListRevisions(ctx, budget.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 1)
}

func TestBudgetService_RejectAndRework(t *testing.T) {
	repo := newFakeBudgetRepo()
	svc := newBudgetService(repo)
	projectID := uuid.New()
	controller := principalWith(projectID, model.RoleCostController)
	manager := principalWith(projectID, model.RoleProjectManager)
	ctx := context.Background()

	budget, err := svc.Create(ctx, CreateBudgetInput{ProjectID: projectID, Name: "B", Principal: controller})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, BudgetItemInput{
		BudgetID:    budget.ID,
		Description: "Works",
		Quantity:    d("1"),
		UnitRate:    d("500"),
		Principal:   controller,
	})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitForApproval(ctx, budget.ID, controller))

	err = svc.Reject(ctx, budget.ID, "  ", manager)
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, svc.Reject(ctx, budget.ID, "needs rework", manager))
	assert.Equal(t, model.BudgetRejected, repo.budgets[budget.ID].Status)
	require.NotNil(t, repo.budgets[budget.ID].RejectionReason)

	require.NoError(t, svc.ReturnToDraft(ctx, budget.ID, controller))
	assert.Equal(t, model.BudgetDraft, repo.budgets[budget.ID].Status)
}

func TestBudgetService_SetAsBaseline_DemotesPrior(t *testing.T) {
	repo := newFakeBudgetRepo()
	svc := newBudgetService(repo)
	projectID := uuid.New()
	controller := principalWith(projectID, model.RoleCostController)
	manager := principalWith(projectID, model.RoleProjectManager)
	ctx := context.Background()

	approve := func() uuid.UUID {
		budget, err := svc.Create(ctx, CreateBudgetInput{ProjectID: projectID, Name: "B", Principal: controller})
		require.NoError(t, err)
		_, err = svc.AddItem(ctx, BudgetItemInput{
			BudgetID:    budget.ID,
			Description: "Works",
			Quantity:    d("1"),
			UnitRate:    d("100"),
			Principal:   controller,
		})
		require.NoError(t, err)
		require.NoError(t, svc.SubmitForApproval(ctx, budget.ID, controller))
		require.NoError(t, svc.Approve(ctx, budget.ID, manager))
		return budget.ID
	}

	first := approve()
	second := approve()

	require.NoError(t, svc.SetAsBaseline(ctx, first, manager))
	require.NoError(t, svc.SetAsBaseline(ctx, second, manager))

	assert.False(t, repo.budgets[first].IsCurrentBaseline)
	assert.True(t, repo.budgets[second].IsCurrentBaseline)
	// The demoted budget keeps its status and history.
	assert.Equal(t, model.BudgetBaselined, repo.budgets[first].Status)
}

// staleReadBudgetRepo serves reads one version behind the store, as if a
// concurrent writer committed between this caller's read and write.
type staleReadBudgetRepo struct {
	*fakeBudgetRepo
}

func (r staleReadBudgetRepo) GetBudget(ctx context.Context, id uuid.UUID) (*model.Budget, error) {
	budget, err := r.fakeBudgetRepo.GetBudget(ctx, id)
	if err != nil {
		return nil, err
	}
	budget.Version--
	return budget, nil
}

func TestBudgetService_ConcurrentUpdateSurfacesConflict(t *testing.T) {
	repo := newFakeBudgetRepo()
	svc := newBudgetService(repo)
	projectID := uuid.New()
	controller := principalWith(projectID, model.RoleCostController)
	ctx := context.Background()

	budget, err := svc.Create(ctx, CreateBudgetInput{ProjectID: projectID, Name: "B", Principal: controller})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, BudgetItemInput{
		BudgetID:    budget.ID,
		Description: "Works",
		Quantity:    d("1"),
		UnitRate:    d("100"),
		Principal:   controller,
	})
	require.NoError(t, err)

	stale := NewBudgetService(staleReadBudgetRepo{repo}, staticRates{}, testConfig())
	err = stale.SubmitForApproval(ctx, budget.ID, controller)
	require.ErrorIs(t, err, ErrConcurrencyConflict)

	// The losing write left no trace and a fresh read retries cleanly.
	assert.Equal(t, model.BudgetDraft, repo.budgets[budget.ID].Status)
	require.NoError(t, svc.SubmitForApproval(ctx, budget.ID, controller))
}

func TestBudgetService_RemoveItem_DraftOnly(t *testing.T) {
	repo := newFakeBudgetRepo()
	svc := newBudgetService(repo)
	projectID := uuid.New()
	controller := principalWith(projectID, model.RoleCostController)
	ctx := context.Background()

	budget, err := svc.Create(ctx, CreateBudgetInput{ProjectID: projectID, Name: "B", Principal: controller})
	require.NoError(t, err)
	item, err := svc.AddItem(ctx, BudgetItemInput{
		BudgetID:    budget.ID,
		Description: "Works",
		Quantity:    d("2"),
		UnitRate:    d("50"),
		Principal:   controller,
	})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveItem(ctx, item.ID, controller))
	assert.True(t, repo.budgets[budget.ID].TotalAmount.IsZero())

	_, err = repo.GetItem(ctx, item.ID)
	require.ErrorIs(t, mapRepoErr(err), ErrNotFound)
}
