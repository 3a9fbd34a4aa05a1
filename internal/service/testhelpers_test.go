package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/openpmo/costcontrol/internal/config"
	"github.com/openpmo/costcontrol/internal/model"
	"github.com/openpmo/costcontrol/internal/repository"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Policy: config.PolicyConfig{
			ConversionTolerance:     decimal.Zero,
			ReconciliationTolerance: decimal.NewFromFloat(0.01),
			CloseTolerance:          decimal.NewFromFloat(0.01),
			SignificantChangePct:    decimal.NewFromInt(10),
			BaseCurrency:            "USD",
		},
	}
}

func principalWith(projectID uuid.UUID, role string) model.Principal {
	return model.Principal{
		UserID:       uuid.New(),
		ProjectRoles: map[uuid.UUID]string{projectID: role},
	}
}

func adminPrincipal() model.Principal {
	return model.Principal{
		UserID: uuid.New(),
		Roles:  []string{model.RoleAdmin},
	}
}

func d(value string) decimal.Decimal {
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// fakeWBSRepo is an in-memory WBSRepository.
type fakeWBSRepo struct {
	elements       map[uuid.UUID]*model.WBSElement
	budgetItemRefs map[uuid.UUID]int64
	allocationRefs map[uuid.UUID]int64
}

func newFakeWBSRepo() *fakeWBSRepo {
	return &fakeWBSRepo{
		elements:       map[uuid.UUID]*model.WBSElement{},
		budgetItemRefs: map[uuid.UUID]int64{},
		allocationRefs: map[uuid.UUID]int64{},
	}
}

func (f *fakeWBSRepo) GetElement(_ context.Context, id uuid.UUID) (*model.WBSElement, error) {
	element, ok := f.elements[id]
	if !ok || element.IsDeleted() {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *element
	return &clone, nil
}

func (f *fakeWBSRepo) GetElementByCode(_ context.Context, projectID uuid.UUID, code string) (*model.WBSElement, error) {
	for _, element := range f.elements {
		if element.ProjectID == projectID && element.Code == code && !element.IsDeleted() {
			clone := *element
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeWBSRepo) ListChildren(_ context.Context, parentID uuid.UUID) ([]model.WBSElement, error) {
	var children []model.WBSElement
	for _, element := range f.elements {
		if element.ParentID != nil && *element.ParentID == parentID && !element.IsDeleted() {
			children = append(children, *element)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Position < children[j].Position })
	return children, nil
}

func (f *fakeWBSRepo) ListByProject(_ context.Context, projectID uuid.UUID) ([]model.WBSElement, error) {
	var elements []model.WBSElement
	for _, element := range f.elements {
		if element.ProjectID == projectID && !element.IsDeleted() {
			elements = append(elements, *element)
		}
	}
	return elements, nil
}

func (f *fakeWBSRepo) CreateElement(_ context.Context, element model.WBSElement) (*model.WBSElement, error) {
	element.Version = 1
	f.elements[element.ID] = &element
	clone := element
	return &clone, nil
}

func (f *fakeWBSRepo) UpdateElement(_ context.Context, element model.WBSElement) error {
	stored, ok := f.elements[element.ID]
	if !ok || stored.IsDeleted() || stored.Version != element.Version {
		return repository.ErrStaleVersion
	}
	element.Version++
	f.elements[element.ID] = &element
	return nil
}

func (f *fakeWBSRepo) UpdatePositions(_ context.Context, _ uuid.UUID, ids []uuid.UUID) error {
	for position, id := range ids {
		stored, ok := f.elements[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		stored.Position = position
		stored.Version++
	}
	return nil
}

func (f *fakeWBSRepo) SoftDeleteElement(_ context.Context, id uuid.UUID, by uuid.UUID) error {
	stored, ok := f.elements[id]
	if !ok || stored.IsDeleted() {
		return gorm.ErrRecordNotFound
	}
	stored.MarkDeleted(by, time.Now().UTC())
	return nil
}

func (f *fakeWBSRepo) CountActiveChildren(_ context.Context, id uuid.UUID) (int64, error) {
	var count int64
	for _, element := range f.elements {
		if element.ParentID != nil && *element.ParentID == id && !element.IsDeleted() && !element.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

func (f *fakeWBSRepo) CountBudgetItemRefs(_ context.Context, wbsElementID uuid.UUID) (int64, error) {
	return f.budgetItemRefs[wbsElementID], nil
}

func (f *fakeWBSRepo) CountAllocationRefs(_ context.Context, wbsElementID uuid.UUID) (int64, error) {
	return f.allocationRefs[wbsElementID], nil
}

// fakeAccountRepo is an in-memory ControlAccountRepository.
type fakeAccountRepo struct {
	accounts        map[uuid.UUID]*model.ControlAccount
	openWPs         map[uuid.UUID]int64
	openCommitments map[uuid.UUID]int64
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		accounts:        map[uuid.UUID]*model.ControlAccount{},
		openWPs:         map[uuid.UUID]int64{},
		openCommitments: map[uuid.UUID]int64{},
	}
}

func (f *fakeAccountRepo) GetAccount(_ context.Context, id uuid.UUID) (*model.ControlAccount, error) {
	account, ok := f.accounts[id]
	if !ok || account.IsDeleted() {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *account
	return &clone, nil
}

func (f *fakeAccountRepo) GetAccountByCode(_ context.Context, projectID uuid.UUID, code string) (*model.ControlAccount, error) {
	for _, account := range f.accounts {
		if account.ProjectID == projectID && account.Code == code && !account.IsDeleted() {
			clone := *account
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAccountRepo) CreateAccount(_ context.Context, account model.ControlAccount) (*model.ControlAccount, error) {
	account.Version = 1
	f.accounts[account.ID] = &account
	clone := account
	return &clone, nil
}

func (f *fakeAccountRepo) UpdateAccount(_ context.Context, account model.ControlAccount) error {
	stored, ok := f.accounts[account.ID]
	if !ok || stored.IsDeleted() || stored.Version != account.Version {
		return repository.ErrStaleVersion
	}
	account.Version++
	f.accounts[account.ID] = &account
	return nil
}

func (f *fakeAccountRepo) ListAccountsByProject(_ context.Context, projectID uuid.UUID) ([]model.ControlAccount, error) {
	var accounts []model.ControlAccount
	for _, account := range f.accounts {
		if account.ProjectID == projectID && !account.IsDeleted() {
			accounts = append(accounts, *account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

func (f *fakeAccountRepo) CountOpenWorkPackages(_ context.Context, accountID uuid.UUID) (int64, error) {
	return f.openWPs[accountID], nil
}

func (f *fakeAccountRepo) CountOpenCommitments(_ context.Context, accountID uuid.UUID) (int64, error) {
	return f.openCommitments[accountID], nil
}

// fakeBudgetRepo is an in-memory BudgetRepository.
type fakeBudgetRepo struct {
	budgets   map[uuid.UUID]*model.Budget
	items     map[uuid.UUID]*model.BudgetItem
	revisions map[uuid.UUID][]model.BudgetRevision
}

func newFakeBudgetRepo() *fakeBudgetRepo {
	return &fakeBudgetRepo{
		budgets:   map[uuid.UUID]*model.Budget{},
		items:     map[uuid.UUID]*model.BudgetItem{},
		revisions: map[uuid.UUID][]model.BudgetRevision{},
	}
}

func (f *fakeBudgetRepo) GetBudget(_ context.Context, id uuid.UUID) (*model.Budget, error) {
	budget, ok := f.budgets[id]
	if !ok || budget.IsDeleted() {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *budget
	return &clone, nil
}

func (f *fakeBudgetRepo) GetCurrentBaseline(_ context.Context, projectID uuid.UUID) (*model.Budget, error) {
	for _, budget := range f.budgets {
		if budget.ProjectID == projectID && budget.IsCurrentBaseline && !budget.IsDeleted() {
			clone := *budget
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBudgetRepo) CreateBudget(_ context.Context, budget model.Budget) (*model.Budget, error) {
	budget.Version = 1
	f.budgets[budget.ID] = &budget
	clone := budget
	return &clone, nil
}

func (f *fakeBudgetRepo) UpdateBudget(_ context.Context, budget model.Budget) error {
	stored, ok := f.budgets[budget.ID]
	if !ok || stored.IsDeleted() || stored.Version != budget.Version {
		return repository.ErrStaleVersion
	}
	budget.Version++
	f.budgets[budget.ID] = &budget
	return nil
}

func (f *fakeBudgetRepo) SwapBaseline(ctx context.Context, demoteID *uuid.UUID, promote model.Budget) error {
	if demoteID != nil {
		demoted, ok := f.budgets[*demoteID]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		demoted.IsCurrentBaseline = false
		demoted.Version++
	}
	return f.UpdateBudget(ctx, promote)
}

func (f *fakeBudgetRepo) ListItems(_ context.Context, budgetID uuid.UUID) ([]model.BudgetItem, error) {
	var items []model.BudgetItem
	for _, item := range f.items {
		if item.BudgetID == budgetID && !item.IsDeleted() {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (f *fakeBudgetRepo) GetItem(_ context.Context, itemID uuid.UUID) (*model.BudgetItem, error) {
	item, ok := f.items[itemID]
	if !ok || item.IsDeleted() {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *item
	return &clone, nil
}

func (f *fakeBudgetRepo) SaveItemAndBudget(ctx context.Context, item model.BudgetItem, budget model.Budget) error {
	if err := f.UpdateBudget(ctx, budget); err != nil {
		return err
	}
	f.items[item.ID] = &item
	return nil
}

func (f *fakeBudgetRepo) DeleteItemAndBudget(ctx context.Context, itemID uuid.UUID, budget model.Budget) error {
	if err := f.UpdateBudget(ctx, budget); err != nil {
		return err
	}
	delete(f.items, itemID)
	return nil
}

func (f *fakeBudgetRepo) AppendRevision(ctx context.Context, revision model.BudgetRevision, budget model.Budget) error {
	if err := f.UpdateBudget(ctx, budget); err != nil {
		return err
	}
	f.revisions[revision.BudgetID] = append(f.revisions[revision.BudgetID], revision)
	return nil
}

func (f *fakeBudgetRepo) ListRevisions(_ context.Context, budgetID uuid.UUID) ([]model.BudgetRevision, error) {
	return f.revisions[budgetID], nil
}

// staticRates is a RateProvider with fixed rates.
type staticRates map[string]decimal.Decimal

func (r staticRates) GetRate(_ context.Context, currency string, _ time.Time) (decimal.Decimal, error) {
	rate, ok := r[currency]
	if !ok {
		return decimal.Zero, gorm.ErrRecordNotFound
	}
	return rate, nil
}

// fakePackageRepo is an in-memory implementation of both ConversionRepository
// and WorkPackageRepository.
type fakePackageRepo struct {
	planning     map[uuid.UUID]*model.PlanningPackage
	workPackages map[uuid.UUID]*model.WorkPackage
	elements     map[uuid.UUID]*model.WBSElement
}

func newFakePackageRepo() *fakePackageRepo {
	return &fakePackageRepo{
		planning:     map[uuid.UUID]*model.PlanningPackage{},
		workPackages: map[uuid.UUID]*model.WorkPackage{},
		elements:     map[uuid.UUID]*model.WBSElement{},
	}
}

func (f *fakePackageRepo) GetPlanningPackage(_ context.Context, id uuid.UUID) (*model.PlanningPackage, error) {
	pp, ok := f.planning[id]
	if !ok || pp.IsDeleted() {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *pp
	return &clone, nil
}

func (f *fakePackageRepo) UpdatePlanningPackage(_ context.Context, pp model.PlanningPackage) error {
	stored, ok := f.planning[pp.ID]
	if !ok || stored.Version != pp.Version {
		return repository.ErrStaleVersion
	}
	pp.Version++
	f.planning[pp.ID] = &pp
	return nil
}

func (f *fakePackageRepo) GetWBSElement(_ context.Context, id uuid.UUID) (*model.WBSElement, error) {
	element, ok := f.elements[id]
	if !ok || element.IsDeleted() {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *element
	return &clone, nil
}

func (f *fakePackageRepo) ListChildren(_ context.Context, parentID uuid.UUID) ([]model.WBSElement, error) {
	var children []model.WBSElement
	for _, element := range f.elements {
		if element.ParentID != nil && *element.ParentID == parentID && !element.IsDeleted() {
			children = append(children, *element)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Position < children[j].Position })
	return children, nil
}

func (f *fakePackageRepo) GetWorkPackage(_ context.Context, id uuid.UUID) (*model.WorkPackage, error) {
	wp, ok := f.workPackages[id]
	if !ok || wp.IsDeleted() {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *wp
	return &clone, nil
}

func (f *fakePackageRepo) UpdateWorkPackage(_ context.Context, wp model.WorkPackage) error {
	stored, ok := f.workPackages[wp.ID]
	if !ok || stored.Version != wp.Version {
		return repository.ErrStaleVersion
	}
	wp.Version++
	f.workPackages[wp.ID] = &wp
	return nil
}

func (f *fakePackageRepo) ListWorkPackagesByIDs(_ context.Context, ids []uuid.UUID) ([]model.WorkPackage, error) {
	var packages []model.WorkPackage
	for _, id := range ids {
		if wp, ok := f.workPackages[id]; ok && !wp.IsDeleted() {
			packages = append(packages, *wp)
		}
	}
	return packages, nil
}

func (f *fakePackageRepo) ConvertPlanningPackage(_ context.Context, converted model.PlanningPackage, elements []model.WBSElement, packages []model.WorkPackage) error {
	stored, ok := f.planning[converted.ID]
	if !ok || stored.Version != converted.Version {
		return repository.ErrStaleVersion
	}
	for _, element := range elements {
		clone := element
		clone.Version = 1
		f.elements[element.ID] = &clone
	}
	for _, wp := range packages {
		clone := wp
		clone.Version = 1
		f.workPackages[wp.ID] = &clone
	}
	converted.Version += 2 // passes through CONVERTING
	f.planning[converted.ID] = &converted
	return nil
}

func (f *fakePackageRepo) GroupWorkPackages(_ context.Context, grouped model.PlanningPackage, element model.WBSElement, retired []model.WorkPackage) error {
	elementClone := element
	elementClone.Version = 1
	f.elements[element.ID] = &elementClone
	groupedClone := grouped
	groupedClone.Version = 1
	f.planning[grouped.ID] = &groupedClone
	for _, wp := range retired {
		stored, ok := f.workPackages[wp.ID]
		if !ok || stored.Version != wp.Version {
			return repository.ErrStaleVersion
		}
		clone := wp
		clone.Version++
		f.workPackages[wp.ID] = &clone
	}
	return nil
}

// fakeCommitmentRepo is an in-memory CommitmentRepository.
type fakeCommitmentRepo struct {
	commitments map[uuid.UUID]*model.Commitment
	items       map[uuid.UUID][]model.CommitmentItem
	revisions   map[uuid.UUID][]model.CommitmentRevision
	allocations map[uuid.UUID][]model.CommitmentWorkPackageAllocation
	elements    map[uuid.UUID]*model.WBSElement
}

func newFakeCommitmentRepo() *fakeCommitmentRepo {
	return &fakeCommitmentRepo{
		commitments: map[uuid.UUID]*model.Commitment{},
		items:       map[uuid.UUID][]model.CommitmentItem{},
		revisions:   map[uuid.UUID][]model.CommitmentRevision{},
		allocations: map[uuid.UUID][]model.CommitmentWorkPackageAllocation{},
		elements:    map[uuid.UUID]*model.WBSElement{},
	}
}

func (f *fakeCommitmentRepo) GetCommitment(_ context.Context, id uuid.UUID) (*model.Commitment, error) {
	commitment, ok := f.commitments[id]
	if !ok || commitment.IsDeleted() {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *commitment
	return &clone, nil
}

func (f *fakeCommitmentRepo) CreateCommitment(_ context.Context, commitment model.Commitment) (*model.Commitment, error) {
	commitment.Version = 1
	f.commitments[commitment.ID] = &commitment
	clone := commitment
	return &clone, nil
}

func (f *fakeCommitmentRepo) UpdateCommitment(_ context.Context, commitment model.Commitment) error {
	stored, ok := f.commitments[commitment.ID]
	if !ok || stored.IsDeleted() || stored.Version != commitment.Version {
		return repository.ErrStaleVersion
	}
	commitment.Version++
	f.commitments[commitment.ID] = &commitment
	return nil
}

func (f *fakeCommitmentRepo) ListCommitmentItems(_ context.Context, commitmentID uuid.UUID) ([]model.CommitmentItem, error) {
	return f.items[commitmentID], nil
}

func (f *fakeCommitmentRepo) AddCommitmentItem(ctx context.Context, item model.CommitmentItem, commitment model.Commitment) error {
	if err := f.UpdateCommitment(ctx, commitment); err != nil {
		return err
	}
	f.items[item.CommitmentID] = append(f.items[item.CommitmentID], item)
	return nil
}

func (f *fakeCommitmentRepo) ListCommitmentRevisions(_ context.Context, commitmentID uuid.UUID) ([]model.CommitmentRevision, error) {
	return f.revisions[commitmentID], nil
}

func (f *fakeCommitmentRepo) AppendCommitmentRevision(ctx context.Context, revision model.CommitmentRevision, commitment model.Commitment) error {
	if err := f.UpdateCommitment(ctx, commitment); err != nil {
		return err
	}
	f.revisions[revision.CommitmentID] = append(f.revisions[revision.CommitmentID], revision)
	return nil
}

func (f *fakeCommitmentRepo) ListAllocations(_ context.Context, commitmentID uuid.UUID) ([]model.CommitmentWorkPackageAllocation, error) {
	return f.allocations[commitmentID], nil
}

func (f *fakeCommitmentRepo) AddAllocation(ctx context.Context, allocation model.CommitmentWorkPackageAllocation, commitment model.Commitment) error {
	if err := f.UpdateCommitment(ctx, commitment); err != nil {
		return err
	}
	f.allocations[allocation.CommitmentID] = append(f.allocations[allocation.CommitmentID], allocation)
	return nil
}

func (f *fakeCommitmentRepo) GetWBSElement(_ context.Context, id uuid.UUID) (*model.WBSElement, error) {
	element, ok := f.elements[id]
	if !ok || element.IsDeleted() {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *element
	return &clone, nil
}

// fakeEVMRepo is an in-memory EVMRepository.
type fakeEVMRepo struct {
	accounts     []model.ControlAccount
	workPackages map[uuid.UUID][]model.WorkPackage
	postings     []model.CostPosting
	records      []model.EVMRecord
}

func newFakeEVMRepo() *fakeEVMRepo {
	return &fakeEVMRepo{workPackages: map[uuid.UUID][]model.WorkPackage{}}
}

func (f *fakeEVMRepo) ListAccountsByProject(_ context.Context, projectID uuid.UUID) ([]model.ControlAccount, error) {
	var accounts []model.ControlAccount
	for _, account := range f.accounts {
		if account.ProjectID == projectID {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

func (f *fakeEVMRepo) ListWorkPackagesByAccount(_ context.Context, accountID uuid.UUID) ([]model.WorkPackage, error) {
	return f.workPackages[accountID], nil
}

func (f *fakeEVMRepo) SumActualCost(_ context.Context, accountID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, posting := range f.postings {
		if posting.ControlAccountID == accountID && !posting.PostedAt.After(asOf) {
			total = total.Add(posting.Amount)
		}
	}
	return total, nil
}

func (f *fakeEVMRepo) CountPostings(_ context.Context, accountID uuid.UUID, asOf time.Time) (int64, error) {
	var count int64
	for _, posting := range f.postings {
		if posting.ControlAccountID == accountID && !posting.PostedAt.After(asOf) {
			count++
		}
	}
	return count, nil
}

func (f *fakeEVMRepo) InsertPosting(_ context.Context, posting model.CostPosting) error {
	f.postings = append(f.postings, posting)
	return nil
}

func (f *fakeEVMRepo) InsertRecords(_ context.Context, records []model.EVMRecord) error {
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeEVMRepo) LatestRecordsPerAccount(_ context.Context, projectID uuid.UUID, asOf time.Time) ([]model.EVMRecord, error) {
	latest := map[uuid.UUID]model.EVMRecord{}
	for _, record := range f.records {
		if record.ProjectID != projectID || record.DataDate.After(asOf) {
			continue
		}
		current, ok := latest[record.ControlAccountID]
		if !ok || record.DataDate.After(current.DataDate) {
			latest[record.ControlAccountID] = record
		}
	}
	var records []model.EVMRecord
	for _, record := range latest {
		records = append(records, record)
	}
	return records, nil
}

func (f *fakeEVMRepo) ListRecordsByAccount(_ context.Context, accountID uuid.UUID) ([]model.EVMRecord, error) {
	var records []model.EVMRecord
	for _, record := range f.records {
		if record.ControlAccountID == accountID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].DataDate.Before(records[j].DataDate) })
	return records, nil
}
