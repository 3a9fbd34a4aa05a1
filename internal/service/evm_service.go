package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openpmo/costcontrol/internal/model"
)

// EVMRepository is the persistence boundary for earned-value data. Records
// are append-only; corrections are new records.
type EVMRepository interface {
	ListAccountsByProject(ctx context.Context, projectID uuid.UUID) ([]model.ControlAccount, error)
	ListWorkPackagesByAccount(ctx context.Context, accountID uuid.UUID) ([]model.WorkPackage, error)
	SumActualCost(ctx context.Context, accountID uuid.UUID, asOf time.Time) (decimal.Decimal, error)
	CountPostings(ctx context.Context, accountID uuid.UUID, asOf time.Time) (int64, error)
	InsertPosting(ctx context.Context, posting model.CostPosting) error
	InsertRecords(ctx context.Context, records []model.EVMRecord) error
	LatestRecordsPerAccount(ctx context.Context, projectID uuid.UUID, asOf time.Time) ([]model.EVMRecord, error)
	ListRecordsByAccount(ctx context.Context, accountID uuid.UUID) ([]model.EVMRecord, error)
}

type EVMService struct {
	repo EVMRepository
}

func NewEVMService(repo EVMRepository) *EVMService {
	return &EVMService{repo: repo}
}

// RecordActualCost posts an actual-cost entry against a control account.
func (s *EVMService) RecordActualCost(ctx context.Context, accountID uuid.UUID, wbsElementID *uuid.UUID, amount decimal.Decimal, description string, postedAt time.Time, principal model.Principal) (*model.CostPosting, error) {
	if amount.IsZero() || amount.IsNegative() {
		return nil, fmt.Errorf("%w: posting amount must be positive", ErrValidation)
	}
	if postedAt.IsZero() {
		return nil, fmt.Errorf("%w: posting date is required", ErrValidation)
	}

	posting := model.CostPosting{
		ID:               uuid.New(),
		ControlAccountID: accountID,
		WBSElementID:     wbsElementID,
		Amount:           amount,
		Description:      description,
		PostedAt:         postedAt,
		CreatedBy:        principal.UserID,
	}
	if err := s.repo.InsertPosting(ctx, posting); err != nil {
		return nil, mapRepoErr(err)
	}
	return &posting, nil
}

type GenerateEVMResult struct {
	Records  []model.EVMRecord
	Warnings []string
}

// GenerateMonthlyEVM creates one record per control account for the period.
// Accounts with no postings as of the data date are skipped and reported as
// warnings, not failures. Cancellation between accounts discards everything:
// records are only persisted after the full sweep, in one transaction.
func (s *EVMService) GenerateMonthlyEVM(ctx context.Context, projectID uuid.UUID, year int, month time.Month, principal model.Principal) (*GenerateEVMResult, error) {
	if !principal.HasProjectAccess(projectID, model.RoleViewer) {
		return nil, ErrPermissionDenied
	}
	if year < 1900 || year > 2200 {
		return nil, fmt.Errorf("%w: year %d is out of range", ErrValidation, year)
	}
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: invalid month %d", ErrValidation, month)
	}

	// Data date is the last instant of the month.
	dataDate := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Second)

	accounts, err := s.repo.ListAccountsByProject(ctx, projectID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	result := &GenerateEVMResult{}
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: generation cancelled: %v", ErrPersistence, err)
		}
		if account.Status == model.ControlAccountClosed {
			continue
		}

		postings, err := s.repo.CountPostings(ctx, account.ID, dataDate)
		if err != nil {
			return nil, mapRepoErr(err)
		}
		if postings == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("control account %s has no postings as of %s", account.Code, dataDate.Format("2006-01-02")))
			continue
		}

		record, err := s.computeRecord(ctx, account, dataDate, model.PeriodMonthly, principal.UserID)
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, *record)
	}

	if len(result.Records) > 0 {
		if err := s.repo.InsertRecords(ctx, result.Records); err != nil {
			return nil, mapRepoErr(err)
		}
	}
	return result, nil
}

func (s *EVMService) computeRecord(ctx context.Context, account model.ControlAccount, dataDate time.Time, period model.PeriodType, by uuid.UUID) (*model.EVMRecord, error) {
	packages, err := s.repo.ListWorkPackagesByAccount(ctx, account.ID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	pv := plannedValue(account.BAC, packages, dataDate)
	ev := earnedValue(account, packages, pv)
	ac, err := s.repo.SumActualCost(ctx, account.ID, dataDate)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	cpi, spi, eac, etc, vac := model.ComputeEVMetrics(pv, ev, ac, account.BAC)

	return &model.EVMRecord{
		ID:               uuid.New(),
		ControlAccountID: account.ID,
		ProjectID:        account.ProjectID,
		DataDate:         dataDate,
		PeriodType:       period,
		PV:               pv,
		EV:               ev,
		AC:               ac,
		BAC:              account.BAC,
		CPI:              cpi,
		SPI:              spi,
		EAC:              eac,
		ETC:              etc,
		VAC:              vac,
		CreatedBy:        by,
	}, nil
}

// plannedValue spreads BAC over the account's work packages using their
// planned date windows, weighted by work package budget.
func plannedValue(bac decimal.Decimal, packages []model.WorkPackage, at time.Time) decimal.Decimal {
	totalBudget := model.WorkPackagesTotal(packages)
	if totalBudget.IsZero() {
		return decimal.Zero
	}
	weighted := decimal.Zero
	for _, wp := range packages {
		pct := model.PlannedPercentAt(wp.PlannedStartDate, wp.PlannedEndDate, at)
		weighted = weighted.Add(wp.Budget.Mul(pct))
	}
	return bac.Mul(weighted.Div(totalBudget))
}

// earnedValue applies the account's configured measurement method.
func earnedValue(account model.ControlAccount, packages []model.WorkPackage, pv decimal.Decimal) decimal.Decimal {
	switch account.Method {
	case model.MethodPercentComplete:
		return account.BAC.Mul(account.PercentComplete).Div(hundred)
	case model.MethodMilestone:
		// Credit only on completion.
		totalBudget := model.WorkPackagesTotal(packages)
		if totalBudget.IsZero() {
			return decimal.Zero
		}
		completed := decimal.Zero
		for _, wp := range packages {
			if wp.Status == model.WBSStatusCompleted {
				completed = completed.Add(wp.Budget)
			}
		}
		return account.BAC.Mul(completed.Div(totalBudget))
	case model.MethodWeightedMilestone:
		totalWeight := decimal.Zero
		progressWeight := decimal.Zero
		for _, wp := range packages {
			totalWeight = totalWeight.Add(wp.Weight)
			progressWeight = progressWeight.Add(wp.Weight.Mul(wp.Progress).Div(hundred))
		}
		if totalWeight.IsZero() {
			return decimal.Zero
		}
		return account.BAC.Mul(progressWeight.Div(totalWeight))
	case model.MethodLevelOfEffort:
		// Level of effort earns exactly what was planned.
		return pv
	default:
		return decimal.Zero
	}
}

// ProjectSummary rolls the latest per-account records up to project level.
// Base measures are summed before indices are derived; child indices are
// never averaged directly.
func (s *EVMService) ProjectSummary(ctx context.Context, projectID uuid.UUID, asOf time.Time, principal model.Principal) (*model.EVMSummary, error) {
	if !principal.HasProjectAccess(projectID, model.RoleViewer) {
		return nil, ErrPermissionDenied
	}

	records, err := s.repo.LatestRecordsPerAccount(ctx, projectID, asOf)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no EVM records for project %s as of %s", ErrNotFound, projectID, asOf.Format("2006-01-02"))
	}

	summary := &model.EVMSummary{
		ProjectID: projectID,
		DataDate:  asOf,
		Accounts:  records,
	}
	for _, record := range records {
		summary.PV = summary.PV.Add(record.PV)
		summary.EV = summary.EV.Add(record.EV)
		summary.AC = summary.AC.Add(record.AC)
		summary.BAC = summary.BAC.Add(record.BAC)
	}
	summary.CPI, summary.SPI, summary.EAC, summary.ETC, summary.VAC =
		model.ComputeEVMetrics(summary.PV, summary.EV, summary.AC, summary.BAC)
	return summary, nil
}

// AccountSeries returns the full time series for one control account, oldest
// first.
func (s *EVMService) AccountSeries(ctx context.Context, accountID uuid.UUID, principal model.Principal) ([]model.EVMRecord, error) {
	records, err := s.repo.ListRecordsByAccount(ctx, accountID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if len(records) > 0 && !principal.HasProjectAccess(records[0].ProjectID, model.RoleViewer) {
		return nil, ErrPermissionDenied
	}
	return records, nil
}
