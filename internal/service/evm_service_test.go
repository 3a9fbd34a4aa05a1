package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpmo/costcontrol/internal/model"
)

func seedEVMAccount(repo *fakeEVMRepo, projectID uuid.UUID, code string, bac decimal.Decimal, method model.MeasurementMethod, pct decimal.Decimal) model.ControlAccount {
	account := model.ControlAccount{
		ID:              uuid.New(),
		ProjectID:       projectID,
		Code:            code,
		Name:            code,
		BAC:             bac,
		Method:          method,
		PercentComplete: pct,
		Status:          model.ControlAccountBaselined,
		Version:         1,
	}
	repo.accounts = append(repo.accounts, account)
	return account
}

func seedEVMWorkPackage(repo *fakeEVMRepo, accountID uuid.UUID, budget decimal.Decimal, start, end time.Time, status model.WBSStatus, progress, weight decimal.Decimal) {
	repo.workPackages[accountID] = append(repo.workPackages[accountID], model.WorkPackage{
		ID:               uuid.New(),
		ControlAccountID: accountID,
		Budget:           budget,
		Progress:         progress,
		PlannedStartDate: start,
		PlannedEndDate:   end,
		Weight:           weight,
		Status:           status,
	})
}

func postCost(repo *fakeEVMRepo, accountID uuid.UUID, amount decimal.Decimal, at time.Time) {
	repo.postings = append(repo.postings, model.CostPosting{
		ID:               uuid.New(),
		ControlAccountID: accountID,
		Amount:           amount,
		PostedAt:         at,
	})
}

func TestEVMService_RecordActualCost_Validation(t *testing.T) {
	repo := newFakeEVMRepo()
	svc := NewEVMService(repo)
	accountID := uuid.New()
	principal := adminPrincipal()

	_, err := svc.RecordActualCost(context.Background(), accountID, nil, decimal.Zero, "zero", date(2026, time.January, 15), principal)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordActualCost(context.Background(), accountID, nil, d("-10"), "negative", date(2026, time.January, 15), principal)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordActualCost(context.Background(), accountID, nil, d("10"), "no date", time.Time{}, principal)
	require.ErrorIs(t, err, ErrValidation)

	posting, err := svc.RecordActualCost(context.Background(), accountID, nil, d("2500"), "invoice 42", date(2026, time.January, 15), principal)
	require.NoError(t, err)
	assert.Equal(t, accountID, posting.ControlAccountID)
	require.Len(t, repo.postings, 1)
}

func TestEVMService_GenerateMonthlyEVM_PercentComplete(t *testing.T) {
	repo := newFakeEVMRepo()
	svc := NewEVMService(repo)
	projectID := uuid.New()
	viewer := principalWith(projectID, model.RoleViewer)

	// 50% complete against a 200000 BAC with a fully elapsed plan window.
	account := seedEVMAccount(repo, projectID, "CA-1000", d("200000"), model.MethodPercentComplete, d("50"))
	seedEVMWorkPackage(repo, account.ID, d("200000"), date(2026, time.January, 1), date(2026, time.February, 1), model.WBSStatusInProgress, d("50"), d("1"))
	postCost(repo, account.ID, d("125000"), date(2026, time.February, 10))

	result, err := svc.GenerateMonthlyEVM(context.Background(), projectID, 2026, time.February, viewer)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	record := result.Records[0]

	// Data date is the last instant of February.
	assert.Equal(t, time.Date(2026, time.February, 28, 23, 59, 59, 0, time.UTC), record.DataDate)

	assert.True(t, record.PV.Equal(d("200000")), "PV is %s", record.PV)
	assert.True(t, record.EV.Equal(d("100000")), "EV is %s", record.EV)
	assert.True(t, record.AC.Equal(d("125000")), "AC is %s", record.AC)
	require.NotNil(t, record.CPI)
	require.NotNil(t, record.SPI)
	assert.True(t, record.CPI.Equal(d("0.8")), "CPI is %s", record.CPI)
	assert.True(t, record.SPI.Equal(d("0.5")), "SPI is %s", record.SPI)
	// EAC = AC + (BAC - EV) / CPI = 125000 + 100000 / 0.8.
	assert.True(t, record.EAC.Equal(d("250000")), "EAC is %s", record.EAC)
	assert.True(t, record.ETC.Equal(d("125000")), "ETC is %s", record.ETC)
	assert.True(t, record.VAC.Equal(d("-50000")), "VAC is %s", record.VAC)

	// The record was persisted.
	require.Len(t, repo.records, 1)
}

func TestEVMService_GenerateMonthlyEVM_SkipsClosedAndWarnsEmpty(t *testing.T) {
	repo := newFakeEVMRepo()
	svc := NewEVMService(repo)
	projectID := uuid.New()
	viewer := principalWith(projectID, model.RoleViewer)

	closed := seedEVMAccount(repo, projectID, "CA-1000", d("50000"), model.MethodPercentComplete, d("100"))
	repo.accounts[0].Status = model.ControlAccountClosed
	postCost(repo, closed.ID, d("50000"), date(2026, time.January, 5))

	silent := seedEVMAccount(repo, projectID, "CA-2000", d("80000"), model.MethodPercentComplete, d("10"))
	seedEVMWorkPackage(repo, silent.ID, d("80000"), date(2026, time.January, 1), date(2026, time.June, 30), model.WBSStatusInProgress, d("10"), d("1"))

	result, err := svc.GenerateMonthlyEVM(context.Background(), projectID, 2026, time.January, viewer)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "CA-2000")
	assert.Contains(t, result.Warnings[0], "no postings")
	assert.Empty(t, repo.records)
}

func TestEVMService_EarnedValue_MethodSpecific(t *testing.T) {
	projectID := uuid.New()
	viewer := principalWith(projectID, model.RoleViewer)
	window := func() (time.Time, time.Time) {
		return date(2026, time.January, 1), date(2026, time.February, 1)
	}

	t.Run("milestone credits only completed packages", func(t *testing.T) {
		repo := newFakeEVMRepo()
		svc := NewEVMService(repo)
		account := seedEVMAccount(repo, projectID, "CA-1000", d("100000"), model.MethodMilestone, d("0"))
		start, end := window()
		seedEVMWorkPackage(repo, account.ID, d("60000"), start, end, model.WBSStatusCompleted, d("100"), d("0.6"))
		seedEVMWorkPackage(repo, account.ID, d("40000"), start, end, model.WBSStatusInProgress, d("90"), d("0.4"))
		postCost(repo, account.ID, d("70000"), date(2026, time.February, 10))

		result, err := svc.GenerateMonthlyEVM(context.Background(), projectID, 2026, time.February, viewer)
		require.NoError(t, err)
		require.Len(t, result.Records, 1)
		// Near-done work earns nothing until the milestone lands.
		assert.True(t, result.Records[0].EV.Equal(d("60000")), "EV is %s", result.Records[0].EV)
	})

	t.Run("weighted milestone blends progress by weight", func(t *testing.T) {
		repo := newFakeEVMRepo()
		svc := NewEVMService(repo)
		account := seedEVMAccount(repo, projectID, "CA-1000", d("100000"), model.MethodWeightedMilestone, d("0"))
		start, end := window()
		seedEVMWorkPackage(repo, account.ID, d("60000"), start, end, model.WBSStatusInProgress, d("50"), d("0.6"))
		seedEVMWorkPackage(repo, account.ID, d("40000"), start, end, model.WBSStatusCompleted, d("100"), d("0.4"))
		postCost(repo, account.ID, d("70000"), date(2026, time.February, 10))

		result, err := svc.GenerateMonthlyEVM(context.Background(), projectID, 2026, time.February, viewer)
		require.NoError(t, err)
		require.Len(t, result.Records, 1)
		// 0.6 x 50% + 0.4 x 100% = 70% of BAC.
		assert.True(t, result.Records[0].EV.Equal(d("70000")), "EV is %s", result.Records[0].EV)
	})

	t.Run("level of effort earns planned value", func(t *testing.T) {
		repo := newFakeEVMRepo()
		svc := NewEVMService(repo)
		account := seedEVMAccount(repo, projectID, "CA-1000", d("100000"), model.MethodLevelOfEffort, d("0"))
		start, end := window()
		seedEVMWorkPackage(repo, account.ID, d("100000"), start, end, model.WBSStatusInProgress, d("10"), d("1"))
		postCost(repo, account.ID, d("30000"), date(2026, time.February, 10))

		result, err := svc.GenerateMonthlyEVM(context.Background(), projectID, 2026, time.February, viewer)
		require.NoError(t, err)
		require.Len(t, result.Records, 1)
		assert.True(t, result.Records[0].EV.Equal(result.Records[0].PV))
	})
}

func TestEVMService_GenerateMonthlyEVM_ZeroActualsYieldNilCPI(t *testing.T) {
	repo := newFakeEVMRepo()
	svc := NewEVMService(repo)
	projectID := uuid.New()
	viewer := principalWith(projectID, model.RoleViewer)

	account := seedEVMAccount(repo, projectID, "CA-1000", d("100000"), model.MethodPercentComplete, d("20"))
	seedEVMWorkPackage(repo, account.ID, d("100000"), date(2026, time.January, 1), date(2026, time.February, 1), model.WBSStatusInProgress, d("20"), d("1"))
	// A posting and its credit correction net to zero actual cost but keep
	// the account in the generation sweep.
	postCost(repo, account.ID, d("100"), date(2026, time.February, 5))
	postCost(repo, account.ID, d("100").Neg(), date(2026, time.February, 5))

	result, err := svc.GenerateMonthlyEVM(context.Background(), projectID, 2026, time.February, viewer)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	record := result.Records[0]
	assert.True(t, record.AC.IsZero())
	assert.Nil(t, record.CPI)
	require.NotNil(t, record.SPI)
	// Additive fallback: EAC = AC + (BAC - EV).
	assert.True(t, record.EAC.Equal(d("80000")), "EAC is %s", record.EAC)
}

func TestEVMService_ProjectSummary_SumsBasesBeforeIndices(t *testing.T) {
	repo := newFakeEVMRepo()
	svc := NewEVMService(repo)
	projectID := uuid.New()
	viewer := principalWith(projectID, model.RoleViewer)
	asOf := date(2026, time.March, 31)

	accountA := uuid.New()
	accountB := uuid.New()
	cpiA, spiA := d("2"), d("1")
	cpiB, spiB := d("0.5"), d("1")
	repo.records = []model.EVMRecord{
		{ID: uuid.New(), ProjectID: projectID, ControlAccountID: accountA, DataDate: date(2026, time.February, 28),
			PV: d("10000"), EV: d("10000"), AC: d("5000"), BAC: d("20000"), CPI: &cpiA, SPI: &spiA},
		{ID: uuid.New(), ProjectID: projectID, ControlAccountID: accountB, DataDate: date(2026, time.February, 28),
			PV: d("30000"), EV: d("30000"), AC: d("60000"), BAC: d("40000"), CPI: &cpiB, SPI: &spiB},
	}

	summary, err := svc.ProjectSummary(context.Background(), projectID, asOf, viewer)
	require.NoError(t, err)
	assert.True(t, summary.PV.Equal(d("40000")))
	assert.True(t, summary.EV.Equal(d("40000")))
	assert.True(t, summary.AC.Equal(d("65000")))
	assert.True(t, summary.BAC.Equal(d("60000")))

	// Summed EV/AC, not the mean of the child indices (which would be 1.25).
	require.NotNil(t, summary.CPI)
	expected := d("40000").Div(d("65000"))
	assert.True(t, summary.CPI.Equal(expected), "CPI is %s", summary.CPI)
}

func TestEVMService_ProjectSummary_PicksLatestRecordPerAccount(t *testing.T) {
	repo := newFakeEVMRepo()
	svc := NewEVMService(repo)
	projectID := uuid.New()
	viewer := principalWith(projectID, model.RoleViewer)

	accountID := uuid.New()
	repo.records = []model.EVMRecord{
		{ID: uuid.New(), ProjectID: projectID, ControlAccountID: accountID, DataDate: date(2026, time.January, 31),
			PV: d("1000"), EV: d("800"), AC: d("900"), BAC: d("5000")},
		{ID: uuid.New(), ProjectID: projectID, ControlAccountID: accountID, DataDate: date(2026, time.February, 28),
			PV: d("2000"), EV: d("1800"), AC: d("1900"), BAC: d("5000")},
		// Future records are invisible at the requested date.
		{ID: uuid.New(), ProjectID: projectID, ControlAccountID: accountID, DataDate: date(2026, time.April, 30),
			PV: d("4000"), EV: d("3800"), AC: d("3900"), BAC: d("5000")},
	}

	summary, err := svc.ProjectSummary(context.Background(), projectID, date(2026, time.March, 15), viewer)
	require.NoError(t, err)
	require.Len(t, summary.Accounts, 1)
	assert.True(t, summary.PV.Equal(d("2000")))

	_, err = svc.ProjectSummary(context.Background(), uuid.New(), date(2026, time.March, 15), principalWith(uuid.Nil, model.RoleViewer))
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestEVMService_AccountSeries_OldestFirst(t *testing.T) {
	repo := newFakeEVMRepo()
	svc := NewEVMService(repo)
	projectID := uuid.New()
	viewer := principalWith(projectID, model.RoleViewer)

	accountID := uuid.New()
	repo.records = []model.EVMRecord{
		{ID: uuid.New(), ProjectID: projectID, ControlAccountID: accountID, DataDate: date(2026, time.February, 28)},
		{ID: uuid.New(), ProjectID: projectID, ControlAccountID: accountID, DataDate: date(2026, time.January, 31)},
	}

	series, err := svc.AccountSeries(context.Background(), accountID, viewer)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.True(t, series[0].DataDate.Before(series[1].DataDate))
}
