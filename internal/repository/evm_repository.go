package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/openpmo/costcontrol/internal/model"
)

type EVMRepository struct {
	db       *gorm.DB
	accounts *ControlAccountRepository
}

func NewEVMRepository(db *gorm.DB) *EVMRepository {
	return &EVMRepository{db: db, accounts: NewControlAccountRepository(db)}
}

const evmRecordColumns = `
	id,
	control_account_id,
	project_id,
	data_date,
	period_type,
	pv,
	ev,
	ac,
	bac,
	cpi,
	spi,
	eac,
	etc,
	vac,
	created_at,
	created_by
`

func (r *EVMRepository) ListAccountsByProject(ctx context.Context, projectID uuid.UUID) ([]model.ControlAccount, error) {
	return r.accounts.ListAccountsByProject(ctx, projectID)
}

func (r *EVMRepository) ListWorkPackagesByAccount(ctx context.Context, accountID uuid.UUID) ([]model.WorkPackage, error) {
	var packages []model.WorkPackage
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+workPackageColumns+`
		FROM work_packages
		WHERE control_account_id = ? AND deleted_at IS NULL
		ORDER BY planned_start_date ASC, id ASC
	`, accountID).Scan(&packages).Error
	if err != nil {
		return nil, err
	}
	return packages, nil
}

func (r *EVMRepository) SumActualCost(ctx context.Context, accountID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(amount), 0)
		FROM cost_postings
		WHERE control_account_id = ? AND posted_at <= ?
	`, accountID, asOf).Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *EVMRepository) CountPostings(ctx context.Context, accountID uuid.UUID, asOf time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM cost_postings
		WHERE control_account_id = ? AND posted_at <= ?
	`, accountID, asOf).Scan(&count).Error
	return count, err
}

func (r *EVMRepository) InsertPosting(ctx context.Context, posting model.CostPosting) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO cost_postings (
			id, control_account_id, wbs_element_id, amount, description, posted_at, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		posting.ID,
		posting.ControlAccountID,
		posting.WBSElementID,
		posting.Amount,
		posting.Description,
		posting.PostedAt,
		posting.CreatedBy,
	).Error
}

// InsertRecords appends a whole generation batch in one transaction; a
// cancelled or failed generation persists nothing.
func (r *EVMRepository) InsertRecords(ctx context.Context, records []model.EVMRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			if err := tx.Exec(`
				INSERT INTO evm_records (
					id, control_account_id, project_id, data_date, period_type,
					pv, ev, ac, bac, cpi, spi, eac, etc, vac, created_by
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				record.ID,
				record.ControlAccountID,
				record.ProjectID,
				record.DataDate,
				record.PeriodType,
				record.PV,
				record.EV,
				record.AC,
				record.BAC,
				record.CPI,
				record.SPI,
				record.EAC,
				record.ETC,
				record.VAC,
				record.CreatedBy,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LatestRecordsPerAccount returns, for each control account of the project,
// the newest record with a data date at or before asOf.
func (r *EVMRepository) LatestRecordsPerAccount(ctx context.Context, projectID uuid.UUID, asOf time.Time) ([]model.EVMRecord, error) {
	var records []model.EVMRecord
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (control_account_id) `+evmRecordColumns+`
		FROM evm_records
		WHERE project_id = ? AND data_date <= ?
		ORDER BY control_account_id, data_date DESC, created_at DESC
	`, projectID, asOf).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *EVMRepository) ListRecordsByAccount(ctx context.Context, accountID uuid.UUID) ([]model.EVMRecord, error) {
	var records []model.EVMRecord
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+evmRecordColumns+`
		FROM evm_records
		WHERE control_account_id = ?
		ORDER BY data_date ASC, created_at ASC
	`, accountID).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
