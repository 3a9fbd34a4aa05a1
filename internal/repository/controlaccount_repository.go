package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openpmo/costcontrol/internal/model"
)

type ControlAccountRepository struct {
	db *gorm.DB
}

func NewControlAccountRepository(db *gorm.DB) *ControlAccountRepository {
	return &ControlAccountRepository{db: db}
}

const controlAccountColumns = `
	id,
	project_id,
	phase_id,
	wbs_element_id,
	cam_user_id,
	code,
	name,
	bac,
	contingency_reserve,
	management_reserve,
	method,
	percent_complete,
	status,
	was_baselined,
	version,
	created_at,
	created_by,
	updated_at,
	updated_by,
	deleted_at,
	deleted_by
`

func (r *ControlAccountRepository) GetAccount(ctx context.Context, id uuid.UUID) (*model.ControlAccount, error) {
	var account model.ControlAccount
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+controlAccountColumns+`
		FROM control_accounts
		WHERE id = ? AND deleted_at IS NULL
		LIMIT 1
	`, id).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &account, nil
}

func (r *ControlAccountRepository) GetAccountByCode(ctx context.Context, projectID uuid.UUID, code string) (*model.ControlAccount, error) {
	var account model.ControlAccount
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+controlAccountColumns+`
		FROM control_accounts
		WHERE project_id = ? AND code = ? AND deleted_at IS NULL
		LIMIT 1
	`, projectID, code).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &account, nil
}

func (r *ControlAccountRepository) CreateAccount(ctx context.Context, account model.ControlAccount) (*model.ControlAccount, error) {
	var saved model.ControlAccount
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO control_accounts (
			id, project_id, phase_id, wbs_element_id, cam_user_id, code, name,
			bac, contingency_reserve, management_reserve, method,
			percent_complete, status, was_baselined, version, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		RETURNING `+controlAccountColumns+`
	`,
		account.ID,
		account.ProjectID,
		account.PhaseID,
		account.WBSElementID,
		account.CAMUserID,
		account.Code,
		account.Name,
		account.BAC,
		account.ContingencyReserve,
		account.ManagementReserve,
		account.Method,
		account.PercentComplete,
		account.Status,
		account.WasBaselined,
		account.CreatedBy,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *ControlAccountRepository) UpdateAccount(ctx context.Context, account model.ControlAccount) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE control_accounts
		SET
			cam_user_id = ?,
			name = ?,
			bac = ?,
			contingency_reserve = ?,
			management_reserve = ?,
			method = ?,
			percent_complete = ?,
			status = ?,
			was_baselined = ?,
			version = version + 1,
			updated_at = NOW(),
			updated_by = ?
		WHERE id = ? AND version = ? AND deleted_at IS NULL
	`,
		account.CAMUserID,
		account.Name,
		account.BAC,
		account.ContingencyReserve,
		account.ManagementReserve,
		account.Method,
		account.PercentComplete,
		account.Status,
		account.WasBaselined,
		account.UpdatedBy,
		account.ID,
		account.Version,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

func (r *ControlAccountRepository) ListAccountsByProject(ctx context.Context, projectID uuid.UUID) ([]model.ControlAccount, error) {
	var accounts []model.ControlAccount
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+controlAccountColumns+`
		FROM control_accounts
		WHERE project_id = ? AND deleted_at IS NULL
		ORDER BY code ASC
	`, projectID).Scan(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *ControlAccountRepository) CountOpenWorkPackages(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM work_packages
		WHERE control_account_id = ?
			AND deleted_at IS NULL
			AND status NOT IN (?, ?)
	`, accountID, model.WBSStatusCompleted, model.WBSStatusCancelled).Scan(&count).Error
	return count, err
}

func (r *ControlAccountRepository) CountOpenCommitments(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM commitments
		WHERE control_account_id = ?
			AND deleted_at IS NULL
			AND status NOT IN (?, ?)
	`, accountID, model.CommitmentClosed, model.CommitmentCancelled).Scan(&count).Error
	return count, err
}
