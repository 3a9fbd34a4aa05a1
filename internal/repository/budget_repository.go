package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openpmo/costcontrol/internal/model"
)

type BudgetRepository struct {
	db *gorm.DB
}

func NewBudgetRepository(db *gorm.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

const budgetColumns = `
	id,
	project_id,
	name,
	budget_version,
	status,
	total_amount,
	contingency,
	management_reserve,
	currency,
	exchange_rate,
	is_current_baseline,
	revision_window_open,
	rejection_reason,
	approved_by,
	approved_at,
	version,
	created_at,
	created_by,
	updated_at,
	updated_by,
	deleted_at,
	deleted_by
`

const budgetItemColumns = `
	id,
	budget_id,
	control_account_id,
	description,
	cost_type,
	category,
	quantity,
	unit_rate,
	version,
	created_at,
	created_by,
	updated_at,
	updated_by,
	deleted_at,
	deleted_by
`

func (r *BudgetRepository) GetBudget(ctx context.Context, id uuid.UUID) (*model.Budget, error) {
	var budget model.Budget
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+budgetColumns+`
		FROM budgets
		WHERE id = ? AND deleted_at IS NULL
		LIMIT 1
	`, id).Scan(&budget).Error
	if err != nil {
		return nil, err
	}
	if budget.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &budget, nil
}

func (r *BudgetRepository) GetCurrentBaseline(ctx context.Context, projectID uuid.UUID) (*model.Budget, error) {
	var budget model.Budget
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+budgetColumns+`
		FROM budgets
		WHERE project_id = ? AND is_current_baseline AND deleted_at IS NULL
		LIMIT 1
	`, projectID).Scan(&budget).Error
	if err != nil {
		return nil, err
	}
	if budget.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &budget, nil
}

func (r *BudgetRepository) CreateBudget(ctx context.Context, budget model.Budget) (*model.Budget, error) {
	var saved model.Budget
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO budgets (
			id, project_id, name, budget_version, status, total_amount,
			contingency, management_reserve, currency, exchange_rate,
			is_current_baseline, revision_window_open, version, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE, FALSE, 1, ?)
		RETURNING `+budgetColumns+`
	`,
		budget.ID,
		budget.ProjectID,
		budget.Name,
		budget.BudgetVersion,
		budget.Status,
		budget.TotalAmount,
		budget.Contingency,
		budget.ManagementReserve,
		budget.Currency,
		budget.ExchangeRate,
		budget.CreatedBy,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *BudgetRepository) UpdateBudget(ctx context.Context, budget model.Budget) error {
	return r.updateBudgetTx(r.db.WithContext(ctx), budget)
}

func (r *BudgetRepository) updateBudgetTx(tx *gorm.DB, budget model.Budget) error {
	res := tx.Exec(`
		UPDATE budgets
		SET
			name = ?,
			budget_version = ?,
			status = ?,
			total_amount = ?,
			contingency = ?,
			management_reserve = ?,
			is_current_baseline = ?,
			revision_window_open = ?,
			rejection_reason = ?,
			approved_by = ?,
			approved_at = ?,
			version = version + 1,
			updated_at = NOW(),
			updated_by = ?
		WHERE id = ? AND version = ? AND deleted_at IS NULL
	`,
		budget.Name,
		budget.BudgetVersion,
		budget.Status,
		budget.TotalAmount,
		budget.Contingency,
		budget.ManagementReserve,
		budget.IsCurrentBaseline,
		budget.RevisionWindowOpen,
		budget.RejectionReason,
		budget.ApprovedBy,
		budget.ApprovedAt,
		budget.UpdatedBy,
		budget.ID,
		budget.Version,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

// SwapBaseline demotes the previous current baseline and promotes the given
// budget in one transaction, so the project never shows two current
// baselines.
func (r *BudgetRepository) SwapBaseline(ctx context.Context, demoteID *uuid.UUID, promote model.Budget) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if demoteID != nil {
			if err := tx.Exec(`
				UPDATE budgets
				SET is_current_baseline = FALSE, version = version + 1, updated_at = NOW()
				WHERE id = ? AND deleted_at IS NULL
			`, *demoteID).Error; err != nil {
				return err
			}
		}
		return r.updateBudgetTx(tx, promote)
	})
}

func (r *BudgetRepository) ListItems(ctx context.Context, budgetID uuid.UUID) ([]model.BudgetItem, error) {
	var items []model.BudgetItem
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+budgetItemColumns+`
		FROM budget_items
		WHERE budget_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, budgetID).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *BudgetRepository) GetItem(ctx context.Context, itemID uuid.UUID) (*model.BudgetItem, error) {
	var item model.BudgetItem
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+budgetItemColumns+`
		FROM budget_items
		WHERE id = ? AND deleted_at IS NULL
		LIMIT 1
	`, itemID).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &item, nil
}

// SaveItemAndBudget upserts the item and writes the budget total in one
// transaction, keeping "check invariant, then write" atomic per budget.
func (r *BudgetRepository) SaveItemAndBudget(ctx context.Context, item model.BudgetItem, budget model.Budget) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE budget_items
			SET
				control_account_id = ?,
				description = ?,
				cost_type = ?,
				category = ?,
				quantity = ?,
				unit_rate = ?,
				version = version + 1,
				updated_at = NOW(),
				updated_by = ?
			WHERE id = ? AND version = ? AND deleted_at IS NULL
		`,
			item.ControlAccountID,
			item.Description,
			item.CostType,
			item.Category,
			item.Quantity,
			item.UnitRate,
			item.UpdatedBy,
			item.ID,
			item.Version,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Exec(`
				INSERT INTO budget_items (
					id, budget_id, control_account_id, description, cost_type,
					category, quantity, unit_rate, version, created_by
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
			`,
				item.ID,
				item.BudgetID,
				item.ControlAccountID,
				item.Description,
				item.CostType,
				item.Category,
				item.Quantity,
				item.UnitRate,
				item.CreatedBy,
			).Error; err != nil {
				return err
			}
		}
		return r.updateBudgetTx(tx, budget)
	})
}

func (r *BudgetRepository) DeleteItemAndBudget(ctx context.Context, itemID uuid.UUID, budget model.Budget) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE budget_items
			SET deleted_at = NOW(), deleted_by = ?, version = version + 1
			WHERE id = ? AND deleted_at IS NULL
		`, budget.UpdatedBy, itemID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return r.updateBudgetTx(tx, budget)
	})
}

// AppendRevision inserts the immutable revision row and applies the revised
// budget state in one transaction.
func (r *BudgetRepository) AppendRevision(ctx context.Context, revision model.BudgetRevision, budget model.Budget) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			INSERT INTO budget_revisions (
				id, budget_id, revision_number, previous_total, new_total, reason, approved_by
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			revision.ID,
			revision.BudgetID,
			revision.RevisionNumber,
			revision.PreviousTotal,
			revision.NewTotal,
			revision.Reason,
			revision.ApprovedBy,
		).Error; err != nil {
			return err
		}
		return r.updateBudgetTx(tx, budget)
	})
}

func (r *BudgetRepository) ListRevisions(ctx context.Context, budgetID uuid.UUID) ([]model.BudgetRevision, error) {
	var revisions []model.BudgetRevision
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, budget_id, revision_number, previous_total, new_total, reason, approved_by, created_at
		FROM budget_revisions
		WHERE budget_id = ?
		ORDER BY revision_number ASC
	`, budgetID).Scan(&revisions).Error
	if err != nil {
		return nil, err
	}
	return revisions, nil
}
