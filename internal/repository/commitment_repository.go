package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openpmo/costcontrol/internal/model"
)

type CommitmentRepository struct {
	db  *gorm.DB
	wbs *WBSRepository
}

func NewCommitmentRepository(db *gorm.DB) *CommitmentRepository {
	return &CommitmentRepository{db: db, wbs: NewWBSRepository(db)}
}

const commitmentColumns = `
	id,
	project_id,
	control_account_id,
	contractor_id,
	number,
	title,
	is_fixed_price,
	is_time_and_material,
	contract_date,
	start_date,
	end_date,
	currency,
	original_amount,
	revised_amount,
	committed_amount,
	invoiced_amount,
	paid_amount,
	retention_amount,
	invoice_count,
	status,
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

func (r *CommitmentRepository) GetCommitment(ctx context.Context, id uuid.UUID) (*model.Commitment, error) {
	var commitment model.Commitment
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+commitmentColumns+`
		FROM commitments
		WHERE id = ? AND deleted_at IS NULL
		LIMIT 1
	`, id).Scan(&commitment).Error
	if err != nil {
		return nil, err
	}
	if commitment.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &commitment, nil
}

func (r *CommitmentRepository) CreateCommitment(ctx context.Context, commitment model.Commitment) (*model.Commitment, error) {
	var saved model.Commitment
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO commitments (
			id, project_id, control_account_id, contractor_id, number, title,
			is_fixed_price, is_time_and_material, contract_date, start_date,
			end_date, currency, original_amount, revised_amount,
			committed_amount, invoiced_amount, paid_amount, retention_amount,
			invoice_count, status, version, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, 1, ?)
		RETURNING `+commitmentColumns+`
	`,
		commitment.ID,
		commitment.ProjectID,
		commitment.ControlAccountID,
		commitment.ContractorID,
		commitment.Number,
		commitment.Title,
		commitment.IsFixedPrice,
		commitment.IsTimeAndMaterial,
		commitment.ContractDate,
		commitment.StartDate,
		commitment.EndDate,
		commitment.Currency,
		commitment.OriginalAmount,
		commitment.RevisedAmount,
		commitment.CommittedAmount,
		commitment.InvoicedAmount,
		commitment.PaidAmount,
		commitment.RetentionAmount,
		commitment.Status,
		commitment.CreatedBy,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *CommitmentRepository) UpdateCommitment(ctx context.Context, commitment model.Commitment) error {
	return r.updateCommitmentTx(r.db.WithContext(ctx), commitment)
}

func (r *CommitmentRepository) updateCommitmentTx(tx *gorm.DB, commitment model.Commitment) error {
	res := tx.Exec(`
		UPDATE commitments
		SET
			title = ?,
			revised_amount = ?,
			committed_amount = ?,
			invoiced_amount = ?,
			paid_amount = ?,
			retention_amount = ?,
			invoice_count = ?,
			status = ?,
			rejection_reason = ?,
			approved_by = ?,
			approved_at = ?,
			version = version + 1,
			updated_at = NOW(),
			updated_by = ?
		WHERE id = ? AND version = ? AND deleted_at IS NULL
	`,
		commitment.Title,
		commitment.RevisedAmount,
		commitment.CommittedAmount,
		commitment.InvoicedAmount,
		commitment.PaidAmount,
		commitment.RetentionAmount,
		commitment.InvoiceCount,
		commitment.Status,
		commitment.RejectionReason,
		commitment.ApprovedBy,
		commitment.ApprovedAt,
		commitment.UpdatedBy,
		commitment.ID,
		commitment.Version,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

func (r *CommitmentRepository) ListCommitmentItems(ctx context.Context, commitmentID uuid.UUID) ([]model.CommitmentItem, error) {
	var items []model.CommitmentItem
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, commitment_id, description, quantity, unit_price, discount, tax_rate,
			version, created_at, created_by, updated_at, updated_by, deleted_at, deleted_by
		FROM commitment_items
		WHERE commitment_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, commitmentID).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *CommitmentRepository) AddCommitmentItem(ctx context.Context, item model.CommitmentItem, commitment model.Commitment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			INSERT INTO commitment_items (
				id, commitment_id, description, quantity, unit_price, discount, tax_rate, version, created_by
			) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
		`,
			item.ID,
			item.CommitmentID,
			item.Description,
			item.Quantity,
			item.UnitPrice,
			item.Discount,
			item.TaxRate,
			item.CreatedBy,
		).Error; err != nil {
			return err
		}
		return r.updateCommitmentTx(tx, commitment)
	})
}

func (r *CommitmentRepository) ListCommitmentRevisions(ctx context.Context, commitmentID uuid.UUID) ([]model.CommitmentRevision, error) {
	var revisions []model.CommitmentRevision
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, commitment_id, revision_number, previous_amount, new_amount,
			change_amount, change_percentage, is_significant_change, reason,
			change_order_ref, approved_by, created_at
		FROM commitment_revisions
		WHERE commitment_id = ?
		ORDER BY revision_number ASC
	`, commitmentID).Scan(&revisions).Error
	if err != nil {
		return nil, err
	}
	return revisions, nil
}

// AppendCommitmentRevision inserts the append-only revision row and applies
// the revised amounts in one transaction.
func (r *CommitmentRepository) AppendCommitmentRevision(ctx context.Context, revision model.CommitmentRevision, commitment model.Commitment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			INSERT INTO commitment_revisions (
				id, commitment_id, revision_number, previous_amount, new_amount,
				change_amount, change_percentage, is_significant_change, reason,
				change_order_ref, approved_by
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			revision.ID,
			revision.CommitmentID,
			revision.RevisionNumber,
			revision.PreviousAmount,
			revision.NewAmount,
			revision.ChangeAmount,
			revision.ChangePercentage,
			revision.IsSignificantChange,
			revision.Reason,
			revision.ChangeOrderRef,
			revision.ApprovedBy,
		).Error; err != nil {
			return err
		}
		return r.updateCommitmentTx(tx, commitment)
	})
}

func (r *CommitmentRepository) ListAllocations(ctx context.Context, commitmentID uuid.UUID) ([]model.CommitmentWorkPackageAllocation, error) {
	var allocations []model.CommitmentWorkPackageAllocation
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, commitment_id, wbs_element_id, amount, created_at, created_by
		FROM commitment_wp_allocations
		WHERE commitment_id = ?
		ORDER BY created_at ASC, id ASC
	`, commitmentID).Scan(&allocations).Error
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

// AddAllocation inserts the allocation and bumps the commitment version in
// one transaction, so concurrent allocations against the same commitment
// serialize on the optimistic token.
func (r *CommitmentRepository) AddAllocation(ctx context.Context, allocation model.CommitmentWorkPackageAllocation, commitment model.Commitment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			INSERT INTO commitment_wp_allocations (
				id, commitment_id, wbs_element_id, amount, created_by
			) VALUES (?, ?, ?, ?, ?)
		`,
			allocation.ID,
			allocation.CommitmentID,
			allocation.WBSElementID,
			allocation.Amount,
			allocation.CreatedBy,
		).Error; err != nil {
			return err
		}
		return r.updateCommitmentTx(tx, commitment)
	})
}

func (r *CommitmentRepository) GetWBSElement(ctx context.Context, id uuid.UUID) (*model.WBSElement, error) {
	return r.wbs.GetElement(ctx, id)
}
