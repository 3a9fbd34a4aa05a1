package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openpmo/costcontrol/internal/model"
)

type WBSRepository struct {
	db *gorm.DB
}

func NewWBSRepository(db *gorm.DB) *WBSRepository {
	return &WBSRepository{db: db}
}

// wbsColumns is the one place the element column list and the soft-delete
// filter live; every read goes through it.
const wbsColumns = `
	id,
	project_id,
	parent_id,
	type,
	code,
	name,
	position,
	status,
	budget,
	version,
	created_at,
	created_by,
	updated_at,
	updated_by,
	deleted_at,
	deleted_by
`

func (r *WBSRepository) GetElement(ctx context.Context, id uuid.UUID) (*model.WBSElement, error) {
	var element model.WBSElement
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+wbsColumns+`
		FROM wbs_elements
		WHERE id = ? AND deleted_at IS NULL
		LIMIT 1
	`, id).Scan(&element).Error
	if err != nil {
		return nil, err
	}
	if element.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &element, nil
}

func (r *WBSRepository) GetElementByCode(ctx context.Context, projectID uuid.UUID, code string) (*model.WBSElement, error) {
	var element model.WBSElement
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+wbsColumns+`
		FROM wbs_elements
		WHERE project_id = ? AND code = ? AND deleted_at IS NULL
		LIMIT 1
	`, projectID, code).Scan(&element).Error
	if err != nil {
		return nil, err
	}
	if element.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &element, nil
}

func (r *WBSRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.WBSElement, error) {
	var elements []model.WBSElement
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+wbsColumns+`
		FROM wbs_elements
		WHERE parent_id = ? AND deleted_at IS NULL
		ORDER BY position ASC, code ASC
	`, parentID).Scan(&elements).Error
	if err != nil {
		return nil, err
	}
	return elements, nil
}

func (r *WBSRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.WBSElement, error) {
	var elements []model.WBSElement
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+wbsColumns+`
		FROM wbs_elements
		WHERE project_id = ? AND deleted_at IS NULL
		ORDER BY position ASC, code ASC
	`, projectID).Scan(&elements).Error
	if err != nil {
		return nil, err
	}
	return elements, nil
}

func (r *WBSRepository) CreateElement(ctx context.Context, element model.WBSElement) (*model.WBSElement, error) {
	var saved model.WBSElement
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO wbs_elements (
			id, project_id, parent_id, type, code, name, position, status, budget, version, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		RETURNING `+wbsColumns+`
	`,
		element.ID,
		element.ProjectID,
		element.ParentID,
		element.Type,
		element.Code,
		element.Name,
		element.Position,
		element.Status,
		element.Budget,
		element.CreatedBy,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *WBSRepository) UpdateElement(ctx context.Context, element model.WBSElement) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE wbs_elements
		SET
			parent_id = ?,
			name = ?,
			position = ?,
			status = ?,
			budget = ?,
			version = version + 1,
			updated_at = NOW(),
			updated_by = ?
		WHERE id = ? AND version = ? AND deleted_at IS NULL
	`,
		element.ParentID,
		element.Name,
		element.Position,
		element.Status,
		element.Budget,
		element.UpdatedBy,
		element.ID,
		element.Version,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

// UpdatePositions renumbers the children of parentID to match the given
// order. All rows change inside one transaction or none do.
func (r *WBSRepository) UpdatePositions(ctx context.Context, parentID uuid.UUID, ids []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for position, id := range ids {
			res := tx.Exec(`
				UPDATE wbs_elements
				SET position = ?, version = version + 1, updated_at = NOW()
				WHERE id = ? AND parent_id = ? AND deleted_at IS NULL
			`, position, id, parentID)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return nil
	})
}

func (r *WBSRepository) SoftDeleteElement(ctx context.Context, id uuid.UUID, by uuid.UUID) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE wbs_elements
		SET deleted_at = NOW(), deleted_by = ?, version = version + 1
		WHERE id = ? AND deleted_at IS NULL
	`, by, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *WBSRepository) CountActiveChildren(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM wbs_elements
		WHERE parent_id = ? AND deleted_at IS NULL AND status NOT IN (?, ?)
	`, id, model.WBSStatusCompleted, model.WBSStatusCancelled).Scan(&count).Error
	return count, err
}

func (r *WBSRepository) CountBudgetItemRefs(ctx context.Context, wbsElementID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM budget_items bi
		JOIN control_accounts ca ON ca.id = bi.control_account_id
		WHERE ca.wbs_element_id = ? AND bi.deleted_at IS NULL
	`, wbsElementID).Scan(&count).Error
	return count, err
}

func (r *WBSRepository) CountAllocationRefs(ctx context.Context, wbsElementID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM commitment_wp_allocations
		WHERE wbs_element_id = ?
	`, wbsElementID).Scan(&count).Error
	return count, err
}
