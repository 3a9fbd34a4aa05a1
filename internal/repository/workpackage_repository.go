package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openpmo/costcontrol/internal/model"
)

// WorkPackageRepository also serves the conversion paths: converting a
// planning package into work packages and regrouping work packages back.
type WorkPackageRepository struct {
	db  *gorm.DB
	wbs *WBSRepository
}

func NewWorkPackageRepository(db *gorm.DB) *WorkPackageRepository {
	return &WorkPackageRepository{db: db, wbs: NewWBSRepository(db)}
}

const workPackageColumns = `
	id,
	project_id,
	wbs_element_id,
	control_account_id,
	name,
	budget,
	progress,
	planned_start_date,
	planned_end_date,
	planned_hours,
	actual_hours,
	actual_cost,
	weight,
	status,
	discipline,
	responsible_user,
	version,
	created_at,
	created_by,
	updated_at,
	updated_by,
	deleted_at,
	deleted_by
`

const planningPackageColumns = `
	id,
	project_id,
	wbs_element_id,
	control_account_id,
	name,
	budget,
	planned_start_date,
	planned_end_date,
	status,
	discipline,
	responsible_user,
	version,
	created_at,
	created_by,
	updated_at,
	updated_by,
	deleted_at,
	deleted_by
`

func (r *WorkPackageRepository) GetWorkPackage(ctx context.Context, id uuid.UUID) (*model.WorkPackage, error) {
	var wp model.WorkPackage
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+workPackageColumns+`
		FROM work_packages
		WHERE id = ? AND deleted_at IS NULL
		LIMIT 1
	`, id).Scan(&wp).Error
	if err != nil {
		return nil, err
	}
	if wp.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &wp, nil
}

func (r *WorkPackageRepository) ListWorkPackagesByIDs(ctx context.Context, ids []uuid.UUID) ([]model.WorkPackage, error) {
	if len(ids) == 0 {
		return []model.WorkPackage{}, nil
	}
	var packages []model.WorkPackage
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+workPackageColumns+`
		FROM work_packages
		WHERE id = ANY(?) AND deleted_at IS NULL
		ORDER BY planned_start_date ASC, id ASC
	`, ids).Scan(&packages).Error
	if err != nil {
		return nil, err
	}
	return packages, nil
}

func (r *WorkPackageRepository) UpdateWorkPackage(ctx context.Context, wp model.WorkPackage) error {
	return r.updateWorkPackageTx(r.db.WithContext(ctx), wp)
}

func (r *WorkPackageRepository) updateWorkPackageTx(tx *gorm.DB, wp model.WorkPackage) error {
	res := tx.Exec(`
		UPDATE work_packages
		SET
			name = ?,
			budget = ?,
			progress = ?,
			planned_start_date = ?,
			planned_end_date = ?,
			planned_hours = ?,
			actual_hours = ?,
			actual_cost = ?,
			weight = ?,
			status = ?,
			version = version + 1,
			updated_at = NOW(),
			updated_by = ?
		WHERE id = ? AND version = ? AND deleted_at IS NULL
	`,
		wp.Name,
		wp.Budget,
		wp.Progress,
		wp.PlannedStartDate,
		wp.PlannedEndDate,
		wp.PlannedHours,
		wp.ActualHours,
		wp.ActualCost,
		wp.Weight,
		wp.Status,
		wp.UpdatedBy,
		wp.ID,
		wp.Version,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

func (r *WorkPackageRepository) GetPlanningPackage(ctx context.Context, id uuid.UUID) (*model.PlanningPackage, error) {
	var pp model.PlanningPackage
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+planningPackageColumns+`
		FROM planning_packages
		WHERE id = ? AND deleted_at IS NULL
		LIMIT 1
	`, id).Scan(&pp).Error
	if err != nil {
		return nil, err
	}
	if pp.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &pp, nil
}

func (r *WorkPackageRepository) UpdatePlanningPackage(ctx context.Context, pp model.PlanningPackage) error {
	return r.updatePlanningPackageTx(r.db.WithContext(ctx), pp)
}

func (r *WorkPackageRepository) updatePlanningPackageTx(tx *gorm.DB, pp model.PlanningPackage) error {
	res := tx.Exec(`
		UPDATE planning_packages
		SET
			name = ?,
			budget = ?,
			planned_start_date = ?,
			planned_end_date = ?,
			status = ?,
			version = version + 1,
			updated_at = NOW(),
			updated_by = ?
		WHERE id = ? AND version = ? AND deleted_at IS NULL
	`,
		pp.Name,
		pp.Budget,
		pp.PlannedStartDate,
		pp.PlannedEndDate,
		pp.Status,
		pp.UpdatedBy,
		pp.ID,
		pp.Version,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

func (r *WorkPackageRepository) GetWBSElement(ctx context.Context, id uuid.UUID) (*model.WBSElement, error) {
	return r.wbs.GetElement(ctx, id)
}

func (r *WorkPackageRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.WBSElement, error) {
	return r.wbs.ListChildren(ctx, parentID)
}

// ConvertPlanningPackage applies the whole conversion batch in one
// transaction: the package passes through CONVERTING, the new WBS leaves and
// work packages are inserted, and the converted terminal state lands last.
// A failure anywhere rolls everything back.
func (r *WorkPackageRepository) ConvertPlanningPackage(ctx context.Context, converted model.PlanningPackage, elements []model.WBSElement, packages []model.WorkPackage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		converting := converted
		converting.Status = model.PlanningConverting
		if err := r.updatePlanningPackageTx(tx, converting); err != nil {
			return err
		}

		for _, element := range elements {
			if err := insertWBSElementTx(tx, element); err != nil {
				return err
			}
		}
		for _, wp := range packages {
			if err := insertWorkPackageTx(tx, wp); err != nil {
				return err
			}
		}

		// The converting update bumped the row version.
		converted.Version = converting.Version + 1
		return r.updatePlanningPackageTx(tx, converted)
	})
}

// GroupWorkPackages is the reverse batch: insert the planning package and its
// WBS element, retire the regrouped work packages.
func (r *WorkPackageRepository) GroupWorkPackages(ctx context.Context, grouped model.PlanningPackage, element model.WBSElement, retired []model.WorkPackage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertWBSElementTx(tx, element); err != nil {
			return err
		}
		if err := tx.Exec(`
			INSERT INTO planning_packages (
				id, project_id, wbs_element_id, control_account_id, name, budget,
				planned_start_date, planned_end_date, status, discipline,
				responsible_user, version, created_by
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		`,
			grouped.ID,
			grouped.ProjectID,
			grouped.WBSElementID,
			grouped.ControlAccountID,
			grouped.Name,
			grouped.Budget,
			grouped.PlannedStartDate,
			grouped.PlannedEndDate,
			grouped.Status,
			grouped.Discipline,
			grouped.ResponsibleUser,
			grouped.CreatedBy,
		).Error; err != nil {
			return err
		}
		for _, wp := range retired {
			if err := r.updateWorkPackageTx(tx, wp); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertWBSElementTx(tx *gorm.DB, element model.WBSElement) error {
	return tx.Exec(`
		INSERT INTO wbs_elements (
			id, project_id, parent_id, type, code, name, position, status, budget, version, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
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
	).Error
}

func insertWorkPackageTx(tx *gorm.DB, wp model.WorkPackage) error {
	return tx.Exec(`
		INSERT INTO work_packages (
			id, project_id, wbs_element_id, control_account_id, name, budget,
			progress, planned_start_date, planned_end_date, planned_hours,
			actual_hours, actual_cost, weight, status, discipline,
			responsible_user, version, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`,
		wp.ID,
		wp.ProjectID,
		wp.WBSElementID,
		wp.ControlAccountID,
		wp.Name,
		wp.Budget,
		wp.Progress,
		wp.PlannedStartDate,
		wp.PlannedEndDate,
		wp.PlannedHours,
		wp.ActualHours,
		wp.ActualCost,
		wp.Weight,
		wp.Status,
		wp.Discipline,
		wp.ResponsibleUser,
		wp.CreatedBy,
	).Error
}
