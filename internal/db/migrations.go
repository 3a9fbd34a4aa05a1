package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`CREATE TABLE IF NOT EXISTS wbs_elements (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID NOT NULL,
		parent_id UUID REFERENCES wbs_elements(id),
		type VARCHAR(32) NOT NULL,
		code VARCHAR(64) NOT NULL,
		name VARCHAR(256) NOT NULL,
		position INT NOT NULL DEFAULT 0,
		status VARCHAR(32) NOT NULL DEFAULT 'NOT_STARTED',
		budget NUMERIC(18,2) NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by UUID NOT NULL,
		updated_at TIMESTAMPTZ,
		updated_by UUID,
		deleted_at TIMESTAMPTZ,
		deleted_by UUID
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_wbs_project_code ON wbs_elements (project_id, code) WHERE deleted_at IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_wbs_parent_id ON wbs_elements (parent_id) WHERE parent_id IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_wbs_project_id ON wbs_elements (project_id);`,
	`CREATE TABLE IF NOT EXISTS control_accounts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID NOT NULL,
		phase_id UUID NOT NULL,
		wbs_element_id UUID NOT NULL REFERENCES wbs_elements(id),
		cam_user_id UUID NOT NULL,
		code VARCHAR(64) NOT NULL,
		name VARCHAR(256) NOT NULL,
		bac NUMERIC(18,2) NOT NULL,
		contingency_reserve NUMERIC(18,2) NOT NULL DEFAULT 0,
		management_reserve NUMERIC(18,2) NOT NULL DEFAULT 0,
		method VARCHAR(32) NOT NULL,
		percent_complete NUMERIC(8,4) NOT NULL DEFAULT 0,
		status VARCHAR(32) NOT NULL DEFAULT 'ACTIVE',
		was_baselined BOOLEAN NOT NULL DEFAULT FALSE,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by UUID NOT NULL,
		updated_at TIMESTAMPTZ,
		updated_by UUID,
		deleted_at TIMESTAMPTZ,
		deleted_by UUID
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_control_account_code ON control_accounts (project_id, code) WHERE deleted_at IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_control_accounts_project ON control_accounts (project_id);`,
	`CREATE TABLE IF NOT EXISTS budgets (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID NOT NULL,
		name VARCHAR(256) NOT NULL,
		budget_version INT NOT NULL DEFAULT 1,
		status VARCHAR(32) NOT NULL DEFAULT 'DRAFT',
		total_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		contingency NUMERIC(18,2) NOT NULL DEFAULT 0,
		management_reserve NUMERIC(18,2) NOT NULL DEFAULT 0,
		currency CHAR(3) NOT NULL,
		exchange_rate NUMERIC(18,6) NOT NULL DEFAULT 1,
		is_current_baseline BOOLEAN NOT NULL DEFAULT FALSE,
		revision_window_open BOOLEAN NOT NULL DEFAULT FALSE,
		rejection_reason TEXT,
		approved_by UUID,
		approved_at TIMESTAMPTZ,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by UUID NOT NULL,
		updated_at TIMESTAMPTZ,
		updated_by UUID,
		deleted_at TIMESTAMPTZ,
		deleted_by UUID
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_budget_current_baseline ON budgets (project_id) WHERE is_current_baseline AND deleted_at IS NULL;`,
	`CREATE TABLE IF NOT EXISTS budget_items (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		budget_id UUID NOT NULL REFERENCES budgets(id),
		control_account_id UUID REFERENCES control_accounts(id),
		description VARCHAR(512) NOT NULL,
		cost_type VARCHAR(64) NOT NULL DEFAULT '',
		category VARCHAR(64) NOT NULL DEFAULT '',
		quantity NUMERIC(18,4) NOT NULL,
		unit_rate NUMERIC(18,4) NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by UUID NOT NULL,
		updated_at TIMESTAMPTZ,
		updated_by UUID,
		deleted_at TIMESTAMPTZ,
		deleted_by UUID
	);`,
	`CREATE INDEX IF NOT EXISTS idx_budget_items_budget ON budget_items (budget_id);`,
	`CREATE TABLE IF NOT EXISTS budget_revisions (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		budget_id UUID NOT NULL REFERENCES budgets(id),
		revision_number INT NOT NULL,
		previous_total NUMERIC(18,2) NOT NULL,
		new_total NUMERIC(18,2) NOT NULL,
		reason TEXT NOT NULL,
		approved_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_budget_revision_number ON budget_revisions (budget_id, revision_number);`,
	`CREATE TABLE IF NOT EXISTS planning_packages (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID NOT NULL,
		wbs_element_id UUID NOT NULL REFERENCES wbs_elements(id),
		control_account_id UUID NOT NULL REFERENCES control_accounts(id),
		name VARCHAR(256) NOT NULL,
		budget NUMERIC(18,2) NOT NULL DEFAULT 0,
		planned_start_date DATE NOT NULL,
		planned_end_date DATE NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'FUTURE',
		discipline VARCHAR(64) NOT NULL DEFAULT '',
		responsible_user UUID NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by UUID NOT NULL,
		updated_at TIMESTAMPTZ,
		updated_by UUID,
		deleted_at TIMESTAMPTZ,
		deleted_by UUID
	);`,
	`CREATE TABLE IF NOT EXISTS work_packages (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID NOT NULL,
		wbs_element_id UUID NOT NULL REFERENCES wbs_elements(id),
		control_account_id UUID NOT NULL REFERENCES control_accounts(id),
		name VARCHAR(256) NOT NULL,
		budget NUMERIC(18,2) NOT NULL DEFAULT 0,
		progress NUMERIC(8,4) NOT NULL DEFAULT 0,
		planned_start_date DATE NOT NULL,
		planned_end_date DATE NOT NULL,
		planned_hours NUMERIC(12,2) NOT NULL DEFAULT 0,
		actual_hours NUMERIC(12,2) NOT NULL DEFAULT 0,
		actual_cost NUMERIC(18,2) NOT NULL DEFAULT 0,
		weight NUMERIC(6,4) NOT NULL DEFAULT 0,
		status VARCHAR(32) NOT NULL DEFAULT 'NOT_STARTED',
		discipline VARCHAR(64) NOT NULL DEFAULT '',
		responsible_user UUID NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by UUID NOT NULL,
		updated_at TIMESTAMPTZ,
		updated_by UUID,
		deleted_at TIMESTAMPTZ,
		deleted_by UUID
	);`,
	`CREATE INDEX IF NOT EXISTS idx_work_packages_account ON work_packages (control_account_id);`,
	`CREATE TABLE IF NOT EXISTS commitments (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID NOT NULL,
		control_account_id UUID REFERENCES control_accounts(id),
		contractor_id UUID,
		number VARCHAR(64) NOT NULL,
		title VARCHAR(256) NOT NULL DEFAULT '',
		is_fixed_price BOOLEAN NOT NULL,
		is_time_and_material BOOLEAN NOT NULL,
		contract_date DATE NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		currency CHAR(3) NOT NULL,
		original_amount NUMERIC(18,2) NOT NULL,
		revised_amount NUMERIC(18,2) NOT NULL,
		committed_amount NUMERIC(18,2) NOT NULL,
		invoiced_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		paid_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		retention_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		invoice_count INT NOT NULL DEFAULT 0,
		status VARCHAR(32) NOT NULL DEFAULT 'DRAFT',
		rejection_reason TEXT,
		approved_by UUID,
		approved_at TIMESTAMPTZ,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by UUID NOT NULL,
		updated_at TIMESTAMPTZ,
		updated_by UUID,
		deleted_at TIMESTAMPTZ,
		deleted_by UUID
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_commitment_number ON commitments (project_id, number) WHERE deleted_at IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_commitments_account ON commitments (control_account_id) WHERE control_account_id IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS commitment_items (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		commitment_id UUID NOT NULL REFERENCES commitments(id),
		description VARCHAR(512) NOT NULL,
		quantity NUMERIC(18,4) NOT NULL,
		unit_price NUMERIC(18,4) NOT NULL,
		discount NUMERIC(18,2) NOT NULL DEFAULT 0,
		tax_rate NUMERIC(5,2) NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by UUID NOT NULL,
		updated_at TIMESTAMPTZ,
		updated_by UUID,
		deleted_at TIMESTAMPTZ,
		deleted_by UUID
	);`,
	`CREATE TABLE IF NOT EXISTS commitment_revisions (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		commitment_id UUID NOT NULL REFERENCES commitments(id),
		revision_number INT NOT NULL,
		previous_amount NUMERIC(18,2) NOT NULL,
		new_amount NUMERIC(18,2) NOT NULL,
		change_amount NUMERIC(18,2) NOT NULL,
		change_percentage NUMERIC(8,4) NOT NULL,
		is_significant_change BOOLEAN NOT NULL DEFAULT FALSE,
		reason TEXT NOT NULL,
		change_order_ref VARCHAR(128) NOT NULL DEFAULT '',
		approved_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_commitment_revision_number ON commitment_revisions (commitment_id, revision_number);`,
	`CREATE TABLE IF NOT EXISTS commitment_wp_allocations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		commitment_id UUID NOT NULL REFERENCES commitments(id),
		wbs_element_id UUID NOT NULL REFERENCES wbs_elements(id),
		amount NUMERIC(18,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by UUID NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_allocations_commitment ON commitment_wp_allocations (commitment_id);`,
	`CREATE INDEX IF NOT EXISTS idx_allocations_wbs ON commitment_wp_allocations (wbs_element_id);`,
	`CREATE TABLE IF NOT EXISTS exchange_rates (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		currency CHAR(3) NOT NULL,
		rate NUMERIC(18,6) NOT NULL,
		valid_from TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_exchange_rates_currency ON exchange_rates (currency, valid_from);`,
	`CREATE TABLE IF NOT EXISTS cost_postings (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		control_account_id UUID NOT NULL REFERENCES control_accounts(id),
		wbs_element_id UUID REFERENCES wbs_elements(id),
		amount NUMERIC(18,2) NOT NULL,
		description VARCHAR(512) NOT NULL DEFAULT '',
		posted_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by UUID NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_cost_postings_account ON cost_postings (control_account_id, posted_at);`,
	`CREATE TABLE IF NOT EXISTS evm_records (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		control_account_id UUID NOT NULL REFERENCES control_accounts(id),
		project_id UUID NOT NULL,
		data_date TIMESTAMPTZ NOT NULL,
		period_type VARCHAR(16) NOT NULL,
		pv NUMERIC(18,2) NOT NULL,
		ev NUMERIC(18,2) NOT NULL,
		ac NUMERIC(18,2) NOT NULL,
		bac NUMERIC(18,2) NOT NULL,
		cpi NUMERIC(12,6),
		spi NUMERIC(12,6),
		eac NUMERIC(18,2) NOT NULL,
		etc NUMERIC(18,2) NOT NULL,
		vac NUMERIC(18,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by UUID NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_evm_records_account_date ON evm_records (control_account_id, data_date);`,
	`CREATE INDEX IF NOT EXISTS idx_evm_records_project_date ON evm_records (project_id, data_date);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
