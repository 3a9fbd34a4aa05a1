package repository

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RateRepository serves exchange rates loaded by the finance integration. The
// newest rate at or before the requested date wins.
type RateRepository struct {
	db *gorm.DB
}

func NewRateRepository(db *gorm.DB) *RateRepository {
	return &RateRepository{db: db}
}

func (r *RateRepository) GetRate(ctx context.Context, currency string, at time.Time) (decimal.Decimal, error) {
	var row struct {
		Rate decimal.Decimal
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT rate
		FROM exchange_rates
		WHERE currency = ? AND valid_from <= ?
		ORDER BY valid_from DESC
		LIMIT 1
	`, strings.ToUpper(strings.TrimSpace(currency)), at).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	if row.Rate.IsZero() {
		return decimal.Zero, gorm.ErrRecordNotFound
	}
	return row.Rate, nil
}
