package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/darkziah/better-auth-paymongo/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

const usageColumns = `id, entity_type, entity_id, feature_id, balance, limit_value, period_start, period_end, plan_id, checkout_session_id, created_at, updated_at`

func (r *repo) Find(ctx context.Context, db *gorm.DB, entityType ledgerdomain.EntityType, entityID, featureID string) (*ledgerdomain.UsageRecord, error) {
	var record ledgerdomain.UsageRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+usageColumns+`
		 FROM usage_records WHERE entity_type = ? AND entity_id = ? AND feature_id = ?`,
		entityType,
		entityID,
		featureID,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) ListByEntity(ctx context.Context, db *gorm.DB, entityType ledgerdomain.EntityType, entityID string) ([]ledgerdomain.UsageRecord, error) {
	var records []ledgerdomain.UsageRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+usageColumns+`
		 FROM usage_records WHERE entity_type = ? AND entity_id = ? ORDER BY feature_id ASC`,
		entityType,
		entityID,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *ledgerdomain.UsageRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_records (`+usageColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.EntityType,
		record.EntityID,
		record.FeatureID,
		record.Balance,
		record.Limit,
		record.PeriodStart,
		record.PeriodEnd,
		record.PlanID,
		record.CheckoutSessionID,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

func (r *repo) DeleteByEntity(ctx context.Context, db *gorm.DB, entityType ledgerdomain.EntityType, entityID string) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM usage_records WHERE entity_type = ? AND entity_id = ?`,
		entityType,
		entityID,
	).Error
}

// AdjustBalance clamps at zero inside the statement so concurrent writers
// cannot drive the balance negative.
func (r *repo) AdjustBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE usage_records
		 SET balance = CASE WHEN balance + ? < 0 THEN 0 ELSE balance + ? END, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		delta,
		delta,
		id,
	).Error
}

func (r *repo) ResetPeriod(ctx context.Context, db *gorm.DB, record *ledgerdomain.UsageRecord) error {
	return db.WithContext(ctx).Exec(
		`UPDATE usage_records
		 SET balance = ?, limit_value = ?, period_start = ?, period_end = ?, updated_at = ?
		 WHERE id = ?`,
		record.Balance,
		record.Limit,
		record.PeriodStart,
		record.PeriodEnd,
		record.UpdatedAt,
		record.ID,
	).Error
}
