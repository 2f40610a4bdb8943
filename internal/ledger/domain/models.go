// Package domain contains persistence models for the usage ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EntityType scopes a usage record to a user or an organization.
type EntityType string

const (
	EntityTypeUser         EntityType = "user"
	EntityTypeOrganization EntityType = "organization"
)

// Valid reports whether the entity type is a known scope.
func (t EntityType) Valid() bool {
	return t == EntityTypeUser || t == EntityTypeOrganization
}

// UsageRecord tracks the remaining allowance for one feature of one entity.
// Balance counts down from the limit; consumed usage is always derived as
// limit - balance, never stored.
type UsageRecord struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	EntityType        EntityType   `gorm:"type:text;not null;uniqueIndex:idx_usage_entity_feature"`
	EntityID          string       `gorm:"type:text;not null;uniqueIndex:idx_usage_entity_feature"`
	FeatureID         string       `gorm:"type:text;not null;uniqueIndex:idx_usage_entity_feature"`
	Balance           int64        `gorm:"not null"`
	Limit             int64        `gorm:"column:limit_value;not null"`
	PeriodStart       time.Time    `gorm:"not null"`
	PeriodEnd         time.Time    `gorm:"not null"`
	PlanID            string       `gorm:"type:text;not null"`
	CheckoutSessionID *string      `gorm:"type:text"`
	CreatedAt         time.Time    `gorm:"not null"`
	UpdatedAt         time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }
