// Package catalog holds the static plan, feature and addon configuration the
// billing endpoints are evaluated against.
package catalog

import (
	"errors"
	"strings"
)

type FeatureType string

const (
	FeatureTypeBoolean FeatureType = "boolean"
	FeatureTypeMetered FeatureType = "metered"
)

type PlanInterval string

const (
	IntervalMonthly PlanInterval = "monthly"
	IntervalYearly  PlanInterval = "yearly"
)

// Months returns the number of months in one billing interval.
func (i PlanInterval) Months() int {
	if i == IntervalYearly {
		return 12
	}
	return 1
}

type AddonType string

const (
	AddonTypeQuantity AddonType = "quantity"
	AddonTypeFlat     AddonType = "flat"
)

// FeatureConfig defines a feature as boolean entitlement or metered allowance.
type FeatureConfig struct {
	Type  FeatureType `mapstructure:"type"`
	Limit int64       `mapstructure:"limit"`
}

// PlanConfig defines pricing and feature access for one plan.
type PlanConfig struct {
	DisplayName     string         `mapstructure:"display_name"`
	Amount          int64          `mapstructure:"amount"`
	Currency        string         `mapstructure:"currency"`
	Interval        PlanInterval   `mapstructure:"interval"`
	TrialPeriodDays int            `mapstructure:"trial_period_days"`
	Features        map[string]any `mapstructure:"features"`
}

// AddonConfig defines a purchasable addon granting per-feature limit bonuses.
type AddonConfig struct {
	DisplayName  string           `mapstructure:"display_name"`
	Type         AddonType        `mapstructure:"type"`
	LimitBonuses map[string]int64 `mapstructure:"limit_bonuses"`
}

// Catalog is the full billing configuration snapshot.
type Catalog struct {
	Features map[string]FeatureConfig `mapstructure:"features"`
	Plans    map[string]PlanConfig    `mapstructure:"plans"`
	Addons   map[string]AddonConfig   `mapstructure:"addons"`
}

// FeatureGrant is a plan's normalized grant for a single feature.
type FeatureGrant struct {
	FeatureID string
	Type      FeatureType
	Enabled   bool
	Limit     int64
}

var (
	ErrPlanNotFound    = errors.New("plan_not_found")
	ErrFeatureNotFound = errors.New("feature_not_found")
	ErrAddonNotFound   = errors.New("addon_not_found")
)

// Plan looks up a plan by id.
func (c Catalog) Plan(planID string) (PlanConfig, error) {
	plan, ok := c.Plans[strings.TrimSpace(planID)]
	if !ok {
		return PlanConfig{}, ErrPlanNotFound
	}
	return plan, nil
}

// Feature looks up a feature definition by id.
func (c Catalog) Feature(featureID string) (FeatureConfig, error) {
	feature, ok := c.Features[strings.TrimSpace(featureID)]
	if !ok {
		return FeatureConfig{}, ErrFeatureNotFound
	}
	return feature, nil
}

// Addon looks up an addon definition by id.
func (c Catalog) Addon(addonID string) (AddonConfig, error) {
	addon, ok := c.Addons[strings.TrimSpace(addonID)]
	if !ok {
		return AddonConfig{}, ErrAddonNotFound
	}
	return addon, nil
}

// Grants normalizes a plan's feature map against the feature definitions.
// Boolean features yield Enabled; metered features yield the plan's numeric
// limit, falling back to the feature's default limit when the plan grants
// `true` without a number.
func (c Catalog) Grants(planID string) ([]FeatureGrant, error) {
	plan, err := c.Plan(planID)
	if err != nil {
		return nil, err
	}

	grants := make([]FeatureGrant, 0, len(plan.Features))
	for featureID, raw := range plan.Features {
		def, ok := c.Features[featureID]
		if !ok {
			continue
		}
		grant := FeatureGrant{FeatureID: featureID, Type: def.Type}
		switch def.Type {
		case FeatureTypeBoolean:
			grant.Enabled = truthy(raw)
		case FeatureTypeMetered:
			limit, ok := numeric(raw)
			if !ok {
				if !truthy(raw) {
					continue
				}
				limit = def.Limit
			}
			grant.Enabled = true
			grant.Limit = limit
		}
		if grant.Enabled {
			grants = append(grants, grant)
		}
	}
	return grants, nil
}

// MeteredLimit returns the plan's base limit for a metered feature.
func (c Catalog) MeteredLimit(planID, featureID string) (int64, error) {
	grants, err := c.Grants(planID)
	if err != nil {
		return 0, err
	}
	for _, g := range grants {
		if g.FeatureID == featureID && g.Type == FeatureTypeMetered {
			return g.Limit, nil
		}
	}
	return 0, ErrFeatureNotFound
}

// AddonBonus computes the total limit bonus for a feature across owned addons.
func (c Catalog) AddonBonus(featureID string, owned map[string]int64) int64 {
	var bonus int64
	for addonID, qty := range owned {
		addon, ok := c.Addons[addonID]
		if !ok || qty <= 0 {
			continue
		}
		if perUnit, ok := addon.LimitBonuses[featureID]; ok {
			bonus += perUnit * qty
		}
	}
	return bonus
}

func truthy(v any) bool {
	switch typed := v.(type) {
	case bool:
		return typed
	case int:
		return typed > 0
	case int64:
		return typed > 0
	case float64:
		return typed > 0
	default:
		return false
	}
}

func numeric(v any) (int64, bool) {
	switch typed := v.(type) {
	case int:
		return int64(typed), true
	case int64:
		return typed, true
	case float64:
		return int64(typed), true
	case uint64:
		return int64(typed), true
	default:
		return 0, false
	}
}
