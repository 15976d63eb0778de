package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageCounter tracks per-company activity per calendar month. Period is
// "YYYY-MM". Counters only ever increase; the relational store provides
// the monotonic increment.
type UsageCounter struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CompanyID        uint      `gorm:"not null;index:ux_usage_company_period,unique,priority:1" json:"company_id"`
	Period           string    `gorm:"type:char(7);not null;index:ux_usage_company_period,unique,priority:2" json:"period"`
	ContractsCreated int64     `gorm:"not null;default:0" json:"contracts_created"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CurrentPeriod formats t as a usage period key.
func CurrentPeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// IncrementContractUsage bumps the counter for the company's current
// period, creating the row on first use.
func IncrementContractUsage(db *gorm.DB, companyID uint, period string) error {
	counter := &UsageCounter{CompanyID: companyID, Period: period, ContractsCreated: 1}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "company_id"},
			{Name: "period"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"contracts_created": gorm.Expr("contracts_created + 1"),
		}),
	}).Create(counter).Error
}
