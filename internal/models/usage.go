package models

import "time"

// UsageSnapshot is a daily per-owner rollup of query volume, written by the
// nightly maintenance job and read by the analytics endpoints.
type UsageSnapshot struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	OwnerID      string    `gorm:"size:36;not null;index:idx_usage_owner_day,unique"`
	Day          string    `gorm:"size:10;not null;index:idx_usage_owner_day,unique"` // YYYY-MM-DD
	QueryCount   int64     `gorm:"not null"`
	ActiveAgents int64     `gorm:"not null"`
	CreatedAt    time.Time
}
