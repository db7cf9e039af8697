package models

import (
	"time"
)

//StoredValue is one persisted client setting, keyed by name
type StoredValue struct {
	Name      string `gorm:"primaryKey;size:64"`
	Value     string
	UpdatedAt time.Time
}
