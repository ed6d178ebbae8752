package models

import "time"

// Preference is a keyed user preference. Value holds JSON.
type Preference struct {
	Key       string    `json:"key" gorm:"primaryKey;size:128"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}
