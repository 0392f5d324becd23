package model

import "time"

// TargetAttribute is a canonical attribute the data product exposes.
// Identity is immutable once a mapping references it; renaming means
// defining a new attribute.
type TargetAttribute struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name,omitempty"`
	Category    string    `json:"category,omitempty"`
	DataType    DataType  `json:"data_type"`
	Required    bool      `json:"required"`
	PII         bool      `json:"pii"`
	CreatedAt   time.Time `json:"created_at"`
}
