package model

import "time"

// SourceSystem is a registered upstream system that feeds the data product.
// Systems are never hard-deleted; they are deactivated instead so that
// historical mappings and job runs keep a valid owner.
type SourceSystem struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Owner         string     `json:"owner,omitempty"`
	Active        bool       `json:"active"`
	Degraded      bool       `json:"degraded"`
	LastScanError string     `json:"last_scan_error,omitempty"`
	LastScannedAt *time.Time `json:"last_scanned_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SourceAttribute is one attribute discovered by scanning a source system.
// A successful scan replaces the system's attribute set wholesale.
type SourceAttribute struct {
	ID             string   `json:"id"`
	SourceSystemID string   `json:"source_system_id"`
	Name           string   `json:"name"`
	DataType       DataType `json:"data_type"`
}

// DataType is the inferred or declared type of an attribute.
type DataType string

const (
	TypeText    DataType = "text"
	TypeInteger DataType = "integer"
	TypeReal    DataType = "real"
	TypeDate    DataType = "date"
	TypeBoolean DataType = "boolean"
)

// TypeCompatibility returns the multiplicative factor applied to a name
// similarity score when pairing a source attribute with a target attribute:
// 1.0 for an exact type match, 0.6 when the source type can be coerced to
// the target type, 0.1 when the types are incompatible.
func TypeCompatibility(source, target DataType) float64 {
	if source == target {
		return 1.0
	}
	if coercible(source, target) {
		return 0.6
	}
	return 0.1
}

func coercible(from, to DataType) bool {
	switch to {
	case TypeText:
		// Everything renders as text.
		return true
	case TypeReal:
		return from == TypeInteger || from == TypeText
	case TypeInteger:
		return from == TypeReal || from == TypeText
	case TypeDate:
		return from == TypeText
	case TypeBoolean:
		return from == TypeText || from == TypeInteger
	}
	return false
}
