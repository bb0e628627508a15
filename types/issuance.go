package types

import "time"

// IssuanceRecord представляет запись в таблице link_issuances
type IssuanceRecord struct {
	CorrelationID string    `json:"correlation_id" db:"correlation_id"`
	IssuedAt      time.Time `json:"issued_at" db:"issued_at"`
	ReturnURL     string    `json:"return_url" db:"return_url"`
	SingleUse     bool      `json:"single_use" db:"single_use"`
	ExpiresAt     time.Time `json:"expires_at" db:"expires_at"`
}

// Expired сообщает, истек ли срок хранения записи к моменту now
func (r *IssuanceRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
