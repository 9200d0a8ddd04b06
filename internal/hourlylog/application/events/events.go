package events

import "time"

// RecordSaved is published after a log record upsert succeeds.
type RecordSaved struct {
	OwnerID  string    `json:"owner_id"`
	EntityID string    `json:"entity_id"`
	Date     time.Time `json:"date"`
	Hour     int       `json:"hour"`
	SavedAt  time.Time `json:"saved_at"`
}

// ProblemDetected is published for each danger-classified reading in a
// saved record. Consumed by the issues context.
type ProblemDetected struct {
	OwnerID  string    `json:"owner_id"`
	EntityID string    `json:"entity_id"`
	Field    string    `json:"field"`
	Value    float64   `json:"value"`
	RangeMin float64   `json:"range_min"`
	RangeMax float64   `json:"range_max"`
	Unit     string    `json:"unit"`
	At       time.Time `json:"at"`
}

// DayFinalized is published when a complete day sheet is locked.
type DayFinalized struct {
	OwnerID  string    `json:"owner_id"`
	EntityID string    `json:"entity_id"`
	Date     time.Time `json:"date"`
	At       time.Time `json:"at"`
}
