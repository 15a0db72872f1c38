package place

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Place is a deduplicated physical location. (Name, Latitude, Longitude)
// identifies a row; ExternalID is the third-party id and may be reissued.
type Place struct {
	ID         uint64    `gorm:"primaryKey"`
	ExternalID string    `gorm:"not null"`
	Name       string    `gorm:"not null;uniqueIndex:uq_places_location,priority:1"`
	Address    string    `gorm:"not null"`
	Latitude   float64   `gorm:"not null;uniqueIndex:uq_places_location,priority:2"`
	Longitude  float64   `gorm:"not null;uniqueIndex:uq_places_location,priority:3"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// Candidate is place data as reported by a search selection.
type Candidate struct {
	ExternalID string
	Name       string
	Address    string
	Latitude   float64
	Longitude  float64
}

var ErrInvalidCandidate = errors.New("invalid place")

func (c Candidate) Validate() error {
	switch {
	case strings.TrimSpace(c.ExternalID) == "":
		return fmt.Errorf("%w: place id required", ErrInvalidCandidate)
	case strings.TrimSpace(c.Name) == "":
		return fmt.Errorf("%w: name required", ErrInvalidCandidate)
	case strings.TrimSpace(c.Address) == "":
		return fmt.Errorf("%w: address required", ErrInvalidCandidate)
	case c.Latitude < -90 || c.Latitude > 90:
		return fmt.Errorf("%w: latitude out of range", ErrInvalidCandidate)
	case c.Longitude < -180 || c.Longitude > 180:
		return fmt.Errorf("%w: longitude out of range", ErrInvalidCandidate)
	}
	return nil
}

func (c Candidate) place() Place {
	return Place{
		ExternalID: c.ExternalID,
		Name:       c.Name,
		Address:    c.Address,
		Latitude:   c.Latitude,
		Longitude:  c.Longitude,
	}
}

// Outcome reports what ResolveOrCreate did to storage.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)
