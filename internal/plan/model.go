package plan

import (
	"time"

	"planahead/internal/auth"
	"planahead/internal/place"
)

// Plan is a user's visit to a place. A nil Date means it is not scheduled yet.
type Plan struct {
	ID        uint64       `gorm:"primaryKey"`
	UserID    uint64       `gorm:"index;not null"`
	User      *auth.User   `gorm:"constraint:OnDelete:CASCADE"`
	PlaceID   uint64       `gorm:"index;not null"`
	Place     *place.Place `gorm:"constraint:OnDelete:RESTRICT"`
	Date      *time.Time   `gorm:"index"`
	Detail    *string
	Tags      []Tag     `gorm:"many2many:plan_tags"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Tag names are global and shared across plans.
type Tag struct {
	ID        uint64    `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// PlanTag is the plan_tags join table.
type PlanTag struct {
	PlanID uint64 `gorm:"primaryKey"`
	TagID  uint64 `gorm:"primaryKey"`
}

type State string

const (
	StateUnscheduled State = "unscheduled"
	StateScheduled   State = "scheduled"
)

func (p *Plan) State() State {
	if p.Date == nil {
		return StateUnscheduled
	}
	return StateScheduled
}

type PlaceSummary struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Summary is one entry of ListPlans.
type Summary struct {
	ID    uint64       `json:"id"`
	Date  *string      `json:"date"`
	Place PlaceSummary `json:"place"`
}

// Detail is the result of GetPlan.
type Detail struct {
	ID     uint64       `json:"id"`
	Date   *string      `json:"date"`
	Detail *string      `json:"detail"`
	Tags   []string     `json:"tags"`
	Place  PlaceSummary `json:"place"`
}

// dateLayout renders UTC instants with millisecond precision, e.g.
// 2025-06-01T00:00:00.000Z.
const dateLayout = "2006-01-02T15:04:05.000Z07:00"

func FormatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(dateLayout)
	return &s
}

func summarize(p *place.Place) PlaceSummary {
	if p == nil {
		return PlaceSummary{}
	}
	return PlaceSummary{Name: p.Name, Address: p.Address}
}
