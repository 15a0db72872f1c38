package jobs

import (
	"context"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Reminder is what a PLAN_REMINDER job announces.
type Reminder struct {
	PlanID    uint64
	UserID    uint64
	Date      *time.Time
	PlaceName string
	Tags      pq.StringArray `gorm:"type:text[]"`
}

// ReminderStore reads reminders straight from the plan tables.
type ReminderStore struct {
	DB *gorm.DB
}

// LoadReminder returns (nil, nil) when the plan no longer exists for the user.
func (s *ReminderStore) LoadReminder(ctx context.Context, planID, userID uint64) (*Reminder, error) {
	var rem Reminder
	res := s.DB.WithContext(ctx).Raw(`
		select p.id as plan_id,
		       p.user_id,
		       p.date,
		       pl.name as place_name,
		       coalesce(array_agg(t.name order by t.name) filter (where t.name is not null), '{}') as tags
		from plans p
		join places pl on pl.id = p.place_id
		left join plan_tags pt on pt.plan_id = p.id
		left join tags t on t.id = pt.tag_id
		where p.id = ? and p.user_id = ?
		group by p.id, pl.name
	`, planID, userID).Scan(&rem)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &rem, nil
}
