package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"planahead/internal/observability"
	"planahead/internal/place"
)

var ErrNotFound = errors.New("not found")

var tracer = otel.Tracer("planahead/plan")

type Service struct {
	DB      *gorm.DB
	Places  *place.Repository
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Now is the clock used for horizon boundaries; nil means time.Now.
	Now func() time.Time
}

type UpdateInput struct {
	Date time.Time
	Tags []string
	// Detail replaces the free-form text when non-nil.
	Detail *string
}

// CreatePlan stores an unscheduled plan for userID at the resolved place.
func (s *Service) CreatePlan(ctx context.Context, userID uint64, c place.Candidate) (uint64, error) {
	ctx, span := tracer.Start(ctx, "plan.CreatePlan")
	defer span.End()

	var (
		p       Plan
		pl      *place.Place
		outcome place.Outcome
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		pl, outcome, err = s.Places.ResolveOrCreateTx(tx, c)
		if err != nil {
			return err
		}

		p = Plan{UserID: userID, PlaceID: pl.ID}
		if err := tx.Omit(clause.Associations).Create(&p).Error; err != nil {
			return fmt.Errorf("create plan: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	s.Places.Record(ctx, pl, outcome)
	span.SetAttributes(attribute.Int64("plan.id", int64(p.ID)))
	s.logger().Info("plan created",
		zap.Uint64("plan_id", p.ID),
		zap.Uint64("user_id", userID),
		zap.Uint64("place_id", p.PlaceID),
	)
	if s.Metrics != nil {
		s.Metrics.PlanCreated(ctx)
	}
	return p.ID, nil
}

// ListPlans returns userID's plans on one side of the current time, earliest
// first. Unscheduled plans fall on neither side.
func (s *Service) ListPlans(ctx context.Context, userID uint64, h Horizon) ([]Summary, error) {
	ctx, span := tracer.Start(ctx, "plan.ListPlans",
		trace.WithAttributes(attribute.String("plan.horizon", string(h))))
	defer span.End()

	q := s.DB.WithContext(ctx).
		Preload("Place").
		Where("user_id = ?", userID)

	now := s.now()
	switch h {
	case HorizonNew:
		q = q.Where("date >= ?", now)
	case HorizonOld:
		q = q.Where("date < ?", now)
	default:
		return nil, ErrInvalidHorizon
	}

	var rows []Plan
	if err := q.Order("date asc").Order("id asc").Find(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list plans: %w", err)
	}

	out := make([]Summary, 0, len(rows))
	for i := range rows {
		out = append(out, Summary{
			ID:    rows[i].ID,
			Date:  FormatDate(rows[i].Date),
			Place: summarize(rows[i].Place),
		})
	}
	span.SetAttributes(attribute.Int("plan.count", len(out)))
	return out, nil
}

// GetPlan returns the plan only when it is owned by userID; (nil, nil) otherwise.
func (s *Service) GetPlan(ctx context.Context, id, userID uint64) (*Detail, error) {
	ctx, span := tracer.Start(ctx, "plan.GetPlan")
	defer span.End()

	var p Plan
	err := s.DB.WithContext(ctx).
		Preload("Place").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name asc") }).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get plan %d: %w", id, err)
	}

	tags := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		tags = append(tags, t.Name)
	}
	return &Detail{
		ID:     p.ID,
		Date:   FormatDate(p.Date),
		Detail: p.Detail,
		Tags:   tags,
		Place:  summarize(p.Place),
	}, nil
}

// UpdatePlan sets the plan date and attaches tags by name. Tags are only
// ever added. Ownership is not checked here.
func (s *Service) UpdatePlan(ctx context.Context, planID uint64, in UpdateInput) error {
	ctx, span := tracer.Start(ctx, "plan.UpdatePlan")
	defer span.End()

	names := NormalizeTags(in.Tags)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Plan
		if err := tx.Select("id").Take(&p, planID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		updates := map[string]any{"date": in.Date.UTC()}
		if in.Detail != nil {
			updates["detail"] = *in.Detail
		}
		if err := tx.Model(&p).Updates(updates).Error; err != nil {
			return fmt.Errorf("update plan %d: %w", planID, err)
		}

		if len(names) == 0 {
			return nil
		}
		tags, err := ensureTags(tx, names)
		if err != nil {
			return err
		}

		links := make([]PlanTag, 0, len(tags))
		for _, t := range tags {
			links = append(links, PlanTag{PlanID: p.ID, TagID: t.ID})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
			return fmt.Errorf("attach tags: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.logger().Info("plan updated",
		zap.Uint64("plan_id", planID),
		zap.Time("date", in.Date.UTC()),
		zap.Strings("tags", names),
	)
	return nil
}

// ensureTags returns the tag rows for names, creating the missing ones.
func ensureTags(tx *gorm.DB, names []string) ([]Tag, error) {
	rows := make([]Tag, 0, len(names))
	for _, n := range names {
		rows = append(rows, Tag{Name: n})
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("create tags: %w", err)
	}

	var tags []Tag
	if err := tx.Where("name IN ?", names).Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	if len(tags) != len(names) {
		return nil, fmt.Errorf("load tags: want %d, got %d", len(names), len(tags))
	}
	return tags, nil
}

// NormalizeTags trims names, drops empties and keeps the first of duplicates.
func NormalizeTags(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
