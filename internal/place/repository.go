package place

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"planahead/internal/observability"
)

var tracer = otel.Tracer("planahead/place")

type Repository struct {
	DB      *gorm.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// ResolveOrCreate returns the place stored under the candidate's name and
// coordinates, creating it when absent and refreshing its external id when
// the candidate reports a different one.
func (r *Repository) ResolveOrCreate(ctx context.Context, c Candidate) (*Place, Outcome, error) {
	ctx, span := tracer.Start(ctx, "place.ResolveOrCreate")
	defer span.End()

	var (
		p   *Place
		out Outcome
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, out, err = r.ResolveOrCreateTx(tx, c)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve place")
		return nil, "", err
	}
	span.SetAttributes(attribute.String("place.outcome", string(out)), attribute.Int64("place.id", int64(p.ID)))
	r.Record(ctx, p, out)
	return p, out, nil
}

// ResolveOrCreateTx is ResolveOrCreate inside a caller-owned transaction.
// It does not record the outcome; call Record once the transaction commits.
func (r *Repository) ResolveOrCreateTx(tx *gorm.DB, c Candidate) (*Place, Outcome, error) {
	found, err := findByLocation(tx, c)
	if err != nil {
		return nil, "", err
	}

	if found == nil {
		p := c.place()
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&p)
		if res.Error != nil {
			return nil, "", fmt.Errorf("create place: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return &p, OutcomeCreated, nil
		}

		// a concurrent insert won the unique index
		found, err = findByLocation(tx, c)
		if err != nil {
			return nil, "", err
		}
		if found == nil {
			return nil, "", fmt.Errorf("place %q missing after conflicting insert", c.Name)
		}
	}

	if found.ExternalID != c.ExternalID {
		if err := tx.Model(found).Update("external_id", c.ExternalID).Error; err != nil {
			return nil, "", fmt.Errorf("update place %d: %w", found.ID, err)
		}
		found.ExternalID = c.ExternalID
		return found, OutcomeUpdated, nil
	}

	return found, OutcomeUnchanged, nil
}

func findByLocation(tx *gorm.DB, c Candidate) (*Place, error) {
	var p Place
	err := tx.Where("name = ? AND latitude = ? AND longitude = ?", c.Name, c.Latitude, c.Longitude).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find place: %w", err)
	}
	return &p, nil
}

// Record logs a committed resolution and counts it in metrics.
func (r *Repository) Record(ctx context.Context, p *Place, out Outcome) {
	if r.Logger != nil {
		r.Logger.Debug("place resolved",
			zap.Uint64("place_id", p.ID),
			zap.String("external_id", p.ExternalID),
			zap.String("outcome", string(out)),
		)
	}
	if r.Metrics != nil {
		r.Metrics.PlaceResolved(ctx, string(out))
	}
}
