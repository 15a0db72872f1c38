package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("not found")

// Whitelist gates sign up to a fixed set of emails.
type Whitelist struct {
	DB *gorm.DB
}

func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func (w *Whitelist) Allowed(ctx context.Context, email string) (bool, error) {
	var n int64
	err := w.DB.WithContext(ctx).
		Model(&WhitelistEntry{}).
		Where("email = ?", NormalizeEmail(email)).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Add is a no-op when the email is already listed.
func (w *Whitelist) Add(ctx context.Context, email string) error {
	e := WhitelistEntry{Email: NormalizeEmail(email)}
	return w.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&e).Error
}

func (w *Whitelist) Remove(ctx context.Context, email string) error {
	res := w.DB.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		Delete(&WhitelistEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
