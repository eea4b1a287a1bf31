package controllers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/projecthub/app/models"
	"github.com/ManuelReschke/projecthub/app/repository"
)

var accountNameInvalid = regexp.MustCompile(`[^a-z0-9-]+`)

// accountSlug derives an account name from a display name.
func accountSlug(name string) string {
	s := accountNameInvalid.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	s = strings.Trim(s, "-")
	if len(s) < 2 {
		s = "user"
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}

// ensurePersonalAccount returns the user's account, creating it on first use.
func ensurePersonalAccount(ctx context.Context, accounts repository.AccountRepository, user *models.User) (*models.Account, error) {
	acc, err := accounts.GetByUserID(ctx, user.ID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	base := accountSlug(user.Name)
	for _, name := range []string{base, fmt.Sprintf("%s-%d", base, user.ID)} {
		acc, err = models.NewUserAccount(name, user.ID)
		if err != nil {
			return nil, err
		}
		err = accounts.Create(ctx, acc)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("account name %q unavailable: %w", base, err)
}
