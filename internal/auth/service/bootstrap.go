package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/pkg/cryptox"
	"github.com/aussiebroadwan/quill/pkg/slogx"
	"github.com/samber/oops"
)

var ErrBootstrapAlready = errors.New("system already bootstrapped")

// Bootstrap creates the first admin account of an empty database with a
// generated password, which is returned once and never stored in clear.
func (s *UserService) Bootstrap(ctx context.Context, email string) (domain.User, string, error) {
	l := slogx.FromContext(ctx)

	n, err := s.Store.Users().CountUsers(ctx)
	if err != nil {
		return domain.User{}, "", oops.Code("BOOTSTRAP_FAILED").Wrap(err)
	}
	if n > 0 {
		return domain.User{}, "", ErrBootstrapAlready
	}

	password, err := cryptox.GeneratePassword()
	if err != nil {
		return domain.User{}, "", oops.Code("BOOTSTRAP_FAILED").Wrap(err)
	}

	u, err := s.Create(ctx, CreateUserInput{
		Email:       email,
		Password:    password,
		DisplayName: "Administrator",
		Role:        domain.RoleAdmin,
	})
	if err != nil {
		l.Error("failed to create admin user", slog.Any("error", err))
		return domain.User{}, "", err
	}

	l.Info("successfully bootstrapped system", slog.String("admin_user_id", u.ID))
	return u, password, nil
}
