package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/quill/internal/auth/app"
	"github.com/aussiebroadwan/quill/internal/auth/domain"
	"github.com/aussiebroadwan/quill/internal/auth/service"
	"github.com/aussiebroadwan/quill/pkg/cryptox"
	"github.com/aussiebroadwan/quill/pkg/slogx"
)

// NewUserCmd creates the user administration subcommands.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserSetRoleCmd())
	cmd.AddCommand(newUserActiveCmd("activate", true))
	cmd.AddCommand(newUserActiveCmd("deactivate", false))
	return cmd
}

// withUsers opens the store and hands a UserService to fn.
func withUsers(cmd *cobra.Command, fn func(ctx context.Context, users *service.UserService) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg)
	ctx := slogx.WithContext(cmd.Context(), logger)

	db, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	hasher, err := app.NewHasher(cfg)
	if err != nil {
		return err
	}
	return fn(ctx, &service.UserService{Store: db, Hasher: hasher})
}

func parseRole(s string) (domain.Role, error) {
	role, err := domain.ParseRole(s)
	if err != nil {
		return "", oops.Code("INVALID_ARGUMENT").With("role", s).Errorf("role must be admin, dev, editor or viewer")
	}
	return role, nil
}

func newUserCreateCmd() *cobra.Command {
	var (
		email       string
		password    string
		displayName string
		role        string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long:  `Create an account. Without --password a random one is generated and printed once.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			generated := password == ""
			if generated {
				if password, err = cryptox.GeneratePassword(); err != nil {
					return err
				}
			}

			return withUsers(cmd, func(ctx context.Context, users *service.UserService) error {
				u, err := users.Create(ctx, service.CreateUserInput{
					Email:       email,
					Password:    password,
					DisplayName: displayName,
					Role:        r,
				})
				if err != nil {
					return err
				}
				cmd.Printf("Created %s (%s) with role %s\n", u.Email, u.ID, u.Role)
				if generated {
					cmd.Printf("Password: %s\n", password)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&password, "password", "", "account password, generated when empty")
	cmd.Flags().StringVar(&displayName, "display-name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleViewer), "role (admin, dev, editor, viewer)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserSetRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role EMAIL ROLE",
		Short: "Change the role of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRole(args[1])
			if err != nil {
				return err
			}
			return withUsers(cmd, func(ctx context.Context, users *service.UserService) error {
				u, err := users.SetRole(ctx, args[0], r)
				if err != nil {
					return err
				}
				cmd.Printf("%s is now %s\n", u.Email, u.Role)
				return nil
			})
		},
	}
}

func newUserActiveCmd(use string, active bool) *cobra.Command {
	short := "Re-enable sign in for an account"
	if !active {
		short = "Block sign in for an account and revoke its sessions"
	}
	return &cobra.Command{
		Use:   use + " EMAIL",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(cmd, func(ctx context.Context, users *service.UserService) error {
				u, err := users.SetActive(ctx, args[0], active)
				if err != nil {
					return err
				}
				cmd.Printf("%s %sd\n", u.Email, use)
				return nil
			})
		},
	}
}
