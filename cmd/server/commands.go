package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lexpost/internal/auth"
	"lexpost/internal/database"
	"lexpost/internal/domain"
	"lexpost/internal/logger"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.NewDB(&cfg.Database)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Get().Info("migrations applied", "driver", cfg.Database.Driver)
			return nil
		},
	}
}

func newSeedAdminCommand() *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an admin profile or promote an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.NewDB(&cfg.Database)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			p, err := database.SeedAdmin(cmd.Context(), db, email, name)
			if err != nil {
				return err
			}
			logger.Get().Info("admin ready", "user_id", p.ID, "email", p.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&name, "name", "Administrator", "admin full name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// newDevTokenCommand mints a bearer token signed with auth.jwt_secret, for local testing
// against the jwt provider.
func newDevTokenCommand() *cobra.Command {
	var (
		userID uint
		email  string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dev-token",
		Short: "Print a signed bearer token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !domain.Role(role).Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := auth.GenerateAccessToken(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, userID, email, domain.Role(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user-id", 1, "subject user id")
	cmd.Flags().StringVar(&email, "email", "dev@lexpost.local", "email claim")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleUser), "role claim (user, employee, admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
