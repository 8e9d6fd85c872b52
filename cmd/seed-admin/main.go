// seed-admin creates the first admin account so the dashboard is reachable.
// It is idempotent: an existing account with the same email is left alone.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/auth"
	"github.com/deskflow/helpdesk/internal/config"
	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/observability"
	"github.com/deskflow/helpdesk/internal/persistence"
	"github.com/deskflow/helpdesk/internal/repository"
	"github.com/deskflow/helpdesk/internal/service"
)

type options struct {
	email    string
	password string
	skills   []string
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	opts, err := parseFlags(args, out)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required")
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	user, created, err := seedAdmin(ctx, repository.NewUserRepository(pg.PoolHandle()), opts, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	if !created {
		logger.Info("admin already exists", zap.String("email", user.Email), zap.String("role", string(user.Role)))
		fmt.Fprintf(out, "account %s already exists (role %s)\n", user.Email, user.Role)
		return nil
	}
	logger.Info("admin created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	fmt.Fprintf(out, "created admin %s (%s)\n", user.Email, user.ID)
	return nil
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("seed-admin", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVar(&opts.email, "email", "admin@example.com", "admin email address")
	flagSet.StringVar(&opts.password, "password", "", "admin password (required)")
	flagSet.StringSliceVar(&opts.skills, "skills", []string{"system-administration"}, "comma separated skills")

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	opts.email = service.NormalizeEmail(opts.email)
	if opts.email == "" {
		return opts, errors.New("--email must not be empty")
	}
	if strings.TrimSpace(opts.password) == "" {
		return opts, errors.New("--password is required")
	}
	return opts, nil
}

// seedAdmin creates the admin unless the email is taken. It reports whether
// an account was created.
func seedAdmin(ctx context.Context, users repository.UserRepository, opts options, bcryptCost int) (*domain.User, bool, error) {
	existing, err := users.GetByEmail(ctx, opts.email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("look up %s: %w", opts.email, err)
	}

	hash, err := auth.HashPassword(opts.password, bcryptCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		Email:        opts.email,
		PasswordHash: hash,
		Role:         domain.UserRoleAdmin,
		Skills:       service.CleanSkills(opts.skills),
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("create admin: %w", err)
	}
	return user, true, nil
}
