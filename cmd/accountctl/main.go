package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"kwala.backend/internal/config"
	"kwala.backend/internal/domain/entities"
	"kwala.backend/internal/infrastructure/notifier"
	"kwala.backend/internal/infrastructure/store"
	"kwala.backend/internal/usecases"
	"kwala.backend/pkg/jwt"
	"kwala.backend/pkg/logger"
)

type accountRuntime interface {
	SweepExpired(ctx context.Context) (int64, error)
	EnsureIndexes(ctx context.Context) error
	QueryVerificationStatus(ctx context.Context, email string) (*entities.VerificationStatus, error)
	QueryResetStatus(ctx context.Context, email string) (*entities.ResetStatus, error)
}

type accountctlDeps struct {
	loadEnv func() error
	loadCfg func() *config.Config
	prepare func(ctx context.Context, cfg *config.Config) (accountRuntime, store.CloseFunc, error)
	out     io.Writer
}

func defaultAccountctlDeps() accountctlDeps {
	return accountctlDeps{
		loadEnv: func() error { return godotenv.Load() },
		loadCfg: config.Load,
		prepare: func(ctx context.Context, cfg *config.Config) (accountRuntime, store.CloseFunc, error) {
			repo, closeStore, err := store.Open(ctx, cfg)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to open account store: %w", err)
			}
			// the CLI never issues codes, so nothing is sent
			uc := usecases.NewCredentialUsecase(repo, notifier.LogSender{},
				jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry), cfg.Credentials)
			return uc, closeStore, nil
		},
		out: os.Stdout,
	}
}

func newAccountctlCommand(deps accountctlDeps) *cli.Command {
	var (
		runtime    accountRuntime
		closeStore store.CloseFunc
	)

	return &cli.Command{
		Name:   "accountctl",
		Usage:  "Maintain the account store",
		Writer: deps.out,
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if err := deps.loadEnv(); err != nil {
				log.Println("No .env file found, using environment variables")
			}
			cfg := deps.loadCfg()
			logger.Init(cfg.Server.Env)

			var err error
			runtime, closeStore, err = deps.prepare(ctx, cfg)
			return ctx, err
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			if closeStore == nil {
				return nil
			}
			return closeStore(ctx)
		},
		Commands: []*cli.Command{
			{
				Name:  "sweep",
				Usage: "Remove unverified registrations past their grace period",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					removed, err := runtime.SweepExpired(ctx)
					if err != nil {
						return fmt.Errorf("sweep failed: %w", err)
					}
					_, _ = fmt.Fprintf(deps.out, "removed=%d\n", removed)
					return nil
				},
			},
			{
				Name:  "ensure-indexes",
				Usage: "Create the unique email and deletion indexes",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := runtime.EnsureIndexes(ctx); err != nil {
						return fmt.Errorf("ensure indexes failed: %w", err)
					}
					_, _ = fmt.Fprintln(deps.out, "indexes ready")
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "Show the remaining lifetime of an account's codes",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Usage:    "account email",
						Required: true,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					email := cmd.String("email")
					verification, err := runtime.QueryVerificationStatus(ctx, email)
					if err != nil {
						return fmt.Errorf("failed to load verification status: %w", err)
					}
					reset, err := runtime.QueryResetStatus(ctx, email)
					if err != nil {
						return fmt.Errorf("failed to load reset status: %w", err)
					}
					_, _ = fmt.Fprintf(deps.out, "email=%s\n", email)
					_, _ = fmt.Fprintf(deps.out, "verification_remaining=%ds\n", verification.TimeRemaining)
					_, _ = fmt.Fprintf(deps.out, "reset_remaining=%ds\n", reset.TimeRemaining)
					return nil
				},
			},
		},
	}
}

func main() {
	if err := newAccountctlCommand(defaultAccountctlDeps()).Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
