package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kwala.backend/internal/config"
	"kwala.backend/internal/domain/entities"
	"kwala.backend/internal/infrastructure/store"
)

type runtimeStub struct {
	sweepFn        func(ctx context.Context) (int64, error)
	ensureFn       func(ctx context.Context) error
	verifyStatusFn func(ctx context.Context, email string) (*entities.VerificationStatus, error)
	resetStatusFn  func(ctx context.Context, email string) (*entities.ResetStatus, error)
}

func (s runtimeStub) SweepExpired(ctx context.Context) (int64, error) { return s.sweepFn(ctx) }
func (s runtimeStub) EnsureIndexes(ctx context.Context) error { return s.ensureFn(ctx) }
func (s runtimeStub) QueryVerificationStatus(ctx context.Context, email string) (*entities.VerificationStatus, error) {
	return s.verifyStatusFn(ctx, email)
}
func (s runtimeStub) QueryResetStatus(ctx context.Context, email string) (*entities.ResetStatus, error) {
	return s.resetStatusFn(ctx, email)
}

func stubDeps(rt accountRuntime, out *bytes.Buffer, closed *bool) accountctlDeps {
	return accountctlDeps{
		loadEnv: func() error { return errors.New("no .env") },
		loadCfg: func() *config.Config { return &config.Config{Server: config.ServerConfig{Env: "development"}} },
		prepare: func(context.Context, *config.Config) (accountRuntime, store.CloseFunc, error) {
			return rt, func(context.Context) error { *closed = true; return nil }, nil
		},
		out: out,
	}
}

func TestAccountctl_Sweep(t *testing.T) {
	var out bytes.Buffer
	var closed bool
	rt := runtimeStub{sweepFn: func(context.Context) (int64, error) { return 3, nil }}

	err := newAccountctlCommand(stubDeps(rt, &out, &closed)).Run(context.Background(), []string{"accountctl", "sweep"})
	require.NoError(t, err)
	require.Equal(t, "removed=3\n", out.String())
	require.True(t, closed)
}

func TestAccountctl_SweepError(t *testing.T) {
	var out bytes.Buffer
	var closed bool
	rt := runtimeStub{sweepFn: func(context.Context) (int64, error) { return 0, errors.New("store down") }}

	err := newAccountctlCommand(stubDeps(rt, &out, &closed)).Run(context.Background(), []string{"accountctl", "sweep"})
	require.ErrorContains(t, err, "sweep failed: store down")
}

func TestAccountctl_EnsureIndexes(t *testing.T) {
	var out bytes.Buffer
	var closed bool
	called := false
	rt := runtimeStub{ensureFn: func(context.Context) error { called = true; return nil }}

	err := newAccountctlCommand(stubDeps(rt, &out, &closed)).Run(context.Background(), []string{"accountctl", "ensure-indexes"})
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, "indexes ready\n", out.String())
}

func TestAccountctl_Status(t *testing.T) {
	var out bytes.Buffer
	var closed bool
	rt := runtimeStub{
		verifyStatusFn: func(_ context.Context, email string) (*entities.VerificationStatus, error) {
			require.Equal(t, "a@x.com", email)
			return &entities.VerificationStatus{TimeRemaining: 120, ExactDuration: 120}, nil
		},
		resetStatusFn: func(context.Context, string) (*entities.ResetStatus, error) {
			return &entities.ResetStatus{}, nil
		},
	}

	err := newAccountctlCommand(stubDeps(rt, &out, &closed)).Run(context.Background(), []string{"accountctl", "status", "--email", "a@x.com"})
	require.NoError(t, err)
	require.Equal(t, "email=a@x.com\nverification_remaining=120s\nreset_remaining=0s\n", out.String())
}

func TestAccountctl_StatusRequiresEmail(t *testing.T) {
	var out bytes.Buffer
	var closed bool

	err := newAccountctlCommand(stubDeps(runtimeStub{}, &out, &closed)).Run(context.Background(), []string{"accountctl", "status"})
	require.Error(t, err)
}

func TestAccountctl_PrepareError(t *testing.T) {
	var out bytes.Buffer
	deps := stubDeps(runtimeStub{}, &out, new(bool))
	deps.prepare = func(context.Context, *config.Config) (accountRuntime, store.CloseFunc, error) {
		return nil, nil, errors.New("failed to open account store")
	}

	err := newAccountctlCommand(deps).Run(context.Background(), []string{"accountctl", "sweep"})
	require.ErrorContains(t, err, "failed to open account store")
}

func TestAccountctl_DefaultRuntimeOnSQLite(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "development"},
		Store: config.StoreConfig{
			Driver:     config.StoreSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "accounts.db"),
		},
		JWT:         config.JWTConfig{Secret: "secret", Expiry: time.Hour},
		Credentials: config.CredentialsConfig{CodeTTL: 180 * time.Second, MinPasswordLength: 6, BcryptCost: 4},
	}
	deps := defaultAccountctlDeps()
	deps.loadEnv = func() error { return nil }
	deps.loadCfg = func() *config.Config { return cfg }
	var out bytes.Buffer
	deps.out = &out

	run := func(args ...string) {
		out.Reset()
		require.NoError(t, newAccountctlCommand(deps).Run(context.Background(), append([]string{"accountctl"}, args...)))
	}

	run("ensure-indexes")
	require.Equal(t, "indexes ready\n", out.String())

	run("sweep")
	require.Equal(t, "removed=0\n", out.String())

	run("status", "--email", "nobody@x.com")
	require.Contains(t, out.String(), "verification_remaining=0s")
}

func TestMain_ExitsOnUnknownStoreDriver(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_ACCOUNTCTL") == "1" {
		os.Args = []string{"accountctl", "sweep"}
		main()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestMain_ExitsOnUnknownStoreDriver")
	cmd.Env = append(os.Environ(),
		"GO_WANT_HELPER_ACCOUNTCTL=1",
		"STORE_DRIVER=cassandra",
	)
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected helper process to fail on unknown store driver")
	}
}
