package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kwala.backend/internal/config"
	"kwala.backend/internal/domain/repositories"
	"kwala.backend/internal/domain/services"
	"kwala.backend/internal/infrastructure/store"
	plog "kwala.backend/pkg/logger"
)

func withMainHooks(t *testing.T) {
	t.Helper()
	origLoadDotenv := loadDotenv
	origLoadCfg := loadCfg
	origInitLog := initLog
	origInitRedis := initRedis
	origOpenStore := openStore
	origOpenSink := openSink
	origRunServer := runServer
	origShutdownSignal := shutdownSignal

	t.Cleanup(func() {
		loadDotenv = origLoadDotenv
		loadCfg = origLoadCfg
		initLog = origInitLog
		initRedis = origInitRedis
		openStore = origOpenStore
		openSink = origOpenSink
		runServer = origRunServer
		shutdownSignal = origShutdownSignal
	})

	loadDotenv = func(...string) error { return nil }
	initLog = plog.Init
	initRedis = func(string, string) error { return nil }
	shutdownSignal = func() <-chan os.Signal { return make(chan os.Signal) }
}

func baseTestConfig(name string) func() *config.Config {
	return func() *config.Config {
		return &config.Config{
			Server: config.ServerConfig{
				Port:           "0",
				Env:            "development",
				AllowedOrigins: []string{"http://localhost:3000"},
			},
			Store: config.StoreConfig{
				Driver:     config.StoreSQLite,
				SQLitePath: "file:" + name + "?mode=memory&cache=shared",
			},
			Redis: config.RedisConfig{URL: "redis://localhost:6379"},
			JWT: config.JWTConfig{
				Secret: "secret",
				Expiry: time.Hour,
			},
			Credentials: config.CredentialsConfig{
				CodeTTL:           180 * time.Second,
				RegistrationGrace: 12 * time.Minute,
				SweepInterval:     time.Hour,
				MinPasswordLength: 6,
				BcryptCost:        4,
			},
			Humanize:    config.HumanizeConfig{UserLockTTL: time.Minute},
			Diagnostics: config.DiagnosticsConfig{Sink: config.SinkNone},
		}
	}
}

func TestRunMainProcess_RedisInitError(t *testing.T) {
	withMainHooks(t)
	loadCfg = baseTestConfig("main_redis_err")
	initRedis = func(string, string) error { return errors.New("redis down") }

	err := runMainProcess()
	require.ErrorContains(t, err, "failed to initialize redis")
}

func TestRunMainProcess_StoreOpenError(t *testing.T) {
	withMainHooks(t)
	loadCfg = baseTestConfig("main_store_err")
	openStore = func(context.Context, *config.Config) (repositories.AccountRepository, store.CloseFunc, error) {
		return nil, nil, errors.New("store down")
	}

	err := runMainProcess()
	require.ErrorContains(t, err, "failed to open account store")
}

func TestRunMainProcess_SinkError(t *testing.T) {
	withMainHooks(t)
	loadCfg = baseTestConfig("main_sink_err")
	openSink = func(context.Context, config.DiagnosticsConfig) (services.DiagnosticSink, error) {
		return nil, errors.New("bucket missing")
	}

	err := runMainProcess()
	require.ErrorContains(t, err, "failed to configure diagnostics")
}

func TestRunMainProcess_ServerRunError(t *testing.T) {
	withMainHooks(t)
	loadCfg = baseTestConfig("main_server_err")
	runServer = func(*http.Server) error { return errors.New("listen failed") }

	err := runMainProcess()
	require.ErrorContains(t, err, "failed to start server")
}

func TestRunMainProcess_SuccessPath(t *testing.T) {
	withMainHooks(t)
	loadCfg = baseTestConfig("main_success")

	var gotAddr string
	runServer = func(srv *http.Server) error {
		gotAddr = srv.Addr
		require.NotNil(t, srv.Handler)
		return http.ErrServerClosed
	}

	require.NoError(t, runMainProcess())
	require.Equal(t, ":0", gotAddr)
}

func TestRunMainProcess_ShutsDownOnSignal(t *testing.T) {
	withMainHooks(t)
	loadCfg = baseTestConfig("main_signal")

	quit := make(chan os.Signal, 1)
	quit <- syscall.SIGTERM
	shutdownSignal = func() <-chan os.Signal { return quit }
	runServer = func(srv *http.Server) error { return srv.ListenAndServe() }

	done := make(chan error, 1)
	go func() { done <- runMainProcess() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop after signal")
	}
}

func TestNewCodeSender_FallsBackToLog(t *testing.T) {
	cfg := baseTestConfig("main_sender")()

	sender, err := newCodeSender(cfg)
	require.NoError(t, err)
	require.NotNil(t, sender)

	cfg.SMTP = config.SMTPConfig{Host: "smtp.test", Port: 587, From: "noreply@kwala.test"}
	sender, err = newCodeSender(cfg)
	require.NoError(t, err)
	require.NotNil(t, sender)
}
