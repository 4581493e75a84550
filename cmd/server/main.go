package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	router "github.com/dkeye/devicefarm/internal/adapters/http"
	"github.com/dkeye/devicefarm/internal/app"
	"github.com/dkeye/devicefarm/internal/config"
)

func main() {
	cmd := &cli.Command{
		Name:  "devicefarm-relay",
		Usage: "WebSocket relay for device farm chat and WebRTC signaling",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-env",
				Usage:   "Config environment, reads config/config.<env>.yaml",
				Sources: cli.EnvVars("CONFIG_ENV"),
				Value:   "dev",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (overrides config and PORT)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Human-friendly console logs",
			},
		},
		Action: run,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("relay stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(cmd.String("config-env"))
	if err != nil {
		return err
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("pretty") {
		cfg.LogPretty = cmd.Bool("pretty")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := setupLogger(cfg); err != nil {
		return err
	}

	policy, err := app.PolicyByName(cfg.SlowClient)
	if err != nil {
		return err
	}
	relay := app.NewRelay(policy, app.NewClock())

	r := router.SetupRouter(ctx, cfg, relay)
	addr := cfg.Addr()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("relay server started")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Int("members", relay.Members()).Msg("Server exited gracefully")
	return nil
}

func setupLogger(cfg *config.Config) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}
