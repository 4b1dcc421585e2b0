package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/benchctl/internal/archive"
	"codeberg.org/mutker/benchctl/internal/bench"
	"codeberg.org/mutker/benchctl/internal/config"
	"codeberg.org/mutker/benchctl/internal/connection"
	"codeberg.org/mutker/benchctl/internal/console"
	"codeberg.org/mutker/benchctl/internal/dashboard"
	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/export"
	"codeberg.org/mutker/benchctl/internal/logger"
	"codeberg.org/mutker/benchctl/internal/pid"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 5 * time.Second

var (
	cfg      *config.Config
	recorder archive.Recorder
	session  *bench.Session
	dash     *dashboard.Server
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(cfg.PIDDir); err != nil {
		var coded errors.Error
		if errors.As(err, &coded) {
			logger.FatalWithCode(coded).Msg("Failed to acquire instance lock")
		}
		logger.Fatal().Err(err).Msg("Failed to acquire instance lock")
	}
	defer cleanup()

	if err := setup(); err != nil {
		logger.Error().Err(err).Msg("Failed to initialize")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(ctx) }()
	operator := console.New(session, os.Stdin, os.Stdout, logger.Component("console"))
	go forwardReports(ctx, operator)

	consoleDone := make(chan error, 1)
	go func() { consoleDone <- operator.Run(ctx) }()

	select {
	case err := <-consoleDone:
		if err != nil {
			logger.Error().Err(err).Msg("Console input failed")
		}
		cancel()
		if err := <-runErr; err != nil {
			logger.Error().Err(err).Msg("Session ended with error")
		}
	case err := <-runErr:
		if err != nil {
			logger.Error().Err(err).Msg("Session ended with error")
		}
		cancel()
	}
}

func setup() error {
	var err error

	recorder, err = archive.NewService(archive.Config{
		DBPath:  cfg.ArchiveDB,
		Enabled: cfg.Archive,
	}, logger.Component("archive"))
	if err != nil {
		return err
	}

	conn := connection.New(cfg.Endpoint, connection.WithLogger(logger.Component("connection")))
	exporter := export.NewExporter(export.FileSaver{Dir: cfg.ExportDir}, logger.Component("export"))

	benchCfg := bench.DefaultConfig()
	benchCfg.WindowSize = cfg.WindowSize
	benchCfg.LabelMode = string(cfg.LabelMode)

	session, err = bench.New(benchCfg, conn, exporter,
		bench.WithArchive(recorder),
		bench.WithLogger(logger.Component("session")))
	if err != nil {
		return err
	}

	if err := applySetpoints(); err != nil {
		return err
	}

	if cfg.DashboardAddr != "" {
		dash = dashboard.NewServer(cfg.DashboardAddr, session.Chart(), session, logger.Component("dashboard"))
		if err := dash.Start(); err != nil {
			dash = nil
			return err
		}
	}

	return nil
}

// applySetpoints seeds the control panel from the configuration. The panel
// is not yet shared, so it is safe to touch before Run.
func applySetpoints() error {
	panel := session.Panel()
	panel.SetMotorSpeeds(cfg.Motor1Speed, cfg.Motor2Speed)
	if err := panel.SetDuration(cfg.Duration); err != nil {
		return err
	}
	if err := panel.SetTargetWattage(cfg.TargetWattage); err != nil {
		return err
	}
	panel.SetFileName(cfg.FileName)

	return nil
}

func forwardReports(ctx context.Context, operator *console.Console) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-session.Reports():
			operator.Notify(r.String())
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func cleanup() {
	if dash != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := dash.Stop(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to stop dashboard")
		}
		cancel()
	}
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close session archive")
		}
	}
	if err := pid.Remove(cfg.PIDDir); err != nil {
		logger.Error().Err(err).Msg("failed to remove PID file")
	}
	logger.Info().Msg("Exiting...")
}
