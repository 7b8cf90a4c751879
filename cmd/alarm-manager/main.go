package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/client"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/report"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/run"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := execute(logger); err != nil {
		logger.Error("alarm manager failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func execute(logger *slog.Logger) error {
	startTime := time.Now()

	var (
		lzFlag     = flag.String("lz", "all", `landing zone to process, or "all"`)
		actionFlag = flag.String("action", "create", "one of create, scan, delete")
		dryRun     = flag.Bool("dry-run", false, "log intended changes without applying them")
		configDir  = flag.String("config", "", "config directory (overrides CONFIG_DIR)")
	)
	flag.Parse()

	action, err := run.ParseAction(*actionFlag)
	if err != nil {
		return err
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("cannot load settings: %w", err)
	}
	if *configDir != "" {
		settings.ConfigDir = *configDir
	}

	cfg, err := config.Load(settings.ConfigDir)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), settings.RunTimeout)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(settings.Region))
	if err != nil {
		return fmt.Errorf("cannot load aws config: %w", err)
	}

	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	tp, err := telemetry.NewTracerProvider(ctx, "cloudwatch-alarm-manager")
	if err != nil {
		return fmt.Errorf("cannot initialize tracer provider: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("cannot shutdown tracer provider", slog.String("error", err.Error()))
		}
	}()

	clients := client.New(awsCfg)

	sender, err := report.NewSender(clients, settings)
	if err != nil {
		return fmt.Errorf("cannot create report sender: %w", err)
	}

	runner := run.NewRunner(run.Params{
		Config:     cfg,
		Settings:   settings,
		CloudWatch: clients.CloudWatch,
		EC2:        clients.EC2,
		RDS:        clients.RDS,
		ELB:        clients.ELB,
		Tagging:    clients.Tagging,
		Sender:     sender,
		Logger:     logger,
	})

	zones := []string{*lzFlag}
	if *lzFlag == "all" {
		zones = cfg.LandingZoneNames()
	}

	logger.Info(
		"started cloudwatch alarm manager",
		slog.String("action", string(action)),
		slog.Bool("dryRun", *dryRun),
		slog.String("region", settings.Region),
		slog.Int("landingZones", len(zones)),
		slog.Float64("initDurationSec", time.Since(startTime).Seconds()),
	)

	failed := 0
	for _, name := range zones {
		summary, err := runner.Run(ctx, name, action, *dryRun)
		if err != nil {
			failed++
			logger.Error(
				"landing zone run failed",
				slog.String("landingZone", name),
				slog.String("error", err.Error()),
			)
			continue
		}

		if summary.Failed > 0 {
			failed++
		}
		logger.Info(
			"landing zone run finished",
			slog.String("landingZone", name),
			slog.Int("resources", summary.Resources),
			slog.Int("generated", summary.Generated),
			slog.Int("deployed", summary.Deployed),
			slog.Int("failed", summary.Failed),
			slog.Int("skipped", summary.Skipped),
			slog.Int("deleted", summary.Deleted),
		)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d landing zone runs had failures", failed, len(zones))
	}
	return nil
}
