package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/client"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/env"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/report"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/run"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/telemetry"
)

// invokeDefaults are the per-function settings a scheduled invocation uses
// when its event detail does not override them.
type invokeDefaults struct {
	LandingZone string
	Action      string
	DryRun      bool
}

func main() {
	startTime := time.Now()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	defaults := invokeDefaults{
		LandingZone: env.Get("LANDING_ZONE", "all", env.ParseNonEmptyString),
		Action:      env.Get("ACTION", string(run.ActionCreate), env.ParseNonEmptyString),
		DryRun:      env.Get("DRY_RUN", false, env.ParseBool),
	}

	settings, err := config.LoadSettings()
	if err != nil {
		logger.Error("cannot load settings", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.Load(settings.ConfigDir)
	if err != nil {
		logger.Error("cannot load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(settings.Region))
	if err != nil {
		logger.Error("cannot load aws config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	tp, err := telemetry.NewLambdaTracerProvider(ctx)
	if err != nil {
		logger.Error("cannot initialize tracer provider", slog.String("error", err.Error()))
		os.Exit(1)
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
		logger.Error("cannot create report sender", slog.String("error", err.Error()))
		os.Exit(1)
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

	logger.Info(
		"started cloudwatch alarm manager",
		slog.String("landingZone", defaults.LandingZone),
		slog.String("action", defaults.Action),
		slog.String("region", settings.Region),
		slog.Float64("initDurationSec", time.Since(startTime).Seconds()),
	)

	handler := func(ctx context.Context, event events.CloudWatchEvent) error {
		return handleRequest(ctx, event, runner, cfg, defaults, logger)
	}

	lambda.Start(
		otellambda.InstrumentHandler(
			handler,
			otellambda.WithTracerProvider(tp),
			otellambda.WithFlusher(tp)),
	)
}

func handleRequest(
	ctx context.Context,
	event events.CloudWatchEvent,
	runner *run.Runner,
	cfg *config.Config,
	defaults invokeDefaults,
	logger *slog.Logger,
) error {
	var detail struct {
		LandingZone string `json:"landingZone"`
		Action      string `json:"action"`
		DryRun      *bool  `json:"dryRun"`
	}

	if len(event.Detail) > 0 {
		if err := json.Unmarshal(event.Detail, &detail); err != nil {
			logger.ErrorContext(ctx, "cannot parse event detail", slog.String("error", err.Error()))
			return err
		}
	}

	lzName := defaults.LandingZone
	if detail.LandingZone != "" {
		lzName = detail.LandingZone
	}

	actionName := defaults.Action
	if detail.Action != "" {
		actionName = detail.Action
	}
	action, err := run.ParseAction(actionName)
	if err != nil {
		logger.ErrorContext(ctx, "invalid action", slog.String("error", err.Error()))
		return err
	}

	dryRun := defaults.DryRun
	if detail.DryRun != nil {
		dryRun = *detail.DryRun
	}

	zones := []string{lzName}
	if lzName == "all" {
		zones = cfg.LandingZoneNames()
	}

	var errs []error
	for _, name := range zones {
		summary, err := runner.Run(ctx, name, action, dryRun)
		if err != nil {
			logger.ErrorContext(
				ctx,
				"landing zone run failed",
				slog.String("landingZone", name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}

		if summary.Failed > 0 {
			errs = append(errs, fmt.Errorf("%d alarms failed to deploy for %q", summary.Failed, name))
		}
		logger.InfoContext(
			ctx,
			"landing zone run finished",
			slog.String("landingZone", name),
			slog.Int("generated", summary.Generated),
			slog.Int("deployed", summary.Deployed),
			slog.Int("failed", summary.Failed),
		)
	}

	return errors.Join(errs...)
}
