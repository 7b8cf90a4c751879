// Package discovery enumerates the monitored resources of a landing zone and
// the alarms already deployed into it. Resources are matched by the
// managed-by tag; anything untagged is invisible to the alarm manager.
package discovery

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/alarm"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

var tracer = otel.Tracer("github.com/c1oudops/cloudwatch-alarm-manager/internal/discovery")

// Plugin discovers the monitored resources of one type.
type Plugin interface {
	ResourceType() config.ResourceType
	Discover(ctx context.Context) ([]alarm.Resource, error)
}

// Scanner runs discovery plugins in order. A failing plugin is logged and
// skipped so one unreachable service does not blind the whole run.
type Scanner struct {
	plugins []Plugin
	logger  *slog.Logger
}

// NewScanner creates a Scanner over the given plugins.
func NewScanner(logger *slog.Logger, plugins ...Plugin) *Scanner {
	return &Scanner{
		plugins: plugins,
		logger:  logger,
	}
}

// DiscoverAll collects the resources of every plugin that succeeded.
func (s *Scanner) DiscoverAll(ctx context.Context) []alarm.Resource {
	ctx, span := tracer.Start(ctx, "discovery.scan")
	defer span.End()

	var resources []alarm.Resource
	for _, p := range s.plugins {
		found, err := p.Discover(ctx)
		if err != nil {
			s.logger.ErrorContext(
				ctx,
				"cannot discover resources; skipping type",
				slog.String("resourceType", string(p.ResourceType())),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.logger.InfoContext(
			ctx,
			"resources discovered",
			slog.String("resourceType", string(p.ResourceType())),
			slog.Int("count", len(found)),
		)
		resources = append(resources, found...)
	}

	span.SetAttributes(attribute.Int("resource.count", len(resources)))
	return resources
}
