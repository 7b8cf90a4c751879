// Package report publishes the outcome of a run to the configured target so
// operators hear about failed deployments without reading logs.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/c1oudops/cloudwatch-alarm-manager/internal/report")

// Summary describes one landing-zone run.
type Summary struct {
	LandingZone  string        `json:"landingZone"`
	AccountID    string        `json:"accountId"`
	Action       string        `json:"action"`
	DryRun       bool          `json:"dryRun,omitempty"`
	Resources    int           `json:"resources"`
	Existing     int           `json:"existing"`
	Generated    int           `json:"generated"`
	Deployed     int           `json:"deployed"`
	Failed       int           `json:"failed"`
	Skipped      int           `json:"skipped"`
	Deleted      int           `json:"deleted,omitempty"`
	FailedAlarms []string      `json:"failedAlarms,omitempty"`
	Duration     time.Duration `json:"durationNanos"`
	Timestamp    time.Time     `json:"timestamp"`
}

// MessageFormatter formats run summaries into message strings.
type MessageFormatter interface {
	Format(summary *Summary) (string, error)
}

// TextMessageFormatter formats summaries as human-readable text.
type TextMessageFormatter struct{}

// Format creates a human-readable text message from a run summary.
func (f *TextMessageFormatter) Format(summary *Summary) (string, error) {
	var msg strings.Builder

	if summary.Failed > 0 {
		msg.WriteString("⚠️ Alarm run completed with failures: ")
	} else {
		msg.WriteString("✅ Alarm run completed: ")
	}
	msg.WriteString(summary.LandingZone)
	msg.WriteString("\nAccountID: ")
	msg.WriteString(summary.AccountID)
	msg.WriteString("\nAction: ")
	msg.WriteString(summary.Action)
	if summary.DryRun {
		msg.WriteString(" (dry-run)")
	}
	msg.WriteString("\n\n")

	_, err := fmt.Fprintf(&msg, "Resources discovered: %d\n", summary.Resources)
	if err != nil {
		return "", err
	}
	_, err = fmt.Fprintf(&msg, "Alarms already deployed: %d\n", summary.Existing)
	if err != nil {
		return "", err
	}
	_, err = fmt.Fprintf(&msg, "Generated: %d, Deployed: %d, Failed: %d, Skipped: %d\n",
		summary.Generated,
		summary.Deployed,
		summary.Failed,
		summary.Skipped)
	if err != nil {
		return "", err
	}
	if summary.Deleted > 0 {
		_, err = fmt.Fprintf(&msg, "Deleted: %d\n", summary.Deleted)
		if err != nil {
			return "", err
		}
	}

	if len(summary.FailedAlarms) > 0 {
		msg.WriteString("\nFailed alarms:\n")
		for i, name := range summary.FailedAlarms {
			_, err = fmt.Fprintf(&msg, "%d. %s\n", i+1, name)
			if err != nil {
				return "", err
			}
		}
	}

	_, err = fmt.Fprintf(&msg, "\nDuration: %s\nTimestamp: %s",
		summary.Duration.Round(time.Millisecond),
		summary.Timestamp.Format(time.RFC3339))
	if err != nil {
		return "", err
	}

	return msg.String(), nil
}

// JSONMessageFormatter formats summaries as JSON.
type JSONMessageFormatter struct{}

// Format creates a JSON representation of a run summary.
func (f *JSONMessageFormatter) Format(summary *Summary) (string, error) {
	b, err := json.Marshal(summary)
	if err != nil {
		return "", err
	}

	return string(b), nil
}
