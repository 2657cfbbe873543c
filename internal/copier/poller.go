package copier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/everstacklabs/modelmigrate/internal/docintel"
)

// TimedOutReason is the failure reason recorded when polling gives up.
const TimedOutReason = "timed out"

// OperationAPI is the slice of the admin client the poller needs.
type OperationAPI interface {
	Operation(ctx context.Context, location string) (*docintel.OperationStatus, error)
}

// Poller drives one copy operation to a terminal state with fixed
// intervals between status checks. After MaxAttempts non-terminal
// checks it gives up; the remote copy may still finish but is no
// longer tracked.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int

	// Sleep is replaceable for tests. Nil means time.Sleep.
	Sleep func(time.Duration)
}

// Outcome is the terminal state of one copy operation.
type Outcome struct {
	OK          bool
	DestModelID string
	Reason      string
}

// Wait polls the operation handle until a terminal status, an error, or
// MaxAttempts is reached. The api must belong to the resource that
// initiated the copy; its key is the only one the handle accepts.
func (p *Poller) Wait(ctx context.Context, api OperationAPI, handle *docintel.OperationHandle) Outcome {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		status, err := api.Operation(ctx, handle.Location)
		if err != nil {
			return Outcome{Reason: fmt.Sprintf("status check failed: %v", err)}
		}

		switch strings.ToLower(status.Status) {
		case "succeeded":
			var dest string
			if status.Result != nil {
				dest = status.Result.ModelID
			}
			return Outcome{OK: true, DestModelID: dest}
		case "failed":
			reason := "copy failed"
			if status.Error != nil && status.Error.Message != "" {
				reason = status.Error.Message
			}
			return Outcome{Reason: reason}
		case "notstarted", "running":
			slog.Debug("copy in progress", "status", status.Status, "attempt", attempt)
		default:
			// Unknown vocabulary is non-terminal, same as running.
			slog.Warn("unrecognized copy status, still polling", "status", status.Status, "attempt", attempt)
		}

		if attempt == p.MaxAttempts {
			break
		}
		sleep(p.Interval)
		if ctx.Err() != nil {
			return Outcome{Reason: "canceled: " + ctx.Err().Error()}
		}
	}

	return Outcome{Reason: TimedOutReason}
}
