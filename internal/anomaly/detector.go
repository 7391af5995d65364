package anomaly

import (
	"context"
	"log/slog"
	"time"

	"github.com/converso-labs/chatbridge/internal/logging"
	"github.com/converso-labs/chatbridge/internal/metrics"
)

// Severity classifies how alarming a source's behavior currently is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rolling counter windows and their warn thresholds.
const (
	rapidFireWindow    = 1 * time.Minute
	rapidFireWarn      = 20
	endpointWindow     = 5 * time.Minute
	endpointWarn       = 50
	sensitiveWindow    = 1 * time.Hour
	sensitiveWarn      = 10
	generalWindow      = 5 * time.Minute
	generalWarn        = 50
	violationWindow    = 1 * time.Hour
)

// Escalation thresholds. Criticals get an automatic temporary IP block.
const (
	criticalViolations = 3
	criticalAttempts   = 100
	highViolations     = 2
	highAttempts       = 50
	mediumAttempts     = 20
)

// Detector maintains the rolling security counters and decides escalation.
// It never rejects a request itself; the only synchronous effect on the
// intake path is the IsBlocked fast-path lookup at entry.
type Detector struct {
	store         CounterStore
	blockDuration time.Duration
	logger        *logging.Logger
}

func NewDetector(store CounterStore, blockDuration time.Duration, logger *logging.Logger) *Detector {
	if blockDuration <= 0 {
		blockDuration = 1 * time.Hour
	}
	return &Detector{
		store:         store,
		blockDuration: blockDuration,
		logger:        logger,
	}
}

// IsBlocked is the fast-path lookup run before any other guard. A store
// error fails open: dropping traffic because Redis hiccuped would turn the
// detector into a self-inflicted outage.
func (d *Detector) IsBlocked(ctx context.Context, ip string) bool {
	blocked, err := d.store.IsBlocked(ctx, ip)
	if err != nil {
		d.logger.WarnContext(ctx, "block lookup failed, failing open", logging.IP(ip), logging.Err(err))
		return false
	}
	return blocked
}

// RecordRequest tracks every inbound webhook request: rapid-fire per IP and
// a distributed-attack counter per endpoint+method.
func (d *Detector) RecordRequest(ctx context.Context, ip, method, endpoint string) {
	count, err := d.store.Incr(ctx, "rapidfire:"+ip, rapidFireWindow)
	if err != nil {
		d.logger.WarnContext(ctx, "rapid-fire counter failed", logging.IP(ip), logging.Err(err))
	} else if count >= rapidFireWarn {
		d.logger.WarnContext(ctx, "rapid-fire pattern detected",
			logging.IP(ip), slog.Int64("count", count), slog.String("window", rapidFireWindow.String()))
	}

	count, err = d.store.Incr(ctx, "endpoint:"+method+":"+endpoint, endpointWindow)
	if err != nil {
		d.logger.WarnContext(ctx, "endpoint counter failed", logging.Err(err))
	} else if count >= endpointWarn {
		d.logger.WarnContext(ctx, "distributed attack pattern on endpoint",
			slog.String("endpoint", endpoint), slog.String("method", method), slog.Int64("count", count))
	}
}

// RecordSensitiveAccess tracks reads of sensitive fields per IP or user.
func (d *Detector) RecordSensitiveAccess(ctx context.Context, principal string) {
	count, err := d.store.Incr(ctx, "sensitive:"+principal, sensitiveWindow)
	if err != nil {
		d.logger.WarnContext(ctx, "sensitive-access counter failed", logging.Err(err))
		return
	}
	if count >= sensitiveWarn {
		d.logger.WarnContext(ctx, "excessive sensitive-field access",
			slog.String("principal", principal), slog.Int64("count", count))
	}
}

// RecordAccess tracks general authenticated access per IP or user.
func (d *Detector) RecordAccess(ctx context.Context, principal string) {
	count, err := d.store.Incr(ctx, "access:"+principal, generalWindow)
	if err != nil {
		d.logger.WarnContext(ctx, "access counter failed", logging.Err(err))
		return
	}
	if count >= generalWarn {
		d.logger.WarnContext(ctx, "excessive access rate",
			slog.String("principal", principal), slog.Int64("count", count))
	}
}

// RecordViolation records a guard failure (bad signature, expired timestamp,
// oversized payload) for the source IP and returns the escalated severity.
// Critical severity applies a temporary IP block as a side effect.
func (d *Detector) RecordViolation(ctx context.Context, ip, violationType string) Severity {
	violations, err := d.store.Incr(ctx, "violations:"+ip+":"+violationType, violationWindow)
	if err != nil {
		d.logger.WarnContext(ctx, "violation counter failed", logging.IP(ip), logging.Err(err))
		violations = 1
	}

	attempts, err := d.store.Incr(ctx, "attempts:"+ip, rapidFireWindow)
	if err != nil {
		d.logger.WarnContext(ctx, "attempt counter failed", logging.IP(ip), logging.Err(err))
		attempts = 1
	}

	severity := classify(violations, attempts)
	metrics.SecurityViolations.WithLabelValues(string(severity)).Inc()

	switch severity {
	case SeverityCritical:
		if err := d.store.Block(ctx, ip, d.blockDuration); err != nil {
			d.logger.ErrorContext(ctx, "failed to apply ip block", logging.IP(ip), logging.Err(err))
		} else {
			metrics.IPBlocksActive.Inc()
		}
		d.logger.ErrorContext(ctx, "critical security violation, ip blocked",
			logging.IP(ip),
			slog.String("violation_type", violationType),
			slog.Int64("violations", violations),
			slog.Int64("attempts", attempts),
			slog.String("block_duration", d.blockDuration.String()))
	case SeverityHigh:
		d.logger.WarnContext(ctx, "high-severity security violation",
			logging.IP(ip),
			slog.String("violation_type", violationType),
			slog.Int64("violations", violations),
			slog.Int64("attempts", attempts))
	case SeverityMedium:
		d.logger.WarnContext(ctx, "repeated security violations",
			logging.IP(ip),
			slog.String("violation_type", violationType),
			slog.Int64("attempts", attempts))
	default:
		d.logger.DebugContext(ctx, "security violation recorded",
			logging.IP(ip), slog.String("violation_type", violationType))
	}

	return severity
}

// Unblock removes a temporary IP block. Operator use only.
func (d *Detector) Unblock(ctx context.Context, ip string) error {
	if err := d.store.Unblock(ctx, ip); err != nil {
		return err
	}
	metrics.IPBlocksActive.Dec()
	return nil
}

// ActiveBlocks lists currently blocked IPs.
func (d *Detector) ActiveBlocks(ctx context.Context) ([]string, error) {
	return d.store.ActiveBlocks(ctx)
}

func classify(violations, attempts int64) Severity {
	switch {
	case violations >= criticalViolations || attempts >= criticalAttempts:
		return SeverityCritical
	case violations >= highViolations || attempts >= highAttempts:
		return SeverityHigh
	case attempts >= mediumAttempts:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
