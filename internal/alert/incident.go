package alert

import (
	"context"
	"encoding/hex"
	"sort"
	"strings"

	"lukechampine.com/blake3"

	"github.com/openobserve/openobserve-sub015/internal/timeutil"
)

// IncidentStatus is an incident's lifecycle position.
type IncidentStatus string

const (
	IncidentOpen         IncidentStatus = "open"
	IncidentAcknowledged IncidentStatus = "acknowledged"
	IncidentResolved     IncidentStatus = "resolved"
)

// IncidentSeverity ranks an incident, P1 highest.
type IncidentSeverity string

const (
	SeverityP1 IncidentSeverity = "P1"
	SeverityP2 IncidentSeverity = "P2"
	SeverityP3 IncidentSeverity = "P3"
	SeverityP4 IncidentSeverity = "P4"
)

// Incident groups correlated alert firings sharing a stable-dimension
// key (service/namespace/cluster/environment, typically).
type Incident struct {
	ID               string
	Org              string
	CorrelationKey   string
	Status           IncidentStatus
	Severity         IncidentSeverity
	StableDimensions map[string]string
	FirstAlertAt     int64
	LastAlertAt      int64
	ResolvedAt       *int64
	AlertCount       int
}

// CorrelationKey hashes dims' sorted key=value pairs with blake3 into
// the 64-hex-char key used to correlate alert firings into the same
// incident.
func CorrelationKey(dims map[string]string) string {
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(dims[k])
		b.WriteByte(';')
	}
	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// IncidentStore persists incidents, keyed by org + correlation key.
type IncidentStore interface {
	GetOpenByCorrelationKey(ctx context.Context, org, key string) (Incident, bool, error)
	Put(ctx context.Context, incident Incident) error
	ListOpen(ctx context.Context, org string) ([]Incident, error)
}

// Correlate finds or creates the open incident matching dims' stable
// dimensions within timeWindowMinutes of the last alert in that
// incident, updating its alert count and last_alert_at, and bumping
// severity up (never down) to the firing alert's severity.
func Correlate(ctx context.Context, store IncidentStore, org string, dims map[string]string, severity IncidentSeverity, timeWindowMinutes int64, newID func() string) (Incident, error) {
	key := CorrelationKey(dims)
	now := timeutil.NowMicros()

	existing, ok, err := store.GetOpenByCorrelationKey(ctx, org, key)
	if err != nil {
		return Incident{}, err
	}

	windowMicros := timeWindowMinutes * 60 * 1_000_000
	if ok && now-existing.LastAlertAt <= windowMicros {
		existing.LastAlertAt = now
		existing.AlertCount++
		if severityRank(severity) < severityRank(existing.Severity) {
			existing.Severity = severity
		}
		if err := store.Put(ctx, existing); err != nil {
			return Incident{}, err
		}
		return existing, nil
	}

	fresh := Incident{
		ID:               newID(),
		Org:              org,
		CorrelationKey:   key,
		Status:           IncidentOpen,
		Severity:         severity,
		StableDimensions: dims,
		FirstAlertAt:     now,
		LastAlertAt:      now,
		AlertCount:       1,
	}
	if err := store.Put(ctx, fresh); err != nil {
		return Incident{}, err
	}
	return fresh, nil
}

func severityRank(s IncidentSeverity) int {
	switch s {
	case SeverityP1:
		return 1
	case SeverityP2:
		return 2
	case SeverityP3:
		return 3
	default:
		return 4
	}
}

// AutoResolveSweep marks every open incident with no new alert in the
// last autoResolveAfterMinutes as resolved.
func AutoResolveSweep(ctx context.Context, store IncidentStore, org string, autoResolveAfterMinutes int64) error {
	if autoResolveAfterMinutes <= 0 {
		return nil
	}
	incidents, err := store.ListOpen(ctx, org)
	if err != nil {
		return err
	}

	now := timeutil.NowMicros()
	cutoff := autoResolveAfterMinutes * 60 * 1_000_000
	for _, inc := range incidents {
		if now-inc.LastAlertAt < cutoff {
			continue
		}
		resolvedAt := now
		inc.Status = IncidentResolved
		inc.ResolvedAt = &resolvedAt
		if err := store.Put(ctx, inc); err != nil {
			return err
		}
	}
	return nil
}
