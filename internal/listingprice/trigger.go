package listingprice

import "context"

const (
	TriggerAPI     = "api"
	TriggerEvent   = "event"
	TriggerReindex = "reindex"
	TriggerCLI     = "cli"
)

type triggerKey struct{}

// WithTrigger tags ctx with what caused an update. It shows up in logs, metrics and audit rows.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

// TriggerFrom returns the trigger stored on ctx, defaulting to "unknown".
func TriggerFrom(ctx context.Context) string {
	if v, ok := ctx.Value(triggerKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
