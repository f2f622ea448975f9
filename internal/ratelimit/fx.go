package ratelimit

import "go.uber.org/fx"

// Module provides the ingest limiter. The constructor returns a nil limiter
// when RATE_LIMIT_ENABLED is off; every method is nil-safe, so consumers
// hold the pointer without an optional tag and check Enabled at use.
var Module = fx.Module("ratelimit",
	fx.Provide(NewUsageIngestLimiter),
)
