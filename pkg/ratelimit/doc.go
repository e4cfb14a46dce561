// Package ratelimit throttles media downloads.
//
// Downloads are unthrottled by default. Setting download.requests_per_minute
// installs a sliding window limiter that every worker waits on before
// opening a connection:
//
//	limiter := ratelimit.PerMinute(cfg.Download.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // cancelled
//	}
package ratelimit
