// Package retry runs an operation until it succeeds, a non-retryable error
// is returned, the attempt budget is spent, or the context is cancelled.
//
// Media downloads use it with DownloadBackoff (2s, 4s, 8s) and four attempts:
//
//	err := retry.Do(func(attempt int) error {
//		return fetch(ctx, url)
//	}, &retry.Config{
//		MaxAttempts: 4,
//		Backoff:     retry.DownloadBackoff(),
//		Context:     ctx,
//	})
//
// Immediate lets a caller skip the delay for a particular retry, which the
// download engine uses after swapping to a fallback video URL.
package retry
