// Package resilience provides policies that wrap tasks calling slow or
// fallible external services:
//
//   - Retry re-invokes a failing task with exponential backoff, optionally
//     gated by ShouldRetry and checked by Validate.
//   - RateLimit suspends calls until a per-provider token bucket has room
//     for one more request and its estimated token cost.
//   - Timeout races a call against a deadline and reports the deadline as a
//     normal task failure.
//
// Every wrapper returns an api.Task carrying the wrapped task's metadata,
// so wrapped tasks compose with the api combinators like any other task:
//
//	summarize := resilience.Retry(
//	    resilience.RateLimit(callModel, limiter, "openai", estimateTokens),
//	    resilience.RetryPolicy{MaxAttempts: 4, InitialBackoff: 200 * time.Millisecond},
//	)
//	pipeline := api.Sequence(extract, summarize, store)
package resilience
