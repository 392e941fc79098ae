// Package httputil provides the HTTP plumbing shared by the overlay fetcher
// and the result publisher.
//
// # Overview
//
//   - [NewClient]: an *http.Client with a request timeout whose transport
//     reports every round trip to [observability.HTTP]
//   - [CheckStatus]: maps non-2xx responses to NETWORK errors
//   - [Retry]: retry with exponential backoff for operations that opt in
//
// # Retry
//
// Job stages are never retried; a failed fetch or publish fails the job.
// [Retry] is used for startup work such as connecting to a broker, where
// a transient failure should not abort the process:
//
//	err := httputil.Retry(ctx, 5, 500*time.Millisecond, func() error {
//	    if err := client.Ping(ctx).Err(); err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    return nil
//	})
//
// Only errors wrapped in [RetryableError] are retried.
package httputil
