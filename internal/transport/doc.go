// Package transport provides the retrying HTTP layer shared by the
// catalog client and the resource downloaders.
//
// The remote servers this tool talks to are unreliable: transient
// 5xx responses, dropped connections and the occasional spurious 4xx
// are all expected. Every buffered request therefore retries with
// exponential jittered backoff up to a fixed attempt budget, and
// exhaustion surfaces as *ExhaustedError rather than a fabricated
// empty response.
//
// A single Client carries the only global backpressure mechanism of
// the pipeline: a weighted semaphore sized to MaxConnections. Every
// request, including streamed downloads, holds one slot for its full
// duration, so the in-flight connection count to the remote host
// never exceeds the cap no matter how wide the crawl fans out.
package transport
