// Package download streams catalog resources to the output bucket.
//
// # Failure isolation
//
// Download never returns an error and never panics; it returns an
// Outcome. A resource that exhausts its retries is appended to the
// shared error log and reported as StatusFailed, and that is the end
// of it — the other resources of the same package keep going. This
// boundary is what lets every fan-out level above wait on its
// children without a failure path.
//
// # Idempotence
//
// The destination key is checked before anything is fetched; an
// existing file means the work was done by a previous run and the
// download is skipped. Writes go through the bucket's writer, which
// commits atomically on Close, so an interrupted transfer never
// leaves a partial file under its final name.
package download
