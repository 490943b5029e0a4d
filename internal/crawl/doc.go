// Package crawl drives the catalog crawl: groups fan out to
// packages, packages fan out to resource downloads.
//
// # Error policy
//
// The pipeline is fail-soft. Resource failures never leave the
// downloader; package and group failures are recorded as branch
// errors in the run's Report and their siblings keep running. A run
// always completes and produces whatever data it could — operators
// read the error log and the final summary, not stack traces.
//
// # Ordering
//
// There is no ordering across siblings. The only guarantee is causal:
// a package's resources are not requested until its metadata has been
// fetched or read from cache, and a metadata snapshot is written only
// after all of its children have finished.
package crawl
