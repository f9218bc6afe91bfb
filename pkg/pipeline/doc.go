// Package pipeline drives the retrieval of FBO postings for one period:
// offset pagination over the list endpoint, bounded-concurrency detail
// fetches per listed record, and normalization into the stable posting
// schema, yielded to the consumer one page-sized batch at a time.
//
// A run moves through Paging -> Fetching -> Normalizing -> Emitting per
// page and terminates in Done (short or empty page) or Failed (list call
// failure after its own retries). Consumption is pull-driven: each yielded
// batch is fully materialized, so abandoning the stream between batches
// leaves no in-flight upstream work behind.
//
// Per-record failures never terminate a run. A detail fetch or
// normalization failure excludes that record and is recorded in the run
// log; only a failing list call propagates to the consumer.
package pipeline
