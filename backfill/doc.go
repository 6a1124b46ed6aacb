// Package backfill re-synchronizes documents that were indexed before the
// integration was activated.
//
// A Backfiller walks every record in the host store in batches. Each batch
// is optionally pushed to the search index first, so the ingest pipeline
// extracts its entities, and is then handed to the sync handler with
// retries and exponential backoff around engine failures. Progress is
// reported to a writer.
package backfill
