// Package ingestion syncs extracted entities from the search index back to
// the host store.
//
// The Pipeline subscribes to bulk-index completion events. For each batch it:
//   - drops events produced by its own reindexing (see Guard)
//   - drops events already seen, using a storage.BatchLedger
//   - fetches the "entities" object of every document in one request
//   - writes each entity kind to the tag set or attribute chosen by the
//     routing policy, sanitizing attribute values
//   - optionally reindexes the changed records under a guard
//
// Processing is performed on a worker pool. Errors during async processing
// are logged and reported to the Monitor; they never reach the publisher.
package ingestion
