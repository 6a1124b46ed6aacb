// Package provision sets up the search engine side of entity extraction.
//
// On activation the Provisioner stores the ingest pipeline (a single
// opennlp processor reading the configured source field by default) and
// then declares one text field per entity kind under "entities" in the
// index mapping. Both requests are idempotent. Failures are reported as
// *core.ProvisionError with Kind core.ErrUnreachable, core.ErrRejected or
// core.ErrConflict.
package provision
