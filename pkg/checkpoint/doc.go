// Package checkpoint persists the generation bookkeeping between runs.
//
// A checkpoint records the last assigned fight id together with the species
// usage counts and the facts already used per winning species. It is written
// atomically after every accepted batch, so an interrupted run resumes from the
// last completed batch.
//
// The checkpoint is authoritative for the indexes but not for ids: the record
// history decides which ids are taken. See the storage package for how the two
// are reconciled on load.
package checkpoint
