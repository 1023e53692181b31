// Package storage is the durable record store for generated fights.
//
// It manages three files in the output directory:
//   - fights.json, the authoritative history, rewritten atomically on append
//   - fights.csv, a tabular view appended to after each batch
//   - checkpoint.json, the bookkeeping snapshot (see package checkpoint)
//
// Load reconciles them after a crash: ids come from the history, indexes come
// from the checkpoint with newer records folded in. A corrupt history is
// recovered from the CSV view; if neither can be read Load fails instead of
// restarting ids from 1.
package storage
