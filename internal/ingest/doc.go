// Package ingest turns observations into rows and loads them into a
// per-ticker destination table.
//
// The pieces, in the order an observation passes through them:
//
//   - BuildRecord converts an Observation into a Record with the
//     fixed column layout (Time, Price).
//   - A Provisioner makes sure every destination table exists. It runs
//     once per ticker before polling starts.
//   - A Writer queues records and hands batches, grouped by Target, to a
//     backend Loader on its own goroutines.
//
// Three backends are provided: postgres (TimescaleDB or plain Postgres,
// one schema per tenant), sqlite (local development) and kafka (one topic
// per database, one message per record).
package ingest
