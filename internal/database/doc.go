// Package database provides connection pool management for the ingest warehouse.
//
// tickeringest holds two pools:
//   - Database: the database endpoint, used for provisioning (DDL)
//   - Ingest: the ingestion endpoint, used for bulk loading rows (COPY)
//
// When both endpoints are the same a single pool serves both roles.
package database
