// Package petfinder is the lost-and-found pet search service.
//
// Binaries live under cmd/:
//
//   - cmd/server: the search HTTP API
//   - cmd/cli: operator command line for the API
//   - cmd/migrate: database and search index setup
//   - cmd/seed: generated pet data for development and tests
//
// The search layer is split across internal/search (Elasticsearch access and
// query building), internal/suggestions, internal/analytics,
// internal/indexer and internal/petsearch, which composes them behind the
// HTTP handlers in internal/handlers.
package petfinder
