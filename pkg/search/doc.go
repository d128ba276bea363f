// Package search provides full-text search across the platform's core
// entities: projects, clients, support tickets, and blog posts.
//
// # Overview
//
// Each searchable table carries a denormalized search_vector column holding a
// space-joined concatenation of the row's human-readable text fields. The
// Indexer rebuilds those columns in bulk; the Service answers ranked queries
// against them using PostgreSQL full-text search (plainto_tsquery + ts_rank).
//
// # Query semantics
//
// Queries are free text. A query that is empty after trimming returns empty
// results without touching the database. Matching rows are ordered by
// descending ts_rank and capped at the requested limit (default 5 per entity
// type). Each result carries a word-boundary-respecting snippet of the
// matched content, generated by GenerateSnippet.
//
// # Usage
//
// Global search across all four entity types:
//
//	svc := search.NewService(db)
//	results, err := svc.GlobalSearch(ctx, "homepage redesign", 5)
//	fmt.Printf("%d results\n", results.Total())
//
// Rebuild the corpus (normally via cmd/search-indexer):
//
//	idx := search.NewIndexer(db, logger)
//	stats, err := idx.IndexAll(ctx)
//
// Store errors propagate to the caller; this package performs no retries and
// no error-to-result conversion.
package search
