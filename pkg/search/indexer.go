package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pinkbeam/platform/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var indexerTracer = otel.Tracer("pinkbeam/search/indexer")

// Indexer rebuilds the denormalized search_vector column for every row of
// each searchable table. A database trigger keeps vectors current for new
// writes; the indexer exists for the initial backfill and for repairing
// historical rows. Runs are idempotent: re-running rewrites already-indexed
// rows with the same value.
type Indexer struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewIndexer creates a batch search indexer.
func NewIndexer(db *sql.DB, logger *observability.Logger) *Indexer {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Indexer{db: db, logger: logger}
}

// IndexStats reports how many rows were reindexed per entity table.
type IndexStats struct {
	Projects  int
	Clients   int
	Tickets   int
	BlogPosts int
}

// Total returns the combined number of reindexed rows.
func (s IndexStats) Total() int {
	return s.Projects + s.Clients + s.Tickets + s.BlogPosts
}

// BuildVector assembles a search vector from candidate text fields: empty
// and whitespace-only fields are dropped, the rest are joined with single
// spaces and whitespace-normalized.
func BuildVector(fields ...string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// IndexAll reindexes all four entity tables and returns per-table counts.
// The first failing table aborts the run; rows already written stay written.
func (idx *Indexer) IndexAll(ctx context.Context) (IndexStats, error) {
	ctx, span := indexerTracer.Start(ctx, "IndexAll")
	defer span.End()

	var stats IndexStats
	var err error

	if stats.Projects, err = idx.IndexProjects(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "project indexing failed")
		return stats, err
	}
	if stats.Clients, err = idx.IndexClients(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "client indexing failed")
		return stats, err
	}
	if stats.Tickets, err = idx.IndexTickets(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ticket indexing failed")
		return stats, err
	}
	if stats.BlogPosts, err = idx.IndexBlogPosts(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "blog indexing failed")
		return stats, err
	}

	span.SetAttributes(attribute.Int("rows_indexed", stats.Total()))
	span.SetStatus(codes.Ok, "")
	return stats, nil
}

type vectorRow struct {
	id     string
	vector string
}

// IndexProjects rebuilds project vectors from name, description, client name
// and status. The client name is denormalized from the owning user so that
// searching a client surfaces their projects too.
func (idx *Indexer) IndexProjects(ctx context.Context) (int, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT p.id, p.name, COALESCE(p.description, ''), COALESCE(p.status, ''), COALESCE(u.name, '')
		FROM projects p
		LEFT JOIN users u ON p.client_id = u.id
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch projects: %w", err)
	}

	var pending []vectorRow
	for rows.Next() {
		var id, name, description, status, clientName string
		if err := rows.Scan(&id, &name, &description, &status, &clientName); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan project: %w", err)
		}
		pending = append(pending, vectorRow{id: id, vector: BuildVector(name, description, clientName, status)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("failed to iterate projects: %w", err)
	}
	rows.Close()

	return idx.writeVectors(ctx, "projects", pending)
}

// IndexClients rebuilds vectors for users holding the CLIENT role from name,
// email and company.
func (idx *Indexer) IndexClients(ctx context.Context) (int, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT id, COALESCE(name, ''), COALESCE(email, ''), COALESCE(company, '')
		FROM users
		WHERE role = 'CLIENT'
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch clients: %w", err)
	}

	var pending []vectorRow
	for rows.Next() {
		var id, name, email, company string
		if err := rows.Scan(&id, &name, &email, &company); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan client: %w", err)
		}
		pending = append(pending, vectorRow{id: id, vector: BuildVector(name, email, company)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("failed to iterate clients: %w", err)
	}
	rows.Close()

	return idx.writeVectors(ctx, "users", pending)
}

// IndexTickets rebuilds support ticket vectors from title, description,
// category and the submitting client's name.
func (idx *Indexer) IndexTickets(ctx context.Context) (int, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(description, ''), COALESCE(category, ''), COALESCE(client_name, '')
		FROM support_tickets
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch tickets: %w", err)
	}

	var pending []vectorRow
	for rows.Next() {
		var id, title, description, category, clientName string
		if err := rows.Scan(&id, &title, &description, &category, &clientName); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan ticket: %w", err)
		}
		pending = append(pending, vectorRow{id: id, vector: BuildVector(title, description, category, clientName)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("failed to iterate tickets: %w", err)
	}
	rows.Close()

	return idx.writeVectors(ctx, "support_tickets", pending)
}

// IndexBlogPosts rebuilds blog post vectors from title, excerpt, content and
// category.
func (idx *Indexer) IndexBlogPosts(ctx context.Context) (int, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(excerpt, ''), COALESCE(content, ''), COALESCE(category, '')
		FROM blog_posts
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch blog posts: %w", err)
	}

	var pending []vectorRow
	for rows.Next() {
		var id, title, excerpt, content, category string
		if err := rows.Scan(&id, &title, &excerpt, &content, &category); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan blog post: %w", err)
		}
		pending = append(pending, vectorRow{id: id, vector: BuildVector(title, excerpt, content, category)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("failed to iterate blog posts: %w", err)
	}
	rows.Close()

	return idx.writeVectors(ctx, "blog_posts", pending)
}

// writeVectors updates one row at a time. Each update commits independently,
// so a failure part-way through loses only the remaining rows; a re-run
// repairs them.
func (idx *Indexer) writeVectors(ctx context.Context, table string, pending []vectorRow) (int, error) {
	stmt := fmt.Sprintf(`UPDATE %s SET search_vector = $1 WHERE id = $2`, table)

	written := 0
	for _, row := range pending {
		if _, err := idx.db.ExecContext(ctx, stmt, row.vector, row.id); err != nil {
			return written, fmt.Errorf("failed to update %s row %s: %w", table, row.id, err)
		}
		written++
	}

	idx.logger.WithFields(map[string]interface{}{
		"table": table,
		"rows":  written,
	}).Info("search vectors rebuilt")
	return written, nil
}
