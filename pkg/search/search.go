package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var searchTracer = otel.Tracer("pinkbeam/search")

// Entity type tags carried on every Result.
const (
	TypeProject = "project"
	TypeClient  = "client"
	TypeTicket  = "ticket"
	TypeBlog    = "blog"
)

// DefaultLimit is the per-entity result cap applied when the caller passes a
// non-positive limit.
const DefaultLimit = 5

// Result is a single search hit. It is constructed fresh on every query and
// never persisted.
type Result struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Title   string            `json:"title"`
	Snippet string            `json:"snippet"`
	URL     string            `json:"url"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// GlobalResults groups per-entity result lists for a single query.
type GlobalResults struct {
	Projects []Result `json:"projects"`
	Clients  []Result `json:"clients"`
	Tickets  []Result `json:"tickets"`
	Blog     []Result `json:"blog"`
}

// Total returns the combined number of hits across all entity types.
func (g GlobalResults) Total() int {
	return len(g.Projects) + len(g.Clients) + len(g.Tickets) + len(g.Blog)
}

// Querier is the read-only query surface the service needs. *sql.DB
// satisfies it directly, and so does the connection manager, which routes
// each call to a read replica.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Service answers ranked full-text queries using PostgreSQL FTS. Store errors
// propagate to the caller; there is no retry or fallback at this layer.
type Service struct {
	db Querier
}

// NewService creates a search service on top of the given query handle.
func NewService(db Querier) *Service {
	return &Service{db: db}
}

// rankExpr computes relevance against a search_vector column, treating a null
// vector as the empty string so unindexed rows rank at zero instead of
// erroring. The matching predicate uses the same expression.
const rankExpr = `ts_rank(to_tsvector('english', COALESCE(%[1]s, '')), plainto_tsquery('english', $1))`
const matchExpr = `to_tsvector('english', COALESCE(%[1]s, '')) @@ plainto_tsquery('english', $1)`

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// SearchProjects returns ranked project hits for the query. Project snippets
// draw from the description plus the owning client's name.
func (s *Service) SearchProjects(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}
	limit = normalizeLimit(limit)

	ctx, span := searchTracer.Start(ctx, "SearchProjects",
		trace.WithAttributes(attribute.String("query", query), attribute.Int("limit", limit)))
	defer span.End()

	stmt := fmt.Sprintf(`
		SELECT p.id, p.name, COALESCE(p.description, ''), p.status, COALESCE(u.name, ''),
		       `+rankExpr+` AS rank
		FROM projects p
		LEFT JOIN users u ON p.client_id = u.id
		WHERE `+matchExpr+`
		ORDER BY rank DESC
		LIMIT $2
	`, "p.search_vector")

	rows, err := s.db.QueryContext(ctx, stmt, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "project search failed")
		return nil, fmt.Errorf("failed to search projects: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, limit)
	for rows.Next() {
		var id, name, description, status, clientName string
		var rank float64
		if err := rows.Scan(&id, &name, &description, &status, &clientName, &rank); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		results = append(results, Result{
			ID:      id,
			Type:    TypeProject,
			Title:   name,
			Snippet: GenerateSnippet(strings.TrimSpace(description+" "+clientName), query, DefaultSnippetLength),
			URL:     "/dashboard/projects/" + id,
			Meta: map[string]string{
				"status":  status,
				"company": clientName,
			},
		})
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate project rows: %w", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	span.SetStatus(codes.Ok, "")
	return results, nil
}

// SearchClients returns ranked client hits. Only users holding the CLIENT
// role participate in the corpus.
func (s *Service) SearchClients(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}
	limit = normalizeLimit(limit)

	ctx, span := searchTracer.Start(ctx, "SearchClients",
		trace.WithAttributes(attribute.String("query", query), attribute.Int("limit", limit)))
	defer span.End()

	stmt := fmt.Sprintf(`
		SELECT id, COALESCE(name, ''), email, COALESCE(company, ''),
		       `+rankExpr+` AS rank
		FROM users
		WHERE role = 'CLIENT' AND `+matchExpr+`
		ORDER BY rank DESC
		LIMIT $2
	`, "search_vector")

	rows, err := s.db.QueryContext(ctx, stmt, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "client search failed")
		return nil, fmt.Errorf("failed to search clients: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, limit)
	for rows.Next() {
		var id, name, email, company string
		var rank float64
		if err := rows.Scan(&id, &name, &email, &company, &rank); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan client row: %w", err)
		}
		results = append(results, Result{
			ID:      id,
			Type:    TypeClient,
			Title:   name,
			Snippet: GenerateSnippet(strings.TrimSpace(company+" "+email), query, DefaultSnippetLength),
			URL:     "/dashboard/clients/" + id,
			Meta: map[string]string{
				"company": company,
			},
		})
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate client rows: %w", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	span.SetStatus(codes.Ok, "")
	return results, nil
}

// SearchTickets returns ranked support ticket hits.
func (s *Service) SearchTickets(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}
	limit = normalizeLimit(limit)

	ctx, span := searchTracer.Start(ctx, "SearchTickets",
		trace.WithAttributes(attribute.String("query", query), attribute.Int("limit", limit)))
	defer span.End()

	stmt := fmt.Sprintf(`
		SELECT id, title, COALESCE(description, ''), status, priority,
		       `+rankExpr+` AS rank
		FROM support_tickets
		WHERE `+matchExpr+`
		ORDER BY rank DESC
		LIMIT $2
	`, "search_vector")

	rows, err := s.db.QueryContext(ctx, stmt, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ticket search failed")
		return nil, fmt.Errorf("failed to search tickets: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, limit)
	for rows.Next() {
		var id, title, description, status, priority string
		var rank float64
		if err := rows.Scan(&id, &title, &description, &status, &priority, &rank); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan ticket row: %w", err)
		}
		results = append(results, Result{
			ID:      id,
			Type:    TypeTicket,
			Title:   title,
			Snippet: GenerateSnippet(description, query, DefaultSnippetLength),
			URL:     "/dashboard/tickets/" + id,
			Meta: map[string]string{
				"status":   status,
				"priority": priority,
			},
		})
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate ticket rows: %w", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	span.SetStatus(codes.Ok, "")
	return results, nil
}

// SearchBlogPosts returns ranked blog post hits. Unpublished drafts stay in
// the corpus so the admin dashboard can find them; the published flag rides
// along in Meta for the UI to badge.
func (s *Service) SearchBlogPosts(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}
	limit = normalizeLimit(limit)

	ctx, span := searchTracer.Start(ctx, "SearchBlogPosts",
		trace.WithAttributes(attribute.String("query", query), attribute.Int("limit", limit)))
	defer span.End()

	stmt := fmt.Sprintf(`
		SELECT id, title, slug, COALESCE(excerpt, ''), COALESCE(category, ''), published,
		       `+rankExpr+` AS rank
		FROM blog_posts
		WHERE `+matchExpr+`
		ORDER BY rank DESC
		LIMIT $2
	`, "search_vector")

	rows, err := s.db.QueryContext(ctx, stmt, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "blog search failed")
		return nil, fmt.Errorf("failed to search blog posts: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, limit)
	for rows.Next() {
		var id, title, slug, excerpt, category string
		var published bool
		var rank float64
		if err := rows.Scan(&id, &title, &slug, &excerpt, &category, &published, &rank); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan blog row: %w", err)
		}
		results = append(results, Result{
			ID:      id,
			Type:    TypeBlog,
			Title:   title,
			Snippet: GenerateSnippet(excerpt, query, DefaultSnippetLength),
			URL:     "/blog/" + slug,
			Meta: map[string]string{
				"category":  category,
				"published": fmt.Sprintf("%t", published),
			},
		})
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate blog rows: %w", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	span.SetStatus(codes.Ok, "")
	return results, nil
}

// GlobalSearch fans out to all four per-entity searches concurrently and
// assembles the grouped results. The four queries are independent, so they
// run in parallel; the first error cancels the rest.
func (s *Service) GlobalSearch(ctx context.Context, query string, limitPerType int) (GlobalResults, error) {
	results := GlobalResults{
		Projects: []Result{},
		Clients:  []Result{},
		Tickets:  []Result{},
		Blog:     []Result{},
	}

	if strings.TrimSpace(query) == "" {
		return results, nil
	}

	ctx, span := searchTracer.Start(ctx, "GlobalSearch",
		trace.WithAttributes(attribute.String("query", query), attribute.Int("limit_per_type", limitPerType)))
	defer span.End()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		results.Projects, err = s.SearchProjects(ctx, query, limitPerType)
		return err
	})
	g.Go(func() error {
		var err error
		results.Clients, err = s.SearchClients(ctx, query, limitPerType)
		return err
	})
	g.Go(func() error {
		var err error
		results.Tickets, err = s.SearchTickets(ctx, query, limitPerType)
		return err
	})
	g.Go(func() error {
		var err error
		results.Blog, err = s.SearchBlogPosts(ctx, query, limitPerType)
		return err
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "global search failed")
		return GlobalResults{}, err
	}

	span.SetAttributes(attribute.Int("total_results", results.Total()))
	span.SetStatus(codes.Ok, "")
	return results, nil
}
