package search

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func ticketRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "description", "status", "priority", "rank"}).
		AddRow("tick-1", "Chatbot replies twice", "The chatbot sends every answer two times", "OPEN", "HIGH", 0.61)
}

func TestSearchTicketsEmptyQuerySkipsDatabase(t *testing.T) {
	db, mock := newTestDB(t)
	service := NewService(db)

	results, err := service.SearchTickets(context.Background(), "   ", 5)

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchTicketsMapsRows(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM support_tickets")).
		WithArgs("chatbot", 5).
		WillReturnRows(ticketRows())

	service := NewService(db)
	results, err := service.SearchTickets(context.Background(), "chatbot", 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "tick-1", results[0].ID)
	assert.Equal(t, TypeTicket, results[0].Type)
	assert.Equal(t, "Chatbot replies twice", results[0].Title)
	assert.Equal(t, "/dashboard/tickets/tick-1", results[0].URL)
	assert.Equal(t, "OPEN", results[0].Meta["status"])
	assert.Equal(t, "HIGH", results[0].Meta["priority"])
	assert.Contains(t, results[0].Snippet, "chatbot")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchTicketsDefaultsNonPositiveLimit(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM support_tickets")).
		WithArgs("chatbot", DefaultLimit).
		WillReturnRows(ticketRows())

	service := NewService(db)
	_, err := service.SearchTickets(context.Background(), "chatbot", 0)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Store errors propagate uncaught; there is no retry or fallback here.
func TestSearchTicketsPropagatesStoreError(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM support_tickets")).
		WillReturnError(assert.AnError)

	service := NewService(db)
	results, err := service.SearchTickets(context.Background(), "chatbot", 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, results)
}

func TestSearchProjectsMapsRows(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM projects")).
		WithArgs("chatbot", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "status", "client_name", "rank"}).
			AddRow("proj-1", "Support assistant", "AI chatbot for support", "ACTIVE", "Jane Smith", 0.4))

	service := NewService(db)
	results, err := service.SearchProjects(context.Background(), "chatbot", 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, TypeProject, results[0].Type)
	assert.Equal(t, "/dashboard/projects/proj-1", results[0].URL)
	assert.Equal(t, "ACTIVE", results[0].Meta["status"])
	assert.Equal(t, "Jane Smith", results[0].Meta["company"])
}

func TestSearchClientsMapsRows(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE role = 'CLIENT'")).
		WithArgs("acme", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "company", "rank"}).
			AddRow("user-1", "Jane Smith", "jane@acme.example", "Acme Corp", 0.8))

	service := NewService(db)
	results, err := service.SearchClients(context.Background(), "acme", 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, TypeClient, results[0].Type)
	assert.Equal(t, "/dashboard/clients/user-1", results[0].URL)
	assert.Equal(t, "Acme Corp", results[0].Meta["company"])
}

func TestSearchBlogPostsMapsRows(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM blog_posts")).
		WithArgs("chatbot", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "slug", "excerpt", "category", "published", "rank"}).
			AddRow("blog-1", "Building a chatbot", "building-a-chatbot", "Lessons from chatbots", "AI", true, 0.5))

	service := NewService(db)
	results, err := service.SearchBlogPosts(context.Background(), "chatbot", 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, TypeBlog, results[0].Type)
	assert.Equal(t, "/blog/building-a-chatbot", results[0].URL)
	assert.Equal(t, "AI", results[0].Meta["category"])
	assert.Equal(t, "true", results[0].Meta["published"])
}

func TestGlobalSearchEmptyQueryShortCircuits(t *testing.T) {
	db, mock := newTestDB(t)
	service := NewService(db)

	results, err := service.GlobalSearch(context.Background(), "  ", 5)

	require.NoError(t, err)
	assert.Equal(t, 0, results.Total())
	assert.NotNil(t, results.Projects)
	assert.NotNil(t, results.Clients)
	assert.NotNil(t, results.Tickets)
	assert.NotNil(t, results.Blog)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGlobalSearchAssemblesGroups(t *testing.T) {
	db, mock := newTestDB(t)
	// The four queries run concurrently; arrival order is not deterministic.
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(regexp.QuoteMeta("FROM projects")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "status", "client_name", "rank"}).
			AddRow("proj-1", "Support assistant", "AI chatbot", "ACTIVE", "Jane Smith", 0.4))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE role = 'CLIENT'")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "company", "rank"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM support_tickets")).
		WillReturnRows(ticketRows())
	mock.ExpectQuery(regexp.QuoteMeta("FROM blog_posts")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "slug", "excerpt", "category", "published", "rank"}))

	service := NewService(db)
	results, err := service.GlobalSearch(context.Background(), "chatbot", 5)

	require.NoError(t, err)
	assert.Len(t, results.Projects, 1)
	assert.Empty(t, results.Clients)
	assert.Len(t, results.Tickets, 1)
	assert.Empty(t, results.Blog)
	assert.Equal(t, 2, results.Total())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGlobalSearchPropagatesFirstError(t *testing.T) {
	db, mock := newTestDB(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(regexp.QuoteMeta("FROM projects")).WillReturnError(assert.AnError)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE role = 'CLIENT'")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "company", "rank"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM support_tickets")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "status", "priority", "rank"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM blog_posts")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "slug", "excerpt", "category", "published", "rank"}))

	service := NewService(db)
	_, err := service.GlobalSearch(context.Background(), "chatbot", 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
