package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/pinkbeam/platform/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	events chan string
}

func (p *capturingPublisher) Publish(ctx context.Context, event string, payload interface{}) {
	p.events <- event
}

func newTestRouter(t *testing.T, publisher EventPublisher) (*mux.Router, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(db, observability.NewLogger(observability.ErrorLevel, io.Discard), nil, nil)
	svc.now = func() time.Time { return fixedNow }

	router := mux.NewRouter()
	NewHandlers(svc, publisher).RegisterRoutes(router)
	return router, mock
}

func TestCreateHandlerRequiresIdentity(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateHandlerPublishesEvent(t *testing.T) {
	publisher := &capturingPublisher{events: make(chan string, 1)}
	router, mock := newTestRouter(t, publisher)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"type":"TICKET_CREATED","title":"New ticket","message":"Login broken"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", bytes.NewBufferString(body))
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	require.NotNil(t, result.Notification)
	assert.Equal(t, "user-1", result.Notification.UserID)

	select {
	case event := <-publisher.events:
		assert.Equal(t, "notification.created", event)
	case <-time.After(2 * time.Second):
		t.Fatal("expected notification.created event")
	}
}

func TestCreateHandlerValidationError(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", bytes.NewBufferString(`{"title":""}`))
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkReadHandlerMapsOwnershipMissTo404(t *testing.T) {
	router, mock := newTestRouter(t, nil)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/notifications/notif-1/read", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrNotFoundOrDenied)
}

func TestListHandler(t *testing.T) {
	router, mock := newTestRouter(t, nil)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery("SELECT id, user_id, type").
		WithArgs("user-1", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "title", "message", "data", "is_read", "read_at", "created_at"}).
			AddRow("n-1", "user-1", TypeSystem, "maintenance window", "", nil, false, nil, fixedNow))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1") + "$").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("AND is_read = FALSE")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=10", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Len(t, result.Notifications, 1)
	assert.Equal(t, 1, result.Meta.Unread)
	assert.False(t, result.Meta.HasMore)
}

func TestListHandlerPassesTypeFilter(t *testing.T) {
	router, mock := newTestRouter(t, nil)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND type = $2")).
		WithArgs("user-1", TypeTicketComment, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "title", "message", "data", "is_read", "read_at", "created_at"}).
			AddRow("n-1", "user-1", TypeTicketComment, "New comment", "", nil, false, nil, fixedNow))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND type = $2")).
		WithArgs("user-1", TypeTicketComment).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("AND is_read = FALSE")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?type=TICKET_COMMENT", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Notifications, 1)
	assert.Equal(t, TypeTicketComment, result.Notifications[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnreadCountHandler(t *testing.T) {
	router, mock := newTestRouter(t, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/unread-count", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result CountResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Count)
}

func TestDeleteHandler(t *testing.T) {
	router, mock := newTestRouter(t, nil)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notifications")).
		WithArgs("notif-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/notifications/notif-1", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAllReadHandler(t *testing.T) {
	router, mock := newTestRouter(t, nil)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 4))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read-all", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result MutationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 4, result.Updated)
}
