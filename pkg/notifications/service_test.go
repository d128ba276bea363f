package notifications

import (
	"context"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pinkbeam/platform/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...func(*sqlmock.Sqlmock)) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(db, observability.NewLogger(observability.ErrorLevel, io.Discard), nil, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, mock
}

func TestCreateNotification(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WithArgs(sqlmock.AnyArg(), "user-1", TypeQuoteCreated, "New quote request", "Acme Corp requested a quote", sqlmock.AnyArg(), false, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := svc.Create(context.Background(), "user-1", TypeQuoteCreated, "New quote request", "Acme Corp requested a quote",
		map[string]interface{}{"quoteId": "q-1"})

	assert.True(t, result.Success)
	require.NotNil(t, result.Notification)
	assert.NotEmpty(t, result.Notification.ID)
	assert.Equal(t, "user-1", result.Notification.UserID)
	assert.False(t, result.Notification.IsRead)
	assert.Nil(t, result.Notification.ReadAt)
	assert.Equal(t, fixedNow, result.Notification.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequiresUserID(t *testing.T) {
	svc, mock := newTestService(t)

	result := svc.Create(context.Background(), "", TypeSystem, "title", "", nil)

	assert.False(t, result.Success)
	assert.Equal(t, "User ID is required", result.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequiresTypeAndTitle(t *testing.T) {
	svc, mock := newTestService(t)

	result := svc.Create(context.Background(), "user-1", "", "", "", nil)

	assert.False(t, result.Success)
	assert.Equal(t, "Notification type and title are required", result.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Store failures surface as result values, never as errors or panics.
func TestCreateAbsorbsStoreFailure(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnError(assert.AnError)

	result := svc.Create(context.Background(), "user-1", TypeSystem, "title", "", nil)

	assert.False(t, result.Success)
	assert.Equal(t, "Failed to create notification", result.Error)
}

func TestMarkAsRead(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE, read_at = $1")).
		WithArgs(fixedNow, "notif-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := svc.MarkAsRead(context.Background(), "notif-1", "user-1")

	assert.True(t, result.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A mutation scoped to the wrong user matches zero rows; the response does
// not reveal whether the notification exists.
func TestMarkAsReadWrongOwner(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE, read_at = $1")).
		WithArgs(fixedNow, "notif-1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	result := svc.MarkAsRead(context.Background(), "notif-1", "intruder")

	assert.False(t, result.Success)
	assert.Equal(t, ErrNotFoundOrDenied, result.Error)
}

func TestMarkAsUnreadClearsReadAt(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = FALSE, read_at = NULL")).
		WithArgs("notif-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := svc.MarkAsUnread(context.Background(), "notif-1", "user-1")

	assert.True(t, result.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAsUnreadNotFound(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = FALSE, read_at = NULL")).
		WithArgs("missing", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	result := svc.MarkAsUnread(context.Background(), "missing", "user-1")

	assert.False(t, result.Success)
	assert.Equal(t, ErrNotFoundOrDenied, result.Error)
}

// Marking all read with nothing unread is not an error: the desired state
// already holds.
func TestMarkAllAsReadZeroRowsIsSuccess(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE, read_at = $1")).
		WithArgs(fixedNow, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	result := svc.MarkAllAsRead(context.Background(), "user-1")

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Updated)
}

func TestMarkAllAsReadReportsUpdated(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE, read_at = $1")).
		WithArgs(fixedNow, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 7))

	result := svc.MarkAllAsRead(context.Background(), "user-1")

	assert.True(t, result.Success)
	assert.Equal(t, 7, result.Updated)
}

func TestDeleteNotification(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notifications WHERE id = $1 AND user_id = $2")).
		WithArgs("notif-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := svc.Delete(context.Background(), "notif-1", "user-1")

	assert.True(t, result.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteNotFound(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notifications WHERE id = $1 AND user_id = $2")).
		WithArgs("missing", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	result := svc.Delete(context.Background(), "missing", "user-1")

	assert.False(t, result.Success)
	assert.Equal(t, ErrNotFoundOrDenied, result.Error)
}

func TestUnreadCount(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	result := svc.UnreadCount(context.Background(), "user-1")

	assert.True(t, result.Success)
	assert.Equal(t, 4, result.Count)
}

func TestUnreadCountServedFromCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	cache := NewUnreadCache(16, time.Minute, nil, nil, logger)
	svc := NewService(db, logger, cache, nil)

	// First call misses the cache and hits the database once.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	first := svc.UnreadCount(context.Background(), "user-1")
	require.True(t, first.Success)
	assert.Equal(t, 2, first.Count)

	// Second call is a pure cache hit; no further query expectations exist.
	second := svc.UnreadCount(context.Background(), "user-1")
	assert.True(t, second.Success)
	assert.Equal(t, 2, second.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListNotifications(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	// The page and both counts run concurrently.
	mock.MatchExpectationsInOrder(false)

	svc := NewService(db, observability.NewLogger(observability.ErrorLevel, io.Discard), nil, nil)

	readAt := fixedNow.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "title", "message", "data", "is_read", "read_at", "created_at"}).
		AddRow("n-2", "user-1", TypeTicketComment, "New comment", "Reply posted", `{"ticketId":"t-1"}`, false, nil, fixedNow).
		AddRow("n-1", "user-1", TypeQuoteCreated, "New quote", "", nil, true, readAt, fixedNow.Add(-2*time.Hour))

	mock.ExpectQuery("SELECT id, user_id, type, title, message, data, is_read, read_at, created_at").
		WithArgs("user-1", 20, 0).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1") + "$").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	result := svc.List(context.Background(), "user-1", ListOptions{})

	require.True(t, result.Success, result.Error)
	require.Len(t, result.Notifications, 2)

	assert.Equal(t, "n-2", result.Notifications[0].ID)
	assert.Equal(t, map[string]interface{}{"ticketId": "t-1"}, result.Notifications[0].Data)
	assert.Nil(t, result.Notifications[0].ReadAt)

	assert.True(t, result.Notifications[1].IsRead)
	require.NotNil(t, result.Notifications[1].ReadAt)
	assert.Equal(t, readAt, *result.Notifications[1].ReadAt)

	assert.Equal(t, 12, result.Meta.Total)
	assert.Equal(t, 5, result.Meta.Unread)
	assert.Equal(t, 20, result.Meta.Limit)
	assert.True(t, result.Meta.HasMore)
}

func TestListRequiresUserID(t *testing.T) {
	svc, _ := newTestService(t)

	result := svc.List(context.Background(), "", ListOptions{})

	assert.False(t, result.Success)
	assert.Equal(t, "User ID is required", result.Error)
	assert.NotNil(t, result.Notifications)
}

func TestListClampsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	svc := NewService(db, observability.NewLogger(observability.ErrorLevel, io.Discard), nil, nil)

	mock.ExpectQuery("SELECT id, user_id, type").
		WithArgs("user-1", MaxListLimit, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "title", "message", "data", "is_read", "read_at", "created_at"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1") + "$").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	result := svc.List(context.Background(), "user-1", ListOptions{Limit: 5000})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, MaxListLimit, result.Meta.Limit)
	assert.False(t, result.Meta.HasMore)
}

func TestListFiltersByType(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	svc := NewService(db, observability.NewLogger(observability.ErrorLevel, io.Discard), nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND type = $2")).
		WithArgs("user-1", TypeTicketComment, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "title", "message", "data", "is_read", "read_at", "created_at"}).
			AddRow("n-1", "user-1", TypeTicketComment, "New comment", "Reply posted", nil, false, nil, fixedNow))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND type = $2")).
		WithArgs("user-1", TypeTicketComment).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(8))

	result := svc.List(context.Background(), "user-1", ListOptions{Type: TypeTicketComment})

	require.True(t, result.Success, result.Error)
	require.Len(t, result.Notifications, 1)
	assert.Equal(t, TypeTicketComment, result.Notifications[0].Type)
	assert.Equal(t, 3, result.Meta.Total)
	assert.Equal(t, 8, result.Meta.Unread)
	assert.True(t, result.Meta.HasMore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Type combined with unread_only keeps the type placeholder at $2: the
// unread predicate is literal SQL and contributes no argument.
func TestListTypeAndUnreadOnlyCombined(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	svc := NewService(db, observability.NewLogger(observability.ErrorLevel, io.Discard), nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND is_read = FALSE AND type = $2")).
		WithArgs("user-1", TypeSystem, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "title", "message", "data", "is_read", "read_at", "created_at"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE AND type = $2")).
		WithArgs("user-1", TypeSystem).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE")+"$").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	result := svc.List(context.Background(), "user-1", ListOptions{UnreadOnly: true, Type: TypeSystem})

	require.True(t, result.Success, result.Error)
	assert.Empty(t, result.Notifications)
	assert.Equal(t, 0, result.Meta.Total)
	assert.False(t, result.Meta.HasMore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Under unread_only the total is the unread total, not the user's overall
// count. HasMore is computed against that filtered total so a caller paging
// unread notifications sees a consistent end of list.
func TestListUnreadOnlyTotalMatchesFilteredPages(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	svc := NewService(db, observability.NewLogger(observability.ErrorLevel, io.Discard), nil, nil)

	mock.ExpectQuery("SELECT id, user_id, type").
		WithArgs("user-1", 1, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "title", "message", "data", "is_read", "read_at", "created_at"}).
			AddRow("n-3", "user-1", TypeSystem, "maintenance", "", nil, false, nil, fixedNow))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	result := svc.List(context.Background(), "user-1", ListOptions{Limit: 1, UnreadOnly: true})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, 3, result.Meta.Total)
	assert.True(t, result.Meta.HasMore)
}

func TestListUnreadOnlyFiltersCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	svc := NewService(db, observability.NewLogger(observability.ErrorLevel, io.Discard), nil, nil)

	mock.ExpectQuery("SELECT id, user_id, type").
		WithArgs("user-1", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "title", "message", "data", "is_read", "read_at", "created_at"}).
			AddRow("n-1", "user-1", TypeSystem, "maintenance", "", nil, false, nil, fixedNow))
	// Total respects the unread filter so paging stays consistent; both
	// count queries collapse onto the same statement.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	result := svc.List(context.Background(), "user-1", ListOptions{UnreadOnly: true})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.Meta.Total)
	assert.Equal(t, 1, result.Meta.Unread)
}
