package notifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pinkbeam/platform/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var notificationsTracer = otel.Tracer("pinkbeam/notifications")

// ErrNotFoundOrDenied is the message returned when a mutation targets a
// notification that does not exist or belongs to another user. The two cases
// are deliberately indistinguishable.
const ErrNotFoundOrDenied = "Notification not found or access denied"

// Service manages the notification lifecycle. Unlike the search and email
// layers, this service never returns Go errors to callers: every failure is
// absorbed into the result value so notification problems cannot break the
// flows that emit them.
type Service struct {
	db      *sql.DB
	logger  *observability.Logger
	cache   *UnreadCache
	metrics *observability.Metrics

	now func() time.Time
}

// NewService creates a notification service. cache and metrics may be nil.
func NewService(db *sql.DB, logger *observability.Logger, cache *UnreadCache, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		db:      db,
		logger:  logger,
		cache:   cache,
		metrics: metrics,
		now:     time.Now,
	}
}

// EnsureSchema creates the notifications table when it does not exist yet.
// Called once at startup; safe to re-run.
func (s *Service) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			data TEXT,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			read_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_notifications_user_created
		ON notifications (user_id, created_at DESC)
	`)
	return err
}

// Create persists a notification for a user. Type and title are required;
// Data is stored as JSON.
func (s *Service) Create(ctx context.Context, userID, notifType, title, message string, data map[string]interface{}) Result {
	ctx, span := notificationsTracer.Start(ctx, "CreateNotification",
		trace.WithAttributes(attribute.String("type", notifType)))
	defer span.End()

	if userID == "" {
		return Result{Success: false, Error: "User ID is required"}
	}
	if notifType == "" || title == "" {
		return Result{Success: false, Error: "Notification type and title are required"}
	}

	n := Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		Message:   message,
		Data:      data,
		IsRead:    false,
		CreatedAt: s.now().UTC(),
	}

	var dataJSON []byte
	if len(data) > 0 {
		var err error
		dataJSON, err = json.Marshal(data)
		if err != nil {
			s.logger.WithError(err).Error("failed to encode notification data")
			return Result{Success: false, Error: "Failed to create notification"}
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, data, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.UserID, n.Type, n.Title, n.Message, nullableJSON(dataJSON), n.IsRead, n.CreatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		s.logger.WithError(err).WithField("user_id", userID).Error("failed to create notification")
		return Result{Success: false, Error: "Failed to create notification"}
	}

	s.invalidateUnread(ctx, userID)
	if s.metrics != nil {
		s.metrics.NotificationsCreatedTotal.WithLabelValues(n.Type).Inc()
	}

	span.SetStatus(codes.Ok, "")
	return Result{Success: true, Notification: &n}
}

// List returns a page of the user's notifications, newest first, along with
// total and unread counts. The three queries are independent and run
// concurrently.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) ListResult {
	ctx, span := notificationsTracer.Start(ctx, "ListNotifications",
		trace.WithAttributes(
			attribute.Bool("unread_only", opts.UnreadOnly),
			attribute.String("type", opts.Type),
		))
	defer span.End()

	if userID == "" {
		return ListResult{Success: false, Error: "User ID is required", Notifications: []Notification{}}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	// Page and total share the same predicate so HasMore stays consistent
	// with what a filtered caller can actually page through. Unread is
	// always the per-user figure, independent of filters.
	where := "user_id = $1"
	args := []interface{}{userID}
	if opts.UnreadOnly {
		where += " AND is_read = FALSE"
	}
	if opts.Type != "" {
		args = append(args, opts.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}

	var (
		page   []Notification
		total  int
		unread int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = s.queryPage(gctx, where, args, limit, offset)
		return err
	})
	g.Go(func() error {
		return s.db.QueryRowContext(gctx,
			`SELECT COUNT(*) FROM notifications WHERE `+where, args...,
		).Scan(&total)
	})
	g.Go(func() error {
		return s.db.QueryRowContext(gctx,
			`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID,
		).Scan(&unread)
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		s.logger.WithError(err).WithField("user_id", userID).Error("failed to list notifications")
		return ListResult{Success: false, Error: "Failed to fetch notifications", Notifications: []Notification{}}
	}

	span.SetAttributes(attribute.Int("count", len(page)))
	span.SetStatus(codes.Ok, "")
	return ListResult{
		Success:       true,
		Notifications: page,
		Meta: ListMeta{
			Total:   total,
			Unread:  unread,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(page) < total,
		},
	}
}

func (s *Service) queryPage(ctx context.Context, where string, args []interface{}, limit, offset int) ([]Notification, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, type, title, message, data, is_read, read_at, created_at
		FROM notifications
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	pageArgs := make([]interface{}, 0, len(args)+2)
	pageArgs = append(pageArgs, args...)
	pageArgs = append(pageArgs, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := make([]Notification, 0, limit)
	for rows.Next() {
		var (
			n        Notification
			dataJSON sql.NullString
			readAt   sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &dataJSON, &n.IsRead, &readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		if dataJSON.Valid && dataJSON.String != "" {
			if err := json.Unmarshal([]byte(dataJSON.String), &n.Data); err != nil {
				// Corrupt data payloads should not hide the notification.
				s.logger.WithError(err).WithField("notification_id", n.ID).Warn("invalid notification data payload")
			}
		}
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		page = append(page, n)
	}
	return page, rows.Err()
}

// MarkAsRead marks one notification read. The mutation is scoped to the
// owning user; a zero-row update reports ErrNotFoundOrDenied.
func (s *Service) MarkAsRead(ctx context.Context, notificationID, userID string) Result {
	ctx, span := notificationsTracer.Start(ctx, "MarkNotificationRead")
	defer span.End()

	readAt := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = $1
		WHERE id = $2 AND user_id = $3
	`, readAt, notificationID, userID)
	if err != nil {
		span.RecordError(err)
		s.logger.WithError(err).WithField("notification_id", notificationID).Error("failed to mark notification read")
		return Result{Success: false, Error: "Failed to update notification"}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		s.logger.WithError(err).Error("failed to read affected rows")
		return Result{Success: false, Error: "Failed to update notification"}
	}
	if affected == 0 {
		return Result{Success: false, Error: ErrNotFoundOrDenied}
	}

	s.invalidateUnread(ctx, userID)
	s.recordMutation("mark_read")
	span.SetStatus(codes.Ok, "")
	return Result{Success: true}
}

// MarkAsUnread returns a notification to the unread state and clears its
// read timestamp.
func (s *Service) MarkAsUnread(ctx context.Context, notificationID, userID string) Result {
	ctx, span := notificationsTracer.Start(ctx, "MarkNotificationUnread")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = FALSE, read_at = NULL
		WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		span.RecordError(err)
		s.logger.WithError(err).WithField("notification_id", notificationID).Error("failed to mark notification unread")
		return Result{Success: false, Error: "Failed to update notification"}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		s.logger.WithError(err).Error("failed to read affected rows")
		return Result{Success: false, Error: "Failed to update notification"}
	}
	if affected == 0 {
		return Result{Success: false, Error: ErrNotFoundOrDenied}
	}

	s.invalidateUnread(ctx, userID)
	s.recordMutation("mark_unread")
	span.SetStatus(codes.Ok, "")
	return Result{Success: true}
}

// MarkAllAsRead marks every unread notification of the user read. Zero
// affected rows is a success: there was simply nothing to mark.
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) MutationResult {
	ctx, span := notificationsTracer.Start(ctx, "MarkAllNotificationsRead")
	defer span.End()

	readAt := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = $1
		WHERE user_id = $2 AND is_read = FALSE
	`, readAt, userID)
	if err != nil {
		span.RecordError(err)
		s.logger.WithError(err).WithField("user_id", userID).Error("failed to mark all notifications read")
		return MutationResult{Success: false, Error: "Failed to update notifications"}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		s.logger.WithError(err).Error("failed to read affected rows")
		return MutationResult{Success: false, Error: "Failed to update notifications"}
	}

	s.invalidateUnread(ctx, userID)
	s.recordMutation("mark_all_read")
	span.SetAttributes(attribute.Int("updated", int(affected)))
	span.SetStatus(codes.Ok, "")
	return MutationResult{Success: true, Updated: int(affected)}
}

// UnreadCount returns the user's unread notification count, served from
// cache when possible.
func (s *Service) UnreadCount(ctx context.Context, userID string) CountResult {
	ctx, span := notificationsTracer.Start(ctx, "UnreadNotificationCount")
	defer span.End()

	if userID == "" {
		return CountResult{Success: false, Error: "User ID is required"}
	}

	if s.cache != nil {
		if count, ok := s.cache.Get(ctx, userID); ok {
			span.SetStatus(codes.Ok, "")
			return CountResult{Success: true, Count: count}
		}
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID,
	).Scan(&count)
	if err != nil {
		span.RecordError(err)
		s.logger.WithError(err).WithField("user_id", userID).Error("failed to count unread notifications")
		return CountResult{Success: false, Error: "Failed to fetch unread count"}
	}

	if s.cache != nil {
		s.cache.Set(ctx, userID, count)
	}

	span.SetStatus(codes.Ok, "")
	return CountResult{Success: true, Count: count}
}

// Delete removes a notification permanently, scoped to the owning user.
func (s *Service) Delete(ctx context.Context, notificationID, userID string) Result {
	ctx, span := notificationsTracer.Start(ctx, "DeleteNotification")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM notifications WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		span.RecordError(err)
		s.logger.WithError(err).WithField("notification_id", notificationID).Error("failed to delete notification")
		return Result{Success: false, Error: "Failed to delete notification"}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		s.logger.WithError(err).Error("failed to read affected rows")
		return Result{Success: false, Error: "Failed to delete notification"}
	}
	if affected == 0 {
		return Result{Success: false, Error: ErrNotFoundOrDenied}
	}

	s.invalidateUnread(ctx, userID)
	s.recordMutation("delete")
	span.SetStatus(codes.Ok, "")
	return Result{Success: true}
}

func (s *Service) invalidateUnread(ctx context.Context, userID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
}

func (s *Service) recordMutation(operation string) {
	if s.metrics != nil {
		s.metrics.NotificationMutationsTotal.WithLabelValues(operation).Inc()
	}
}

// nullableJSON converts an empty payload to SQL NULL.
func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
