package followup

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/pinkbeam/platform/pkg/email"
	"github.com/pinkbeam/platform/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var followupTracer = otel.Tracer("pinkbeam/followup")

// Sender delivers a staged follow-up email for a quote.
type Sender interface {
	SendFollowUpEmail(ctx context.Context, q email.Quote, stage int) (bool, error)
}

// stageSchedule defines when each nurture stage becomes due, measured from
// the quote's creation time. A quote at followup_stage N-1 that is older
// than the stage-N threshold is due for stage N.
var stageSchedule = []struct {
	stage int
	after time.Duration
}{
	{1, 24 * time.Hour},
	{2, 72 * time.Hour},
	{3, 168 * time.Hour},
}

// Scanner finds quotes that crossed a follow-up threshold, sends the staged
// email, and advances the quote's followup_stage. Quotes that reached a
// terminal status never receive follow-ups.
type Scanner struct {
	db      *sql.DB
	sender  Sender
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewScanner creates a follow-up scanner. metrics may be nil.
func NewScanner(db *sql.DB, sender Sender, logger *observability.Logger, metrics *observability.Metrics) *Scanner {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Scanner{
		db:      db,
		sender:  sender,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Run performs one full scan across all stages and returns the number of
// follow-ups sent. A send failure for one quote is logged and skipped so a
// single bad address cannot stall the rest of the batch; the quote stays at
// its current stage and is retried on the next scan.
func (s *Scanner) Run(ctx context.Context) (int, error) {
	ctx, span := followupTracer.Start(ctx, "followup.Run")
	defer span.End()

	total := 0
	for _, sched := range stageSchedule {
		sent, err := s.runStage(ctx, sched.stage, sched.after)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "follow-up scan failed")
			return total, err
		}
		total += sent
	}

	span.SetAttributes(attribute.Int("sent", total))
	span.SetStatus(codes.Ok, "")
	return total, nil
}

func (s *Scanner) runStage(ctx context.Context, stage int, after time.Duration) (int, error) {
	ctx, span := followupTracer.Start(ctx, "followup.runStage",
		trace.WithAttributes(attribute.Int("stage", stage)))
	defer span.End()

	cutoff := s.now().UTC().Add(-after)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(name, ''), email, COALESCE(company, ''),
		       COALESCE(project_type, ''), COALESCE(budget, ''),
		       COALESCE(timeline, ''), COALESCE(message, ''),
		       COALESCE(lead_quality, ''), status
		FROM quotes
		WHERE followup_stage = $1
		  AND status NOT IN ('ACCEPTED', 'DECLINED')
		  AND created_at <= $2
		ORDER BY created_at ASC`,
		stage-1, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quote scan failed")
		return 0, fmt.Errorf("failed to scan quotes for stage %d: %w", stage, err)
	}
	defer rows.Close()

	var due []email.Quote
	for rows.Next() {
		var q email.Quote
		if err := rows.Scan(&q.ID, &q.Name, &q.Email, &q.Company, &q.ProjectType,
			&q.Budget, &q.Timeline, &q.Message, &q.LeadQuality, &q.Status); err != nil {
			span.RecordError(err)
			return 0, fmt.Errorf("failed to scan quote row: %w", err)
		}
		due = append(due, q)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("quote scan failed: %w", err)
	}

	sentCount := 0
	for _, q := range due {
		sent, err := s.sender.SendFollowUpEmail(ctx, q, stage)
		if err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"quote_id": q.ID,
				"stage":    stage,
			}).Error("follow-up send failed")
			continue
		}
		if !sent {
			// Disabled email client; nothing in this run will send.
			s.logger.WithFields(map[string]interface{}{
				"stage": stage,
			}).Warn("follow-up sending disabled, leaving stages unchanged")
			break
		}

		if err := s.advanceStage(ctx, q.ID, stage); err != nil {
			// The email went out but the stage did not advance; the quote
			// will be picked up again next run. Better a duplicate email
			// than a silently dropped sequence.
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"quote_id": q.ID,
				"stage":    stage,
			}).Error("failed to advance follow-up stage")
			continue
		}

		sentCount++
		if s.metrics != nil {
			s.metrics.FollowUpsSentTotal.WithLabelValues(strconv.Itoa(stage)).Inc()
		}
	}

	span.SetAttributes(attribute.Int("due", len(due)), attribute.Int("sent", sentCount))
	span.SetStatus(codes.Ok, "")
	return sentCount, nil
}

func (s *Scanner) advanceStage(ctx context.Context, quoteID string, stage int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE quotes SET followup_stage = $1 WHERE id = $2 AND followup_stage = $3`,
		stage, quoteID, stage-1)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("quote %s no longer at stage %d", quoteID, stage-1)
	}
	return nil
}
