package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/alert-engine/internal/domain"
)

// ErrVersionConflict signals a lost optimistic-locking race on a single
// alert row. Callers re-read and retry.
var ErrVersionConflict = errors.New("alert version conflict")

// ErrAlertMissing signals an unknown alert id, regardless of backend.
var ErrAlertMissing = errors.New("alert not found")

// AlertFilter captures listing parameters.
type AlertFilter struct {
	Statuses []domain.AlertStatus
	Limit    int
	Offset   int
}

// AlertRepository encapsulates recurring-alert persistence. All mutations
// on existing rows go through UpdateVersioned so lifecycle actions and
// reconciliation stats refreshes on the same alert cannot interleave.
type AlertRepository interface {
	Create(ctx context.Context, alert *domain.RecurringAlert) error
	GetByID(ctx context.Context, id string) (*domain.RecurringAlert, error)
	// FindOpenByKey returns the single ACTIVE or ACKNOWLEDGED alert for a
	// group key, or nil when none exists.
	FindOpenByKey(ctx context.Context, key domain.GroupKey) (*domain.RecurringAlert, error)
	ListOpen(ctx context.Context) ([]domain.RecurringAlert, error)
	List(ctx context.Context, filter AlertFilter) ([]domain.RecurringAlert, error)
	CountByStatus(ctx context.Context) (map[domain.AlertStatus]int64, error)
	// UpdateVersioned writes the alert if its stored version still matches
	// alert.Version, then bumps the version. Returns ErrVersionConflict
	// when the row changed underneath the caller.
	UpdateVersioned(ctx context.Context, alert *domain.RecurringAlert) error
	// UpdateVersionedWithAudit applies a status change and its audit entry
	// atomically: either both persist or neither does. A transition must
	// never land without its audit record.
	UpdateVersionedWithAudit(ctx context.Context, alert *domain.RecurringAlert, entry *domain.AlertAudit) error
	ListAudit(ctx context.Context, alertID string) ([]domain.AlertAudit, error)
}

type alertRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRepository instantiates the postgres-backed repository.
func NewAlertRepository(pool *pgxpool.Pool) AlertRepository {
	return &alertRepository{pool: pool}
}

const alertColumns = `id, group_type, group_key, label, severity, occurrence_count, affected_users,
       first_occurrence, last_occurrence, keywords, suggested_action, status,
       acknowledged_by_user_id, acknowledged_at, resolved_by_user_id, resolved_at,
       notes, member_ticket_ids, version, created_at, updated_at`

func (r *alertRepository) Create(ctx context.Context, alert *domain.RecurringAlert) error {
	const query = `
        INSERT INTO recurring_alerts (group_type, group_key, label, severity, occurrence_count,
            affected_users, first_occurrence, last_occurrence, keywords, suggested_action,
            status, member_ticket_ids)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		alert.Key.Type,
		alert.Key.Value,
		alert.Label,
		alert.Severity,
		alert.OccurrenceCount,
		alert.AffectedUsers,
		alert.FirstOccurrence,
		alert.LastOccurrence,
		alert.Keywords,
		alert.SuggestedAction,
		alert.Status,
		alert.MemberTicketIDs,
	).Scan(&alert.ID, &alert.Version, &alert.CreatedAt, &alert.UpdatedAt)
}

func (r *alertRepository) GetByID(ctx context.Context, id string) (*domain.RecurringAlert, error) {
	query := fmt.Sprintf(`SELECT %s FROM recurring_alerts WHERE id=$1`, alertColumns)
	row := r.pool.QueryRow(ctx, query, id)
	alert, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", id, ErrAlertMissing)
	}
	return alert, err
}

func (r *alertRepository) FindOpenByKey(ctx context.Context, key domain.GroupKey) (*domain.RecurringAlert, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM recurring_alerts
        WHERE group_type=$1 AND group_key=$2 AND status IN ('ACTIVE','ACKNOWLEDGED')`, alertColumns)
	row := r.pool.QueryRow(ctx, query, key.Type, key.Value)
	alert, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return alert, err
}

func (r *alertRepository) ListOpen(ctx context.Context) ([]domain.RecurringAlert, error) {
	return r.List(ctx, AlertFilter{
		Statuses: []domain.AlertStatus{domain.AlertStatusActive, domain.AlertStatusAcknowledged},
		Limit:    -1,
	})
}

func (r *alertRepository) List(ctx context.Context, filter AlertFilter) ([]domain.RecurringAlert, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	query := fmt.Sprintf(`SELECT %s FROM recurring_alerts WHERE %s ORDER BY last_occurrence DESC, id`,
		alertColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	} else if filter.Limit == 0 {
		query += " LIMIT 50"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (r *alertRepository) CountByStatus(ctx context.Context) (map[domain.AlertStatus]int64, error) {
	const query = `SELECT status, COUNT(*) FROM recurring_alerts GROUP BY status`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.AlertStatus]int64)
	for rows.Next() {
		var status domain.AlertStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// querier is satisfied by both pgxpool.Pool and pgx.Tx, so the versioned
// update and audit insert can run standalone or inside one transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *alertRepository) UpdateVersioned(ctx context.Context, alert *domain.RecurringAlert) error {
	return updateVersioned(ctx, r.pool, alert)
}

func (r *alertRepository) UpdateVersionedWithAudit(ctx context.Context, alert *domain.RecurringAlert, entry *domain.AlertAudit) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := updateVersioned(ctx, tx, alert); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func updateVersioned(ctx context.Context, db querier, alert *domain.RecurringAlert) error {
	const query = `
        UPDATE recurring_alerts SET severity=$1, occurrence_count=$2, affected_users=$3,
            first_occurrence=$4, last_occurrence=$5, keywords=$6, suggested_action=$7,
            status=$8, acknowledged_by_user_id=$9, acknowledged_at=$10,
            resolved_by_user_id=$11, resolved_at=$12, notes=$13, member_ticket_ids=$14,
            version=version+1, updated_at=NOW()
        WHERE id=$15 AND version=$16`
	cmd, err := db.Exec(ctx, query,
		alert.Severity,
		alert.OccurrenceCount,
		alert.AffectedUsers,
		alert.FirstOccurrence,
		alert.LastOccurrence,
		alert.Keywords,
		alert.SuggestedAction,
		alert.Status,
		alert.AcknowledgedByUserID,
		alert.AcknowledgedAt,
		alert.ResolvedByUserID,
		alert.ResolvedAt,
		alert.Notes,
		alert.MemberTicketIDs,
		alert.ID,
		alert.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	alert.Version++
	return nil
}

func appendAudit(ctx context.Context, db querier, entry *domain.AlertAudit) error {
	const query = `
        INSERT INTO alert_audit (alert_id, from_status, to_status, acting_user_id, notes)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return db.QueryRow(ctx, query,
		entry.AlertID,
		entry.FromStatus,
		entry.ToStatus,
		entry.ActingUserID,
		entry.Notes,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *alertRepository) ListAudit(ctx context.Context, alertID string) ([]domain.AlertAudit, error) {
	const query = `
        SELECT id, alert_id, from_status, to_status, acting_user_id, notes, created_at
        FROM alert_audit WHERE alert_id=$1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, alertID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AlertAudit
	for rows.Next() {
		var entry domain.AlertAudit
		if err := rows.Scan(
			&entry.ID,
			&entry.AlertID,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.ActingUserID,
			&entry.Notes,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func scanAlert(row pgx.Row) (*domain.RecurringAlert, error) {
	var alert domain.RecurringAlert
	if err := row.Scan(
		&alert.ID,
		&alert.Key.Type,
		&alert.Key.Value,
		&alert.Label,
		&alert.Severity,
		&alert.OccurrenceCount,
		&alert.AffectedUsers,
		&alert.FirstOccurrence,
		&alert.LastOccurrence,
		&alert.Keywords,
		&alert.SuggestedAction,
		&alert.Status,
		&alert.AcknowledgedByUserID,
		&alert.AcknowledgedAt,
		&alert.ResolvedByUserID,
		&alert.ResolvedAt,
		&alert.Notes,
		&alert.MemberTicketIDs,
		&alert.Version,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &alert, nil
}

func scanAlerts(rows pgx.Rows) ([]domain.RecurringAlert, error) {
	var result []domain.RecurringAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	return result, rows.Err()
}
