package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"upwatch/internals/modules/monitor"
	"upwatch/pkg/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Store implements the persistence collaborator over a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

func NewStore(pool *pgxpool.Pool, logger *zerolog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger,
	}
}

const monitorColumns = `
	id, user_id, collection_id, name, url,
	auth_type, auth_config, validation_rules, alert_emails,
	interval_min, enabled, status,
	last_checked_at, next_check_at, last_latency_ms,
	consecutive_fails, total_checks, successful_checks`

func (s *Store) ListDueMonitors(ctx context.Context, now time.Time) ([]monitor.Monitor, error) {
	const op string = "repo.monitor.list_due"

	rows, err := s.pool.Query(ctx, `
		SELECT `+monitorColumns+`
		FROM monitors
		WHERE enabled = true AND next_check_at <= $1
		ORDER BY next_check_at`,
		utils.ToPgTimestamptz(now),
	)
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, s.logger)
	}
	defer rows.Close()

	monitors := make([]monitor.Monitor, 0)
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, utils.WrapRepoError(op, err, false, s.logger)
		}
		monitors = append(monitors, m)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.WrapRepoError(op, err, false, s.logger)
	}

	return monitors, nil
}

func (s *Store) GetMonitor(ctx context.Context, id uuid.UUID) (monitor.Monitor, error) {
	const op string = "repo.monitor.get"

	row := s.pool.QueryRow(ctx, `
		SELECT `+monitorColumns+`
		FROM monitors
		WHERE id = $1`,
		utils.ToPgUUID(id),
	)

	m, err := scanMonitor(row)
	if err != nil {
		return monitor.Monitor{}, utils.WrapRepoError(op, err, true, s.logger)
	}
	return m, nil
}

func (s *Store) UpdateMonitorState(ctx context.Context, id uuid.UUID, upd monitor.StateUpdate) error {
	const op string = "repo.monitor.update_state"

	// enabled gates the write so a monitor disabled mid-check discards
	// its whole cycle, exactly like a deleted one
	tag, err := s.pool.Exec(ctx, `
		UPDATE monitors SET
			status = $2,
			last_checked_at = $3,
			next_check_at = $4,
			last_latency_ms = $5,
			consecutive_fails = $6,
			total_checks = $7,
			successful_checks = $8
		WHERE id = $1 AND enabled = true`,
		utils.ToPgUUID(id),
		string(upd.Status),
		utils.ToPgTimestamptz(upd.LastCheckedAt),
		utils.ToPgTimestamptz(upd.NextCheckAt),
		upd.LastLatencyMs,
		upd.ConsecutiveFails,
		upd.TotalChecks,
		upd.SuccessfulChecks,
	)
	if err != nil {
		return utils.WrapRepoError(op, err, false, s.logger)
	}
	if tag.RowsAffected() == 0 {
		return utils.WrapRepoError(op, pgx.ErrNoRows, true, s.logger)
	}
	return nil
}

func (s *Store) SaveCheckResult(ctx context.Context, result *monitor.CheckResult) error {
	const op string = "repo.check_result.create"

	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}

	reasons, err := json.Marshal(result.FailureReasons)
	if err != nil {
		return utils.WrapRepoError(op, err, false, s.logger)
	}
	meta, err := json.Marshal(result.ResponseMeta)
	if err != nil {
		return utils.WrapRepoError(op, err, false, s.logger)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO check_results (
			id, monitor_id, status, http_status, latency_ms,
			error_message, failure_reasons, response_body, response_meta, checked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		utils.ToPgUUID(result.ID),
		utils.ToPgUUID(result.MonitorID),
		string(result.Status),
		utils.ToPgInt4(result.HTTPStatus),
		result.LatencyMs,
		utils.ToPgText(result.ErrorMessage),
		reasons,
		result.ResponseBody,
		meta,
		utils.ToPgTimestamptz(result.CheckedAt),
	)
	if err != nil {
		return utils.WrapRepoError(op, err, false, s.logger)
	}
	return nil
}

func (s *Store) SaveAlert(ctx context.Context, alert *monitor.Alert) error {
	const op string = "repo.alert.create"

	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}

	recipients, err := json.Marshal(alert.Recipients)
	if err != nil {
		return utils.WrapRepoError(op, err, false, s.logger)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO alerts (
			id, monitor_id, type, message, recipients,
			email_sent, email_error, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		utils.ToPgUUID(alert.ID),
		utils.ToPgUUID(alert.MonitorID),
		string(alert.Type),
		alert.Message,
		recipients,
		alert.EmailSent,
		utils.ToPgText(alert.EmailError),
		utils.ToPgTimestamptz(alert.SentAt),
	)
	if err != nil {
		return utils.WrapRepoError(op, err, false, s.logger)
	}
	return nil
}

func (s *Store) LatestAlert(ctx context.Context, monitorID uuid.UUID, typ monitor.AlertType) (*monitor.Alert, error) {
	const op string = "repo.alert.latest"

	row := s.pool.QueryRow(ctx, `
		SELECT id, monitor_id, type, message, recipients,
		       email_sent, email_error, sent_at
		FROM alerts
		WHERE monitor_id = $1 AND type = $2
		ORDER BY sent_at DESC
		LIMIT 1`,
		utils.ToPgUUID(monitorID),
		string(typ),
	)

	var (
		id, mID    pgtype.UUID
		alertType  string
		message    string
		recipients []byte
		emailSent  bool
		emailErr   pgtype.Text
		sentAt     pgtype.Timestamptz
	)

	err := row.Scan(&id, &mID, &alertType, &message, &recipients, &emailSent, &emailErr, &sentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, s.logger)
	}

	alert := &monitor.Alert{
		ID:         utils.FromPgUUID(id),
		MonitorID:  utils.FromPgUUID(mID),
		Type:       monitor.AlertType(alertType),
		Message:    message,
		EmailSent:  emailSent,
		EmailError: utils.FromPgText(emailErr),
		SentAt:     utils.FromPgTimestamptz(sentAt),
	}
	if err := json.Unmarshal(recipients, &alert.Recipients); err != nil {
		return nil, utils.WrapRepoError(op, err, false, s.logger)
	}
	return alert, nil
}

func (s *Store) GetSettings(ctx context.Context, key string) ([]byte, error) {
	const op string = "repo.settings.get"

	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, s.logger)
	}
	return value, nil
}

func scanMonitor(row pgx.Row) (monitor.Monitor, error) {
	var (
		id, userID   pgtype.UUID
		collectionID pgtype.UUID
		name, url    string
		authType     string
		authCfg      []byte
		rules        []byte
		emails       []byte
		intervalMin  int32
		enabled      bool
		status       string
		lastChecked  pgtype.Timestamptz
		nextCheck    pgtype.Timestamptz
		lastLatency  int64
		fails        int32
		total, succ  int64
	)

	err := row.Scan(
		&id, &userID, &collectionID, &name, &url,
		&authType, &authCfg, &rules, &emails,
		&intervalMin, &enabled, &status,
		&lastChecked, &nextCheck, &lastLatency,
		&fails, &total, &succ,
	)
	if err != nil {
		return monitor.Monitor{}, err
	}

	m := monitor.Monitor{
		ID:               utils.FromPgUUID(id),
		UserID:           utils.FromPgUUID(userID),
		Name:             name,
		URL:              url,
		AuthType:         monitor.AuthType(authType),
		IntervalMin:      intervalMin,
		Enabled:          enabled,
		Status:           monitor.Status(status),
		NextCheckAt:      utils.FromPgTimestamptz(nextCheck),
		LastLatencyMs:    lastLatency,
		ConsecutiveFails: fails,
		TotalChecks:      total,
		SuccessfulChecks: succ,
	}

	if collectionID.Valid {
		cid := utils.FromPgUUID(collectionID)
		m.CollectionID = &cid
	}
	if lastChecked.Valid {
		t := utils.FromPgTimestamptz(lastChecked)
		m.LastCheckedAt = &t
	}
	if len(authCfg) > 0 {
		if err := json.Unmarshal(authCfg, &m.AuthConfig); err != nil {
			return monitor.Monitor{}, err
		}
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &m.Rules); err != nil {
			return monitor.Monitor{}, err
		}
	}
	if len(emails) > 0 {
		if err := json.Unmarshal(emails, &m.AlertEmails); err != nil {
			return monitor.Monitor{}, err
		}
	}

	return m, nil
}
