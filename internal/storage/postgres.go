package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-store-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStore{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// ListActiveMappings returns active mappings joined to their ACTIVE events
// and outcomes. This is the ingestion view: the token index and backfill
// only care about events still trading.
func (p *PostgresStore) ListActiveMappings(ctx context.Context) ([]ActiveMapping, error) {
	return p.listMappings(ctx, []string{EventStatusActive})
}

// ListSettleableMappings returns active mappings whose events are ACTIVE or
// CLOSED. Settlement needs the CLOSED ones: an event can expire locally
// before the venue reports closure, and it still has to be paid out.
func (p *PostgresStore) ListSettleableMappings(ctx context.Context) ([]ActiveMapping, error) {
	return p.listMappings(ctx, []string{EventStatusActive, EventStatusClosed})
}

func (p *PostgresStore) listMappings(ctx context.Context, statuses []string) ([]ActiveMapping, error) {
	const mappingQuery = `
		SELECT m.id, m.external_market_id, m.event_id,
		       COALESCE(m.yes_token_id, ''), COALESCE(m.no_token_id, ''),
		       e.type, e.status, e.liquidity_b, e.q_yes, e.q_no,
		       e.resolution_date, COALESCE(e.result, '')
		FROM market_mappings m
		JOIN events e ON e.id = m.event_id
		WHERE m.active = TRUE AND e.status = ANY($1)
	`

	rows, err := p.db.QueryContext(ctx, mappingQuery, pq.Array(statuses))
	if err != nil {
		return nil, fmt.Errorf("query active mappings: %w", err)
	}
	defer rows.Close()

	var result []ActiveMapping
	byEvent := make(map[string]int)
	byMapping := make(map[string]int)

	for rows.Next() {
		var am ActiveMapping
		am.Mapping.Active = true
		err = rows.Scan(
			&am.Mapping.ID, &am.Mapping.ExternalMarketID, &am.Mapping.EventID,
			&am.Mapping.YesTokenID, &am.Mapping.NoTokenID,
			&am.Event.Type, &am.Event.Status, &am.Event.LiquidityB,
			&am.Event.QYes, &am.Event.QNo,
			&am.Event.ResolutionDate, &am.Event.Result,
		)
		if err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		am.Event.ID = am.Mapping.EventID
		byEvent[am.Event.ID] = len(result)
		byMapping[am.Mapping.ID] = len(result)
		result = append(result, am)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mappings: %w", err)
	}

	if len(result) == 0 {
		return nil, nil
	}

	eventIDs := make([]string, 0, len(byEvent))
	for id := range byEvent {
		eventIDs = append(eventIDs, id)
	}

	const outcomeQuery = `
		SELECT id, event_id, name, probability, COALESCE(external_token_id, '')
		FROM outcomes
		WHERE event_id = ANY($1)
	`

	oRows, err := p.db.QueryContext(ctx, outcomeQuery, pq.Array(eventIDs))
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer oRows.Close()

	for oRows.Next() {
		var o Outcome
		err = oRows.Scan(&o.ID, &o.EventID, &o.Name, &o.Probability, &o.ExternalTokenID)
		if err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if idx, ok := byEvent[o.EventID]; ok {
			result[idx].Outcomes = append(result[idx].Outcomes, o)
		}
	}
	if err = oRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	mappingIDs := make([]string, 0, len(byMapping))
	for id := range byMapping {
		mappingIDs = append(mappingIDs, id)
	}

	const tokenQuery = `
		SELECT mapping_id, outcome_id, external_token_id, name
		FROM mapping_outcome_tokens
		WHERE mapping_id = ANY($1)
	`

	tRows, err := p.db.QueryContext(ctx, tokenQuery, pq.Array(mappingIDs))
	if err != nil {
		return nil, fmt.Errorf("query outcome tokens: %w", err)
	}
	defer tRows.Close()

	for tRows.Next() {
		var mappingID string
		var ot OutcomeToken
		err = tRows.Scan(&mappingID, &ot.OutcomeID, &ot.ExternalTokenID, &ot.Name)
		if err != nil {
			return nil, fmt.Errorf("scan outcome token: %w", err)
		}
		if idx, ok := byMapping[mappingID]; ok {
			result[idx].Mapping.OutcomeTokens = append(result[idx].Mapping.OutcomeTokens, ot)
		}
	}
	if err = tRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome tokens: %w", err)
	}

	return result, nil
}

// GetEvent fetches one event by id.
func (p *PostgresStore) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	const query = `
		SELECT id, type, status, liquidity_b, q_yes, q_no,
		       resolution_date, resolved_at, COALESCE(result, '')
		FROM events
		WHERE id = $1
	`

	var e Event
	var resolvedAt sql.NullTime
	err := p.db.QueryRowContext(ctx, query, eventID).Scan(
		&e.ID, &e.Type, &e.Status, &e.LiquidityB, &e.QYes, &e.QNo,
		&e.ResolutionDate, &resolvedAt, &e.Result,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	if resolvedAt.Valid {
		e.ResolvedAt = &resolvedAt.Time
	}

	return &e, nil
}

// UpdateOutcomeProbability writes an outcome's current probability.
func (p *PostgresStore) UpdateOutcomeProbability(ctx context.Context, outcomeID string, probability float64) error {
	const query = `UPDATE outcomes SET probability = $2, updated_at = NOW() WHERE id = $1`

	_, err := p.db.ExecContext(ctx, query, outcomeID, probability)
	if err != nil {
		return fmt.Errorf("update outcome probability: %w", err)
	}

	return nil
}

// UpdateEventQuantities writes the LMSR share quantities of a binary event.
func (p *PostgresStore) UpdateEventQuantities(ctx context.Context, eventID string, qYes, qNo float64) error {
	const query = `UPDATE events SET q_yes = $2, q_no = $3, updated_at = NOW() WHERE id = $1`

	_, err := p.db.ExecContext(ctx, query, eventID, qYes, qNo)
	if err != nil {
		return fmt.Errorf("update event quantities: %w", err)
	}

	return nil
}

// UpsertOddsHistoryPoint writes one bucketed history row, last-write-wins
// within a bucket.
func (p *PostgresStore) UpsertOddsHistoryPoint(ctx context.Context, point *OddsHistoryPoint) error {
	const query = `
		INSERT INTO odds_history (event_id, outcome_id, bucket_time, price, probability, external_token_id, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id, outcome_id, bucket_time)
		DO UPDATE SET price = EXCLUDED.price,
		              probability = EXCLUDED.probability,
		              external_token_id = EXCLUDED.external_token_id,
		              source = EXCLUDED.source
	`

	_, err := p.db.ExecContext(ctx, query,
		point.EventID, point.OutcomeID, point.BucketTime,
		point.Price, point.Probability, point.ExternalTokenID, point.Source,
	)
	if err != nil {
		return fmt.Errorf("upsert odds history point: %w", err)
	}

	return nil
}

// InsertOddsHistoryBatch inserts many history rows, skipping buckets that
// already have a row. Backfill must not clobber fresher stream writes.
func (p *PostgresStore) InsertOddsHistoryBatch(ctx context.Context, points []OddsHistoryPoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO odds_history (event_id, outcome_id, bucket_time, price, probability, external_token_id, source) VALUES `)

	args := make([]interface{}, 0, len(points)*7)
	for i, pt := range points {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, pt.EventID, pt.OutcomeID, pt.BucketTime,
			pt.Price, pt.Probability, pt.ExternalTokenID, pt.Source)
	}
	sb.WriteString(` ON CONFLICT (event_id, outcome_id, bucket_time) DO NOTHING`)

	res, err := p.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert odds history batch: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(inserted), nil
}

// CloseExpiredEvents moves ACTIVE mapped events past their resolution date
// to CLOSED.
func (p *PostgresStore) CloseExpiredEvents(ctx context.Context, now time.Time) (int, error) {
	const query = `
		UPDATE events
		SET status = $1, updated_at = NOW()
		WHERE status = $2
		  AND resolution_date < $3
		  AND id IN (SELECT event_id FROM market_mappings WHERE active = TRUE)
	`

	res, err := p.db.ExecContext(ctx, query, EventStatusClosed, EventStatusActive, now)
	if err != nil {
		return 0, fmt.Errorf("close expired events: %w", err)
	}

	closed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(closed), nil
}

// ListPendingHedges returns hedge positions pending since before cutoff.
func (p *PostgresStore) ListPendingHedges(ctx context.Context, cutoff time.Time) ([]HedgePosition, error) {
	const query = `
		SELECT id, status, COALESCE(external_order_id, ''), created_at
		FROM hedge_positions
		WHERE status = $1 AND created_at < $2
	`

	rows, err := p.db.QueryContext(ctx, query, HedgeStatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query pending hedges: %w", err)
	}
	defer rows.Close()

	var hedges []HedgePosition
	for rows.Next() {
		var h HedgePosition
		err = rows.Scan(&h.ID, &h.Status, &h.ExternalOrderID, &h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan hedge: %w", err)
		}
		hedges = append(hedges, h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hedges: %w", err)
	}

	return hedges, nil
}

// FinalizeHedge moves a pending hedge position to hedged or failed. The
// status guard in the WHERE clause makes the transition one-way.
func (p *PostgresStore) FinalizeHedge(ctx context.Context, hedgeID, status, reason string) error {
	const query = `
		UPDATE hedge_positions
		SET status = $2, failure_reason = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1 AND status = $4
	`

	_, err := p.db.ExecContext(ctx, query, hedgeID, status, reason, HedgeStatusPending)
	if err != nil {
		return fmt.Errorf("finalize hedge: %w", err)
	}

	return nil
}

// Settle pays out a resolved event in a single transaction.
func (p *PostgresStore) Settle(ctx context.Context, eventID, winningOutcomeID string, feeRate float64) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settle tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Lock the event row for the duration of the payout.
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM events WHERE id = $1 FOR UPDATE`, eventID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock event: %w", err)
	}

	if status == EventStatusResolved {
		return ErrAlreadyResolved
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, user_id, amount FROM balances
		 WHERE event_id = $1 AND outcome_id = $2 AND amount > 0
		 FOR UPDATE`,
		eventID, winningOutcomeID,
	)
	if err != nil {
		return fmt.Errorf("query winning balances: %w", err)
	}

	type payout struct {
		userID string
		net    decimal.Decimal
	}

	var payouts []payout
	fee := decimal.NewFromFloat(feeRate)
	for rows.Next() {
		var id, userID string
		var amount decimal.Decimal
		err = rows.Scan(&id, &userID, &amount)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scan winning balance: %w", err)
		}
		payouts = append(payouts, payout{
			userID: userID,
			net:    amount.Sub(amount.Mul(fee)),
		})
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate winning balances: %w", err)
	}
	rows.Close()

	for _, po := range payouts {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO balances (id, user_id, token, amount)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (user_id, token) WHERE event_id IS NULL
			 DO UPDATE SET amount = balances.amount + EXCLUDED.amount`,
			uuid.NewString(), po.userID, StableToken, po.net,
		)
		if err != nil {
			return fmt.Errorf("credit stable balance: %w", err)
		}
	}

	// Winning positions were credited above; zeroing every event-scoped
	// balance wipes both them and the losing side.
	_, err = tx.ExecContext(ctx,
		`UPDATE balances SET amount = 0 WHERE event_id = $1`, eventID,
	)
	if err != nil {
		return fmt.Errorf("zero event balances: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE events SET status = $2, result = $3, resolved_at = NOW(), updated_at = NOW()
		 WHERE id = $1`,
		eventID, EventStatusResolved, winningOutcomeID,
	)
	if err != nil {
		return fmt.Errorf("mark event resolved: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit settle tx: %w", err)
	}

	p.logger.Info("event-settled",
		zap.String("event-id", eventID),
		zap.String("winning-outcome-id", winningOutcomeID),
		zap.Int("payouts", len(payouts)))

	return nil
}

// DeactivateMapping marks a mapping inactive.
func (p *PostgresStore) DeactivateMapping(ctx context.Context, mappingID string) error {
	const query = `UPDATE market_mappings SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active = TRUE`

	_, err := p.db.ExecContext(ctx, query, mappingID)
	if err != nil {
		return fmt.Errorf("deactivate mapping: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-postgres-store")
	return p.db.Close()
}
