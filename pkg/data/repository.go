package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	ErrDuplicate     = errors.New("duplicate record")
	ErrInvalidFilter = errors.New("invalid filter parameters")
)

// Repository defines the interface for persisting the ledger state and the
// audit event stream. The in-memory ledgers remain the source of truth for
// guard evaluation; the repository is the durable mirror behind them.
type Repository interface {
	// Oracle registry operations
	SaveOracle(ctx context.Context, oracle *Oracle) error
	GetOracle(ctx context.Context, id string) (*Oracle, error)
	ListOracles(ctx context.Context, filter OracleFilter) ([]*Oracle, error)

	// Proof operations
	SaveProof(ctx context.Context, proof *InvestmentProof) error
	GetProof(ctx context.Context, poolID string) (*InvestmentProof, error)

	// Valuation operations
	SaveValuation(ctx context.Context, valuation *Valuation) error
	ListValuations(ctx context.Context, poolID string) ([]*Valuation, error)
	GetCurrentValuation(ctx context.Context, poolID string) (*Valuation, error)

	// Audit event operations
	SaveEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, filter EventFilter) ([]*Event, error)
}

// OracleFilter defines filter parameters for registry queries
type OracleFilter struct {
	Active        *bool
	Role          string
	MinReputation *uint64
	Limit         int
	Offset        int
}

// EventFilter defines filter parameters for audit event queries
type EventFilter struct {
	PoolID   string
	Type     string
	Actor    string
	FromTime *time.Time
	ToTime   *time.Time
	Limit    int
	Offset   int
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRepository creates a new PostgreSQL repository instance
func NewPostgresRepository(ctx context.Context, connStr string, logger *zap.Logger) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresRepository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close releases all database resources
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// SaveOracle persists an oracle identity, updating it in place when the
// identity is already known.
func (r *PostgresRepository) SaveOracle(ctx context.Context, oracle *Oracle) error {
	query := `
		INSERT INTO oracles (
			id, role, active, reputation, registered_at, last_active_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			active = EXCLUDED.active,
			reputation = EXCLUDED.reputation,
			last_active_at = EXCLUDED.last_active_at`

	_, err := r.pool.Exec(ctx, query,
		oracle.ID, oracle.Role, oracle.Active, oracle.Reputation,
		oracle.RegisteredAt, oracle.LastActiveAt,
	)
	if err != nil {
		return fmt.Errorf("upserting oracle: %w", err)
	}

	return nil
}

// GetOracle retrieves an oracle identity by ID
func (r *PostgresRepository) GetOracle(ctx context.Context, id string) (*Oracle, error) {
	query := `
		SELECT id, role, active, reputation, registered_at, last_active_at
		FROM oracles
		WHERE id = $1`

	oracle := &Oracle{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&oracle.ID, &oracle.Role, &oracle.Active, &oracle.Reputation,
		&oracle.RegisteredAt, &oracle.LastActiveAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying oracle: %w", err)
	}

	return oracle, nil
}

// ListOracles retrieves oracle identities based on filter criteria
func (r *PostgresRepository) ListOracles(ctx context.Context, filter OracleFilter) ([]*Oracle, error) {
	query := `
		SELECT id, role, active, reputation, registered_at, last_active_at
		FROM oracles
		WHERE 1=1`

	args := make([]interface{}, 0)
	argCount := 1

	if filter.Active != nil {
		query += fmt.Sprintf(" AND active = $%d", argCount)
		args = append(args, *filter.Active)
		argCount++
	}

	if filter.Role != "" {
		query += fmt.Sprintf(" AND role = $%d", argCount)
		args = append(args, filter.Role)
		argCount++
	}

	if filter.MinReputation != nil {
		query += fmt.Sprintf(" AND reputation >= $%d", argCount)
		args = append(args, *filter.MinReputation)
		argCount++
	}

	query += " ORDER BY registered_at"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying oracles: %w", err)
	}
	defer rows.Close()

	var oracles []*Oracle
	for rows.Next() {
		oracle := &Oracle{}
		err := rows.Scan(
			&oracle.ID, &oracle.Role, &oracle.Active, &oracle.Reputation,
			&oracle.RegisteredAt, &oracle.LastActiveAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning oracle row: %w", err)
		}
		oracles = append(oracles, oracle)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating oracle rows: %w", err)
	}

	return oracles, nil
}

// SaveProof persists an investment proof keyed by pool. Vote-state updates
// overwrite the previous row for the same pool.
func (r *PostgresRepository) SaveProof(ctx context.Context, proof *InvestmentProof) error {
	query := `
		INSERT INTO investment_proofs (
			id, pool_id, proof_hash, amount, submitted_at, block, submitter,
			report_uri, verified, verifier, vote_count, voters
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (pool_id) DO UPDATE SET
			verified = EXCLUDED.verified,
			verifier = EXCLUDED.verifier,
			vote_count = EXCLUDED.vote_count,
			voters = EXCLUDED.voters`

	_, err := r.pool.Exec(ctx, query,
		proof.ID, proof.PoolID, proof.ProofHash, proof.Amount, proof.SubmittedAt,
		proof.Block, proof.Submitter, proof.ReportURI, proof.Verified,
		proof.Verifier, proof.VoteCount, proof.Voters,
	)
	if err != nil {
		return fmt.Errorf("upserting proof: %w", err)
	}

	return nil
}

// GetProof retrieves the investment proof for a pool
func (r *PostgresRepository) GetProof(ctx context.Context, poolID string) (*InvestmentProof, error) {
	query := `
		SELECT id, pool_id, proof_hash, amount, submitted_at, block, submitter,
			   report_uri, verified, verifier, vote_count, voters
		FROM investment_proofs
		WHERE pool_id = $1`

	proof := &InvestmentProof{}
	err := r.pool.QueryRow(ctx, query, poolID).Scan(
		&proof.ID, &proof.PoolID, &proof.ProofHash, &proof.Amount,
		&proof.SubmittedAt, &proof.Block, &proof.Submitter, &proof.ReportURI,
		&proof.Verified, &proof.Verifier, &proof.VoteCount, &proof.Voters,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying proof: %w", err)
	}

	return proof, nil
}

// SaveValuation appends a valuation record to a pool's history
func (r *PostgresRepository) SaveValuation(ctx context.Context, valuation *Valuation) error {
	query := `
		INSERT INTO valuations (
			id, pool_id, value, timestamp, oracle, active, confidence, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		valuation.ID, valuation.PoolID, valuation.Value, valuation.Timestamp,
		valuation.Oracle, valuation.Active, valuation.Confidence, valuation.Source,
	)
	if err != nil {
		if isPgDuplicateError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting valuation: %w", err)
	}

	return nil
}

// ListValuations retrieves a pool's full valuation history in publication order
func (r *PostgresRepository) ListValuations(ctx context.Context, poolID string) ([]*Valuation, error) {
	query := `
		SELECT id, pool_id, value, timestamp, oracle, active, confidence, source
		FROM valuations
		WHERE pool_id = $1
		ORDER BY seq`

	rows, err := r.pool.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("querying valuations: %w", err)
	}
	defer rows.Close()

	var valuations []*Valuation
	for rows.Next() {
		v := &Valuation{}
		err := rows.Scan(
			&v.ID, &v.PoolID, &v.Value, &v.Timestamp,
			&v.Oracle, &v.Active, &v.Confidence, &v.Source,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning valuation row: %w", err)
		}
		valuations = append(valuations, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating valuation rows: %w", err)
	}

	return valuations, nil
}

// GetCurrentValuation retrieves the most recently published valuation for a pool
func (r *PostgresRepository) GetCurrentValuation(ctx context.Context, poolID string) (*Valuation, error) {
	query := `
		SELECT id, pool_id, value, timestamp, oracle, active, confidence, source
		FROM valuations
		WHERE pool_id = $1
		ORDER BY seq DESC
		LIMIT 1`

	v := &Valuation{}
	err := r.pool.QueryRow(ctx, query, poolID).Scan(
		&v.ID, &v.PoolID, &v.Value, &v.Timestamp,
		&v.Oracle, &v.Active, &v.Confidence, &v.Source,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying current valuation: %w", err)
	}

	return v, nil
}

// SaveEvent persists an audit event
func (r *PostgresRepository) SaveEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO events (
			id, type, pool_id, actor, fields, at
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		event.ID, event.Type, event.PoolID, event.Actor, event.Fields, event.At,
	)
	if err != nil {
		if isPgDuplicateError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting event: %w", err)
	}

	return nil
}

// ListEvents retrieves audit events based on filter criteria
func (r *PostgresRepository) ListEvents(ctx context.Context, filter EventFilter) ([]*Event, error) {
	query := `
		SELECT id, type, pool_id, actor, fields, at
		FROM events
		WHERE 1=1`

	args := make([]interface{}, 0)
	argCount := 1

	if filter.PoolID != "" {
		query += fmt.Sprintf(" AND pool_id = $%d", argCount)
		args = append(args, filter.PoolID)
		argCount++
	}

	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argCount)
		args = append(args, filter.Type)
		argCount++
	}

	if filter.Actor != "" {
		query += fmt.Sprintf(" AND actor = $%d", argCount)
		args = append(args, filter.Actor)
		argCount++
	}

	if filter.FromTime != nil {
		query += fmt.Sprintf(" AND at >= $%d", argCount)
		args = append(args, *filter.FromTime)
		argCount++
	}

	if filter.ToTime != nil {
		query += fmt.Sprintf(" AND at <= $%d", argCount)
		args = append(args, *filter.ToTime)
		argCount++
	}

	query += " ORDER BY at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		err := rows.Scan(&e.ID, &e.Type, &e.PoolID, &e.Actor, &e.Fields, &e.At)
		if err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}

	return events, nil
}

// Helper function to check for PostgreSQL duplicate key errors
func isPgDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" // unique_violation
}
