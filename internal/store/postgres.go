package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"confess.share/internal/models"
)

var (
	_ Store           = (*PostgresStore)(nil)
	_ ConfessionStore = (*postgresConfessions)(nil)
	_ SecretStore     = (*postgresSecrets)(nil)
)

const uniqueViolation = "23505"

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresStore stores confessions and secret messages in PostgreSQL. Ids are
// generated in the application with the same format the MongoDB backend uses.
type PostgresStore struct {
	db          *sql.DB
	logger      *slog.Logger
	confessions *postgresConfessions
	secrets     *postgresSecrets
}

// NewPostgresStore opens the database, verifies the connection and applies
// pending migrations.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("connected to PostgreSQL database")
	return newPostgresStore(db, logger), nil
}

func newPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:          db,
		logger:      logger,
		confessions: &postgresConfessions{db: db},
		secrets:     &postgresSecrets{db: db},
	}
}

func (s *PostgresStore) Confessions() ConfessionStore { return s.confessions }

func (s *PostgresStore) Secrets() SecretStore { return s.secrets }

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	s.logger.Info("closing PostgreSQL connection")
	return s.db.Close()
}

type postgresConfessions struct {
	db *sql.DB
}

func (p *postgresConfessions) Create(ctx context.Context, c *models.Confession) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	id := models.NewID()

	query := `INSERT INTO confessions (id, message, created_at) VALUES ($1, $2, $3)`
	if _, err := p.db.ExecContext(ctx, query, id, c.Message, c.CreatedAt); err != nil {
		return fmt.Errorf("inserting confession: %w", err)
	}

	c.ID = id
	return nil
}

func (p *postgresConfessions) List(ctx context.Context) ([]models.Confession, error) {
	query := `
		SELECT id, message, created_at
		FROM confessions
		ORDER BY created_at, id`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying confessions: %w", err)
	}
	defer rows.Close()

	out := []models.Confession{}
	for rows.Next() {
		var c models.Confession
		if err := rows.Scan(&c.ID, &c.Message, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning confession: %w", err)
		}
		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating confessions: %w", err)
	}

	return out, nil
}

func (p *postgresConfessions) UpdateMessage(ctx context.Context, id, message string) (*models.Confession, error) {
	query := `
		UPDATE confessions SET message = $2
		WHERE id = $1
		RETURNING id, message, created_at`

	var c models.Confession
	err := p.db.QueryRowContext(ctx, query, id, message).Scan(&c.ID, &c.Message, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating confession: %w", err)
	}

	return &c, nil
}

func (p *postgresConfessions) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, p.db, `DELETE FROM confessions WHERE id = $1`, id, "confession")
}

type postgresSecrets struct {
	db *sql.DB
}

func (p *postgresSecrets) Create(ctx context.Context, s *models.SecretMessage) error {
	id := models.NewID()

	query := `
		INSERT INTO secret_messages (id, message, password_hash, key, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	var passwordHash sql.NullString
	if s.PasswordHash != "" {
		passwordHash = sql.NullString{String: s.PasswordHash, Valid: true}
	}

	_, err := p.db.ExecContext(ctx, query, id, s.Message, passwordHash, s.Key, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateKey
		}
		return fmt.Errorf("inserting secret message: %w", err)
	}

	s.ID = id
	return nil
}

func (p *postgresSecrets) Get(ctx context.Context, id string) (*models.SecretMessage, error) {
	query := `
		SELECT id, message, password_hash, key, created_at, expires_at
		FROM secret_messages
		WHERE id = $1`

	var s models.SecretMessage
	var passwordHash sql.NullString

	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Message, &passwordHash, &s.Key, &s.CreatedAt, &s.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying secret message: %w", err)
	}

	s.PasswordHash = passwordHash.String
	return &s, nil
}

func (p *postgresSecrets) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, p.db, `DELETE FROM secret_messages WHERE id = $1`, id, "secret message")
}

func (p *postgresSecrets) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id FROM secret_messages WHERE expires_at < $1 ORDER BY id`, now)
	if err != nil {
		return nil, fmt.Errorf("querying expired secret messages: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning expired secret message: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expired secret messages: %w", err)
	}

	return ids, nil
}

func (p *postgresSecrets) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := p.db.ExecContext(ctx, `DELETE FROM secret_messages WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired secret messages: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return n, nil
}

func deleteByID(ctx context.Context, db *sql.DB, query, id, what string) error {
	result, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", what, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
