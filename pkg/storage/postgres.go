package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cuemby/swarmroll/pkg/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	servicesTable      = "services"
	servicesPrimaryKey = "services_pkey"
)

const schema = `
create table if not exists services (
	name       text primary key,
	repository text not null,
	tag        text not null,
	created_at timestamptz not null default now(),
	updated_at timestamptz not null default now()
);
`

var serviceColumns = []string{"name", "repository", "tag", "created_at", "updated_at"}

// PostgresStore implements Store on a PostgreSQL table
type PostgresStore struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewPostgresStore connects to dsn, verifies the connection and creates the
// services table when missing
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	s := &PostgresStore{
		db: pool,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the services table if it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) CreateService(ctx context.Context, service *types.ServiceRef) error {
	now := time.Now().UTC()
	if service.CreatedAt.IsZero() {
		service.CreatedAt = now
	}
	service.UpdatedAt = now

	sql, args, err := s.sb.Insert(servicesTable).
		Columns(serviceColumns...).
		Values(service.Name, service.Repository, service.Tag, service.CreatedAt, service.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		if constraint, ok := constraintName(err); ok && constraint == servicesPrimaryKey {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, service.Name)
		}
		return fmt.Errorf("failed to create service: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetService(ctx context.Context, name string) (*types.ServiceRef, error) {
	sql, args, err := s.sb.Select(serviceColumns...).
		From(servicesTable).
		Where(squirrel.Eq{"name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	service, err := scanService(s.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return service, nil
}

func (s *PostgresStore) ListServices(ctx context.Context) ([]*types.ServiceRef, error) {
	sql, args, err := s.sb.Select(serviceColumns...).
		From(servicesTable).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	services := []*types.ServiceRef{}
	for rows.Next() {
		service, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, service)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

func (s *PostgresStore) UpdateService(ctx context.Context, service *types.ServiceRef) error {
	sql, args, err := s.sb.Update(servicesTable).
		Set("repository", service.Repository).
		Set("tag", service.Tag).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"name": service.Name}).
		Suffix("returning created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	err = s.db.QueryRow(ctx, sql, args...).Scan(&service.CreatedAt, &service.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, service.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteService(ctx context.Context, name string) error {
	sql, args, err := s.sb.Delete(servicesTable).
		Where(squirrel.Eq{"name": name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func scanService(row pgx.Row) (*types.ServiceRef, error) {
	var service types.ServiceRef
	err := row.Scan(
		&service.Name,
		&service.Repository,
		&service.Tag,
		&service.CreatedAt,
		&service.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &service, nil
}

// constraintName extracts the violated constraint from integrity errors
func constraintName(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", // unique_violation
			"23503", // foreign_key_violation
			"23514", // check_violation
			"23502": // not_null_violation
			if pgErr.ConstraintName != "" {
				return pgErr.ConstraintName, true
			}
		}
	}
	return "", false
}

var _ Store = (*PostgresStore)(nil)
