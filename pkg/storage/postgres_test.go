package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraintName(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   string
		wantOK bool
	}{
		{
			name:   "unique violation",
			err:    &pgconn.PgError{Code: "23505", ConstraintName: servicesPrimaryKey},
			want:   servicesPrimaryKey,
			wantOK: true,
		},
		{
			name:   "wrapped",
			err:    fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "services_pkey"}),
			want:   "services_pkey",
			wantOK: true,
		},
		{
			name: "syntax error",
			err:  &pgconn.PgError{Code: "42601"},
		},
		{
			name: "not a pg error",
			err:  errors.New("connection reset"),
		},
		{
			name: "nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := constraintName(tt.err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestPostgresStore runs against SWARMROLL_TEST_POSTGRES_DSN when set
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("SWARMROLL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SWARMROLL_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.Exec(ctx, "truncate table services")
	require.NoError(t, err)

	testStore(t, store)
}
