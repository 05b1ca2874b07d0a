package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPgx5URL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/pet?sslmode=disable", pgx5URL("postgres://u:p@localhost:5432/pet?sslmode=disable"))
	require.Equal(t, "pgx5://h/db", pgx5URL("postgresql://h/db"))
	require.Equal(t, "pgx5://already", pgx5URL("pgx5://already"))
}

func TestRequireVersion(t *testing.T) {
	require.NoError(t, RequireVersion(2, false, SupplierCatalogVersion))
	require.Error(t, RequireVersion(1, false, SupplierCatalogVersion))
	require.Error(t, RequireVersion(3, true, SupplierCatalogVersion))
}
