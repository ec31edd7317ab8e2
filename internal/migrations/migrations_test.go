package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medinv/m/internal/database"
)

func TestRunIsIdempotent(t *testing.T) {
	db, err := database.Connect("file::memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Run(db))
	require.NoError(t, Run(db))

	var tables []string
	require.NoError(t, db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`))
	assert.Equal(t, []string{"activities", "inventory", "users"}, tables)
}

func TestInventoryRejectsNegativeQuantity(t *testing.T) {
	db, err := database.Connect("file::memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Run(db))

	_, err = db.Exec(`INSERT INTO inventory (id, name, lot, quantity, expiry_date, status, warehouse, created_at, updated_at)
		VALUES ('1', 'Amikacina', 'L1', -1, '2030-01-01', 'normal', 'NPT', 'x', 'x')`)
	assert.Error(t, err)
}
