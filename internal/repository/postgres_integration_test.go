//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"medinv/m/domain"
	"medinv/m/internal/database"
	"medinv/m/internal/migrations"
)

func TestPostgresRoundTrip(t *testing.T) {
	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("medinv_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := database.Connect(dsn)
	require.NoError(t, err)
	defer db.Close()
	require.True(t, database.IsPostgres(db))
	require.NoError(t, migrations.Run(db))

	users := NewUserRepository(db)
	admin, err := users.Create(ctx, domain.User{Username: "admin", Email: "admin@hospital.mx", Name: "Admin", Password: "x", Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = users.Create(ctx, domain.User{Username: "admin", Email: "b@hospital.mx", Password: "x", Role: domain.RoleAdmin})
	assert.ErrorIs(t, err, ErrDuplicate)

	inv := NewInventoryRepository(db)
	require.NoError(t, inv.CreateBatch(ctx, []domain.InventoryItem{sampleItem("Amikacina", "A1"), sampleItem("Cefepime", "C1")}))
	items, err := inv.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)

	acts := NewActivityRepository(db)
	_, err = acts.Create(ctx, domain.Activity{UserID: admin.ID, Type: domain.ActivitySystem, Action: domain.ActionMigrate, Quantity: intPtr(2)})
	require.NoError(t, err)
	list, err := acts.List(ctx, ActivityFilter{Actions: []string{domain.ActionMigrate}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Admin", list[0].UserName)
}
