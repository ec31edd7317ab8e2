package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medinv/m/domain"
	"medinv/m/internal/auth"
	"medinv/m/internal/dbtest"
	"medinv/m/internal/repository"
)

func TestLoadInventory(t *testing.T) {
	items, err := LoadInventory()
	require.NoError(t, err)
	require.Len(t, items, 40)
	for _, item := range items {
		assert.True(t, domain.IsWarehouse(item.Warehouse), item.Warehouse)
		assert.True(t, item.Status.Valid(), item.Name)
		assert.NotEmpty(t, item.Origin)
	}
	assert.Equal(t, domain.WarehouseAntimicrobials, items[0].Warehouse)
}

func TestParseInventoryDefaultsOrigin(t *testing.T) {
	items, err := ParseInventory(strings.NewReader("name,lot,quantity,expiry_date,status,warehouse\n" +
		`"Dextrosa 5%, 1000 ml",DX-1,20,2026-01-31,Bajo Stock,Almacén Soluciones` + "\n"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Dextrosa 5%, 1000 ml", items[0].Name)
	assert.Equal(t, DefaultOrigin, items[0].Origin)
	assert.Equal(t, domain.StatusLowStock, items[0].Status)
	assert.Equal(t, domain.WarehouseSolutions, items[0].Warehouse)

	_, err = ParseInventory(strings.NewReader("h\nX,L,notanumber,2026-01-01,Normal,NPT\n"))
	assert.Error(t, err)
}

func TestSeedUsersIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	n, err := SeedUsers(ctx, db, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = SeedUsers(ctx, db, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	a := auth.NewDatabaseAuthenticator(repository.NewUserRepository(db))
	for _, acc := range TestAccounts {
		u, err := a.Authenticate(ctx, acc.Username, acc.Password)
		require.NoError(t, err, acc.Username)
		assert.Equal(t, acc.Role, u.Role)
	}
}

func TestMigratorWithoutAdmin(t *testing.T) {
	db := dbtest.Open(t)
	res, err := NewMigrator(db, zap.NewNop(), nil).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "No se encontró un usuario administrador", res.Message)
}

func TestMigratorLoadsOnce(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	_, err := SeedUsers(ctx, db, zap.NewNop())
	require.NoError(t, err)

	m := NewMigrator(db, zap.NewNop(), nil)
	res, err := m.Run(ctx, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 40, res.Count)

	admin, err := repository.NewUserRepository(db).GetByUsername(ctx, "admin")
	require.NoError(t, err)
	items, err := repository.NewInventoryRepository(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 40)
	for _, item := range items {
		assert.Equal(t, admin.ID, item.CreatedBy)
	}

	acts, err := repository.NewActivityRepository(db).List(ctx, repository.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, domain.ActionMigrate, acts[0].Action)
	assert.Equal(t, "Migración inicial de 40 items de inventario", *acts[0].Details)

	again, err := m.Run(ctx, nil)
	require.NoError(t, err)
	assert.False(t, again.Success)
	assert.Equal(t, "Ya existen 40 registros en la tabla inventory.", again.Message)
}

func TestMigratorBatchesAndRollsBack(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	_, err := SeedUsers(ctx, db, zap.NewNop())
	require.NoError(t, err)

	m := NewMigrator(db, zap.NewNop(), nil)
	m.Load = func() ([]domain.InventoryItem, error) {
		var items []domain.InventoryItem
		for i := 0; i < 120; i++ {
			items = append(items, domain.InventoryItem{
				ID: fmt.Sprintf("seed-%03d", i), Name: "Lote", Lot: "L", Quantity: 1,
				ExpiryDate: "2030-01-01", Status: domain.StatusNormal, Warehouse: domain.WarehouseNPT,
			})
		}
		// duplicate id in the last batch aborts the whole load
		items[110].ID = items[0].ID
		return items, nil
	}
	_, err = m.Run(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrDuplicate))

	n, err := repository.NewInventoryRepository(db).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMigratorConcurrentRunsLoadOnce(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	_, err := SeedUsers(ctx, db, zap.NewNop())
	require.NoError(t, err)
	admin, err := repository.NewUserRepository(db).GetByUsername(ctx, "admin")
	require.NoError(t, err)
	actor := &auth.Principal{ID: admin.ID, Username: admin.Username, Role: domain.RoleAdmin}

	m := NewMigrator(db, zap.NewNop(), nil)
	m.Load = func() ([]domain.InventoryItem, error) {
		// widen the window between the emptiness check and the inserts
		time.Sleep(50 * time.Millisecond)
		return LoadInventory()
	}

	const runs = 4
	results := make([]Result, runs)
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Run(ctx, actor)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i].Success {
			succeeded++
			continue
		}
		assert.Equal(t, "Ya existen 40 registros en la tabla inventory.", results[i].Message)
	}
	assert.Equal(t, 1, succeeded)

	n, err := repository.NewInventoryRepository(db).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(40), n)
}
