package warehouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parcelops/resolve/runtime/store"
	"github.com/parcelops/resolve/runtime/store/inmem"
	"github.com/parcelops/resolve/runtime/tools"
)

func newWarehouseRegistry(t *testing.T, st store.Store) *tools.Registry {
	t.Helper()
	reg, err := NewRegistry(st)
	require.NoError(t, err)
	return reg
}

func seedInventory(t *testing.T, st store.Store, sku string, available float64) {
	t.Helper()
	_, err := st.Put(context.Background(), "tenant-a", "inventory/"+sku, map[string]any{"available": available})
	require.NoError(t, err)
}

func TestNewRegistryRequiresStore(t *testing.T) {
	_, err := NewRegistry(nil)
	require.Error(t, err)
}

func TestCheckStock(t *testing.T) {
	st := inmem.New()
	seedInventory(t, st, "SKU-1001", 25)
	reg := newWarehouseRegistry(t, st)

	out, err := reg.Invoke(context.Background(), "warehouse.check_stock", "tenant-a", map[string]any{"sku": "SKU-1001"})
	require.NoError(t, err)
	require.Equal(t, "sku SKU-1001: 25 units available", out)
}

func TestCheckStockMissingRecordIsZero(t *testing.T) {
	reg := newWarehouseRegistry(t, inmem.New())
	out, err := reg.Invoke(context.Background(), "warehouse.check_stock", "tenant-a", map[string]any{"sku": "SKU-404"})
	require.NoError(t, err)
	require.Equal(t, "sku SKU-404: 0 units available", out)
}

func TestAllocateDecrementsInventory(t *testing.T) {
	st := inmem.New()
	seedInventory(t, st, "SKU-1001", 25)
	reg := newWarehouseRegistry(t, st)
	ctx := context.Background()

	out, err := reg.Invoke(ctx, "warehouse.allocate", "tenant-a", map[string]any{
		"sku":      "SKU-1001",
		"quantity": 2,
		"orderId":  "ORD-1",
	})
	require.NoError(t, err)
	require.Equal(t, "allocated 2 units of sku SKU-1001", out)

	rec, err := st.Get(ctx, "tenant-a", "inventory/SKU-1001")
	require.NoError(t, err)
	require.Equal(t, 23.0, rec.Value["available"])
	require.Equal(t, "ORD-1", rec.Value["lastAllocationOrder"])
}

func TestAllocateInsufficientInventory(t *testing.T) {
	st := inmem.New()
	seedInventory(t, st, "SKU-1002", 3)
	reg := newWarehouseRegistry(t, st)

	_, err := reg.Invoke(context.Background(), "warehouse.allocate", "tenant-a", map[string]any{
		"sku":      "SKU-1002",
		"quantity": 5,
	})
	require.ErrorContains(t, err, "insufficient inventory for sku SKU-1002: 3 available, 5 requested")
}

func TestAllocateUnknownSKU(t *testing.T) {
	reg := newWarehouseRegistry(t, inmem.New())
	_, err := reg.Invoke(context.Background(), "warehouse.allocate", "tenant-a", map[string]any{
		"sku":      "SKU-404",
		"quantity": 1,
	})
	require.ErrorContains(t, err, "has no inventory record")
}

func TestAllocateRejectsZeroQuantity(t *testing.T) {
	st := inmem.New()
	seedInventory(t, st, "SKU-1001", 25)
	reg := newWarehouseRegistry(t, st)

	_, err := reg.Invoke(context.Background(), "warehouse.allocate", "tenant-a", map[string]any{
		"sku":      "SKU-1001",
		"quantity": 0,
	})
	var verr *tools.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAllocateIsTenantScoped(t *testing.T) {
	st := inmem.New()
	seedInventory(t, st, "SKU-1001", 25)
	reg := newWarehouseRegistry(t, st)

	_, err := reg.Invoke(context.Background(), "warehouse.allocate", "tenant-b", map[string]any{
		"sku":      "SKU-1001",
		"quantity": 1,
	})
	require.ErrorContains(t, err, "has no inventory record")
}
