package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parcelops/resolve/runtime/store"
	"github.com/parcelops/resolve/runtime/store/inmem"
	"github.com/parcelops/resolve/runtime/tools"
)

func seedOrder(t *testing.T, st store.Store, tenantID, orderID string, value map[string]any) store.Record {
	t.Helper()
	rec, err := st.Put(context.Background(), tenantID, "order/"+orderID, value)
	require.NoError(t, err)
	return rec
}

func newOrdersRegistry(t *testing.T, st store.Store) *tools.Registry {
	t.Helper()
	reg, err := NewRegistry(st)
	require.NoError(t, err)
	return reg
}

func TestNewRegistryRequiresStore(t *testing.T) {
	_, err := NewRegistry(nil)
	require.Error(t, err)
}

func TestUpdateStatus(t *testing.T) {
	st := inmem.New()
	seedOrder(t, st, "tenant-a", "ORD-1", map[string]any{"status": "created"})
	reg := newOrdersRegistry(t, st)

	out, err := reg.Invoke(context.Background(), "orders.update_status", "tenant-a", map[string]any{
		"orderId": "ORD-1",
		"status":  "delivery_attempted",
		"note":    "customer not home",
	})
	require.NoError(t, err)
	require.Equal(t, "order ORD-1 status updated to delivery_attempted", out)

	rec, err := st.Get(context.Background(), "tenant-a", "order/ORD-1")
	require.NoError(t, err)
	require.Equal(t, "delivery_attempted", rec.Value["status"])
	require.Equal(t, "customer not home", rec.Value["note"])
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	reg := newOrdersRegistry(t, inmem.New())
	_, err := reg.Invoke(context.Background(), "orders.update_status", "tenant-a", map[string]any{
		"orderId": "ORD-404",
		"status":  "delivery_attempted",
	})
	require.ErrorContains(t, err, "order ORD-404 not found")
}

func TestCancel(t *testing.T) {
	st := inmem.New()
	seedOrder(t, st, "tenant-a", "ORD-1", map[string]any{"status": "created"})
	reg := newOrdersRegistry(t, st)
	ctx := context.Background()

	out, err := reg.Invoke(ctx, "orders.cancel", "tenant-a", map[string]any{
		"orderId": "ORD-1",
		"reason":  "unreachable after grace window",
	})
	require.NoError(t, err)
	require.Equal(t, "order ORD-1 canceled", out)

	rec, err := st.Get(ctx, "tenant-a", "order/ORD-1")
	require.NoError(t, err)
	require.Equal(t, "canceled", rec.Value["status"])
	require.Equal(t, "unreachable after grace window", rec.Value["cancelReason"])

	// Canceling twice is rejected.
	_, err = reg.Invoke(ctx, "orders.cancel", "tenant-a", map[string]any{"orderId": "ORD-1"})
	require.ErrorContains(t, err, "already canceled")
}

func TestRecreate(t *testing.T) {
	st := inmem.New()
	seedOrder(t, st, "tenant-a", "ORD-1", map[string]any{
		"status":   "created",
		"items":    []any{"SKU-1001"},
		"customer": "c-1",
		"address":  "1 Main St",
		"value":    250.0,
	})
	reg := newOrdersRegistry(t, st)
	ctx := context.Background()

	out, err := reg.Invoke(ctx, "orders.recreate", "tenant-a", map[string]any{"orderId": "ORD-1"})
	require.NoError(t, err)
	require.Contains(t, out, "order ORD-1 recreated as ORD-1-R")

	original, err := st.Get(ctx, "tenant-a", "order/ORD-1")
	require.NoError(t, err)
	require.Equal(t, "replaced", original.Value["status"])
	replacementID, _ := original.Value["replacementId"].(string)
	require.NotEmpty(t, replacementID)

	replacement, err := st.Get(ctx, "tenant-a", "order/"+replacementID)
	require.NoError(t, err)
	require.Equal(t, "pending", replacement.Value["status"])
	require.Equal(t, "ORD-1", replacement.Value["originalOrderId"])
	require.Equal(t, 250.0, replacement.Value["value"])
	require.Equal(t, "c-1", replacement.Value["customer"])
}

func TestRecreateIsAtMostOnce(t *testing.T) {
	st := inmem.New()
	seedOrder(t, st, "tenant-a", "ORD-1", map[string]any{"status": "created"})
	reg := newOrdersRegistry(t, st)
	ctx := context.Background()

	_, err := reg.Invoke(ctx, "orders.recreate", "tenant-a", map[string]any{"orderId": "ORD-1"})
	require.NoError(t, err)

	_, err = reg.Invoke(ctx, "orders.recreate", "tenant-a", map[string]any{"orderId": "ORD-1"})
	require.ErrorContains(t, err, "already replaced")
}

func TestToolsAreTenantScoped(t *testing.T) {
	st := inmem.New()
	seedOrder(t, st, "tenant-a", "ORD-1", map[string]any{"status": "created"})
	reg := newOrdersRegistry(t, st)

	// The same order ID under another tenant does not exist.
	_, err := reg.Invoke(context.Background(), "orders.cancel", "tenant-b", map[string]any{"orderId": "ORD-1"})
	require.ErrorContains(t, err, "not found")
}

func TestSchemaRejectsUnknownFields(t *testing.T) {
	st := inmem.New()
	seedOrder(t, st, "tenant-a", "ORD-1", map[string]any{"status": "created"})
	reg := newOrdersRegistry(t, st)

	_, err := reg.Invoke(context.Background(), "orders.cancel", "tenant-a", map[string]any{
		"orderId": "ORD-1",
		"force":   true,
	})
	var verr *tools.ValidationError
	require.ErrorAs(t, err, &verr)
}
