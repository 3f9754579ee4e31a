package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(productID string, qty int, price int64) OrderItem {
	return OrderItem{
		ProductID: productID,
		SKU:       productID,
		Price:     decimal.NewFromInt(price),
		Qty:       qty,
		Variant:   ItemVariant{Size: "M"},
	}
}

func TestSetItemsRecomputesTotal(t *testing.T) {
	var o Order
	o.SetItems(OrderItems{item("X", 3, 1000)})
	assert.True(t, decimal.NewFromInt(3000).Equal(o.TotalAmount))

	o.SetItems(OrderItems{item("X", 1, 1000), item("Y", 2, 250)})
	assert.True(t, decimal.NewFromInt(1500).Equal(o.TotalAmount))

	o.SetItems(OrderItems{})
	assert.True(t, o.TotalAmount.IsZero())
}

func TestOrderItemValidate(t *testing.T) {
	assert.NoError(t, item("X", 1, 10).Validate())

	noSize := item("X", 1, 10)
	noSize.Variant.Size = ""
	assert.Error(t, noSize.Validate())

	assert.Error(t, item("", 1, 10).Validate())
	assert.Error(t, item("X", 0, 10).Validate())
	assert.Error(t, item("X", 1, -1).Validate())
}

func TestOrderItemsColumnRoundTrip(t *testing.T) {
	in := OrderItems{item("X", 2, 5)}
	in[0].Picked = true
	v, err := in.Value()
	require.NoError(t, err)

	var out OrderItems
	require.NoError(t, out.Scan(v))
	require.Len(t, out, 1)
	assert.Equal(t, "X", out[0].ProductID)
	assert.True(t, out[0].Picked)
	assert.True(t, decimal.NewFromInt(5).Equal(out[0].Price))

	require.NoError(t, out.Scan(nil))
	assert.Empty(t, out)
	assert.Error(t, out.Scan(42))
}

func TestAllPicked(t *testing.T) {
	items := OrderItems{item("X", 1, 1), item("Y", 1, 1)}
	assert.False(t, items.AllPicked())
	items[0].Picked = true
	assert.False(t, items.AllPicked())
	items[1].Picked = true
	assert.True(t, items.AllPicked())
	assert.False(t, OrderItems{}.AllPicked())
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCanceled.IsTerminal())
	assert.False(t, OrderStatusProcessing.IsTerminal())
	assert.True(t, OrderStatusPendingRevision.IsEditable())
	assert.False(t, OrderStatusAssignedToPicker.IsEditable())
	assert.False(t, OrderStatus("ASSIGNED").Valid())
}

func TestOrderFilterMatches(t *testing.T) {
	o := &Order{CreatorID: "A", WarehouseManagerID: "W1", AssignedTo: "P1", Status: OrderStatusProcessing}

	assert.True(t, OrderFilter{All: true}.Matches(o))
	assert.True(t, OrderFilter{CreatorIDs: []string{"M", "A"}}.Matches(o))
	assert.False(t, OrderFilter{CreatorIDs: []string{"M", "B"}}.Matches(o))
	assert.True(t, OrderFilter{WarehouseManagerID: "W1"}.Matches(o))
	assert.False(t, OrderFilter{AssignedTo: "P2"}.Matches(o))
	assert.True(t, OrderFilter{InWarehouse: true}.Matches(o))
	assert.False(t, OrderFilter{InWarehouse: true}.Matches(&Order{Status: OrderStatusConfirmed}))
	assert.True(t, OrderFilter{Statuses: []OrderStatus{OrderStatusProcessing}}.Matches(o))
	assert.False(t, OrderFilter{Statuses: []OrderStatus{OrderStatusDraft}}.Matches(o))
	assert.False(t, OrderFilter{All: true, Statuses: []OrderStatus{OrderStatusDraft}}.Matches(o))
	assert.False(t, OrderFilter{}.Matches(o))
}

func TestActorIsTopLevel(t *testing.T) {
	boss := "boss"
	empty := ""
	assert.True(t, Actor{Role: RoleAdmin}.IsTopLevel())
	assert.True(t, Actor{Role: RoleManager}.IsTopLevel())
	assert.True(t, Actor{Role: RoleManager, ManagerID: &empty}.IsTopLevel())
	assert.False(t, Actor{Role: RoleManager, ManagerID: &boss}.IsTopLevel())
	assert.False(t, Actor{Role: RoleWarehouseManager}.IsTopLevel())
	assert.Equal(t, "boss", Actor{ManagerID: &boss}.ManagerIDValue())
}
