package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barpos-backend/models"
)

func TestAddItemCreatesOrderAndOccupiesTable(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)
	staff := seedStaff(t, db, models.RoleWaiter)

	item, order, err := svc.AddItem(table.ID, &staff.ID, nil, beer.ID, 2, "")
	require.NoError(t, err)

	assert.Equal(t, models.OrderActive, order.Status)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 10000.0, item.UnitPrice)
	assert.Equal(t, 20000.0, order.Total)

	var stored models.Table
	require.NoError(t, db.First(&stored, table.ID).Error)
	assert.Equal(t, models.TableOccupied, stored.Status)
	require.NotNil(t, stored.StaffID)
	assert.Equal(t, staff.ID, *stored.StaffID)
}

func TestAddItemReusesActiveOrder(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)
	fries := seedMenu(t, db, "Fries", 5000)

	_, first, err := svc.AddItem(table.ID, nil, nil, beer.ID, 1, "")
	require.NoError(t, err)
	_, second, err := svc.AddItem(table.ID, nil, nil, fries.ID, 1, "")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 15000.0, second.Total)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).
		Where("table_id = ? AND status = ?", table.ID, models.OrderActive).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAddItemMergesSameGuestLine(t *testing.T) {
	db := setupTestDB(t)
	qr := NewQRSessionService(db)
	reg := NewGuestRegistryService(db)
	svc := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	guest := seedGuest(t, db, reg, qr, table.ID, "Ana")

	_, _, err := svc.AddItem(table.ID, nil, &guest.GuestID, beer.ID, 1, "")
	require.NoError(t, err)
	item, order, err := svc.AddItem(table.ID, nil, &guest.GuestID, beer.ID, 1, "")
	require.NoError(t, err)

	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 20000.0, item.Subtotal)
	assert.Equal(t, 20000.0, order.Total)

	var count int64
	require.NoError(t, db.Model(&models.OrderItem{}).
		Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAddItemSeparateRowsPerGuest(t *testing.T) {
	db := setupTestDB(t)
	qr := NewQRSessionService(db)
	reg := NewGuestRegistryService(db)
	svc := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	g1 := seedGuest(t, db, reg, qr, table.ID, "Ana")
	g2 := seedGuest(t, db, reg, qr, table.ID, "Budi")

	_, _, err := svc.AddItem(table.ID, nil, &g1.GuestID, beer.ID, 1, "")
	require.NoError(t, err)
	_, order, err := svc.AddItem(table.ID, nil, &g2.GuestID, beer.ID, 1, "")
	require.NoError(t, err)

	// Staff-entered table line stays separate from both guests.
	_, order, err = svc.AddItem(table.ID, nil, nil, beer.ID, 1, "")
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OrderItem{}).
		Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, 30000.0, order.Total)
}

func TestAddItemKeepsCapturedUnitPrice(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	_, _, err := svc.AddItem(table.ID, nil, nil, beer.ID, 1, "")
	require.NoError(t, err)

	require.NoError(t, db.Model(beer).Update("price", 99000).Error)

	item, order, err := svc.AddItem(table.ID, nil, nil, beer.ID, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 10000.0, item.UnitPrice)
	assert.Equal(t, 20000.0, order.Total)
}

func TestAddItemsRollsBackOnRejectedLine(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)
	stew := seedMenu(t, db, "Stew", 12000)

	require.NoError(t, db.Model(stew).Update("is_available", false).Error)

	_, err := svc.AddItems(table.ID, nil, nil, []OrderLine{
		{MenuID: beer.ID, Quantity: 2},
		{MenuID: stew.ID, Quantity: 1},
	})
	require.Error(t, err)
	assert.Equal(t, 409, HTTPStatus(err))

	// Nothing from the request is observable, not even the valid line.
	var orderCount, itemCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&itemCount).Error)
	assert.Equal(t, int64(0), orderCount)
	assert.Equal(t, int64(0), itemCount)

	var storedTable models.Table
	require.NoError(t, db.First(&storedTable, table.ID).Error)
	assert.Equal(t, models.TableAvailable, storedTable.Status)
}

func TestAddItemsMergesLinesAndTotals(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)
	fries := seedMenu(t, db, "Fries", 5000)

	order, err := svc.AddItems(table.ID, nil, nil, []OrderLine{
		{MenuID: beer.ID, Quantity: 1},
		{MenuID: fries.ID, Quantity: 1},
		{MenuID: beer.ID, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 25000.0, order.Total)

	var count int64
	require.NoError(t, db.Model(&models.OrderItem{}).
		Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestAddItemsRequiresLines(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")

	_, err := svc.AddItems(table.ID, nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 400, HTTPStatus(err))
}

func TestAddItemRejectsUnavailableMenu(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	require.NoError(t, db.Model(beer).Update("is_available", false).Error)

	_, _, err := svc.AddItem(table.ID, nil, nil, beer.ID, 1, "")
	assert.Error(t, err)
	assert.Equal(t, 409, HTTPStatus(err))
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	_, _, err := svc.AddItem(table.ID, nil, nil, beer.ID, 0, "")
	assert.Error(t, err)
	assert.Equal(t, 400, HTTPStatus(err))
}

func TestDecreaseItemDeletesAtZeroAndAutoCloses(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	item, order, err := svc.AddItem(table.ID, nil, nil, beer.ID, 1, "")
	require.NoError(t, err)

	updated, err := svc.DecreaseItem(order.ID, item.ID)
	require.NoError(t, err)

	assert.Equal(t, models.OrderClosed, updated.Status)
	assert.Equal(t, 0.0, updated.Total)
	require.NotNil(t, updated.ClosedAt)

	// Auto-close does not free the table, guests may order again.
	var stored models.Table
	require.NoError(t, db.First(&stored, table.ID).Error)
	assert.Equal(t, models.TableOccupied, stored.Status)
}

func TestDecreaseItemRecomputesTotals(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	item, order, err := svc.AddItem(table.ID, nil, nil, beer.ID, 3, "")
	require.NoError(t, err)

	updated, err := svc.DecreaseItem(order.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderActive, updated.Status)
	assert.Equal(t, 20000.0, updated.Total)
}

func TestRemoveItemFromForeignOrderFails(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, nil)
	t1 := seedTable(t, db, "T1")
	t2 := seedTable(t, db, "T2")
	beer := seedMenu(t, db, "Beer", 10000)

	item1, _, err := svc.AddItem(t1.ID, nil, nil, beer.ID, 1, "")
	require.NoError(t, err)
	_, order2, err := svc.AddItem(t2.ID, nil, nil, beer.ID, 1, "")
	require.NoError(t, err)

	_, err = svc.RemoveItem(order2.ID, item1.ID)
	assert.Error(t, err)
	assert.Equal(t, 404, HTTPStatus(err))
}

func TestMutationOnClosedOrderConflicts(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	item, order, err := svc.AddItem(table.ID, nil, nil, beer.ID, 1, "")
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("status", models.OrderClosed).Error)

	_, err = svc.DecreaseItem(order.ID, item.ID)
	assert.Error(t, err)
	assert.Equal(t, 409, HTTPStatus(err))
}

func TestUpdateNotesLeaveTotalsUntouched(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	item, order, err := svc.AddItem(table.ID, nil, nil, beer.ID, 2, "")
	require.NoError(t, err)

	updatedItem, err := svc.UpdateItemNotes(order.ID, item.ID, "no ice")
	require.NoError(t, err)
	assert.Equal(t, "no ice", updatedItem.Notes)

	updatedOrder, err := svc.UpdateOrderNotes(order.ID, "birthday table")
	require.NoError(t, err)
	assert.Equal(t, "birthday table", updatedOrder.Notes)

	var stored models.Order
	require.NoError(t, db.First(&stored, order.ID).Error)
	assert.Equal(t, 20000.0, stored.Total)
}
