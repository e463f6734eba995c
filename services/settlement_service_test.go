package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barpos-backend/models"
)

func TestSettleFullClosesEverything(t *testing.T) {
	db := setupTestDB(t)
	qr := NewQRSessionService(db)
	reg := NewGuestRegistryService(db)
	orders := NewOrderService(db, nil)
	settle := NewSettlementService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	guest := seedGuest(t, db, reg, qr, table.ID, "Ana")
	_, order, err := orders.AddItem(table.ID, nil, &guest.GuestID, beer.ID, 2, "")
	require.NoError(t, err)

	cashier := seedStaff(t, db, models.RoleCashier)
	result, err := settle.SettleFull(order.ID, &cashier.ID, "cash", 25000, nil)
	require.NoError(t, err)

	assert.True(t, result.OrderClosed)
	assert.Equal(t, 20000.0, result.Payment.Amount)
	assert.Equal(t, 5000.0, result.Change)
	assert.Equal(t, 20000.0, result.Invoice.Total)
	assert.True(t, strings.HasPrefix(result.Invoice.InvoiceNumber, "INV/"))

	items, err := result.Invoice.Items()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Beer", items[0].MenuName)
	assert.Equal(t, 2, items[0].Quantity)

	var stored models.Order
	require.NoError(t, db.First(&stored, order.ID).Error)
	assert.Equal(t, models.OrderClosed, stored.Status)
	require.NotNil(t, stored.ClosedAt)

	var itemCount int64
	require.NoError(t, db.Model(&models.OrderItem{}).
		Where("order_id = ?", order.ID).Count(&itemCount).Error)
	assert.Equal(t, int64(0), itemCount)

	var storedTable models.Table
	require.NoError(t, db.First(&storedTable, table.ID).Error)
	assert.Equal(t, models.TableAvailable, storedTable.Status)
	assert.Nil(t, storedTable.StaffID)

	_, err = reg.ResolveByCredential(guest.SessionToken)
	assert.Error(t, err)
}

func TestSettleFullInsufficientAmountWritesNothing(t *testing.T) {
	db := setupTestDB(t)
	orders := NewOrderService(db, nil)
	settle := NewSettlementService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	_, order, err := orders.AddItem(table.ID, nil, nil, beer.ID, 2, "")
	require.NoError(t, err)

	_, err = settle.SettleFull(order.ID, nil, "cash", 19999, nil)
	require.Error(t, err)
	assert.Equal(t, 409, HTTPStatus(err))

	var stored models.Order
	require.NoError(t, db.First(&stored, order.ID).Error)
	assert.Equal(t, models.OrderActive, stored.Status)

	var paymentCount, itemCount int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&paymentCount).Error)
	require.NoError(t, db.Model(&models.OrderItem{}).
		Where("order_id = ?", order.ID).Count(&itemCount).Error)
	assert.Equal(t, int64(0), paymentCount)
	assert.Equal(t, int64(1), itemCount)
}

func TestSettleFullEmptyOrderConflicts(t *testing.T) {
	db := setupTestDB(t)
	orders := NewOrderService(db, nil)
	settle := NewSettlementService(db, nil)
	table := seedTable(t, db, "T1")

	order, err := orders.EnsureActiveOrder(table.ID, nil, nil)
	require.NoError(t, err)

	_, err = settle.SettleFull(order.ID, nil, "cash", 10000, nil)
	require.Error(t, err)
	assert.Equal(t, 409, HTTPStatus(err))
}

func TestSettleGuestLeavesOrderOpenForOthers(t *testing.T) {
	db := setupTestDB(t)
	qr := NewQRSessionService(db)
	reg := NewGuestRegistryService(db)
	orders := NewOrderService(db, nil)
	settle := NewSettlementService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)
	fries := seedMenu(t, db, "Fries", 5000)

	g1 := seedGuest(t, db, reg, qr, table.ID, "Ana")
	g2 := seedGuest(t, db, reg, qr, table.ID, "Budi")

	_, order, err := orders.AddItem(table.ID, nil, &g1.GuestID, beer.ID, 2, "")
	require.NoError(t, err)
	_, _, err = orders.AddItem(table.ID, nil, &g2.GuestID, fries.ID, 3, "")
	require.NoError(t, err)

	result, err := settle.SettleGuest(order.ID, g1.GuestID, nil, "cash", 20000)
	require.NoError(t, err)

	assert.False(t, result.OrderClosed)
	assert.Equal(t, int64(1), result.RemainingGuests)
	assert.Equal(t, 20000.0, result.Payment.Amount)
	assert.Equal(t, 0.0, result.Change)
	assert.Equal(t, "Ana", result.Invoice.GuestName)

	// Ana's credential is dead, Budi keeps ordering.
	_, err = reg.ResolveByCredential(g1.SessionToken)
	assert.Error(t, err)
	_, err = reg.ResolveByCredential(g2.SessionToken)
	assert.NoError(t, err)

	var stored models.Order
	require.NoError(t, db.First(&stored, order.ID).Error)
	assert.Equal(t, models.OrderActive, stored.Status)
	assert.Equal(t, 15000.0, stored.Total)

	var storedTable models.Table
	require.NoError(t, db.First(&storedTable, table.ID).Error)
	assert.Equal(t, models.TableOccupied, storedTable.Status)

	// New joins are blocked mid-settlement.
	var sessions int64
	require.NoError(t, db.Model(&models.QRSession{}).
		Where("table_id = ? AND is_active = ?", table.ID, true).
		Count(&sessions).Error)
	assert.Equal(t, int64(0), sessions)
}

func TestSettleLastGuestClosesOrderAndFreesTable(t *testing.T) {
	db := setupTestDB(t)
	qr := NewQRSessionService(db)
	reg := NewGuestRegistryService(db)
	orders := NewOrderService(db, nil)
	settle := NewSettlementService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)
	fries := seedMenu(t, db, "Fries", 5000)

	g1 := seedGuest(t, db, reg, qr, table.ID, "Ana")
	g2 := seedGuest(t, db, reg, qr, table.ID, "Budi")

	_, order, err := orders.AddItem(table.ID, nil, &g1.GuestID, beer.ID, 2, "")
	require.NoError(t, err)
	_, _, err = orders.AddItem(table.ID, nil, &g2.GuestID, fries.ID, 3, "")
	require.NoError(t, err)

	_, err = settle.SettleGuest(order.ID, g1.GuestID, nil, "cash", 20000)
	require.NoError(t, err)

	result, err := settle.SettleGuest(order.ID, g2.GuestID, nil, "card", 15000)
	require.NoError(t, err)

	assert.True(t, result.OrderClosed)
	assert.Equal(t, int64(0), result.RemainingGuests)

	var stored models.Order
	require.NoError(t, db.First(&stored, order.ID).Error)
	assert.Equal(t, models.OrderClosed, stored.Status)

	var storedTable models.Table
	require.NoError(t, db.First(&storedTable, table.ID).Error)
	assert.Equal(t, models.TableAvailable, storedTable.Status)
}

func TestSettleLastGuestKeepsOrderOpenWithTableItems(t *testing.T) {
	db := setupTestDB(t)
	qr := NewQRSessionService(db)
	reg := NewGuestRegistryService(db)
	orders := NewOrderService(db, nil)
	settle := NewSettlementService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)
	fries := seedMenu(t, db, "Fries", 5000)

	guest := seedGuest(t, db, reg, qr, table.ID, "Ana")

	_, order, err := orders.AddItem(table.ID, nil, &guest.GuestID, beer.ID, 1, "")
	require.NoError(t, err)
	// Unattributed staff-entered line still owed after the guest pays.
	_, _, err = orders.AddItem(table.ID, nil, nil, fries.ID, 1, "")
	require.NoError(t, err)

	result, err := settle.SettleGuest(order.ID, guest.GuestID, nil, "cash", 10000)
	require.NoError(t, err)

	assert.False(t, result.OrderClosed)
	assert.Equal(t, int64(0), result.RemainingGuests)

	var stored models.Order
	require.NoError(t, db.First(&stored, order.ID).Error)
	assert.Equal(t, models.OrderActive, stored.Status)
	assert.Equal(t, 5000.0, stored.Total)
}

func TestSettleGuestReplayReturnsExistingInvoice(t *testing.T) {
	db := setupTestDB(t)
	qr := NewQRSessionService(db)
	reg := NewGuestRegistryService(db)
	orders := NewOrderService(db, nil)
	settle := NewSettlementService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	guest := seedGuest(t, db, reg, qr, table.ID, "Ana")
	_, order, err := orders.AddItem(table.ID, nil, &guest.GuestID, beer.ID, 1, "")
	require.NoError(t, err)

	first, err := settle.SettleGuest(order.ID, guest.GuestID, nil, "cash", 10000)
	require.NoError(t, err)
	assert.False(t, first.Existing)

	second, err := settle.SettleGuest(order.ID, guest.GuestID, nil, "cash", 10000)
	require.NoError(t, err)
	assert.True(t, second.Existing)
	assert.Equal(t, first.Invoice.ID, second.Invoice.ID)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)

	var paymentCount int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&paymentCount).Error)
	assert.Equal(t, int64(1), paymentCount)
}

func TestGuestSettlementClaimIsExclusive(t *testing.T) {
	db := setupTestDB(t)
	qr := NewQRSessionService(db)
	reg := NewGuestRegistryService(db)
	table := seedTable(t, db, "T1")

	g := seedGuest(t, db, reg, qr, table.ID, "Ana")

	var guest models.Guest
	require.NoError(t, db.First(&guest, g.GuestID).Error)

	// First claim wins and flips the row.
	require.NoError(t, claimGuestSettlementTx(db, &guest))

	var stored models.Guest
	require.NoError(t, db.First(&stored, guest.ID).Error)
	assert.False(t, stored.IsActive)
	assert.True(t, strings.HasPrefix(stored.SessionKey, "paid:"))

	// A competing settlement working from a stale active snapshot matches
	// zero rows and must conflict, never bill again.
	staleCopy := guest
	staleCopy.IsActive = true
	err := claimGuestSettlementTx(db, &staleCopy)
	require.Error(t, err)
	assert.Equal(t, 409, HTTPStatus(err))
}

func TestCloseOrderClaimIsExclusive(t *testing.T) {
	db := setupTestDB(t)
	orders := NewOrderService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	_, order, err := orders.AddItem(table.ID, nil, nil, beer.ID, 1, "")
	require.NoError(t, err)

	require.NoError(t, closeOrderTx(db, order))

	stale := *order
	stale.Status = models.OrderActive
	err = closeOrderTx(db, &stale)
	require.Error(t, err)
	assert.Equal(t, 409, HTTPStatus(err))
}

func TestSettleGuestNotOnOrderTableConflicts(t *testing.T) {
	db := setupTestDB(t)
	qr := NewQRSessionService(db)
	reg := NewGuestRegistryService(db)
	orders := NewOrderService(db, nil)
	settle := NewSettlementService(db, nil)
	t1 := seedTable(t, db, "T1")
	t2 := seedTable(t, db, "T2")
	beer := seedMenu(t, db, "Beer", 10000)

	stranger := seedGuest(t, db, reg, qr, t2.ID, "Clara")

	_, order, err := orders.AddItem(t1.ID, nil, nil, beer.ID, 1, "")
	require.NoError(t, err)

	_, err = settle.SettleGuest(order.ID, stranger.GuestID, nil, "cash", 10000)
	require.Error(t, err)
	assert.Equal(t, 409, HTTPStatus(err))
}

func TestSettleGuestWithoutItemsConflicts(t *testing.T) {
	db := setupTestDB(t)
	qr := NewQRSessionService(db)
	reg := NewGuestRegistryService(db)
	orders := NewOrderService(db, nil)
	settle := NewSettlementService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	idle := seedGuest(t, db, reg, qr, table.ID, "Ana")
	_, order, err := orders.AddItem(table.ID, nil, nil, beer.ID, 1, "")
	require.NoError(t, err)

	_, err = settle.SettleGuest(order.ID, idle.GuestID, nil, "cash", 10000)
	require.Error(t, err)
	assert.Equal(t, 409, HTTPStatus(err))
}

func TestCloseAdministrativeNeedsNoPayment(t *testing.T) {
	db := setupTestDB(t)
	qr := NewQRSessionService(db)
	reg := NewGuestRegistryService(db)
	orders := NewOrderService(db, nil)
	settle := NewSettlementService(db, nil)
	table := seedTable(t, db, "T1")
	beer := seedMenu(t, db, "Beer", 10000)

	guest := seedGuest(t, db, reg, qr, table.ID, "Ana")
	_, order, err := orders.AddItem(table.ID, nil, &guest.GuestID, beer.ID, 1, "")
	require.NoError(t, err)

	closed, err := settle.CloseAdministrative(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderClosed, closed.Status)

	var storedTable models.Table
	require.NoError(t, db.First(&storedTable, table.ID).Error)
	assert.Equal(t, models.TableAvailable, storedTable.Status)

	var paymentCount int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&paymentCount).Error)
	assert.Equal(t, int64(0), paymentCount)

	_, err = settle.CloseAdministrative(order.ID)
	require.Error(t, err)
	assert.Equal(t, 409, HTTPStatus(err))
}
