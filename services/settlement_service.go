package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"barpos-backend/cache"
	"barpos-backend/models"
	"barpos-backend/utils"
)

// SettlementService drives the order state machine:
//
//	active -> (full settlement) -> closed
//	active -> (guest settlement, guests remain) -> active
//	active -> (guest settlement, last guest, no table items left) -> closed
type SettlementService struct {
	DB    *gorm.DB
	Cache cache.Invalidator
}

func NewSettlementService(db *gorm.DB, inv cache.Invalidator) *SettlementService {
	return &SettlementService{DB: db, Cache: inv}
}

type SettlementResult struct {
	Payment         models.Payment `json:"payment"`
	Invoice         models.Invoice `json:"invoice"`
	Change          float64        `json:"change"`
	OrderClosed     bool           `json:"order_closed"`
	RemainingGuests int64          `json:"remaining_guests"`
	// Existing marks an idempotent replay: the invoice was generated by an
	// earlier attempt and no new writes happened.
	Existing bool `json:"-"`
}

// SettleFull settles the entire table in one transaction: one payment for
// the order total, invoice snapshot of every live item, item rows cleared,
// order closed, table freed, QR session retired and every guest deactivated.
func (s *SettlementService) SettleFull(orderID uint, cashierID *uint, method string, amountReceived float64, closedAt *time.Time) (*SettlementResult, error) {
	if method == "" {
		return nil, Validationf("payment method is required")
	}

	if res, err := s.existingInvoice(orderID, nil); err != nil {
		return nil, err
	} else if res != nil {
		return res, nil
	}

	tx := s.DB.Begin()

	var order models.Order
	err := tx.Preload("Table").Preload("Staff").
		Preload("OrderItems").Preload("OrderItems.Menu").
		First(&order, orderID).Error
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("order %d not found", orderID)
		}
		return nil, Transientf("load order: %v", err)
	}
	if order.Status != models.OrderActive {
		tx.Rollback()
		return nil, Conflictf("order %d is already closed", orderID)
	}
	if len(order.OrderItems) == 0 {
		tx.Rollback()
		return nil, Conflictf("order %d has no items to settle", orderID)
	}

	// Billing-critical totals are recomputed from the persisted rows, never
	// trusted from a cached column.
	itemsJSON, total, err := snapshotItems(order.OrderItems)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if amountReceived < total {
		tx.Rollback()
		return nil, Conflictf("amount received %.2f is less than order total %.2f", amountReceived, total)
	}

	now := time.Now()
	payment := models.Payment{
		OrderID:       order.ID,
		CashierID:     cashierID,
		Method:        method,
		Amount:        total,
		CashReceived:  amountReceived,
		Change:        amountReceived - total,
		TransactionID: utils.NewOpaqueToken(),
		Status:        "success",
		PaymentTime:   now,
	}
	if err := tx.Create(&payment).Error; err != nil {
		tx.Rollback()
		return nil, Transientf("create payment: %v", err)
	}

	invoice := newInvoice(&order, &payment, nil, "", itemsJSON, total)
	if err := tx.Create(&invoice).Error; err != nil {
		tx.Rollback()
		return nil, Transientf("create invoice: %v", err)
	}

	if err := tx.Where("order_id = ?", order.ID).
		Delete(&models.OrderItem{}).Error; err != nil {
		tx.Rollback()
		return nil, Transientf("clear items: %v", err)
	}

	if closedAt == nil {
		closedAt = &now
	}
	if err := closeOrderAtTx(tx, &order, *closedAt); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := releaseTableTx(tx, order.TableID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := deactivateTableSessions(tx, order.TableID); err != nil {
		tx.Rollback()
		return nil, Transientf("retire qr session: %v", err)
	}
	if err := deactivateTableGuests(tx, order.TableID); err != nil {
		tx.Rollback()
		return nil, Transientf("deactivate guests: %v", err)
	}

	// Past this boundary only a generic failure is surfaced.
	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, Transientf("settlement failed")
	}
	s.invalidateViews()

	utils.InfoLogger.Printf("Order %d settled in full (%s, amount=%.2f, change=%.2f)",
		order.ID, method, total, payment.Change)

	return &SettlementResult{
		Payment:     payment,
		Invoice:     invoice,
		Change:      payment.Change,
		OrderClosed: true,
	}, nil
}

// SettleGuest settles one guest's share. The guest is re-validated inside
// the transaction so that of two concurrent settlements for the same guest
// exactly one succeeds and the loser gets a domain error.
func (s *SettlementService) SettleGuest(orderID, guestID uint, cashierID *uint, method string, amountReceived float64) (*SettlementResult, error) {
	if method == "" {
		return nil, Validationf("payment method is required")
	}

	if res, err := s.existingInvoice(orderID, &guestID); err != nil {
		return nil, err
	} else if res != nil {
		return res, nil
	}

	tx := s.DB.Begin()

	var guest models.Guest
	if err := tx.First(&guest, guestID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("guest %d not found", guestID)
		}
		return nil, Transientf("load guest: %v", err)
	}
	if !guest.IsActive {
		tx.Rollback()
		return nil, Conflictf("guest %q is already settled or inactive", guest.Name)
	}

	var order models.Order
	if err := tx.Preload("Table").Preload("Staff").First(&order, orderID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("order %d not found", orderID)
		}
		return nil, Transientf("load order: %v", err)
	}
	if order.Status != models.OrderActive {
		tx.Rollback()
		return nil, Conflictf("order %d is already closed", orderID)
	}
	if order.TableID != guest.TableID {
		tx.Rollback()
		return nil, Conflictf("guest %q does not belong to the order's table", guest.Name)
	}

	var items []models.OrderItem
	if err := tx.Preload("Menu").
		Where("order_id = ? AND guest_id = ?", order.ID, guest.ID).
		Find(&items).Error; err != nil {
		tx.Rollback()
		return nil, Transientf("load guest items: %v", err)
	}
	if len(items) == 0 {
		tx.Rollback()
		return nil, Conflictf("guest %q has no items to settle", guest.Name)
	}

	itemsJSON, guestTotal, err := snapshotItems(items)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if amountReceived < guestTotal {
		tx.Rollback()
		return nil, Conflictf("amount received %.2f is less than guest total %.2f", amountReceived, guestTotal)
	}

	// Claim the guest row before any billing write. Of two concurrent
	// settlements only one guarded update hits the still-active row; the
	// other sees zero rows and fails before inserting a payment.
	if err := claimGuestSettlementTx(tx, &guest); err != nil {
		tx.Rollback()
		return nil, err
	}

	now := time.Now()
	payment := models.Payment{
		OrderID:       order.ID,
		GuestID:       &guest.ID,
		CashierID:     cashierID,
		Method:        method,
		Amount:        guestTotal,
		CashReceived:  amountReceived,
		Change:        amountReceived - guestTotal,
		TransactionID: utils.NewOpaqueToken(),
		Status:        "success",
		PaymentTime:   now,
	}
	if err := tx.Create(&payment).Error; err != nil {
		tx.Rollback()
		return nil, Transientf("create payment: %v", err)
	}

	invoice := newInvoice(&order, &payment, &guest.ID, guest.Name, itemsJSON, guestTotal)
	if err := tx.Create(&invoice).Error; err != nil {
		tx.Rollback()
		return nil, Transientf("create invoice: %v", err)
	}

	if err := tx.Where("order_id = ? AND guest_id = ?", order.ID, guest.ID).
		Delete(&models.OrderItem{}).Error; err != nil {
		tx.Rollback()
		return nil, Transientf("clear guest items: %v", err)
	}

	// Policy: the table's QR session is retired even while other guests
	// remain unsettled. New joins are blocked mid-settlement; guests who
	// already joined keep ordering through their own credentials.
	if err := deactivateTableSessions(tx, order.TableID); err != nil {
		tx.Rollback()
		return nil, Transientf("retire qr session: %v", err)
	}

	if err := recomputeTotalsTx(tx, &order); err != nil {
		tx.Rollback()
		return nil, err
	}

	var remainingGuests int64
	if err := tx.Model(&models.Guest{}).
		Where("table_id = ? AND is_active = ?", order.TableID, true).
		Count(&remainingGuests).Error; err != nil {
		tx.Rollback()
		return nil, Transientf("count guests: %v", err)
	}
	var remainingItems int64
	if err := tx.Model(&models.OrderItem{}).
		Where("order_id = ?", order.ID).
		Count(&remainingItems).Error; err != nil {
		tx.Rollback()
		return nil, Transientf("count items: %v", err)
	}

	// Close and free only when nobody is left to pay and no unattributed
	// staff-entered item remains.
	orderClosed := false
	if remainingGuests == 0 && remainingItems == 0 {
		if err := closeOrderAtTx(tx, &order, now); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := releaseTableTx(tx, order.TableID); err != nil {
			tx.Rollback()
			return nil, err
		}
		orderClosed = true
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, Transientf("settlement failed")
	}
	s.invalidateViews()

	utils.InfoLogger.Printf("Guest %q settled on order %d (%s, amount=%.2f, remaining=%d, closed=%t)",
		guest.Name, order.ID, method, guestTotal, remainingGuests, orderClosed)

	return &SettlementResult{
		Payment:         payment,
		Invoice:         invoice,
		Change:          payment.Change,
		OrderClosed:     orderClosed,
		RemainingGuests: remainingGuests,
	}, nil
}

// CloseAdministrative is the staff recovery escape hatch: close the order
// and release the table without a payment.
func (s *SettlementService) CloseAdministrative(orderID uint) (*models.Order, error) {
	tx := s.DB.Begin()

	var order models.Order
	if err := tx.First(&order, orderID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("order %d not found", orderID)
		}
		return nil, Transientf("load order: %v", err)
	}
	if order.Status != models.OrderActive {
		tx.Rollback()
		return nil, Conflictf("order %d is already closed", orderID)
	}

	if err := closeOrderTx(tx, &order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := releaseTableTx(tx, order.TableID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := deactivateTableSessions(tx, order.TableID); err != nil {
		tx.Rollback()
		return nil, Transientf("retire qr session: %v", err)
	}
	if err := deactivateTableGuests(tx, order.TableID); err != nil {
		tx.Rollback()
		return nil, Transientf("deactivate guests: %v", err)
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, Transientf("close failed")
	}
	s.invalidateViews()

	utils.InfoLogger.Printf("Order %d closed administratively (no payment)", order.ID)
	return &order, nil
}

// existingInvoice implements the idempotency rule: a settlement attempt for
// an (order, guest) pair that already produced an invoice returns that
// invoice instead of erroring.
func (s *SettlementService) existingInvoice(orderID uint, guestID *uint) (*SettlementResult, error) {
	query := s.DB.Where("order_id = ?", orderID)
	if guestID != nil {
		query = query.Where("guest_id = ?", *guestID)
	} else {
		query = query.Where("guest_id IS NULL")
	}

	var invoice models.Invoice
	err := query.First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, Transientf("load invoice: %v", err)
	}

	var payment models.Payment
	if err := s.DB.First(&payment, invoice.PaymentID).Error; err != nil {
		return nil, Transientf("load payment: %v", err)
	}

	var order models.Order
	if err := s.DB.First(&order, orderID).Error; err != nil {
		return nil, Transientf("load order: %v", err)
	}

	return &SettlementResult{
		Payment:     payment,
		Invoice:     invoice,
		Change:      payment.Change,
		OrderClosed: order.Status == models.OrderClosed,
		Existing:    true,
	}, nil
}

func (s *SettlementService) invalidateViews() {
	if s.Cache == nil {
		return
	}
	s.Cache.Invalidate(cache.KindOrders)
	s.Cache.Invalidate(cache.KindTables)
	s.Cache.Invalidate(cache.KindKitchen)
}

// snapshotItems serializes the given rows and returns the snapshot plus the
// summed subtotal.
func snapshotItems(items []models.OrderItem) (string, float64, error) {
	snapshot := make([]models.InvoiceItem, 0, len(items))
	var total float64
	for _, it := range items {
		total += it.Subtotal
		snapshot = append(snapshot, models.InvoiceItem{
			MenuID:    it.MenuID,
			MenuName:  it.Menu.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
			GuestID:   it.GuestID,
			Notes:     it.Notes,
		})
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return "", 0, Transientf("serialize items: %v", err)
	}
	return string(raw), total, nil
}

func newInvoice(order *models.Order, payment *models.Payment, guestID *uint, guestName, itemsJSON string, total float64) models.Invoice {
	staffName := ""
	if order.Staff != nil {
		staffName = order.Staff.Name
	}
	return models.Invoice{
		InvoiceNumber: fmt.Sprintf("INV/%s/%06d", payment.PaymentTime.Format("20060102"), payment.ID),
		OrderID:       order.ID,
		PaymentID:     payment.ID,
		GuestID:       guestID,
		GuestName:     guestName,
		TableNumber:   order.Table.TableNumber,
		StaffName:     staffName,
		Subtotal:      total,
		Total:         total,
		Method:        payment.Method,
		TransactionID: payment.TransactionID,
		ItemsJSON:     itemsJSON,
		Notes:         order.Notes,
	}
}

// claimGuestSettlementTx deactivates the guest with a guarded write. When a
// competing settlement already claimed the row the update matches nothing
// and the caller gets a conflict instead of double-charging.
func claimGuestSettlementTx(tx *gorm.DB, guest *models.Guest) error {
	res := tx.Model(&models.Guest{}).
		Where("id = ? AND is_active = ?", guest.ID, true).
		Updates(map[string]interface{}{
			"is_active":   false,
			"session_key": utils.PaidMarker(),
		})
	if res.Error != nil {
		return Transientf("deactivate guest: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return Conflictf("guest %q is already settled or inactive", guest.Name)
	}
	guest.IsActive = false
	return nil
}

func closeOrderTx(tx *gorm.DB, order *models.Order) error {
	return closeOrderAtTx(tx, order, time.Now())
}

// closeOrderAtTx is guarded the same way: only the transaction that flips
// the still-active row wins, so two concurrent full settlements cannot both
// commit a payment.
func closeOrderAtTx(tx *gorm.DB, order *models.Order, closedAt time.Time) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderActive).
		Updates(map[string]interface{}{
			"status":    models.OrderClosed,
			"closed_at": closedAt,
		})
	if res.Error != nil {
		return Transientf("close order: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return Conflictf("order %d is already closed", order.ID)
	}
	order.Status = models.OrderClosed
	order.ClosedAt = &closedAt
	return nil
}

func releaseTableTx(tx *gorm.DB, tableID uint) error {
	if err := tx.Model(&models.Table{}).
		Where("id = ?", tableID).
		Updates(map[string]interface{}{
			"status":   models.TableAvailable,
			"staff_id": nil,
		}).Error; err != nil {
		return Transientf("release table: %v", err)
	}
	return nil
}
