package services

import (
	"errors"

	"gorm.io/gorm"

	"barpos-backend/cache"
	"barpos-backend/models"
	"barpos-backend/utils"
)

type OrderService struct {
	DB    *gorm.DB
	Cache cache.Invalidator
}

func NewOrderService(db *gorm.DB, inv cache.Invalidator) *OrderService {
	return &OrderService{DB: db, Cache: inv}
}

// EnsureActiveOrder returns the table's active order, creating one when
// absent. Creation also occupies the table and assigns the staff member,
// which covers the implicit occupy-on-first-item rule.
func (s *OrderService) EnsureActiveOrder(tableID uint, staffID, guestID *uint) (*models.Order, error) {
	tx := s.DB.Begin()

	order, err := ensureActiveOrderTx(tx, tableID, staffID, guestID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, Transientf("commit order: %v", err)
	}
	return &order, nil
}

// ensureActiveOrderTx runs the guarded existence check inside the caller's
// transaction: at most one active order per table.
func ensureActiveOrderTx(tx *gorm.DB, tableID uint, staffID, guestID *uint) (models.Order, error) {
	var order models.Order
	err := tx.Where("table_id = ? AND status = ?", tableID, models.OrderActive).
		First(&order).Error
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return order, Transientf("load active order: %v", err)
	}

	var table models.Table
	if err := tx.First(&table, tableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return order, NotFoundf("table %d not found", tableID)
		}
		return order, Transientf("load table: %v", err)
	}

	order = models.Order{
		TableID: table.ID,
		StaffID: staffID,
		GuestID: guestID,
		Status:  models.OrderActive,
	}
	if err := tx.Create(&order).Error; err != nil {
		return order, Transientf("create order: %v", err)
	}

	updates := map[string]interface{}{"status": models.TableOccupied}
	if staffID != nil {
		updates["staff_id"] = *staffID
	}
	if err := tx.Model(&table).Updates(updates).Error; err != nil {
		return order, Transientf("occupy table: %v", err)
	}
	return order, nil
}

// AddItem merges into the existing row for the same (menu, guest) pair or
// inserts a new row snapshotting the menu's current price. Identical
// products for different guests never merge.
func (s *OrderService) AddItem(tableID uint, staffID, guestID *uint, menuID uint, quantity int, notes string) (*models.OrderItem, *models.Order, error) {
	if quantity <= 0 {
		return nil, nil, Validationf("quantity must be greater than zero")
	}

	var menu models.Menu
	if err := s.DB.First(&menu, menuID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, NotFoundf("menu item %d not found", menuID)
		}
		return nil, nil, Transientf("load menu: %v", err)
	}
	if !menu.IsAvailable {
		return nil, nil, Conflictf("menu item %q is not available", menu.Name)
	}

	tx := s.DB.Begin()

	order, err := ensureActiveOrderTx(tx, tableID, staffID, guestID)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	item, err := mergeItemTx(tx, order.ID, menu, guestID, quantity, notes)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	if err := recomputeTotalsTx(tx, &order); err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, nil, Transientf("commit add item: %v", err)
	}
	s.invalidateViews()

	return item, &order, nil
}

// OrderLine is one requested line of a multi-item staff entry.
type OrderLine struct {
	MenuID   uint
	Quantity int
	Notes    string
}

// AddItems applies a staff multi-item entry in a single transaction. One
// rejected line rolls back every line; no partially entered order is ever
// observable.
func (s *OrderService) AddItems(tableID uint, staffID, guestID *uint, lines []OrderLine) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, Validationf("at least one item is required")
	}

	tx := s.DB.Begin()

	order, err := ensureActiveOrderTx(tx, tableID, staffID, guestID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			tx.Rollback()
			return nil, Validationf("quantity must be greater than zero")
		}

		var menu models.Menu
		if err := tx.First(&menu, line.MenuID).Error; err != nil {
			tx.Rollback()
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, NotFoundf("menu item %d not found", line.MenuID)
			}
			return nil, Transientf("load menu: %v", err)
		}
		if !menu.IsAvailable {
			tx.Rollback()
			return nil, Conflictf("menu item %q is not available", menu.Name)
		}

		if _, err := mergeItemTx(tx, order.ID, menu, guestID, line.Quantity, line.Notes); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := recomputeTotalsTx(tx, &order); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, Transientf("commit order: %v", err)
	}
	s.invalidateViews()

	return &order, nil
}

func mergeItemTx(tx *gorm.DB, orderID uint, menu models.Menu, guestID *uint, quantity int, notes string) (*models.OrderItem, error) {
	query := tx.Where("order_id = ? AND menu_id = ?", orderID, menu.ID)
	if guestID != nil {
		query = query.Where("guest_id = ?", *guestID)
	} else {
		query = query.Where("guest_id IS NULL")
	}

	var item models.OrderItem
	err := query.First(&item).Error
	switch {
	case err == nil:
		// Accumulate quantity; subtotal is always derived from the
		// persisted unit price, not the current menu price.
		item.Quantity += quantity
		item.Subtotal = float64(item.Quantity) * item.UnitPrice
		if notes != "" {
			item.Notes = notes
		}
		if err := tx.Save(&item).Error; err != nil {
			return nil, Transientf("update item: %v", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = models.OrderItem{
			OrderID:   orderID,
			MenuID:    menu.ID,
			GuestID:   guestID,
			Quantity:  quantity,
			UnitPrice: menu.Price,
			Subtotal:  float64(quantity) * menu.Price,
			Status:    models.ItemPending,
			Notes:     notes,
		}
		if err := tx.Create(&item).Error; err != nil {
			return nil, Transientf("create item: %v", err)
		}
	default:
		return nil, Transientf("load item: %v", err)
	}
	return &item, nil
}

// DecreaseItem decrements the row's quantity by one; reaching zero deletes
// the row. Totals are recomputed either way.
func (s *OrderService) DecreaseItem(orderID, itemID uint) (*models.Order, error) {
	tx := s.DB.Begin()

	order, item, err := loadOrderItemTx(tx, orderID, itemID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	item.Quantity--
	if item.Quantity <= 0 {
		if err := tx.Delete(item).Error; err != nil {
			tx.Rollback()
			return nil, Transientf("delete item: %v", err)
		}
	} else {
		item.Subtotal = float64(item.Quantity) * item.UnitPrice
		if err := tx.Save(item).Error; err != nil {
			tx.Rollback()
			return nil, Transientf("update item: %v", err)
		}
	}

	if err := s.finishItemMutation(tx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// RemoveItem deletes the row unconditionally, then recomputes.
func (s *OrderService) RemoveItem(orderID, itemID uint) (*models.Order, error) {
	tx := s.DB.Begin()

	order, item, err := loadOrderItemTx(tx, orderID, itemID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Delete(item).Error; err != nil {
		tx.Rollback()
		return nil, Transientf("delete item: %v", err)
	}

	if err := s.finishItemMutation(tx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) finishItemMutation(tx *gorm.DB, order *models.Order) error {
	if err := recomputeTotalsTx(tx, order); err != nil {
		tx.Rollback()
		return err
	}
	if err := autoCloseIfEmptyTx(tx, order); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return Transientf("commit item mutation: %v", err)
	}
	s.invalidateViews()
	return nil
}

// UpdateOrderNotes annotates the order. No totals impact.
func (s *OrderService) UpdateOrderNotes(orderID uint, notes string) (*models.Order, error) {
	var order models.Order
	if err := s.DB.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("order %d not found", orderID)
		}
		return nil, Transientf("load order: %v", err)
	}
	if err := s.DB.Model(&order).Update("notes", notes).Error; err != nil {
		return nil, Transientf("update notes: %v", err)
	}
	order.Notes = notes
	s.invalidateViews()
	return &order, nil
}

// UpdateItemNotes annotates one line. No totals impact.
func (s *OrderService) UpdateItemNotes(orderID, itemID uint, notes string) (*models.OrderItem, error) {
	tx := s.DB.Begin()
	_, item, err := loadOrderItemTx(tx, orderID, itemID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Model(item).Update("notes", notes).Error; err != nil {
		tx.Rollback()
		return nil, Transientf("update item notes: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, Transientf("commit item notes: %v", err)
	}
	item.Notes = notes
	s.invalidateViews()
	return item, nil
}

// GetActiveWithItems is the read path for the orders/kitchen views. Totals
// come from the same persisted rows the write path maintains.
func (s *OrderService) GetActiveWithItems() ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.Preload("OrderItems").
		Preload("OrderItems.Menu").
		Preload("Table").
		Where("status = ?", models.OrderActive).
		Order("created_at asc").
		Find(&orders).Error
	if err != nil {
		return nil, Transientf("load active orders: %v", err)
	}
	return orders, nil
}

// invalidateViews follows every committed mutation, unconditionally.
func (s *OrderService) invalidateViews() {
	if s.Cache == nil {
		return
	}
	s.Cache.Invalidate(cache.KindOrders)
	s.Cache.Invalidate(cache.KindTables)
	s.Cache.Invalidate(cache.KindKitchen)
}

// loadOrderItemTx enforces the referential check that the item belongs to
// the given active order before any cross-entity mutation.
func loadOrderItemTx(tx *gorm.DB, orderID, itemID uint) (*models.Order, *models.OrderItem, error) {
	var order models.Order
	if err := tx.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, NotFoundf("order %d not found", orderID)
		}
		return nil, nil, Transientf("load order: %v", err)
	}
	if order.Status != models.OrderActive {
		return nil, nil, Conflictf("order %d is already closed", orderID)
	}

	var item models.OrderItem
	if err := tx.Where("id = ? AND order_id = ?", itemID, orderID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, NotFoundf("item %d not found on order %d", itemID, orderID)
		}
		return nil, nil, Transientf("load item: %v", err)
	}
	return &order, &item, nil
}

// recomputeTotalsTx derives the order totals from the live item rows.
// Prices are tax-inclusive, so total equals subtotal.
func recomputeTotalsTx(tx *gorm.DB, order *models.Order) error {
	var sum float64
	err := tx.Model(&models.OrderItem{}).
		Where("order_id = ?", order.ID).
		Select("COALESCE(SUM(subtotal), 0)").
		Scan(&sum).Error
	if err != nil {
		return Transientf("sum items: %v", err)
	}

	order.Subtotal = sum
	order.Total = sum
	if err := tx.Model(order).Updates(map[string]interface{}{
		"subtotal": sum,
		"total":    sum,
	}).Error; err != nil {
		return Transientf("update totals: %v", err)
	}
	return nil
}

// autoCloseIfEmptyTx closes an order whose last item was removed. The table
// stays occupied: its guests are still seated and may order again, which
// opens a fresh order.
func autoCloseIfEmptyTx(tx *gorm.DB, order *models.Order) error {
	var count int64
	if err := tx.Model(&models.OrderItem{}).
		Where("order_id = ?", order.ID).
		Count(&count).Error; err != nil {
		return Transientf("count items: %v", err)
	}
	if count > 0 {
		return nil
	}
	if err := closeOrderTx(tx, order); err != nil {
		return err
	}
	utils.InfoLogger.Printf("Order %d auto-closed (emptied)", order.ID)
	return nil
}
