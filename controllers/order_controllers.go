package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"barpos-backend/cache"
	"barpos-backend/events"
	"barpos-backend/models"
	"barpos-backend/services"
	"barpos-backend/utils"
)

type OrderController struct {
	DB       *gorm.DB
	Orders   *services.OrderService
	Registry *services.GuestRegistryService
	Settle   *services.SettlementService
}

func NewOrderController(db *gorm.DB, inv cache.Invalidator) *OrderController {
	return &OrderController{
		DB:       db,
		Orders:   services.NewOrderService(db, inv),
		Registry: services.NewGuestRegistryService(db),
		Settle:   services.NewSettlementService(db, inv),
	}
}

// AddItemGuest -> guest adds an item through their session credential. The
// line is attributed to that guest and merges only with their own lines.
func (oc *OrderController) AddItemGuest(c *gin.Context) {
	var req struct {
		SessionToken string `json:"session_token" binding:"required"`
		MenuItemID   uint   `json:"menu_item_id" binding:"required"`
		Quantity     int    `json:"quantity" binding:"required"`
		Notes        string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	guest, err := oc.Registry.ResolveByCredential(req.SessionToken)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	item, order, err := oc.Orders.AddItem(guest.TableID, nil, &guest.ID, req.MenuItemID, req.Quantity, req.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	events.BroadcastOrderUpdate(*order)

	utils.RespondJSON(c, http.StatusCreated, "Item added", gin.H{
		"order_item_id": item.ID,
		"order_id":      order.ID,
		"quantity":      item.Quantity,
		"unit_price":    item.UnitPrice,
		"subtotal":      item.Subtotal,
		"order_total":   order.Total,
		"guest_id":      guest.ID,
	})
}

// CreateOrder -> staff enters one or more items for a table in one request.
// Without a guest id the lines stay table-level (unattributed).
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req struct {
		TableID uint  `json:"table_id" binding:"required"`
		GuestID *uint `json:"guest_id"`
		Items   []struct {
			MenuItemID uint   `json:"menu_item_id" binding:"required"`
			Quantity   int    `json:"quantity" binding:"required"`
			Notes      string `json:"notes"`
		} `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	staffID := staffIDFromContext(c)

	lines := make([]services.OrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, services.OrderLine{
			MenuID:   it.MenuItemID,
			Quantity: it.Quantity,
			Notes:    it.Notes,
		})
	}

	order, err := oc.Orders.AddItems(req.TableID, staffID, req.GuestID, lines)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	events.BroadcastOrderUpdate(*order)
	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

// AddItem -> staff adds a single line to an existing order.
func (oc *OrderController) AddItem(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("order_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var req struct {
		MenuItemID uint   `json:"menu_item_id" binding:"required"`
		Quantity   int    `json:"quantity" binding:"required"`
		Notes      string `json:"notes"`
		GuestID    *uint  `json:"guest_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var order models.Order
	if err := oc.DB.First(&order, orderID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	staffID := staffIDFromContext(c)
	item, updated, err := oc.Orders.AddItem(order.TableID, staffID, req.GuestID, req.MenuItemID, req.Quantity, req.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	events.BroadcastOrderUpdate(*updated)
	utils.RespondJSON(c, http.StatusCreated, "Item added", gin.H{
		"order_item_id": item.ID,
		"quantity":      item.Quantity,
		"unit_price":    item.UnitPrice,
		"subtotal":      item.Subtotal,
		"order_total":   updated.Total,
	})
}

// DecreaseItem -> one unit off; the row disappears at zero.
func (oc *OrderController) DecreaseItem(c *gin.Context) {
	orderID, itemID, ok := orderItemParams(c)
	if !ok {
		return
	}

	order, err := oc.Orders.DecreaseItem(orderID, itemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	events.BroadcastOrderUpdate(*order)
	utils.RespondJSON(c, http.StatusOK, "Item decreased", order)
}

// RemoveItem -> unconditional delete, totals recomputed.
func (oc *OrderController) RemoveItem(c *gin.Context) {
	orderID, itemID, ok := orderItemParams(c)
	if !ok {
		return
	}

	order, err := oc.Orders.RemoveItem(orderID, itemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	events.BroadcastOrderUpdate(*order)
	utils.RespondJSON(c, http.StatusOK, "Item removed", order)
}

// UpdateItemNotes -> free-text annotation on one line.
func (oc *OrderController) UpdateItemNotes(c *gin.Context) {
	orderID, itemID, ok := orderItemParams(c)
	if !ok {
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	item, err := oc.Orders.UpdateItemNotes(orderID, itemID, req.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item notes updated", item)
}

// UpdateOrderNotes -> free-text annotation on the order.
func (oc *OrderController) UpdateOrderNotes(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("order_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.UpdateOrderNotes(uint(orderID), req.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order notes updated", order)
}

// GetActiveOrders -> active orders joined with their live items, for the
// orders and kitchen views.
func (oc *OrderController) GetActiveOrders(c *gin.Context) {
	orders, err := oc.Orders.GetActiveWithItems()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Active orders", orders)
}

// GetOrderByID -> detail of one order with items.
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("order_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var order models.Order
	if err := oc.DB.Preload("OrderItems").Preload("OrderItems.Menu").
		Preload("Table").
		First(&order, orderID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// CloseOrder -> administrative close without payment, the recovery escape
// hatch. Releases the table and retires its sessions.
func (oc *OrderController) CloseOrder(c *gin.Context) {
	role, _ := c.Get("role")
	if role != models.RoleAdmin && role != models.RoleCashier {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	orderID, err := strconv.Atoi(c.Param("order_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Settle.CloseAdministrative(uint(orderID))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	events.BroadcastOrderUpdate(*order)
	events.BroadcastStaffNotification("Order closed without payment by staff")
	utils.RespondJSON(c, http.StatusOK, "Order closed", order)
}

func orderItemParams(c *gin.Context) (uint, uint, bool) {
	orderID, err := strconv.Atoi(c.Param("order_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return 0, 0, false
	}
	itemID, err := strconv.Atoi(c.Param("item_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return 0, 0, false
	}
	return uint(orderID), uint(itemID), true
}
