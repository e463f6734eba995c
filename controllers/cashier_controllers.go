package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"barpos-backend/cache"
	"barpos-backend/events"
	"barpos-backend/models"
	"barpos-backend/services"
	"barpos-backend/utils"
)

type CashierController struct {
	DB       *gorm.DB
	Settle   *services.SettlementService
	Registry *services.GuestRegistryService
}

func NewCashierController(db *gorm.DB, inv cache.Invalidator) *CashierController {
	return &CashierController{
		DB:       db,
		Settle:   services.NewSettlementService(db, inv),
		Registry: services.NewGuestRegistryService(db),
	}
}

// GetTableGuests -> the cashier's split-billing view of one table: every
// guest with their consumption, the unattributed staff-entered lines, and
// the table totals.
func (cc *CashierController) GetTableGuests(c *gin.Context) {
	tableID, err := strconv.Atoi(c.Param("table_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var table models.Table
	if err := cc.DB.Preload("Staff").First(&table, tableID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	guests, err := cc.Registry.ListByTable(table.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var order models.Order
	var orderData interface{}
	var waiterItems []models.OrderItem
	var totalItems int64
	var totalAmount float64

	err = cc.DB.Preload("OrderItems").Preload("OrderItems.Menu").
		Where("table_id = ? AND status = ?", table.ID, models.OrderActive).
		First(&order).Error
	if err == nil {
		orderData = order
		totalItems = int64(len(order.OrderItems))
		for _, it := range order.OrderItems {
			totalAmount += it.Subtotal
			if it.GuestID == nil {
				waiterItems = append(waiterItems, it)
			}
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Table guests", gin.H{
		"table":          table,
		"order":          orderData,
		"guests":         guests,
		"waiter_items":   waiterItems,
		"total_items":    totalItems,
		"total_amount":   totalAmount,
		"pending_amount": totalAmount,
	})
}

// RegisterPayment -> full-table settlement: one payment for the order
// total, invoice, table release and guest deactivation in one transaction.
func (cc *CashierController) RegisterPayment(c *gin.Context) {
	var req struct {
		OrderID        uint       `json:"order_id" binding:"required"`
		PaymentMethod  string     `json:"payment_method" binding:"required"`
		AmountReceived float64    `json:"amount_received" binding:"required"`
		ClosedAt       *time.Time `json:"closed_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	cashierID := staffIDFromContext(c)
	result, err := cc.Settle.SettleFull(req.OrderID, cashierID, req.PaymentMethod, req.AmountReceived, req.ClosedAt)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if !result.Existing {
		events.BroadcastPaymentUpdate(result.Payment)
		events.BroadcastInvoiceGenerated(result.Invoice)
	}

	utils.RespondJSON(c, http.StatusOK, "Payment registered", gin.H{
		"transaction_id": result.Payment.TransactionID,
		"cashier_id":     result.Payment.CashierID,
		"closed_at":      result.Payment.PaymentTime,
		"change":         result.Change,
		"invoice":        result.Invoice,
	})
}

// RegisterGuestPayment -> per-guest settlement. The loser of a concurrent
// double settlement receives the conflict reason, never a silent no-op.
func (cc *CashierController) RegisterGuestPayment(c *gin.Context) {
	var req struct {
		OrderID        uint    `json:"order_id" binding:"required"`
		GuestID        uint    `json:"guest_id" binding:"required"`
		PaymentMethod  string  `json:"payment_method" binding:"required"`
		AmountReceived float64 `json:"amount_received" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	cashierID := staffIDFromContext(c)
	result, err := cc.Settle.SettleGuest(req.OrderID, req.GuestID, cashierID, req.PaymentMethod, req.AmountReceived)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if !result.Existing {
		events.BroadcastPaymentUpdate(result.Payment)
		events.BroadcastInvoiceGenerated(result.Invoice)
		if result.OrderClosed {
			events.BroadcastStaffNotification("Table settled and released")
		}
	}

	utils.RespondJSON(c, http.StatusOK, "Guest payment registered", gin.H{
		"success":          true,
		"payment":          result.Payment,
		"change":           result.Change,
		"invoice":          result.Invoice,
		"order_closed":     result.OrderClosed,
		"remaining_guests": result.RemainingGuests,
	})
}
