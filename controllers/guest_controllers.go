package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"barpos-backend/events"
	"barpos-backend/models"
	"barpos-backend/services"
	"barpos-backend/utils"
)

type GuestController struct {
	DB       *gorm.DB
	Registry *services.GuestRegistryService
}

func NewGuestController(db *gorm.DB) *GuestController {
	return &GuestController{
		DB:       db,
		Registry: services.NewGuestRegistryService(db),
	}
}

// RegisterGuest -> walk-in guest joins a table with a scanned QR token.
func (gc *GuestController) RegisterGuest(c *gin.Context) {
	var req struct {
		QRToken   string  `json:"qr_token" binding:"required"`
		GuestName string  `json:"guest_name" binding:"required"`
		Phone     *string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	registered, err := gc.Registry.Register(req.QRToken, req.GuestName, req.Phone)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	gc.broadcastGuestJoined(registered.GuestID)
	utils.RespondJSON(c, http.StatusCreated, "Guest registered", registered)
}

// RegisterGuestManual -> staff registers a guest without a scan.
func (gc *GuestController) RegisterGuestManual(c *gin.Context) {
	tableID, err := strconv.Atoi(c.Param("table_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var req struct {
		GuestName string  `json:"guest_name" binding:"required"`
		Phone     *string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	staffID := staffIDFromContext(c)
	registered, err := gc.Registry.RegisterManual(uint(tableID), staffID, req.GuestName, req.Phone)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	gc.broadcastGuestJoined(registered.GuestID)
	utils.RespondJSON(c, http.StatusCreated, "Guest registered", registered)
}

// broadcastGuestJoined pushes the fresh guest to staff dashboards.
func (gc *GuestController) broadcastGuestJoined(guestID uint) {
	var guest models.Guest
	if err := gc.DB.First(&guest, guestID).Error; err != nil {
		return
	}
	events.BroadcastGuestUpdate(guest)
}

// TouchSession -> keeps a guest session marked active. No billing effect.
func (gc *GuestController) TouchSession(c *gin.Context) {
	var req struct {
		SessionToken string `json:"session_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := gc.Registry.Touch(req.SessionToken); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Session touched", nil)
}

// GetSession -> resolves a guest credential into guest, table and the
// table's active order view.
func (gc *GuestController) GetSession(c *gin.Context) {
	token := c.Query("session_token")
	guest, err := gc.Registry.ResolveByCredential(token)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var order models.Order
	var orderData interface{}
	err = gc.DB.Preload("OrderItems").Preload("OrderItems.Menu").
		Where("table_id = ? AND status = ?", guest.TableID, models.OrderActive).
		First(&order).Error
	if err == nil {
		orderData = order
	}

	utils.RespondJSON(c, http.StatusOK, "Guest session", gin.H{
		"guest": guest,
		"table": guest.Table,
		"order": orderData,
	})
}
