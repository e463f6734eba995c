package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"barpos-backend/services"
	"barpos-backend/utils"
)

type QRController struct {
	DB      *gorm.DB
	QR      *services.QRSessionService
	BaseURL string
}

func NewQRController(db *gorm.DB, baseURL string) *QRController {
	return &QRController{
		DB:      db,
		QR:      services.NewQRSessionService(db),
		BaseURL: baseURL,
	}
}

// GenerateQR -> staff issues a fresh join token for a table. Any previous
// session stops validating immediately.
func (qc *QRController) GenerateQR(c *gin.Context) {
	tableID, err := strconv.Atoi(c.Param("table_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	staffID := staffIDFromContext(c)
	issued, err := qc.QR.Issue(uint(tableID), staffID, qc.BaseURL)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "QR session issued", issued)
}

// RetireQR -> staff deactivates the table's sessions and all its guests.
func (qc *QRController) RetireQR(c *gin.Context) {
	tableID, err := strconv.Atoi(c.Param("table_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := qc.QR.Retire(uint(tableID)); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.Printf("QR sessions retired for table %d", tableID)
	utils.RespondJSON(c, http.StatusOK, "QR session retired", gin.H{
		"table_id": tableID,
	})
}

// staffIDFromContext reads the authenticated user id set by the auth
// middleware, nil for unauthenticated calls.
func staffIDFromContext(c *gin.Context) *uint {
	v, exists := c.Get("user_id")
	if !exists {
		return nil
	}
	id, ok := v.(uint)
	if !ok {
		return nil
	}
	return &id
}
