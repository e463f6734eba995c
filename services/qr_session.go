package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"barpos-backend/models"
	"barpos-backend/utils"
)

const (
	// Scan sessions live a fixed 24 hours.
	qrSessionTTL = 24 * time.Hour
	// Sessions minted for staff-side manual registration are short-lived.
	manualSessionTTL = 2 * time.Hour
)

type QRSessionService struct {
	DB *gorm.DB
}

func NewQRSessionService(db *gorm.DB) *QRSessionService {
	return &QRSessionService{DB: db}
}

type IssuedQR struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	Image     string    `json:"image"`
	TableID   uint      `json:"table_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issue retires any active session for the table and mints a fresh token.
// Old tokens stop validating immediately; guests already joined keep their
// own credentials and are untouched.
func (s *QRSessionService) Issue(tableID uint, staffID *uint, baseURL string) (*IssuedQR, error) {
	var table models.Table
	if err := s.DB.First(&table, tableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("table %d not found", tableID)
		}
		return nil, Transientf("load table: %v", err)
	}

	session := models.QRSession{
		TableID:   table.ID,
		Token:     utils.NewOpaqueToken(),
		IsActive:  true,
		ExpiresAt: time.Now().Add(qrSessionTTL),
		CreatedBy: staffID,
	}

	// Render before touching the store: a failed render must not retire
	// the table's current session.
	url := fmt.Sprintf("%s/join?token=%s", baseURL, session.Token)
	image, err := utils.EncodeQRImage(url)
	if err != nil {
		return nil, Transientf("render qr image: %v", err)
	}

	tx := s.DB.Begin()
	if err := deactivateTableSessions(tx, table.ID); err != nil {
		tx.Rollback()
		return nil, Transientf("retire previous sessions: %v", err)
	}
	if err := tx.Create(&session).Error; err != nil {
		tx.Rollback()
		return nil, Transientf("create qr session: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, Transientf("commit qr session: %v", err)
	}

	utils.InfoLogger.Printf("QR session issued for table %s (expires %s)",
		table.TableNumber, session.ExpiresAt.Format(time.RFC3339))

	return &IssuedQR{
		Token:     session.Token,
		URL:       url,
		Image:     image,
		TableID:   table.ID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Validate returns the session iff it is active, unexpired and bound to an
// existing table. Read-only.
func (s *QRSessionService) Validate(token string) (*models.QRSession, error) {
	var session models.QRSession
	err := s.DB.Preload("Table").
		Where("token = ? AND is_active = ?", token, true).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("QR session not found or expired")
		}
		return nil, Transientf("load qr session: %v", err)
	}
	if session.Expired(time.Now()) || session.Table.ID == 0 {
		return nil, NotFoundf("QR session not found or expired")
	}
	return &session, nil
}

// Retire deactivates every session of a table and cascades to its guests.
// Used when a table is released.
func (s *QRSessionService) Retire(tableID uint) error {
	tx := s.DB.Begin()
	if err := deactivateTableSessions(tx, tableID); err != nil {
		tx.Rollback()
		return Transientf("retire sessions: %v", err)
	}
	if err := deactivateTableGuests(tx, tableID); err != nil {
		tx.Rollback()
		return Transientf("deactivate guests: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return Transientf("commit retire: %v", err)
	}
	return nil
}

func deactivateTableSessions(tx *gorm.DB, tableID uint) error {
	return tx.Model(&models.QRSession{}).
		Where("table_id = ? AND is_active = ?", tableID, true).
		Update("is_active", false).Error
}

// deactivateTableGuests forces every active guest of a table inactive and
// rewrites each session credential so it can never authorize again.
func deactivateTableGuests(tx *gorm.DB, tableID uint) error {
	var guests []models.Guest
	if err := tx.Where("table_id = ? AND is_active = ?", tableID, true).
		Find(&guests).Error; err != nil {
		return err
	}
	for i := range guests {
		updates := map[string]interface{}{
			"is_active":   false,
			"session_key": utils.PaidMarker(),
		}
		if err := tx.Model(&guests[i]).Updates(updates).Error; err != nil {
			return err
		}
	}
	return nil
}
