package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"barpos-backend/models"
	"barpos-backend/utils"
)

type GuestRegistryService struct {
	DB *gorm.DB
	QR *QRSessionService
}

func NewGuestRegistryService(db *gorm.DB) *GuestRegistryService {
	return &GuestRegistryService{DB: db, QR: NewQRSessionService(db)}
}

type RegisteredGuest struct {
	GuestID      uint   `json:"guest_id"`
	SessionToken string `json:"session_token"`
	TableID      uint   `json:"table_id"`
	TableNumber  string `json:"table_number"`
	GuestName    string `json:"guest_name"`
}

// Register enrolls a guest under a valid QR token and issues a per-guest
// session credential distinct from the QR token itself.
func (s *GuestRegistryService) Register(token, name string, phone *string) (*RegisteredGuest, error) {
	if name == "" {
		return nil, Validationf("guest name is required")
	}

	session, err := s.QR.Validate(token)
	if err != nil {
		return nil, err
	}

	return s.enroll(session, name, phone)
}

// RegisterManual is the staff-side path bypassing scanning: it reuses the
// table's active session or mints a short-lived one, then follows the same
// contract as Register.
func (s *GuestRegistryService) RegisterManual(tableID uint, staffID *uint, name string, phone *string) (*RegisteredGuest, error) {
	if name == "" {
		return nil, Validationf("guest name is required")
	}

	var table models.Table
	if err := s.DB.First(&table, tableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("table %d not found", tableID)
		}
		return nil, Transientf("load table: %v", err)
	}

	var session models.QRSession
	err := s.DB.Where("table_id = ? AND is_active = ? AND expires_at > ?",
		table.ID, true, time.Now()).
		Order("created_at desc").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		session = models.QRSession{
			TableID:   table.ID,
			Token:     utils.NewOpaqueToken(),
			IsActive:  true,
			ExpiresAt: time.Now().Add(manualSessionTTL),
			CreatedBy: staffID,
		}
		if err := s.DB.Create(&session).Error; err != nil {
			return nil, Transientf("create session: %v", err)
		}
	} else if err != nil {
		return nil, Transientf("load session: %v", err)
	}
	session.Table = table

	return s.enroll(&session, name, phone)
}

func (s *GuestRegistryService) enroll(session *models.QRSession, name string, phone *string) (*RegisteredGuest, error) {
	now := time.Now()
	guest := models.Guest{
		TableID:      session.TableID,
		QRSessionID:  session.ID,
		Name:         name,
		Phone:        phone,
		SessionKey:   utils.NewOpaqueToken(),
		IsActive:     true,
		JoinedAt:     now,
		LastActivity: now,
	}
	if err := s.DB.Create(&guest).Error; err != nil {
		return nil, Transientf("create guest: %v", err)
	}

	utils.InfoLogger.Printf("Guest %q joined table %s (guest_id=%d)",
		guest.Name, session.Table.TableNumber, guest.ID)

	return &RegisteredGuest{
		GuestID:      guest.ID,
		SessionToken: guest.SessionKey,
		TableID:      session.TableID,
		TableNumber:  session.Table.TableNumber,
		GuestName:    guest.Name,
	}, nil
}

// ResolveByCredential authorizes a guest-originated mutation: the guest must
// be active and its bound QR session still active and unexpired.
func (s *GuestRegistryService) ResolveByCredential(credential string) (*models.Guest, error) {
	if credential == "" {
		return nil, Unauthorizedf("invalid or expired guest session")
	}

	var guest models.Guest
	err := s.DB.Preload("Table").Preload("QRSession").
		Where("session_key = ? AND is_active = ?", credential, true).
		First(&guest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Unauthorizedf("invalid or expired guest session")
		}
		return nil, Transientf("load guest: %v", err)
	}

	if !guest.QRSession.IsActive || guest.QRSession.Expired(time.Now()) {
		return nil, Unauthorizedf("invalid or expired guest session")
	}
	return &guest, nil
}

// Touch bumps last activity. No billing effect.
func (s *GuestRegistryService) Touch(credential string) error {
	guest, err := s.ResolveByCredential(credential)
	if err != nil {
		return err
	}
	if err := s.DB.Model(guest).Update("last_activity", time.Now()).Error; err != nil {
		return Transientf("touch guest: %v", err)
	}
	return nil
}

type GuestSummary struct {
	Guest         models.Guest `json:"guest"`
	ItemCount     int          `json:"item_count"`
	TotalQuantity int          `json:"total_quantity"`
	TotalSpent    float64      `json:"total_spent"`
}

// ListByTable returns the table's guests, ordered by join time, each with
// the cumulative consumption over their live order items.
func (s *GuestRegistryService) ListByTable(tableID uint) ([]GuestSummary, error) {
	var guests []models.Guest
	if err := s.DB.Where("table_id = ?", tableID).
		Order("joined_at asc").
		Find(&guests).Error; err != nil {
		return nil, Transientf("list guests: %v", err)
	}

	summaries := make([]GuestSummary, 0, len(guests))
	for _, g := range guests {
		var agg struct {
			ItemCount     int
			TotalQuantity int
			TotalSpent    float64
		}
		err := s.DB.Model(&models.OrderItem{}).
			Select("COUNT(order_items.id) as item_count, COALESCE(SUM(order_items.quantity),0) as total_quantity, COALESCE(SUM(order_items.subtotal),0) as total_spent").
			Joins("JOIN orders ON orders.id = order_items.order_id").
			Where("order_items.guest_id = ? AND orders.status = ?", g.ID, models.OrderActive).
			Scan(&agg).Error
		if err != nil {
			return nil, Transientf("aggregate guest consumption: %v", err)
		}
		summaries = append(summaries, GuestSummary{
			Guest:         g,
			ItemCount:     agg.ItemCount,
			TotalQuantity: agg.TotalQuantity,
			TotalSpent:    agg.TotalSpent,
		})
	}
	return summaries, nil
}
