package models

import "time"

// Guest is one walk-in customer's ordering identity for a single visit.
// SessionKey authorizes guest-originated mutations; on settlement or QR
// retirement it is rewritten so it can never authorize again.
type Guest struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TableID      uint      `gorm:"not null;index" json:"table_id"`
	Table        Table     `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	QRSessionID  uint      `gorm:"not null;index" json:"qr_session_id"`
	QRSession    QRSession `gorm:"foreignKey:QRSessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	Phone        *string   `gorm:"type:varchar(30)" json:"phone,omitempty"`
	SessionKey   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	IsActive     bool      `gorm:"not null;default:true;index" json:"is_active"`
	JoinedAt     time.Time `gorm:"not null" json:"joined_at"`
	LastActivity time.Time `gorm:"not null" json:"last_activity"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}
