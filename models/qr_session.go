package models

import "time"

// QRSession is a single-table join token. At most one session per table is
// active; issuing a new one retires the previous.
type QRSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TableID   uint      `gorm:"not null;index" json:"table_id"`
	Table     Table     `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Token     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"token"`
	IsActive  bool      `gorm:"not null;default:true;index" json:"is_active"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedBy *uint     `json:"created_by,omitempty"`
	Creator   *User     `gorm:"foreignKey:CreatedBy;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (s *QRSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
