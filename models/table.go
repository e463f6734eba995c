package models

import "time"

const (
	TableAvailable = "available"
	TableOccupied  = "occupied"
)

type Table struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TableNumber string    `gorm:"type:varchar(50);not null;unique" json:"table_number"`
	Capacity    int       `gorm:"not null;default:4" json:"capacity"`
	Status      string    `gorm:"type:varchar(20);not null;default:'available'" json:"status"`
	StaffID     *uint     `gorm:"index" json:"staff_id,omitempty"`
	Staff       *User     `gorm:"foreignKey:StaffID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"staff,omitempty"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}
