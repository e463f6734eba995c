package models

import "time"

const (
	OrderActive = "active"
	OrderClosed = "closed"
)

// Order is the single live tab for one table visit. Invariant: at most one
// order with status=active per table.
type Order struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	TableID    uint        `gorm:"not null;index" json:"table_id"`
	Table      Table       `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"table"`
	StaffID    *uint       `gorm:"index" json:"staff_id,omitempty"`
	Staff      *User       `gorm:"foreignKey:StaffID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"staff,omitempty"`
	GuestID    *uint       `gorm:"index" json:"guest_id,omitempty"`
	Guest      *Guest      `gorm:"foreignKey:GuestID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"guest,omitempty"`
	Status     string      `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	Subtotal   float64     `gorm:"type:decimal(12,2);not null;default:0.00" json:"subtotal"`
	Total      float64     `gorm:"type:decimal(12,2);not null;default:0.00" json:"total"`
	Notes      string      `gorm:"type:text" json:"notes"`
	ClosedAt   *time.Time  `json:"closed_at,omitempty"`
	CreatedAt  time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"not null" json:"updated_at"`
	OrderItems []OrderItem `gorm:"foreignKey:OrderID" json:"order_items"`
}
