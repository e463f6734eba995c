package models

import "time"

const (
	ItemPending    = "pending"
	ItemInProgress = "in_progress"
	ItemReady      = "ready"
	ItemDelivered  = "delivered"
)

// OrderItem is one purchased menu line. GuestID=nil means the line belongs to
// the table as a whole (staff-entered, unattributed). UnitPrice is captured
// from the menu at insertion and never changes afterwards.
type OrderItem struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	OrderID uint  `gorm:"not null;index" json:"order_id"`
	Order   Order `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	MenuID  uint  `gorm:"not null" json:"menu_id"`
	Menu    Menu  `gorm:"foreignKey:MenuID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"menu"`
	GuestID *uint `gorm:"index" json:"guest_id,omitempty"`
	Guest   *Guest `gorm:"foreignKey:GuestID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"guest,omitempty"`

	Quantity  int     `gorm:"not null" json:"quantity"`
	UnitPrice float64 `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Subtotal  float64 `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Status    string  `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Notes     string  `gorm:"type:text" json:"notes"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
