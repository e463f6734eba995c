package models

import "time"

// Payment records one settlement event for an order. Per-guest settlements
// carry GuestID; a full-table settlement leaves it nil.
type Payment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	OrderID       uint      `gorm:"not null;index" json:"order_id"`
	Order         Order     `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	GuestID       *uint     `gorm:"index" json:"guest_id,omitempty"`
	CashierID     *uint     `json:"cashier_id,omitempty"`
	Cashier       *User     `gorm:"foreignKey:CashierID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"cashier,omitempty"`
	Method        string    `gorm:"type:varchar(30);not null;default:'cash'" json:"payment_method"`
	Amount        float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	CashReceived  float64   `gorm:"type:decimal(12,2);not null" json:"cash_received"`
	Change        float64   `gorm:"type:decimal(12,2);not null" json:"change"`
	TransactionID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_id"`
	Status        string    `gorm:"type:varchar(20);not null;default:'success'" json:"status"`
	PaymentTime   time.Time `gorm:"not null" json:"payment_time"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}
