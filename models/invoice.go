package models

import (
	"encoding/json"
	"time"
)

// Invoice is the denormalized record produced by a settlement. Table, staff
// and item data are snapshotted here because the live rows are deleted or
// mutated afterwards.
type Invoice struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	InvoiceNumber string  `gorm:"type:varchar(50);uniqueIndex;not null" json:"invoice_number"`
	OrderID       uint    `gorm:"not null;index" json:"order_id"`
	Order         Order   `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	PaymentID     uint    `gorm:"not null" json:"payment_id"`
	Payment       Payment `gorm:"foreignKey:PaymentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	GuestID       *uint   `gorm:"index" json:"guest_id,omitempty"`
	GuestName     string  `gorm:"type:varchar(100)" json:"guest_name,omitempty"`

	TableNumber string `gorm:"type:varchar(50);not null" json:"table_number"`
	StaffName   string `gorm:"type:varchar(255)" json:"staff_name"`

	Subtotal      float64 `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Total         float64 `gorm:"type:decimal(12,2);not null" json:"total"`
	Method        string  `gorm:"type:varchar(30);not null" json:"payment_method"`
	TransactionID string  `gorm:"type:varchar(64);not null" json:"transaction_id"`
	ItemsJSON     string  `gorm:"type:text;not null" json:"-"`
	Notes         string  `gorm:"type:text" json:"notes"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// InvoiceItem is one line of the serialized item snapshot stored in ItemsJSON.
type InvoiceItem struct {
	MenuID    uint    `json:"menu_id"`
	MenuName  string  `json:"menu_name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
	GuestID   *uint   `json:"guest_id,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

func (inv *Invoice) Items() ([]InvoiceItem, error) {
	var items []InvoiceItem
	if err := json.Unmarshal([]byte(inv.ItemsJSON), &items); err != nil {
		return nil, err
	}
	return items, nil
}
