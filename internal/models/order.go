package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Order statuses. Server-side statuses are passed through unchanged.
const (
	OrderStatusOfflinePending = "offline_pending"
	OrderStatusPending        = "pending"
)

// localIDPrefix is never issued by the storefront server, so local ids cannot
// collide with server ids.
const localIDPrefix = "local_"

// OrderItem represents a single line of an order.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name" validate:"required"`
	Price     float64 `json:"price" validate:"gte=0"` // Price at the time of order
	Quantity  int     `json:"quantity" validate:"gt=0"`
}

// CustomerInfo carries the contact details entered at checkout.
type CustomerInfo struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

// Order represents a customer order, either synced or still local-only.
type Order struct {
	ID           string       `json:"id" gorm:"primaryKey;size:64"`
	LocalID      string       `json:"local_id,omitempty" gorm:"size:64;index"`
	UserID       string       `json:"user_id,omitempty" gorm:"size:64;index"`
	Items        []OrderItem  `json:"items" gorm:"type:text;serializer:json" validate:"required,min=1,dive"`
	Total        float64      `json:"total"`
	CustomerInfo CustomerInfo `json:"customer_info" gorm:"type:text;serializer:json" validate:"required"`
	Status       string       `json:"status" gorm:"size:32;index"`
	Timestamp    time.Time    `json:"timestamp" gorm:"index"`
	IsLocalOnly  bool         `json:"is_local_only"`
}

// NewLocalOrderID generates an id from the local namespace: timestamp plus a random suffix.
func NewLocalOrderID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s%d_%s", localIDPrefix, now.UnixMilli(), suffix)
}

// IsLocalOrderID reports whether id was generated by NewLocalOrderID.
func IsLocalOrderID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

// CalculateTotal sums price times quantity over all items.
func CalculateTotal(items []OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}
