package models

// CartEntry is one line of the cart keyed by product.
type CartEntry struct {
	ProductID string  `json:"product_id" gorm:"primaryKey;size:64"`
	Product   Product `json:"product" gorm:"type:text;serializer:json"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
}
