package models

import "time"

// Product represents a catalog product as served by the storefront.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	Image       string  `json:"image,omitempty"`
}

// MenuCategory is one record of the menu snapshot. ID is the category name.
type MenuCategory struct {
	ID          string    `json:"id" gorm:"primaryKey;size:128"`
	Name        string    `json:"name"`
	Category    string    `json:"category" gorm:"size:128;index"`
	Products    []Product `json:"products" gorm:"type:text;serializer:json"`
	LastUpdated time.Time `json:"last_updated" gorm:"index"`
}

// CatalogCategory is the wire shape of the catalog resource.
type CatalogCategory struct {
	Name     string    `json:"name"`
	Products []Product `json:"products"`
}
