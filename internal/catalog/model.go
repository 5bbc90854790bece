package catalog

import (
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMen   Gender = "men"
	GenderWomen Gender = "women"
)

type Product struct {
	ID          uuid.UUID `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Gender      Gender    `json:"gender"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	IsActive    bool      `json:"is_active"`
	Images      []string  `json:"images"`
	Variants    []Variant `json:"variants,omitempty"`
	Tags        []Tag     `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Variant struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Size      string    `json:"size,omitempty"`
	Color     string    `json:"color,omitempty"`
	StockQty  int       `json:"stock_qty"`
}

type Tag struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

type Collection struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
}

// ProductQuery filters the public listing; empty fields are ignored.
type ProductQuery struct {
	Gender         Gender
	TagSlug        string
	CollectionSlug string
	Limit          int
	Offset         int
}

type NewProductInput struct {
	SKU         string   `json:"sku" validate:"required,max=64"`
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Gender      Gender   `json:"gender" validate:"required,oneof=men women"`
	PriceCents  int64    `json:"price_cents" validate:"gt=0"`
	Currency    string   `json:"currency" validate:"omitempty,len=3,alpha"`
	IsActive    *bool    `json:"is_active"`
	Sizes       []string `json:"sizes" validate:"dive,required,max=16"`
	Colors      []string `json:"colors" validate:"dive,required,max=32"`
	Tags        []string `json:"tags" validate:"dive,required,max=64"`
	Images      []string `json:"images" validate:"dive,url"`
}

type NewCollectionInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// UpdateCollectionInput leaves IsActive unchanged when nil.
type UpdateCollectionInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
	IsActive    *bool  `json:"is_active"`
}

type ImageUpload struct {
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

const DefaultCurrency = "INR"
