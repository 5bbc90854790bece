package catalog

import "errors"

var (
	// -- Validation & Input --
	ErrInvalidProduct    = errors.New("invalid product")
	ErrInvalidCollection = errors.New("invalid collection")
	ErrInvalidTag        = errors.New("invalid tag")
	ErrInvalidStock      = errors.New("stock quantity must not be negative")

	// -- Resource State --
	ErrProductNotFound     = errors.New("product not found")
	ErrVariantNotFound     = errors.New("variant not found")
	ErrTagNotFound         = errors.New("tag not found")
	ErrCollectionNotFound  = errors.New("collection not found")
	ErrDuplicateSKU        = errors.New("sku already exists")
	ErrDuplicateTag        = errors.New("tag already exists")
	ErrDuplicateCollection = errors.New("collection already exists")

	// -- External Systems --
	ErrStorageNotConfigured = errors.New("object storage not configured")

	PgUniqueViolation = "23505"
)
