package catalog

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"onetee-be/internal/logger"
	"onetee-be/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type Service interface {
	ListProducts(ctx context.Context, q ProductQuery) ([]Product, error)
	SearchProducts(ctx context.Context, term string, limit, offset int) ([]Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListTags(ctx context.Context) ([]Tag, error)
	ListCollections(ctx context.Context) ([]Collection, error)

	CreateProduct(ctx context.Context, input NewProductInput) (*Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	SetVariantStock(ctx context.Context, variantID uuid.UUID, qty int) (productID uuid.UUID, err error)
	CreateTag(ctx context.Context, name string) (*Tag, error)
	CreateCollection(ctx context.Context, input NewCollectionInput) (*Collection, error)
	AssignTags(ctx context.Context, productID uuid.UUID, names []string) error
	AssignCollections(ctx context.Context, productID uuid.UUID, slugs []string) error
	PresignImageUpload(ctx context.Context, productID uuid.UUID, filename, contentType string) (*ImageUpload, error)

	UpdateTag(ctx context.Context, id uuid.UUID, name string) (*Tag, error)
	DeleteTag(ctx context.Context, id uuid.UUID) error
	UpdateCollection(ctx context.Context, id uuid.UUID, input UpdateCollectionInput) (*Collection, error)
	DeleteCollection(ctx context.Context, id uuid.UUID) error
}

// ImageStore is the object storage behind product images.
type ImageStore interface {
	PresignUpload(ctx context.Context, key, contentType string) (uploadURL string, publicURL string, expiresAt time.Time, err error)
	Remove(ctx context.Context, publicURL string) error
}

type service struct {
	repo     Repository
	images   ImageStore
	validate *validator.Validate
}

// NewService accepts a nil ImageStore; image operations then fail with ErrStorageNotConfigured.
func NewService(repo Repository, images ImageStore) Service {
	return &service{
		repo:     repo,
		images:   images,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *service) ListProducts(ctx context.Context, q ProductQuery) ([]Product, error) {
	q.Limit, q.Offset = utils.ClampPage(q.Limit, q.Offset, defaultPageSize, maxPageSize)
	if q.Gender != "" && q.Gender != GenderMen && q.Gender != GenderWomen {
		return nil, fmt.Errorf("%w: unknown gender %q", ErrInvalidProduct, q.Gender)
	}
	return s.repo.ListProducts(ctx, q)
}

func (s *service) SearchProducts(ctx context.Context, term string, limit, offset int) ([]Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []Product{}, nil
	}
	limit, offset = utils.ClampPage(limit, offset, defaultPageSize, maxPageSize)
	return s.repo.SearchProducts(ctx, term, limit, offset)
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *service) ListTags(ctx context.Context) ([]Tag, error) {
	return s.repo.ListTags(ctx)
}

func (s *service) ListCollections(ctx context.Context) ([]Collection, error) {
	return s.repo.ListCollections(ctx)
}

func (s *service) CreateProduct(ctx context.Context, input NewProductInput) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateProduct"),
		zap.String("sku", input.SKU),
	)

	input.SKU = strings.TrimSpace(input.SKU)
	input.Name = strings.TrimSpace(input.Name)
	input.Gender = Gender(strings.ToLower(string(input.Gender)))
	if input.Currency == "" {
		input.Currency = DefaultCurrency
	}
	input.Currency = strings.ToUpper(input.Currency)

	if err := s.validate.Struct(input); err != nil {
		log.Info("product rejected by validation", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}

	p, err := s.repo.CreateProduct(ctx, input)
	if err != nil {
		return nil, err
	}

	log.Info("product created",
		zap.String("product_id", p.ID.String()),
		zap.Int("variants", len(p.Variants)),
	)
	return p, nil
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "DeleteProduct"),
		zap.String("product_id", id.String()),
	)

	images, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return err
	}

	// Order history keeps its snapshot; object cleanup is best effort.
	if s.images != nil {
		for _, url := range images {
			if err := s.images.Remove(ctx, url); err != nil {
				log.Warn("failed to remove product image", zap.String("url", url), zap.Error(err))
			}
		}
	}

	log.Info("product deleted", zap.Int("images", len(images)))
	return nil
}

func (s *service) SetVariantStock(ctx context.Context, variantID uuid.UUID, qty int) (uuid.UUID, error) {
	if qty < 0 {
		return uuid.Nil, ErrInvalidStock
	}
	return s.repo.SetVariantStock(ctx, variantID, qty)
}

func validTagName(name string) error {
	if utils.Slugify(name) == "" || len(name) > 64 {
		return fmt.Errorf("%w: name must contain letters or digits", ErrInvalidTag)
	}
	return nil
}

func (s *service) CreateTag(ctx context.Context, name string) (*Tag, error) {
	if err := validTagName(name); err != nil {
		return nil, err
	}
	return s.repo.CreateTag(ctx, name)
}

func (s *service) UpdateTag(ctx context.Context, id uuid.UUID, name string) (*Tag, error) {
	if err := validTagName(name); err != nil {
		return nil, err
	}
	return s.repo.UpdateTag(ctx, id, name)
}

func (s *service) DeleteTag(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteTag(ctx, id)
}

func (s *service) CreateCollection(ctx context.Context, input NewCollectionInput) (*Collection, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCollection, err)
	}
	if utils.Slugify(input.Name) == "" {
		return nil, fmt.Errorf("%w: name must contain letters or digits", ErrInvalidCollection)
	}
	return s.repo.CreateCollection(ctx, input)
}

func (s *service) UpdateCollection(ctx context.Context, id uuid.UUID, input UpdateCollectionInput) (*Collection, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCollection, err)
	}
	if utils.Slugify(input.Name) == "" {
		return nil, fmt.Errorf("%w: name must contain letters or digits", ErrInvalidCollection)
	}
	return s.repo.UpdateCollection(ctx, id, input)
}

func (s *service) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteCollection(ctx, id)
}

func (s *service) AssignTags(ctx context.Context, productID uuid.UUID, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: no tags given", ErrInvalidTag)
	}
	return s.repo.AssignTags(ctx, productID, names)
}

func (s *service) AssignCollections(ctx context.Context, productID uuid.UUID, slugs []string) error {
	if len(slugs) == 0 {
		return fmt.Errorf("%w: no collections given", ErrInvalidCollection)
	}
	return s.repo.AssignCollections(ctx, productID, slugs)
}

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

func (s *service) PresignImageUpload(ctx context.Context, productID uuid.UUID, filename, contentType string) (*ImageUpload, error) {
	if s.images == nil {
		return nil, ErrStorageNotConfigured
	}

	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrInvalidProduct, contentType)
	}

	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	base := utils.Slugify(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	if base == "" {
		base = "image"
	}
	key := fmt.Sprintf("products/%s/%s-%s%s", productID, uuid.NewString()[:8], base, ext)

	uploadURL, publicURL, expiresAt, err := s.images.PresignUpload(ctx, key, contentType)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to presign image upload",
			zap.String("layer", "service"),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, err
	}

	// The image is listed before the client uploads it.
	if err := s.repo.AddProductImage(ctx, productID, publicURL); err != nil {
		logger.FromCtx(ctx).Error("failed to record product image",
			zap.String("layer", "service"),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, err
	}

	return &ImageUpload{UploadURL: uploadURL, PublicURL: publicURL, ExpiresAt: expiresAt}, nil
}
