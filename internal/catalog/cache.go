package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"onetee-be/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheObserver receives hit/miss/error results; metrics.Metrics satisfies it.
type CacheObserver interface {
	CacheResult(result string)
}

type cachedService struct {
	Service
	rdb      redis.UniversalClient
	ttl      time.Duration
	observer CacheObserver
}

// NewCachedService puts a read-through redis cache in front of product detail
// reads. Writes that change a product drop its entry.
func NewCachedService(next Service, rdb redis.UniversalClient, ttl time.Duration, observer CacheObserver) Service {
	return &cachedService{
		Service:  next,
		rdb:      rdb,
		ttl:      ttl,
		observer: observer,
	}
}

const productKeyPrefix = "catalog:product:"

func productKey(id uuid.UUID) string {
	return fmt.Sprintf("%s%s", productKeyPrefix, id)
}

func (s *cachedService) observe(result string) {
	if s.observer != nil {
		s.observer.CacheResult(result)
	}
}

func (s *cachedService) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "cache"),
		zap.String("product_id", id.String()),
	)
	key := productKey(id)

	val, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var product Product
		if jsonErr := json.Unmarshal(val, &product); jsonErr == nil {
			s.observe("hit")
			return &product, nil
		}
		log.Warn("dropping undecodable cache entry")
		s.rdb.Del(ctx, key)
	case errors.Is(err, redis.Nil):
		s.observe("miss")
	default:
		s.observe("error")
		log.Warn("cache read failed, falling back to database", zap.Error(err))
	}

	product, err := s.Service.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
			log.Warn("cache write failed", zap.Error(err))
		}
	}

	return product, nil
}

func (s *cachedService) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.rdb.Del(ctx, productKey(id)).Err(); err != nil {
		logger.FromCtx(ctx).Warn("cache invalidation failed",
			zap.String("layer", "cache"),
			zap.String("product_id", id.String()),
			zap.Error(err),
		)
	}
}

func (s *cachedService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.Service.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *cachedService) AssignTags(ctx context.Context, productID uuid.UUID, names []string) error {
	if err := s.Service.AssignTags(ctx, productID, names); err != nil {
		return err
	}
	s.invalidate(ctx, productID)
	return nil
}

func (s *cachedService) SetVariantStock(ctx context.Context, variantID uuid.UUID, qty int) (uuid.UUID, error) {
	productID, err := s.Service.SetVariantStock(ctx, variantID, qty)
	if err != nil {
		return uuid.Nil, err
	}
	s.invalidate(ctx, productID)
	return productID, nil
}

func (s *cachedService) PresignImageUpload(ctx context.Context, productID uuid.UUID, filename, contentType string) (*ImageUpload, error) {
	upload, err := s.Service.PresignImageUpload(ctx, productID, filename, contentType)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, productID)
	return upload, nil
}

// invalidateAll drops every cached product. Tag renames and deletes touch an
// unknown set of products.
func (s *cachedService) invalidateAll(ctx context.Context) {
	iter := s.rdb.Scan(ctx, 0, productKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.FromCtx(ctx).Warn("cache scan failed", zap.String("layer", "cache"), zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		logger.FromCtx(ctx).Warn("cache invalidation failed",
			zap.String("layer", "cache"),
			zap.Int("keys", len(keys)),
			zap.Error(err),
		)
	}
}

func (s *cachedService) UpdateTag(ctx context.Context, id uuid.UUID, name string) (*Tag, error) {
	tag, err := s.Service.UpdateTag(ctx, id, name)
	if err != nil {
		return nil, err
	}
	s.invalidateAll(ctx)
	return tag, nil
}

func (s *cachedService) DeleteTag(ctx context.Context, id uuid.UUID) error {
	if err := s.Service.DeleteTag(ctx, id); err != nil {
		return err
	}
	s.invalidateAll(ctx)
	return nil
}
