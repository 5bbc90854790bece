package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"onetee-be/internal/logger"
	"onetee-be/internal/utils"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	ListProducts(ctx context.Context, q ProductQuery) ([]Product, error)
	SearchProducts(ctx context.Context, term string, limit, offset int) ([]Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListTags(ctx context.Context) ([]Tag, error)
	ListCollections(ctx context.Context) ([]Collection, error)

	CreateProduct(ctx context.Context, input NewProductInput) (*Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) (images []string, err error)
	SetVariantStock(ctx context.Context, variantID uuid.UUID, qty int) (productID uuid.UUID, err error)
	CreateTag(ctx context.Context, name string) (*Tag, error)
	CreateCollection(ctx context.Context, input NewCollectionInput) (*Collection, error)
	AssignTags(ctx context.Context, productID uuid.UUID, names []string) error
	AssignCollections(ctx context.Context, productID uuid.UUID, slugs []string) error
	AddProductImage(ctx context.Context, productID uuid.UUID, url string) error

	UpdateTag(ctx context.Context, id uuid.UUID, name string) (*Tag, error)
	DeleteTag(ctx context.Context, id uuid.UUID) error
	UpdateCollection(ctx context.Context, id uuid.UUID, input UpdateCollectionInput) (*Collection, error)
	DeleteCollection(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const productColumns = `
	p.id, p.sku, p.name, p.description, p.gender, p.price_cents, p.currency,
	p.is_active, p.created_at, p.updated_at,
	ARRAY(
		SELECT i.url FROM shop_product_images i
		WHERE i.product_id = p.id
		ORDER BY i.position
	) AS images`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var p Product
	var images []string

	if err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.Gender, &p.PriceCents, &p.Currency,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
		pq.Array(&images),
	); err != nil {
		return nil, err
	}

	p.Images = images
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

func (r *repository) queryProducts(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	return products, rows.Err()
}

func (r *repository) ListProducts(ctx context.Context, q ProductQuery) ([]Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListProducts"),
	)

	var sb strings.Builder
	sb.WriteString("SELECT " + productColumns + " FROM shop_products p WHERE p.is_active = TRUE")

	args := []any{}
	argIndex := 1

	if q.Gender != "" {
		sb.WriteString(fmt.Sprintf(" AND p.gender = $%d", argIndex))
		args = append(args, q.Gender)
		argIndex++
	}

	if q.TagSlug != "" {
		sb.WriteString(fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM shop_product_tags pt
			JOIN shop_tags t ON t.id = pt.tag_id
			WHERE pt.product_id = p.id AND t.slug = $%d)`, argIndex))
		args = append(args, q.TagSlug)
		argIndex++
	}

	if q.CollectionSlug != "" {
		sb.WriteString(fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM shop_product_collections pc
			JOIN shop_collections c ON c.id = pc.collection_id
			WHERE pc.product_id = p.id AND c.slug = $%d AND c.is_active = TRUE)`, argIndex))
		args = append(args, q.CollectionSlug)
		argIndex++
	}

	sb.WriteString(fmt.Sprintf(" ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1))
	args = append(args, q.Limit, q.Offset)

	products, err := r.queryProducts(ctx, sb.String(), args...)
	if err != nil {
		log.Error("failed to list products", zap.Error(err))
		return nil, err
	}

	return products, nil
}

func (r *repository) SearchProducts(ctx context.Context, term string, limit, offset int) ([]Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM shop_products p
		WHERE p.is_active = TRUE
		  AND (
			p.name ILIKE $1
			OR p.description ILIKE $1
			OR EXISTS (
				SELECT 1 FROM shop_product_tags pt
				JOIN shop_tags t ON t.id = pt.tag_id
				WHERE pt.product_id = p.id AND t.name ILIKE $1
			)
		  )
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3`

	products, err := r.queryProducts(ctx, query, "%"+term+"%", limit, offset)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to search products",
			zap.String("layer", "repository"),
			zap.String("term", term),
			zap.Error(err),
		)
		return nil, err
	}
	return products, nil
}

func (r *repository) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM shop_products p WHERE p.id = $1", id)

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Variants, err = r.productVariants(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Tags, err = r.productTags(ctx, id)
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (r *repository) productVariants(ctx context.Context, productID uuid.UUID) ([]Variant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, size, color, stock_qty
		FROM shop_product_variants
		WHERE product_id = $1
		ORDER BY size, color
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	variants := make([]Variant, 0)
	for rows.Next() {
		var v Variant
		var size, color sql.NullString
		if err := rows.Scan(&v.ID, &v.ProductID, &size, &color, &v.StockQty); err != nil {
			return nil, err
		}
		v.Size, v.Color = size.String, color.String
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (r *repository) productTags(ctx context.Context, productID uuid.UUID) ([]Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.slug
		FROM shop_tags t
		JOIN shop_product_tags pt ON pt.tag_id = t.id
		WHERE pt.product_id = $1
		ORDER BY t.name
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTags(rows)
}

func scanTags(rows *sql.Rows) ([]Tag, error) {
	tags := make([]Tag, 0)
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (r *repository) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, slug FROM shop_tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTags(rows)
}

func (r *repository) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, slug, description, is_active
		FROM shop_collections
		WHERE is_active = TRUE
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collections := make([]Collection, 0)
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.IsActive); err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

func (r *repository) CreateProduct(ctx context.Context, input NewProductInput) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateProduct"),
		zap.String("sku", input.SKU),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	p := Product{
		SKU:         input.SKU,
		Name:        input.Name,
		Description: input.Description,
		Gender:      input.Gender,
		PriceCents:  input.PriceCents,
		Currency:    input.Currency,
		IsActive:    active,
		Images:      input.Images,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO shop_products (sku, name, description, gender, price_cents, currency, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, p.SKU, p.Name, p.Description, p.Gender, p.PriceCents, p.Currency, p.IsActive).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSKU
		}
		log.Error("failed to insert product", zap.Error(err))
		return nil, err
	}

	for _, combo := range variantCombinations(input.Sizes, input.Colors) {
		v := Variant{ProductID: p.ID, Size: combo[0], Color: combo[1]}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO shop_product_variants (product_id, size, color, stock_qty)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), 0)
			RETURNING id
		`, p.ID, v.Size, v.Color).Scan(&v.ID)
		if err != nil {
			log.Error("failed to insert variant", zap.Error(err))
			return nil, err
		}
		p.Variants = append(p.Variants, v)
	}

	for pos, url := range input.Images {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO shop_product_images (product_id, url, position)
			VALUES ($1, $2, $3)
		`, p.ID, url, pos); err != nil {
			log.Error("failed to insert image", zap.Error(err))
			return nil, err
		}
	}

	p.Tags, err = attachTags(ctx, tx, p.ID, input.Tags)
	if err != nil {
		log.Error("failed to attach tags", zap.Error(err))
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

// variantCombinations is the cartesian product of sizes and colors. When only
// one dimension is given it yields one variant per value.
func variantCombinations(sizes, colors []string) [][2]string {
	var out [][2]string
	switch {
	case len(sizes) > 0 && len(colors) > 0:
		for _, s := range sizes {
			for _, c := range colors {
				out = append(out, [2]string{s, c})
			}
		}
	case len(sizes) > 0:
		for _, s := range sizes {
			out = append(out, [2]string{s, ""})
		}
	case len(colors) > 0:
		for _, c := range colors {
			out = append(out, [2]string{"", c})
		}
	}
	return out
}

// attachTags upserts tags by slug and links them to the product.
func attachTags(ctx context.Context, tx *sql.Tx, productID uuid.UUID, names []string) ([]Tag, error) {
	tags := make([]Tag, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		name = strings.TrimSpace(name)
		slug := utils.Slugify(name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true

		t := Tag{Name: name, Slug: slug}
		err := tx.QueryRowContext(ctx, `
			INSERT INTO shop_tags (name, slug)
			VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
			RETURNING id, name
		`, t.Name, t.Slug).Scan(&t.ID, &t.Name)
		if err != nil {
			return nil, err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO shop_product_tags (product_id, tag_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, productID, t.ID); err != nil {
			return nil, err
		}

		tags = append(tags, t)
	}

	return tags, nil
}

func (r *repository) DeleteProduct(ctx context.Context, id uuid.UUID) ([]string, error) {
	var images []string
	err := r.db.QueryRowContext(ctx, `
		WITH doomed AS (
			SELECT ARRAY(
				SELECT url FROM shop_product_images WHERE product_id = $1 ORDER BY position
			) AS urls
		)
		DELETE FROM shop_products p
		USING doomed
		WHERE p.id = $1
		RETURNING doomed.urls
	`, id).Scan(pq.Array(&images))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return images, nil
}

func (r *repository) SetVariantStock(ctx context.Context, variantID uuid.UUID, qty int) (uuid.UUID, error) {
	var productID uuid.UUID
	err := r.db.QueryRowContext(ctx, `
		UPDATE shop_product_variants
		SET stock_qty = $2
		WHERE id = $1
		RETURNING product_id
	`, variantID, qty).Scan(&productID)

	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrVariantNotFound
	}
	return productID, err
}

func (r *repository) CreateTag(ctx context.Context, name string) (*Tag, error) {
	t := Tag{Name: strings.TrimSpace(name), Slug: utils.Slugify(name)}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO shop_tags (name, slug) VALUES ($1, $2) RETURNING id
	`, t.Name, t.Slug).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateTag
		}
		return nil, err
	}
	return &t, nil
}

func (r *repository) CreateCollection(ctx context.Context, input NewCollectionInput) (*Collection, error) {
	c := Collection{
		Name:        strings.TrimSpace(input.Name),
		Slug:        utils.Slugify(input.Name),
		Description: input.Description,
		IsActive:    true,
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO shop_collections (name, slug, description, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id
	`, c.Name, c.Slug, c.Description).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCollection
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) AssignTags(ctx context.Context, productID uuid.UUID, names []string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "AssignTags"),
		zap.String("product_id", productID.String()),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err := productExists(ctx, tx, productID); err != nil {
		return err
	}

	if _, err := attachTags(ctx, tx, productID, names); err != nil {
		log.Error("failed to attach tags", zap.Error(err))
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *repository) AssignCollections(ctx context.Context, productID uuid.UUID, slugs []string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "AssignCollections"),
		zap.String("product_id", productID.String()),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err := productExists(ctx, tx, productID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO shop_product_collections (product_id, collection_id)
		SELECT $1, c.id FROM shop_collections c WHERE c.slug = ANY($2)
		ON CONFLICT DO NOTHING
	`, productID, pq.Array(slugs)); err != nil {
		log.Error("failed to assign collections", zap.Error(err))
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// AddProductImage appends url after the product's existing images.
func (r *repository) AddProductImage(ctx context.Context, productID uuid.UUID, url string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "AddProductImage"),
		zap.String("product_id", productID.String()),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	// Locks the product row so concurrent uploads get distinct positions.
	var locked uuid.UUID
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM shop_products WHERE id = $1 FOR UPDATE`, productID,
	).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO shop_product_images (product_id, url, position)
		SELECT $1, $2, COALESCE(MAX(position) + 1, 0)
		FROM shop_product_images
		WHERE product_id = $1
	`, productID, url); err != nil {
		log.Error("failed to insert image", zap.Error(err))
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *repository) UpdateTag(ctx context.Context, id uuid.UUID, name string) (*Tag, error) {
	t := Tag{ID: id, Name: strings.TrimSpace(name), Slug: utils.Slugify(name)}

	res, err := r.db.ExecContext(ctx, `
		UPDATE shop_tags SET name = $2, slug = $3 WHERE id = $1
	`, id, t.Name, t.Slug)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateTag
		}
		return nil, err
	}
	if err := expectOneRow(res, ErrTagNotFound); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTag also detaches the tag from every product.
func (r *repository) DeleteTag(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shop_tags WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, ErrTagNotFound)
}

func (r *repository) UpdateCollection(ctx context.Context, id uuid.UUID, input UpdateCollectionInput) (*Collection, error) {
	c := Collection{
		ID:          id,
		Name:        strings.TrimSpace(input.Name),
		Slug:        utils.Slugify(input.Name),
		Description: input.Description,
	}

	err := r.db.QueryRowContext(ctx, `
		UPDATE shop_collections
		SET name = $2, slug = $3, description = $4, is_active = COALESCE($5, is_active)
		WHERE id = $1
		RETURNING is_active
	`, id, c.Name, c.Slug, c.Description, input.IsActive).Scan(&c.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCollection
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shop_collections WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, ErrCollectionNotFound)
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func productExists(ctx context.Context, tx *sql.Tx, productID uuid.UUID) error {
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM shop_products WHERE id = $1)`, productID,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrProductNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == PgUniqueViolation
}
