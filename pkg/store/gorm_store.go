package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"ideamint/pkg/domain"
)

const migrateLockID int64 = 58215821

// maxVersionRetries bounds retry-on-conflict during draft version assignment.
const maxVersionRetries = 5

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&DraftModel{}, &ProductModel{}, &MintRequestModel{}, &PurchaseModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveDraft assigns max(version)+1 for the owner and inserts the row. The
// unique index on (owner_id, version) is the serialization point; a losing
// writer retries with a fresh read of the maximum.
func (s *GormStore) SaveDraft(d domain.Draft) (domain.Draft, error) {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		var max sql.NullInt64
		if err := s.db.Model(&DraftModel{}).
			Where("owner_id = ?", d.OwnerID).
			Select("MAX(version)").
			Scan(&max).Error; err != nil {
			return domain.Draft{}, fmt.Errorf("read max version: %w", err)
		}
		d.Version = int(max.Int64) + 1
		model := draftToModel(d)
		err := s.db.Create(&model).Error
		if err == nil {
			return draftFromModel(model), nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return domain.Draft{}, fmt.Errorf("insert draft: %w", err)
	}
	return domain.Draft{}, fmt.Errorf("%w: owner %s", ErrVersionExhausted, d.OwnerID)
}

// ListDrafts returns an owner's drafts, most recent version first.
func (s *GormStore) ListDrafts(ownerID string) ([]domain.Draft, error) {
	var models []DraftModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("version DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	drafts := make([]domain.Draft, 0, len(models))
	for _, m := range models {
		drafts = append(drafts, draftFromModel(m))
	}
	return drafts, nil
}

// GetDraft retrieves a draft by ID.
func (s *GormStore) GetDraft(id string) (domain.Draft, bool, error) {
	var model DraftModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Draft{}, false, nil
		}
		return domain.Draft{}, false, err
	}
	return draftFromModel(model), true, nil
}

// DeleteDraft removes one draft. Versions are never renumbered afterwards.
func (s *GormStore) DeleteDraft(id string) error {
	res := s.db.Delete(&DraftModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveProduct stores or updates a product.
func (s *GormStore) SaveProduct(p domain.Product) error {
	model := productToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "content_bucket", "content_key", "content_url",
			"preview_bucket", "preview_key", "preview_url", "price_cents", "is_active", "updated_at",
		}),
	}).Create(&model).Error
}

// GetProduct retrieves a product by ID.
func (s *GormStore) GetProduct(id string) (domain.Product, bool, error) {
	var model ProductModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Product{}, false, nil
		}
		return domain.Product{}, false, err
	}
	return productFromModel(model), true, nil
}

// ListProductsByOwner returns a creator's products, newest first.
func (s *GormStore) ListProductsByOwner(ownerID string) ([]domain.Product, error) {
	var models []ProductModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(models))
	for _, m := range models {
		products = append(products, productFromModel(m))
	}
	return products, nil
}

// DeactivateProduct withdraws a product from sale.
func (s *GormStore) DeactivateProduct(id string) error {
	res := s.db.Model(&ProductModel{}).Where("id = ?", id).Updates(map[string]any{
		"is_active":  false,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveTitleMatches finds active products whose title equals or starts with
// the candidate, case-insensitively.
func (s *GormStore) ActiveTitleMatches(candidate string) ([]string, error) {
	pattern := likeEscape(strings.ToLower(strings.TrimSpace(candidate))) + "%"
	var titles []string
	if err := s.db.Model(&ProductModel{}).
		Where("is_active = ? AND LOWER(title) LIKE ?", true, pattern).
		Pluck("title", &titles).Error; err != nil {
		return nil, err
	}
	return titles, nil
}

func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// CreateMintRequest inserts a new pending request.
func (s *GormStore) CreateMintRequest(r domain.MintRequest) error {
	model := mintToModel(r)
	return s.db.Create(&model).Error
}

// GetMintRequest retrieves a mint request by ID.
func (s *GormStore) GetMintRequest(id string) (domain.MintRequest, bool, error) {
	var model MintRequestModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.MintRequest{}, false, nil
		}
		return domain.MintRequest{}, false, err
	}
	return mintFromModel(model), true, nil
}

// ListMintRequestsByOwner returns an owner's mint requests, newest first.
func (s *GormStore) ListMintRequestsByOwner(ownerID string) ([]domain.MintRequest, error) {
	var models []MintRequestModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	reqs := make([]domain.MintRequest, 0, len(models))
	for _, m := range models {
		reqs = append(reqs, mintFromModel(m))
	}
	return reqs, nil
}

// CountPendingMintRequests counts pending requests for a product.
func (s *GormStore) CountPendingMintRequests(productID string) (int, error) {
	var count int64
	if err := s.db.Model(&MintRequestModel{}).
		Where("product_id = ? AND status = ?", productID, string(domain.MintPending)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CompleteMintRequest transitions a pending request to a terminal status.
// The status guard in the WHERE clause makes duplicate confirmation delivery
// lose cleanly instead of overwriting a terminal row.
func (s *GormStore) CompleteMintRequest(id string, status domain.MintStatus, txnHash, metadataURL string) error {
	res := s.db.Model(&MintRequestModel{}).
		Where("id = ? AND status = ?", id, string(domain.MintPending)).
		Updates(map[string]any{
			"status":       string(status),
			"txn_hash":     txnHash,
			"metadata_url": metadataURL,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, ok, err := s.GetMintRequest(id); err != nil {
			return err
		} else if !ok {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

// CreatePurchase inserts an immutable purchase row.
func (s *GormStore) CreatePurchase(p domain.Purchase) error {
	model := purchaseToModel(p)
	return s.db.Create(&model).Error
}

// ListPurchasesByBuyer returns a buyer's purchases, newest first.
func (s *GormStore) ListPurchasesByBuyer(buyerID string) ([]domain.Purchase, error) {
	var models []PurchaseModel
	if err := s.db.Where("buyer_id = ?", buyerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	purchases := make([]domain.Purchase, 0, len(models))
	for _, m := range models {
		purchases = append(purchases, purchaseFromModel(m))
	}
	return purchases, nil
}

func draftToModel(d domain.Draft) DraftModel {
	chapters, _ := json.Marshal(d.Chapters)
	return DraftModel{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Version:   d.Version,
		Title:     d.Title,
		Content:   d.Content,
		Chapters:  chapters,
		WordCount: d.WordCount,
		CreatedAt: d.CreatedAt,
	}
}

func draftFromModel(m DraftModel) domain.Draft {
	var chapters []string
	if len(m.Chapters) > 0 {
		_ = json.Unmarshal(m.Chapters, &chapters)
	}
	return domain.Draft{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Version:   m.Version,
		Title:     m.Title,
		Content:   m.Content,
		Chapters:  chapters,
		WordCount: m.WordCount,
		CreatedAt: m.CreatedAt,
	}
}

func productToModel(p domain.Product) ProductModel {
	return ProductModel{
		ID:            p.ID,
		OwnerID:       p.OwnerID,
		Title:         p.Title,
		Description:   p.Description,
		ContentBucket: p.ContentAsset.Bucket,
		ContentKey:    p.ContentAsset.StorageKey,
		ContentURL:    p.ContentAsset.PublicURL,
		PreviewBucket: p.PreviewAsset.Bucket,
		PreviewKey:    p.PreviewAsset.StorageKey,
		PreviewURL:    p.PreviewAsset.PublicURL,
		PriceCents:    p.PriceCents,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func productFromModel(m ProductModel) domain.Product {
	return domain.Product{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Title:       m.Title,
		Description: m.Description,
		ContentAsset: domain.AssetRef{
			Bucket:       m.ContentBucket,
			StorageKey:   m.ContentKey,
			PublicURL:    m.ContentURL,
			OwnerContext: m.ID,
		},
		PreviewAsset: domain.AssetRef{
			Bucket:       m.PreviewBucket,
			StorageKey:   m.PreviewKey,
			PublicURL:    m.PreviewURL,
			OwnerContext: m.ID,
		},
		PriceCents: m.PriceCents,
		IsActive:   m.IsActive,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func mintToModel(r domain.MintRequest) MintRequestModel {
	return MintRequestModel{
		ID:          r.ID,
		ProductID:   r.ProductID,
		OwnerID:     r.OwnerID,
		Status:      string(r.Status),
		TxnHash:     r.TxnHash,
		MetadataURL: r.MetadataURL,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func mintFromModel(m MintRequestModel) domain.MintRequest {
	return domain.MintRequest{
		ID:          m.ID,
		ProductID:   m.ProductID,
		OwnerID:     m.OwnerID,
		Status:      domain.MintStatus(m.Status),
		TxnHash:     m.TxnHash,
		MetadataURL: m.MetadataURL,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func purchaseToModel(p domain.Purchase) PurchaseModel {
	return PurchaseModel{
		ID:         p.ID,
		BuyerID:    p.BuyerID,
		ProductID:  p.ProductID,
		PriceCents: p.PriceCents,
		CreatedAt:  p.CreatedAt,
	}
}

func purchaseFromModel(m PurchaseModel) domain.Purchase {
	return domain.Purchase{
		ID:         m.ID,
		BuyerID:    m.BuyerID,
		ProductID:  m.ProductID,
		PriceCents: m.PriceCents,
		CreatedAt:  m.CreatedAt,
	}
}
