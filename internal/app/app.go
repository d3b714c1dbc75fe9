// Package app wires the versioning and ingestion pipeline: analyze text,
// persist draft versions, validate and upload assets, publish products.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ideamint/pkg/analyze"
	"ideamint/pkg/asset"
	"ideamint/pkg/domain"
	"ideamint/pkg/notify"
	"ideamint/pkg/storage"
	"ideamint/pkg/store"
	"ideamint/pkg/title"
)

var (
	// ErrForbidden indicates the actor does not own the targeted entity.
	ErrForbidden = errors.New("forbidden")
	// ErrContentRequired indicates publication without a content file.
	ErrContentRequired = errors.New("content file required")
)

// FileUpload is a binary file handed to the pipeline.
type FileUpload struct {
	Reader      io.Reader
	SizeBytes   int64
	ContentType string
}

// PublishRequest carries everything needed to turn a draft into a product.
type PublishRequest struct {
	DraftID     string
	Title       string
	Description string
	PriceCents  int64
	Content     FileUpload
	Preview     *FileUpload
	Progress    storage.ProgressFunc
}

// App is the core application service.
type App struct {
	store    store.Store
	objects  storage.ObjectStore
	analyzer *analyze.Analyzer
	titles   *title.Resolver
	events   notify.Publisher
}

// New constructs the application core.
func New(st store.Store, objects storage.ObjectStore, analyzer *analyze.Analyzer, titles *title.Resolver, events notify.Publisher) *App {
	if events == nil {
		events = notify.NopPublisher{}
	}
	return &App{
		store:    st,
		objects:  objects,
		analyzer: analyzer,
		titles:   titles,
		events:   events,
	}
}

// SaveDraft analyzes raw text and persists a new immutable draft version for
// the actor. The store assigns the version.
func (a *App) SaveDraft(ctx context.Context, actor domain.Actor, rawText, draftTitle string) (domain.Draft, error) {
	if rawText == "" {
		return domain.Draft{}, errors.New("content required")
	}
	analysis := a.analyzer.Analyze(ctx, rawText)
	draft := domain.Draft{
		ID:        uuid.NewString(),
		OwnerID:   actor.ID,
		Title:     draftTitle,
		Content:   rawText,
		Chapters:  analysis.Chapters,
		WordCount: analysis.WordCount,
		CreatedAt: time.Now().UTC(),
	}
	saved, err := a.store.SaveDraft(draft)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("save draft: %w", err)
	}
	return saved, nil
}

// ListDrafts returns the actor's drafts, most recent version first.
func (a *App) ListDrafts(actor domain.Actor) ([]domain.Draft, error) {
	return a.store.ListDrafts(actor.ID)
}

// DeleteDraft removes one of the actor's drafts by ID.
func (a *App) DeleteDraft(actor domain.Actor, id string) error {
	draft, ok, err := a.store.GetDraft(id)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	if draft.OwnerID != actor.ID {
		return ErrForbidden
	}
	return a.store.DeleteDraft(id)
}

// Analyze structures raw text without persisting anything.
func (a *App) Analyze(ctx context.Context, rawText string) analyze.Analysis {
	return a.analyzer.Analyze(ctx, rawText)
}

// CheckTitle reports advisory title uniqueness.
func (a *App) CheckTitle(candidate string) title.CheckResult {
	return a.titles.CheckTitle(candidate)
}

// SuggestTitles proposes titles for content in a category.
func (a *App) SuggestTitles(ctx context.Context, content, category string) []string {
	return a.titles.SuggestTitles(ctx, content, category)
}

// Publish turns one of the actor's drafts into a saleable product. The
// content file is required; the preview image is optional. Assets upload
// concurrently, and a partial failure removes whatever already landed so no
// half-published product is observable.
func (a *App) Publish(ctx context.Context, actor domain.Actor, req PublishRequest) (domain.Product, error) {
	draft, ok, err := a.store.GetDraft(req.DraftID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("load draft: %w", err)
	}
	if !ok {
		return domain.Product{}, store.ErrNotFound
	}
	if draft.OwnerID != actor.ID {
		return domain.Product{}, ErrForbidden
	}
	if req.Content.Reader == nil {
		return domain.Product{}, ErrContentRequired
	}
	if req.PriceCents < 0 {
		return domain.Product{}, errors.New("price must not be negative")
	}

	if check := a.titles.CheckTitle(req.Title); !check.IsUnique {
		slog.Info("publishing with a colliding title", "title", req.Title, "suggested", check.Suggested)
	}

	contentDesc, err := asset.Validate(asset.ContentUpload(), actor.ID, req.Content.ContentType, req.Content.SizeBytes)
	if err != nil {
		return domain.Product{}, err
	}
	var previewDesc asset.Descriptor
	if req.Preview != nil {
		previewDesc, err = asset.Validate(asset.PreviewUpload(), actor.ID, req.Preview.ContentType, req.Preview.SizeBytes)
		if err != nil {
			return domain.Product{}, err
		}
	}

	contentReader := req.Content.Reader
	if contentDesc.ContentType == "application/pdf" {
		var wordCount int
		contentReader, wordCount = a.pdfWordCount(req.Content, draft.WordCount)
		if wordCount != draft.WordCount {
			slog.Info("pdf word count differs from draft analysis", "draft_id", draft.ID, "draft_words", draft.WordCount, "pdf_words", wordCount)
		}
	}

	productID := uuid.NewString()
	contentRef := domain.AssetRef{Bucket: contentDesc.Bucket, StorageKey: contentDesc.StorageKey, OwnerContext: productID}
	previewRef := domain.AssetRef{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		url, err := a.objects.Upload(gctx, contentDesc.Bucket, contentDesc.StorageKey, contentReader, req.Content.SizeBytes, contentDesc.ContentType, req.Progress)
		if err != nil {
			return err
		}
		contentRef.PublicURL = url
		return nil
	})
	if req.Preview != nil {
		previewRef = domain.AssetRef{Bucket: previewDesc.Bucket, StorageKey: previewDesc.StorageKey, OwnerContext: productID}
		g.Go(func() error {
			url, err := a.objects.Upload(gctx, previewDesc.Bucket, previewDesc.StorageKey, req.Preview.Reader, req.Preview.SizeBytes, previewDesc.ContentType, nil)
			if err != nil {
				return err
			}
			previewRef.PublicURL = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.removeUploaded(contentRef, previewRef)
		return domain.Product{}, fmt.Errorf("upload assets: %w", err)
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:           productID,
		OwnerID:      actor.ID,
		Title:        req.Title,
		Description:  req.Description,
		ContentAsset: contentRef,
		PreviewAsset: previewRef,
		PriceCents:   req.PriceCents,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveProduct(product); err != nil {
		a.removeUploaded(contentRef, previewRef)
		return domain.Product{}, fmt.Errorf("save product: %w", err)
	}
	a.publishChange(ctx)
	return product, nil
}

// Withdraw deactivates one of the actor's products. The row and its assets
// stay; only availability changes.
func (a *App) Withdraw(ctx context.Context, actor domain.Actor, productID string) error {
	product, ok, err := a.store.GetProduct(productID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	if product.OwnerID != actor.ID {
		return ErrForbidden
	}
	if err := a.store.DeactivateProduct(productID); err != nil {
		return err
	}
	a.publishChange(ctx)
	return nil
}

// ListProducts returns the actor's products, newest first.
func (a *App) ListProducts(actor domain.Actor) ([]domain.Product, error) {
	return a.store.ListProductsByOwner(actor.ID)
}

// UploadAvatar validates and stores a profile image for the actor.
func (a *App) UploadAvatar(ctx context.Context, actor domain.Actor, file FileUpload) (domain.AssetRef, error) {
	desc, err := asset.Validate(asset.AvatarUpload(), actor.ID, file.ContentType, file.SizeBytes)
	if err != nil {
		return domain.AssetRef{}, err
	}
	url, err := a.objects.Upload(ctx, desc.Bucket, desc.StorageKey, file.Reader, file.SizeBytes, desc.ContentType, nil)
	if err != nil {
		return domain.AssetRef{}, err
	}
	return domain.AssetRef{
		Bucket:       desc.Bucket,
		StorageKey:   desc.StorageKey,
		PublicURL:    url,
		OwnerContext: actor.ID,
	}, nil
}

// pdfWordCount buffers a PDF upload so its text can be extracted, returning a
// replacement reader and the recomputed word count. On extraction failure the
// draft's count stands.
func (a *App) pdfWordCount(file FileUpload, fallback int) (io.Reader, int) {
	data, err := io.ReadAll(file.Reader)
	if err != nil {
		slog.Warn("pdf buffering failed, keeping draft word count", "err", err)
		return bytes.NewReader(data), fallback
	}
	text, err := analyze.ExtractPDFText(data)
	if err != nil {
		slog.Warn("pdf text extraction failed, keeping draft word count", "err", err)
		return bytes.NewReader(data), fallback
	}
	return bytes.NewReader(data), analyze.CountWords(text)
}

func (a *App) removeUploaded(refs ...domain.AssetRef) {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, ref := range refs {
		if ref.StorageKey == "" || ref.PublicURL == "" {
			continue
		}
		if err := a.objects.Remove(cleanupCtx, ref.Bucket, ref.StorageKey); err != nil {
			slog.Warn("orphaned asset not removed", "bucket", ref.Bucket, "key", ref.StorageKey, "err", err)
		}
	}
}

func (a *App) publishChange(ctx context.Context) {
	if err := a.events.Publish(ctx, notify.KindProducts); err != nil {
		slog.Warn("product change event not delivered", "err", err)
	}
}
