package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"pricewatch/models"
)

// ImageStore is the store slice the image worker needs: products whose
// image has not been mirrored yet, and a way to record the mirrored key.
type ImageStore interface {
	ListProductsMissingImages(ctx context.Context, limit int) ([]models.Product, error)
	SetProductImageKey(ctx context.Context, id uuid.UUID, s3Key string) error
}

// Uploader uploads to S3-compatible storage.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// ImageWorker mirrors product images into object storage so alert emails
// and the UI don't hotlink retailer CDNs.
type ImageWorker struct {
	store      ImageStore
	uploader   Uploader
	httpClient *http.Client
	triggerCh  chan struct{}
}

func NewImageWorker(store ImageStore, uploader Uploader) *ImageWorker {
	return &ImageWorker{
		store:      store,
		uploader:   uploader,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		triggerCh:  make(chan struct{}, 1),
	}
}

// Trigger causes the worker to run a batch immediately.
func (w *ImageWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the worker loop.
func (w *ImageWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Image worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.triggerCh:
			log.Println("Image worker triggered manually")
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *ImageWorker) processBatch(ctx context.Context, batchSize int) {
	products, err := w.store.ListProductsMissingImages(ctx, batchSize)
	if err != nil {
		log.Printf("Image worker: query error: %v", err)
		return
	}

	if len(products) == 0 {
		return
	}

	log.Printf("Image worker: mirroring %d images", len(products))

	var mirrored, failed int
	for i := range products {
		p := &products[i]

		key, err := w.mirror(ctx, p.ImageURL)
		if err != nil {
			log.Printf("Image worker: failed %s: %v", p.ImageURL, err)
			failed++
			continue
		}

		if err := w.store.SetProductImageKey(ctx, p.ID, key); err != nil {
			log.Printf("Image worker: failed to record key for %s: %v", p.ID, err)
			failed++
			continue
		}

		mirrored++

		// Rate limit between downloads
		time.Sleep(200 * time.Millisecond)
	}

	if mirrored > 0 || failed > 0 {
		log.Printf("Image worker: mirrored %d, failed %d", mirrored, failed)
	}
}

// mirror downloads the image, hashes it and uploads it under a
// content-addressed key.
func (w *ImageWorker) mirror(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 20*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	hash := sha256.Sum256(data)
	contentHash := hex.EncodeToString(hash[:])

	ext := guessExtension(imageURL, resp.Header.Get("Content-Type"))
	key := fmt.Sprintf("products/%s/%s%s", contentHash[:2], contentHash, ext)

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	if err := w.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	return key, nil
}

func guessExtension(url, contentType string) string {
	ext := strings.ToLower(path.Ext(url))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}

	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// NoOpUploader skips the actual upload; used until object storage is
// configured.
type NoOpUploader struct{}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	io.Copy(io.Discard, data)
	return nil
}

func NewNoOpUploader() *NoOpUploader {
	return &NoOpUploader{}
}
