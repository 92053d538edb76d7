package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrolink/api/internal/storage"
)

const jpegQuality = 85

var errImageTooLarge = errors.New("image exceeds size limit")

// ImageTaskPayload is the payload of TypeImageProcess.
type ImageTaskPayload struct {
	S3Key     string `json:"s3_key"`
	ProductID string `json:"product_id"`
}

// processedKey maps an upload key to where its normalised image is stored.
func processedKey(uploadKey string) string {
	return "images/" + strings.TrimPrefix(uploadKey, "uploads/")
}

// normaliseImage shrinks images larger than maxDim on either side into a JPEG
// thumbnail. Images that already fit are returned unchanged.
func normaliseImage(data []byte, contentType string, maxDim uint, maxBytes int64) ([]byte, string, error) {
	if int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("%w: %d > %d bytes", errImageTooLarge, len(data), maxBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if contentType == "" {
		contentType = "image/" + format
	}

	bounds := img.Bounds()
	if uint(bounds.Dx()) <= maxDim && uint(bounds.Dy()) <= maxDim {
		return data, contentType, nil
	}

	var buf bytes.Buffer
	thumb := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// HandleImageProcessTask normalises a confirmed product upload and attaches
// the stored result to the product. Bad payloads and undecodable images are
// dropped without retry.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode image task: %v: %w", err, asynq.SkipRetry)
	}
	productID, err := primitive.ObjectIDFromHex(payload.ProductID)
	if err != nil {
		return fmt.Errorf("image task for invalid product %q: %w", payload.ProductID, asynq.SkipRetry)
	}

	original, contentType, err := p.storageService.GetObject(ctx, payload.S3Key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("upload %s missing: %w", payload.S3Key, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("download %s: %w", payload.S3Key, err)
	}

	maxBytes := int64(p.cfg.ImageMaxSizeMB) << 20
	processed, contentType, err := normaliseImage(original, contentType, uint(p.cfg.ImageMaxDimension), maxBytes)
	if err != nil {
		log.Printf("Rejecting upload %s for product %s: %v", payload.S3Key, payload.ProductID, err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	key := processedKey(payload.S3Key)
	if err := p.storageService.PutObject(ctx, key, contentType, processed); err != nil {
		return fmt.Errorf("upload processed image %s: %w", key, err)
	}
	if err := p.products.AddImage(ctx, productID, key); err != nil {
		return fmt.Errorf("attach image %s to product %s: %w", key, payload.ProductID, err)
	}

	log.Printf("Product %s image ready at %s", payload.ProductID, key)
	return nil
}
