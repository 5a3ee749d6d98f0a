package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/seramic/shop-backend/pkg/config"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/metrics"
	"github.com/seramic/shop-backend/pkg/storage"
)

const jpegType = "image/jpeg"

// Upload is one file taken from a multipart request.
type Upload struct {
	Field    string
	Filename string
	Data     []byte
}

// rendition is one resized output written next to the original.
type rendition struct {
	suffix string
	size   int
	crop   bool
}

var productRenditions = []rendition{
	{suffix: "thumbnail", size: 150, crop: true},
	{suffix: "medium", size: 400},
	{suffix: "large", size: 800},
}

// Pipeline validates, resizes and stores images. A failed batch leaves no
// objects behind.
type Pipeline struct {
	store      storage.ObjectStore
	folder     string
	cfg        config.MediaConfig
	metrics    *metrics.DomainMetrics
	logg       *logger.Logger
	newID      func() string
	maxBytes   int64
	keepFailed bool
}

type PipelineParams struct {
	Store   storage.ObjectStore
	Folder  string
	Config  config.MediaConfig
	Metrics *metrics.DomainMetrics
	Logger  *logger.Logger

	// KeepFailedUploads leaves objects from a failed batch in the bucket.
	KeepFailedUploads bool
}

func NewPipeline(params PipelineParams) (*Pipeline, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("object store required")
	}
	cfg := params.Config
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}
	if cfg.MaxGalleryFiles <= 0 {
		cfg.MaxGalleryFiles = 10
	}
	if cfg.ImageMaxSize <= 0 {
		cfg.ImageMaxSize = 1200
	}
	if cfg.AvatarSize <= 0 {
		cfg.AvatarSize = 300
	}
	if cfg.ImageQuality <= 0 || cfg.ImageQuality > 100 {
		cfg.ImageQuality = 90
	}
	return &Pipeline{
		store:      params.Store,
		folder:     params.Folder,
		cfg:        cfg,
		metrics:    params.Metrics,
		logg:       params.Logger,
		newID:      func() string { return uuid.NewString() },
		maxBytes:   cfg.MaxUploadBytes(),
		keepFailed: params.KeepFailedUploads,
	}, nil
}

// MaxGalleryFiles is the per-request cap on gallery uploads.
func (p *Pipeline) MaxGalleryFiles() int { return p.cfg.MaxGalleryFiles }

// MaxUploadBytes is the per-file ceiling.
func (p *Pipeline) MaxUploadBytes() int64 { return p.maxBytes }

// ProductImages stores every upload concurrently and returns the gallery
// entries in upload order. The first entry is marked primary.
func (p *Pipeline) ProductImages(ctx context.Context, uploads []Upload, alt string) ([]models.ProductImage, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	if len(uploads) > p.cfg.MaxGalleryFiles+1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("At most %d images can be uploaded at once", p.cfg.MaxGalleryFiles+1))
	}
	for _, u := range uploads {
		if err := p.checkSize(u); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	tracker := &keyTracker{}
	images := make([]models.ProductImage, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	for i := range uploads {
		i := i
		g.Go(func() error {
			img, err := p.productImage(gctx, tracker, uploads[i])
			if err != nil {
				return err
			}
			img.Alt = alt
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.metrics.UploadBatch(enums.MediaKindProduct.String(), false, time.Since(start))
		p.compensate(ctx, tracker.all())
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "image upload failed")
	}
	p.metrics.UploadBatch(enums.MediaKindProduct.String(), true, time.Since(start))
	return models.NormalizePrimaryImage(images), nil
}

// Avatar stores a square crop and returns its public URL and object key.
func (p *Pipeline) Avatar(ctx context.Context, userID uuid.UUID, upload Upload) (string, string, error) {
	if err := p.checkSize(upload); err != nil {
		return "", "", err
	}
	start := time.Now()
	img, err := p.decode(upload)
	if err != nil {
		p.metrics.UploadBatch(enums.MediaKindAvatar.String(), false, time.Since(start))
		return "", "", err
	}
	key := storage.ObjectKey(p.folder, "avatars", userID.String()+"-"+p.newID()+".jpg")
	square := imaging.Fill(img, p.cfg.AvatarSize, p.cfg.AvatarSize, imaging.Center, imaging.Lanczos)
	url, err := p.put(ctx, key, square)
	if err != nil {
		p.metrics.UploadBatch(enums.MediaKindAvatar.String(), false, time.Since(start))
		return "", "", pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "avatar upload failed")
	}
	p.metrics.UploadBatch(enums.MediaKindAvatar.String(), true, time.Since(start))
	return url, key, nil
}

// RemoveImages deletes the original and every rendition of each image.
// Missing objects are not an error for the caller to act on; all failures are
// combined into one.
func (p *Pipeline) RemoveImages(ctx context.Context, images []models.ProductImage) error {
	var keys []string
	for _, img := range images {
		if img.PublicID == "" {
			continue
		}
		keys = append(keys, objectKeys(img.PublicID)...)
	}
	return p.deleteAll(ctx, keys)
}

// RemoveObject deletes a single stored object such as an avatar.
func (p *Pipeline) RemoveObject(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return p.deleteAll(ctx, []string{key})
}

func (p *Pipeline) productImage(ctx context.Context, tracker *keyTracker, upload Upload) (models.ProductImage, error) {
	src, err := p.decode(upload)
	if err != nil {
		return models.ProductImage{}, err
	}
	base := storage.ObjectKey(p.folder, "products", p.newID())

	original := imaging.Fit(src, p.cfg.ImageMaxSize, p.cfg.ImageMaxSize, imaging.Lanczos)
	out := models.ProductImage{PublicID: base}
	url, err := p.putTracked(ctx, tracker, base+".jpg", original)
	if err != nil {
		return models.ProductImage{}, err
	}
	out.URL = url
	out.Variants.Original = url

	for _, r := range productRenditions {
		var resized image.Image
		if r.crop {
			resized = imaging.Fill(original, r.size, r.size, imaging.Center, imaging.Lanczos)
		} else {
			resized = imaging.Fit(original, r.size, r.size, imaging.Lanczos)
		}
		url, err := p.putTracked(ctx, tracker, base+"_"+r.suffix+".jpg", resized)
		if err != nil {
			return models.ProductImage{}, err
		}
		switch r.suffix {
		case "thumbnail":
			out.Variants.Thumbnail = url
		case "medium":
			out.Variants.Medium = url
		case "large":
			out.Variants.Large = url
		}
	}
	return out, nil
}

func (p *Pipeline) checkSize(u Upload) error {
	if len(u.Data) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Uploaded file is empty").
			WithDetails(map[string]string{u.Field: "empty"})
	}
	if int64(len(u.Data)) > p.maxBytes {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Each file must be at most %d MB", p.cfg.MaxUploadMB)).
			WithDetails(map[string]string{u.Field: "too large"})
	}
	return nil
}

func (p *Pipeline) decode(u Upload) (image.Image, error) {
	if _, err := sniffImage(u.Field, u.Data); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(u.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Image could not be decoded").
			WithDetails(map[string]string{u.Field: "unreadable image"})
	}
	return img, nil
}

func (p *Pipeline) putTracked(ctx context.Context, tracker *keyTracker, key string, img image.Image) (string, error) {
	url, err := p.put(ctx, key, img)
	if err != nil {
		return "", err
	}
	tracker.add(key)
	return url, nil
}

func (p *Pipeline) put(ctx context.Context, key string, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.cfg.ImageQuality)); err != nil {
		return "", fmt.Errorf("encode %s: %w", key, err)
	}
	return p.store.Put(ctx, key, buf.Bytes(), jpegType)
}

// compensate removes objects written by a failed batch. It runs on a fresh
// context so a cancelled request still cleans up.
func (p *Pipeline) compensate(ctx context.Context, keys []string) {
	if len(keys) == 0 || p.keepFailed {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := p.deleteAll(cleanupCtx, keys); err != nil && p.logg != nil {
		p.logg.Error(p.logg.WithFields(ctx, map[string]any{"keys": len(keys)}), "media.compensating_delete_failed", err)
	}
}

func (p *Pipeline) deleteAll(ctx context.Context, keys []string) error {
	var errs error
	for _, key := range keys {
		if err := p.store.Delete(ctx, key); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errs
}

// objectKeys lists the original and rendition keys stored for a public id.
func objectKeys(publicID string) []string {
	publicID = strings.TrimSuffix(publicID, ".jpg")
	keys := []string{publicID + ".jpg"}
	for _, r := range productRenditions {
		keys = append(keys, publicID+"_"+r.suffix+".jpg")
	}
	return keys
}

type keyTracker struct {
	mu   sync.Mutex
	keys []string
}

func (k *keyTracker) add(key string) {
	k.mu.Lock()
	k.keys = append(k.keys, key)
	k.mu.Unlock()
}

func (k *keyTracker) all() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.keys...)
}
