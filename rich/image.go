package rich

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Image size limits to prevent memory exhaustion when the preview
// eventually decodes the image.
const (
	MaxImageWidth  = 4096             // Maximum width in pixels
	MaxImageHeight = 4096             // Maximum height in pixels
	MaxImageBytes  = 16 * 1024 * 1024 // 16MB uncompressed (RGBA at 4 bytes/pixel)
)

// ErrImageTooLarge is returned for images exceeding the size limits.
var ErrImageTooLarge = errors.New("image too large")

// CachedImage holds the measured dimensions of an image referenced by the
// document. While Loading is true the dimensions are not yet known.
type CachedImage struct {
	Path    string
	Width   int
	Height  int
	Loading bool
	Err     error
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

// LoadImageConfig reads just enough of the image at path (a file path or
// http(s) URL) to learn its format and dimensions.
func LoadImageConfig(path string) (image.Config, error) {
	var r io.ReadCloser
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		resp, err := httpClient.Get(path)
		if err != nil {
			return image.Config{}, fmt.Errorf("failed to fetch image: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return image.Config{}, fmt.Errorf("failed to fetch image: %s", resp.Status)
		}
		r = resp.Body
	} else {
		f, err := os.Open(path)
		if err != nil {
			return image.Config{}, fmt.Errorf("failed to open image file: %w", err)
		}
		r = f
	}
	defer r.Close()

	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return image.Config{}, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width > MaxImageWidth || cfg.Height > MaxImageHeight {
		return image.Config{}, fmt.Errorf("%w: %dx%d (max %dx%d)",
			ErrImageTooLarge, cfg.Width, cfg.Height, MaxImageWidth, MaxImageHeight)
	}
	if cfg.Width*cfg.Height*4 > MaxImageBytes {
		return image.Config{}, fmt.Errorf("%w: uncompressed size exceeds %d bytes",
			ErrImageTooLarge, MaxImageBytes)
	}
	return cfg, nil
}

// ImageCache measures images referenced by the document, synchronously or
// in the background, keeping at most capacity entries.
type ImageCache struct {
	// mu orders placeholder insertion against completed loads.
	mu      sync.Mutex
	entries *lru.Cache[string, *CachedImage]

	load func(path string) (image.Config, error)
}

// NewImageCache creates an image cache with the given capacity.
func NewImageCache(capacity int) *ImageCache {
	entries, _ := lru.New[string, *CachedImage](max(capacity, 1))
	return &ImageCache{entries: entries, load: LoadImageConfig}
}

// Get returns a copy of the cached entry for path.
func (c *ImageCache) Get(path string) (CachedImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ci, ok := c.entries.Peek(path)
	if !ok {
		return CachedImage{}, false
	}
	return *ci, true
}

// Load measures path synchronously, using the cache when possible.
func (c *ImageCache) Load(path string) (CachedImage, error) {
	if ci, ok := c.Get(path); ok && !ci.Loading {
		return ci, ci.Err
	}
	ci := c.measure(path)
	c.store(ci)
	return ci, ci.Err
}

// LoadAsync returns the cached entry for path if present. Otherwise it
// stores a Loading placeholder, measures the image in the background and
// calls onLoaded (if non-nil) once the entry is final.
func (c *ImageCache) LoadAsync(path string, onLoaded func(path string)) (CachedImage, error) {
	c.mu.Lock()
	if ci, ok := c.entries.Get(path); ok {
		c.mu.Unlock()
		return *ci, nil
	}
	placeholder := CachedImage{Path: path, Loading: true}
	c.entries.Add(path, &placeholder)
	c.mu.Unlock()

	go func() {
		ci := c.measure(path)
		c.store(ci)
		if onLoaded != nil {
			onLoaded(path)
		}
	}()
	return placeholder, nil
}

func (c *ImageCache) measure(path string) CachedImage {
	cfg, err := c.load(path)
	if err != nil {
		return CachedImage{Path: path, Err: err}
	}
	return CachedImage{Path: path, Width: cfg.Width, Height: cfg.Height}
}

func (c *ImageCache) store(ci CachedImage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(ci.Path, &ci)
}

// Len returns the number of cached entries.
func (c *ImageCache) Len() int { return c.entries.Len() }
