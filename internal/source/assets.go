package source

import (
	"fmt"
	"image"
	"path/filepath"
	"sync"
)

const DefaultDPI = 150

type assetKey struct {
	path string
	page int
}

// Assets decodes each (file, page) once and shares the result between
// render workers. Decoded images are treated as read-only.
type Assets struct {
	root string
	dpi  int

	mu     sync.Mutex
	images map[assetKey]image.Image
	flight map[assetKey]*sync.WaitGroup
	errs   map[assetKey]error
}

// NewAssets resolves relative asset paths against root.
func NewAssets(root string, dpi int) *Assets {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Assets{
		root:   root,
		dpi:    dpi,
		images: make(map[assetKey]image.Image),
		flight: make(map[assetKey]*sync.WaitGroup),
		errs:   make(map[assetKey]error),
	}
}

func (a *Assets) Resolve(path string) string {
	if filepath.IsAbs(path) || a.root == "" {
		return path
	}
	return filepath.Join(a.root, path)
}

// Image returns page of the asset at path, decoding it on first use.
// Concurrent callers for the same key wait for a single decode.
func (a *Assets) Image(path string, page int) (image.Image, error) {
	key := assetKey{path: a.Resolve(path), page: page}

	a.mu.Lock()
	if img, ok := a.images[key]; ok {
		a.mu.Unlock()
		return img, nil
	}
	if err, ok := a.errs[key]; ok {
		a.mu.Unlock()
		return nil, err
	}
	if wg, ok := a.flight[key]; ok {
		a.mu.Unlock()
		wg.Wait()
		return a.Image(path, page)
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	a.flight[key] = wg
	a.mu.Unlock()

	img, err := a.load(key)

	a.mu.Lock()
	if err != nil {
		a.errs[key] = err
	} else {
		a.images[key] = img
	}
	delete(a.flight, key)
	a.mu.Unlock()
	wg.Done()

	return img, err
}

func (a *Assets) load(key assetKey) (image.Image, error) {
	src, err := Open(key.path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	img, err := src.RenderPage(key.page, a.dpi)
	if err != nil {
		return nil, fmt.Errorf("asset %s page %d: %w", key.path, key.page, err)
	}
	return img, nil
}

// Len reports how many pages are cached.
func (a *Assets) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.images)
}
