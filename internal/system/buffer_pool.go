package system

import (
	"image"
	"sync"
)

// ImagePool переиспользует холсты image.RGBA одного размера при рендере
// миниатюр.
type ImagePool struct {
	mu    sync.RWMutex
	pools map[image.Point]*sync.Pool
}

func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Point]*sync.Pool)}
}

var defaultPool = NewImagePool()

// GetImage returns a canvas covering rect from the shared pool. Its pixels
// are not cleared.
func GetImage(rect image.Rectangle) *image.RGBA {
	return defaultPool.Get(rect)
}

func PutImage(img *image.RGBA) {
	defaultPool.Put(img)
}

func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	size := rect.Size()
	p.mu.RLock()
	pool, ok := p.pools[size]
	p.mu.RUnlock()

	if !ok {
		p.mu.Lock()
		// Повторная проверка под записью
		if pool, ok = p.pools[size]; !ok {
			pool = &sync.Pool{New: func() any {
				return image.NewRGBA(image.Rectangle{Max: size})
			}}
			p.pools[size] = pool
		}
		p.mu.Unlock()
	}

	img := pool.Get().(*image.RGBA)
	img.Rect = rect
	return img
}

// Put hands img back. Images of sizes the pool never produced are dropped.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, ok := p.pools[img.Rect.Size()]
	p.mu.RUnlock()
	if ok {
		pool.Put(img)
	}
}
