package host

import (
	"context"
	"sync"

	"github.com/aretw0/lockbox/pkg/core"
)

// MemoryHost is an in-process core.Host backed by a map. It stands in for an
// embedding application in tests and tooling.
type MemoryHost struct {
	mu        sync.Mutex
	files     core.FileMap
	exchanges int
}

var _ core.Host = (*MemoryHost)(nil)

// NewMemoryHost returns an empty MemoryHost.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{files: make(core.FileMap)}
}

// Exchange implements core.Host.
func (h *MemoryHost) Exchange(ctx context.Context, request core.FileMap) (core.FileMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exchanges++

	resp := make(core.FileMap, len(request))
	for locator, data := range request {
		if data != nil {
			h.files[locator] = append([]byte(nil), data...)
		}
		if stored, ok := h.files[locator]; ok {
			resp[locator] = append([]byte(nil), stored...)
		}
	}
	return resp, nil
}

// Get returns a copy of the bytes stored at locator.
func (h *MemoryHost) Get(locator string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.files[locator]
	return append([]byte(nil), data...), ok
}

// Put stores data at locator directly, as another writer would.
func (h *MemoryHost) Put(locator string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[locator] = append([]byte(nil), data...)
}

// Exchanges returns how many exchanges the host has served.
func (h *MemoryHost) Exchanges() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exchanges
}
