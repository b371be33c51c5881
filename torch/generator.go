package torch

import (
	"runtime"
	"sync"
)

// Generator owns a native random-number-generator handle.
// Same ownership discipline as Tensor: Close releases exactly once, with a
// finalizer safety net.
type Generator struct {
	mu     sync.Mutex
	handle uintptr
}

// NewGenerator creates a generator seeded with seed on the given device.
func NewGenerator(seed int64, device Device) (*Generator, error) {
	n, err := api()
	if err != nil {
		return nil, err
	}

	handle := n.generatorNew(seed, int32(device.Kind), int32(device.Index))
	if handle == 0 {
		return nil, lastError(n, "THSGenerator_new")
	}

	g := &Generator{handle: handle}
	runtime.SetFinalizer(g, func(g *Generator) {
		_ = g.Close()
	})
	return g, nil
}

func (g *Generator) handleOrZero() uintptr {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.handle
}

// ManualSeed reseeds the generator.
func (g *Generator) ManualSeed(seed int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.handle == 0 {
		return ErrClosed
	}

	n, err := api()
	if err != nil {
		return err
	}
	n.generatorManualSeed(g.handle, seed)
	return checkErr(n, "THSGenerator_manual_seed")
}

// InitialSeed returns the seed the generator was created or last reseeded with.
func (g *Generator) InitialSeed() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.handle == 0 {
		return 0, ErrClosed
	}

	n, err := api()
	if err != nil {
		return 0, err
	}
	return n.generatorInitialSeed(g.handle), nil
}

// Close releases the native generator. Idempotent.
func (g *Generator) Close() error {
	if g == nil {
		return nil
	}

	g.mu.Lock()
	handle := g.handle
	g.handle = 0
	g.mu.Unlock()

	if handle == 0 {
		return nil
	}
	runtime.SetFinalizer(g, nil)

	n, err := api()
	if err != nil {
		return nil
	}
	n.generatorDispose(handle)
	return nil
}
