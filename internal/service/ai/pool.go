package ai

import (
	"context"
	"fmt"
	"sync"
)

// Pool lends independently loaded engines to one inference at a time.
type Pool struct {
	// idle engines
	engines chan Engine
	// every engine the pool owns, closed on shutdown
	all    []Engine
	layout Layout
	closed chan struct{}
	close  sync.Once
}

// NewPool loads size engines through open. All engines must share the same layout.
func NewPool(size int, open func() (Engine, error)) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}

	p := &Pool{
		engines: make(chan Engine, size),
		closed:  make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		engine, err := open()
		if err != nil {
			// close any instances created before the error
			p.Close()
			return nil, fmt.Errorf("failed to load engine %d: %w", i, err)
		}

		if i == 0 {
			p.layout = engine.Layout()
		} else if !sameLayout(p.layout, engine.Layout()) {
			engine.Close()
			p.Close()
			return nil, fmt.Errorf("%w: engine %d layout differs from engine 0", ErrModelLayout, i)
		}

		p.all = append(p.all, engine)
		p.engines <- engine
	}

	return p, nil
}

// Get waits for an idle engine. The caller owns it until Return.
func (p *Pool) Get(ctx context.Context) (Engine, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}

	select {
	case engine := <-p.engines:
		return engine, nil
	case <-p.closed:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Return hands an engine back to the pool.
func (p *Pool) Return(engine Engine) {
	p.engines <- engine
}

// Infer runs one inference on a borrowed engine.
func (p *Pool) Infer(ctx context.Context, input *Tensor) (*Outputs, error) {
	engine, err := p.Get(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Return(engine)

	return engine.Infer(input)
}

// Layout returns the layout shared by all engines.
func (p *Pool) Layout() Layout {
	return p.layout
}

// Size returns the number of engines in the pool.
func (p *Pool) Size() int {
	return len(p.all)
}

// Close waits for borrowed engines to come back and closes every engine once.
func (p *Pool) Close() {
	p.close.Do(func() {
		close(p.closed)

		for range p.all {
			engine := <-p.engines
			_ = engine.Close()
		}
	})
}

func sameLayout(a, b Layout) bool {
	if a.Height != b.Height || a.Width != b.Width || a.InputType != b.InputType ||
		a.Detections != b.Detections || len(a.Outputs) != len(b.Outputs) {
		return false
	}
	return true
}
