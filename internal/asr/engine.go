package asr

import (
	"errors"
	"fmt"
)

// ErrCapacity is returned when no engine slot is available. Session creation
// must fail before any session state is stamped connected.
var ErrCapacity = errors.New("speech engine capacity exhausted")

// Engine is one streaming speech recognition instance. An engine is owned by
// exactly one session, processes fixed-size frames sequentially, and must be
// released exactly once on every termination path. Release is safe to call
// more than once.
type Engine interface {
	// FrameLength returns the number of PCM samples required per Process call
	FrameLength() int

	// Process feeds one frame and returns the engine's incremental
	// hypothesis plus whether a natural utterance boundary was detected
	Process(frame []int16) (string, bool, error)

	// Flush drains any transcript trapped in the engine's internal buffer
	Flush() (string, error)

	// Release tears down the underlying engine resources
	Release() error
}

// Factory creates engine instances
type Factory interface {
	NewEngine() (Engine, error)
}

// Pool bounds the number of simultaneously open engines. The underlying
// recognition capability is licensed per concurrent instance, so exhausting
// the pool is a capacity error rather than a transient condition to retry.
type Pool struct {
	factory Factory
	slots   chan struct{}
}

// NewPool wraps a factory with a limit on concurrently open engines
func NewPool(factory Factory, maxEngines int) *Pool {
	if maxEngines < 1 {
		maxEngines = 1
	}
	return &Pool{
		factory: factory,
		slots:   make(chan struct{}, maxEngines),
	}
}

// Acquire creates a new engine, failing with ErrCapacity when the pool is
// exhausted. The returned engine gives its slot back on Release.
func (p *Pool) Acquire() (Engine, error) {
	select {
	case p.slots <- struct{}{}:
	default:
		return nil, ErrCapacity
	}

	engine, err := p.factory.NewEngine()
	if err != nil {
		<-p.slots
		return nil, fmt.Errorf("failed to create speech engine: %w", err)
	}

	return &pooledEngine{Engine: engine, pool: p}, nil
}

// Available returns the number of free engine slots
func (p *Pool) Available() int {
	return cap(p.slots) - len(p.slots)
}

// InUse returns the number of currently held engine slots
func (p *Pool) InUse() int {
	return len(p.slots)
}

// pooledEngine returns its slot to the pool on first release
type pooledEngine struct {
	Engine
	pool     *Pool
	released bool
}

func (e *pooledEngine) Release() error {
	err := e.Engine.Release()
	if !e.released {
		e.released = true
		<-e.pool.slots
	}
	return err
}
