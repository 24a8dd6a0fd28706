package asr

import (
	"fmt"
	"sync"
	"time"

	pvcheetah "github.com/Picovoice/cheetah/binding/go/v2"
)

// CheetahFactory creates streaming recognition engines backed by the
// Picovoice Cheetah speech-to-text library
type CheetahFactory struct {
	accessKey        string
	endpointDuration time.Duration
	autoPunctuation  bool
}

// NewCheetahFactory creates a factory for Cheetah engines. endpointDuration
// controls how much trailing silence the engine treats as an utterance
// boundary; zero keeps the library default.
func NewCheetahFactory(accessKey string, endpointDuration time.Duration, autoPunctuation bool) *CheetahFactory {
	return &CheetahFactory{
		accessKey:        accessKey,
		endpointDuration: endpointDuration,
		autoPunctuation:  autoPunctuation,
	}
}

// NewEngine initializes one Cheetah instance. Initialization fails when the
// access key is rejected or the licensed instance count is exhausted.
func (f *CheetahFactory) NewEngine() (Engine, error) {
	handle := pvcheetah.NewCheetah(f.accessKey)
	handle.EnableAutomaticPunctuation = f.autoPunctuation
	if f.endpointDuration > 0 {
		handle.EndpointDuration = float32(f.endpointDuration.Seconds())
	}

	if err := handle.Init(); err != nil {
		return nil, fmt.Errorf("cheetah init failed: %w", err)
	}

	return &cheetahEngine{handle: &handle}, nil
}

// cheetahEngine adapts the Cheetah binding to the Engine interface with
// idempotent release
type cheetahEngine struct {
	handle  *pvcheetah.Cheetah
	release sync.Once
}

func (e *cheetahEngine) FrameLength() int {
	return pvcheetah.FrameLength
}

func (e *cheetahEngine) Process(frame []int16) (string, bool, error) {
	return e.handle.Process(frame)
}

func (e *cheetahEngine) Flush() (string, error) {
	return e.handle.Flush()
}

func (e *cheetahEngine) Release() error {
	var err error
	e.release.Do(func() {
		err = e.handle.Delete()
	})
	return err
}
