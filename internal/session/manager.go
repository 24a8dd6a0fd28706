package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Ajamillion/receptive/internal/asr"
	"github.com/Ajamillion/receptive/internal/audio"
	"github.com/Ajamillion/receptive/internal/enrich"
	"github.com/Ajamillion/receptive/internal/metrics"
	"github.com/Ajamillion/receptive/internal/transcript"
)

// ErrDuplicateCall is returned when a start event names a call that already
// has a live session
var ErrDuplicateCall = errors.New("session already exists for call")

// GuardPolicy caps how long a call may run
type GuardPolicy struct {
	Enabled     bool
	MaxDuration time.Duration
}

// Config contains the knobs the manager hands to each new session
type Config struct {
	InputSampleRate  int
	TargetSampleRate int
	Guard            GuardPolicy
	EnrichInterval   time.Duration
	EnrichTimeout    time.Duration
}

// Manager owns all live sessions. It acquires engine capacity for new calls
// and builds each session's pipeline.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	config     Config
	pool       *asr.Pool
	summarizer enrich.Summarizer
	sink       Sink
	metrics    *metrics.Metrics
	logger     *slog.Logger

	// now is replaceable for tests
	now func() time.Time
}

// NewManager creates a session manager
func NewManager(config Config, pool *asr.Pool, summarizer enrich.Summarizer, sink Sink, m *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		config:     config,
		pool:       pool,
		summarizer: summarizer,
		sink:       sink,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// StartSession builds the pipeline for a new call. It fails with
// asr.ErrCapacity when no engine slot is free, before any session state is
// created.
func (m *Manager) StartSession(ctx context.Context, callID, streamID string) (*Session, error) {
	session, err := m.register(callID, streamID)
	if err != nil {
		return nil, err
	}

	// outside the registry lock: the sink write is network I/O
	m.sink.CallStarted(ctx, callID, streamID, session.StartedAt)

	m.logger.Info("Session started",
		slog.String("call_id", callID),
		slog.String("stream_id", streamID),
		slog.Int("engines_in_use", m.pool.InUse()))

	return session, nil
}

// register acquires capacity, builds the pipeline, and claims the call ID
func (m *Manager) register(callID, streamID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[callID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCall, callID)
	}

	engine, err := m.pool.Acquire()
	if err != nil {
		if errors.Is(err, asr.ErrCapacity) {
			m.metrics.RecordCapacityReject()
		}
		return nil, err
	}

	adapter := asr.NewAdapter(engine)

	normalizer, err := audio.NewNormalizer(m.config.InputSampleRate, m.config.TargetSampleRate)
	if err != nil {
		adapter.Release()
		return nil, err
	}

	session := m.newSession(callID, streamID, normalizer, adapter)
	m.sessions[callID] = session

	m.metrics.RecordSessionCreated()
	m.metrics.SetActiveSessions(len(m.sessions))

	return session, nil
}

// newSession assembles a session around an already-acquired recognizer
func (m *Manager) newSession(callID, streamID string, normalizer *audio.Normalizer, recognizer Recognizer) *Session {
	session := &Session{
		CallID:     callID,
		StreamID:   streamID,
		StartedAt:  m.now(),
		state:      StateConnected,
		normalizer: normalizer,
		frames:     audio.NewFrameBuffer(recognizer.FrameSizeBytes()),
		recognizer: recognizer,
		transcript: transcript.NewState(),
		enricher:   enrich.NewThrottler(m.summarizer, m.config.EnrichInterval, m.config.EnrichTimeout, m.logger),
		manager:    m,
	}
	session.updateSnapshot()
	return session
}

// guardExpired reports whether the duration guard should stop a call that
// started at the given time
func (m *Manager) guardExpired(startedAt time.Time) bool {
	if !m.config.Guard.Enabled {
		return false
	}
	return m.now().Sub(startedAt) >= m.config.Guard.MaxDuration
}

// remove drops a finished session from the registry and records its outcome
func (m *Manager) remove(s *Session, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, s.CallID)
	m.metrics.SetActiveSessions(len(m.sessions))
	m.metrics.RecordSessionCompleted(status, duration.Seconds())
}

// Get returns the live session for a call, if any
func (m *Manager) Get(callID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[callID]
	return session, exists
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Snapshots returns the public view of all live sessions, ordered by call ID
func (m *Manager) Snapshots() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Snapshot())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CallID < infos[j].CallID
	})
	return infos
}

// Shutdown completes every live session. Used during graceful shutdown so
// engines are released and call documents reach a terminal status.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.Stop(ctx)
	}

	m.logger.Info("All sessions stopped", slog.Int("count", len(sessions)))
}
