package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Ajamillion/receptive/internal/asr"
	"github.com/Ajamillion/receptive/internal/enrich"
	"github.com/Ajamillion/receptive/internal/metrics"
	"github.com/Ajamillion/receptive/internal/statesink"
)

// fakeEngine replays scripted recognition results. Four samples per frame,
// so one frame needs two bytes of companded input audio.
type fakeEngine struct {
	results    []fakeResult
	flushes    []string
	processErr error
	step       int
	flushCalls int
	released   int
}

type fakeResult struct {
	text     string
	endpoint bool
}

func (e *fakeEngine) FrameLength() int { return 4 }

func (e *fakeEngine) Process(frame []int16) (string, bool, error) {
	if e.processErr != nil {
		return "", false, e.processErr
	}
	if e.step >= len(e.results) {
		return "", false, nil
	}
	r := e.results[e.step]
	e.step++
	return r.text, r.endpoint, nil
}

func (e *fakeEngine) Flush() (string, error) {
	e.flushCalls++
	if len(e.flushes) == 0 {
		return "", nil
	}
	text := e.flushes[0]
	e.flushes = e.flushes[1:]
	return text, nil
}

func (e *fakeEngine) Release() error {
	e.released++
	return nil
}

type fakeEngineFactory struct {
	engines []*fakeEngine
	next    int
}

func (f *fakeEngineFactory) NewEngine() (asr.Engine, error) {
	if f.next >= len(f.engines) {
		f.engines = append(f.engines, &fakeEngine{})
	}
	engine := f.engines[f.next]
	f.next++
	return engine, nil
}

// sinkEvent is one recorded state sink interaction. Transcript events keep
// the final/partial pair alongside the joined payload.
type sinkEvent struct {
	op      string
	callID  string
	payload string
	final   string
	partial string
}

type fakeSink struct {
	events []sinkEvent
}

func (f *fakeSink) CallStarted(ctx context.Context, callID, streamID string, startedAt time.Time) {
	f.events = append(f.events, sinkEvent{op: "started", callID: callID, payload: streamID})
}

func (f *fakeSink) Transcript(ctx context.Context, callID, final, partial string) {
	combined := final
	if partial != "" {
		if combined != "" {
			combined += " "
		}
		combined += partial
	}
	f.events = append(f.events, sinkEvent{
		op:      "transcript",
		callID:  callID,
		payload: combined,
		final:   final,
		partial: partial,
	})
}

func (f *fakeSink) Card(ctx context.Context, callID string, card enrich.Card) {
	f.events = append(f.events, sinkEvent{op: "card", callID: callID, payload: card.Summary})
}

func (f *fakeSink) CallEnded(ctx context.Context, callID, status, transcript string, duration time.Duration) {
	f.events = append(f.events, sinkEvent{op: "ended", callID: callID, payload: status + "|" + transcript})
}

func (f *fakeSink) Activity(ctx context.Context, callID, kind, message string) {
	f.events = append(f.events, sinkEvent{op: "activity", callID: callID, payload: kind})
}

func (f *fakeSink) ops() []string {
	var ops []string
	for _, e := range f.events {
		ops = append(ops, e.op)
	}
	return ops
}

func (f *fakeSink) lastByOp(op string) (sinkEvent, bool) {
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].op == op {
			return f.events[i], true
		}
	}
	return sinkEvent{}, false
}

func (f *fakeSink) countByOp(op string) int {
	var n int
	for _, e := range f.events {
		if e.op == op {
			n++
		}
	}
	return n
}

type stubSummarizer struct {
	calls int
}

func (s *stubSummarizer) Summarize(ctx context.Context, transcript string) (enrich.Card, error) {
	s.calls++
	return enrich.Card{
		Summary:     "Caller needs a plumber.",
		Sentiment:   enrich.SentimentNegative,
		Urgency:     enrich.UrgencyHigh,
		ActionItems: []string{"Schedule plumber visit"},
	}, nil
}

// metrics register globally, so the test binary holds one instance
var testMetrics = metrics.NewMetrics()

type testHarness struct {
	manager *Manager
	factory *fakeEngineFactory
	sink    *fakeSink
	clock   time.Time
}

func newHarness(t *testing.T, config Config, maxEngines int) *testHarness {
	t.Helper()

	if config.InputSampleRate == 0 {
		config.InputSampleRate = 8000
		config.TargetSampleRate = 16000
	}
	if config.EnrichTimeout == 0 {
		config.EnrichTimeout = 10 * time.Second
	}

	h := &testHarness{
		factory: &fakeEngineFactory{},
		sink:    &fakeSink{},
		clock:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := asr.NewPool(h.factory, maxEngines)
	h.manager = NewManager(config, pool, &stubSummarizer{}, h.sink, testMetrics, logger)
	h.manager.now = func() time.Time { return h.clock }

	return h
}

// mediaChunk returns companded audio that the normalizer expands to exactly
// n recognition frames (two input bytes per four-sample frame)
func mediaChunk(n int) []byte {
	return make([]byte, 2*n)
}

func TestStartSessionPublishesCallDocument(t *testing.T) {
	h := newHarness(t, Config{}, 4)

	s, err := h.manager.StartSession(context.Background(), "CA100", "MZ100")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	if s.CallID != "CA100" || s.StreamID != "MZ100" {
		t.Errorf("Unexpected identifiers: %s/%s", s.CallID, s.StreamID)
	}
	if h.manager.Count() != 1 {
		t.Errorf("Expected 1 live session, got %d", h.manager.Count())
	}

	started, ok := h.sink.lastByOp("started")
	if !ok || started.callID != "CA100" {
		t.Errorf("Call document not created: %+v", h.sink.events)
	}
}

func TestStartSessionRejectsDuplicateCall(t *testing.T) {
	h := newHarness(t, Config{}, 4)

	if _, err := h.manager.StartSession(context.Background(), "CA100", "MZ100"); err != nil {
		t.Fatalf("First start failed: %v", err)
	}

	_, err := h.manager.StartSession(context.Background(), "CA100", "MZ200")
	if !errors.Is(err, ErrDuplicateCall) {
		t.Errorf("Expected ErrDuplicateCall, got %v", err)
	}
}

func TestStartSessionFailsAtCapacity(t *testing.T) {
	h := newHarness(t, Config{}, 1)

	if _, err := h.manager.StartSession(context.Background(), "CA100", "MZ100"); err != nil {
		t.Fatalf("First start failed: %v", err)
	}

	_, err := h.manager.StartSession(context.Background(), "CA200", "MZ200")
	if !errors.Is(err, asr.ErrCapacity) {
		t.Errorf("Expected ErrCapacity, got %v", err)
	}
	if h.manager.Count() != 1 {
		t.Errorf("Rejected start leaked session state: %d sessions", h.manager.Count())
	}
}

func TestSilentAudioPublishesNothing(t *testing.T) {
	h := newHarness(t, Config{}, 4)
	h.factory.engines = []*fakeEngine{{}} // every frame recognizes as empty

	s, err := h.manager.StartSession(context.Background(), "CA100", "MZ100")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := s.HandleMedia(context.Background(), mediaChunk(1)); err != nil {
			t.Fatalf("HandleMedia failed: %v", err)
		}
	}

	if n := h.sink.countByOp("transcript"); n != 0 {
		t.Errorf("Silence produced %d transcript writes", n)
	}
	if n := h.sink.countByOp("card"); n != 0 {
		t.Errorf("Silence produced %d summary cards", n)
	}
}

func TestEndpointFinalizesUtterance(t *testing.T) {
	h := newHarness(t, Config{}, 4)
	h.factory.engines = []*fakeEngine{{
		results: []fakeResult{
			{"I need", false},
			{"I need a plumber", false},
			{"for Tuesday", true},
		},
	}}

	s, err := h.manager.StartSession(context.Background(), "CA100", "MZ100")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := s.HandleMedia(context.Background(), mediaChunk(3)); err != nil {
		t.Fatalf("HandleMedia failed: %v", err)
	}

	// the endpoint closes the running hypothesis, then its own text lands
	info := s.Snapshot()
	if info.Transcript != "I need a plumber for Tuesday" {
		t.Errorf("Unexpected transcript: '%s'", info.Transcript)
	}

	var published []sinkEvent
	for _, e := range h.sink.events {
		if e.op == "transcript" {
			published = append(published, e)
		}
	}
	want := []string{"I need", "I need a plumber", "I need a plumber for Tuesday"}
	if len(published) != len(want) {
		t.Fatalf("Expected %d transcript writes, got %v", len(want), published)
	}
	for i := range want {
		if published[i].payload != want[i] {
			t.Errorf("Transcript write %d: got '%s', want '%s'", i, published[i].payload, want[i])
		}
	}

	// hypotheses travel in the partial field, settled text in final
	if published[0].final != "" || published[0].partial != "I need" {
		t.Errorf("First write should be all hypothesis: %+v", published[0])
	}
	last := published[len(published)-1]
	if last.final != "I need a plumber for Tuesday" || last.partial != "" {
		t.Errorf("Endpoint write should be all settled text: %+v", last)
	}
}

func TestRecognitionFailureEndsSession(t *testing.T) {
	h := newHarness(t, Config{}, 4)
	engine := &fakeEngine{processErr: errors.New("engine gone")}
	h.factory.engines = []*fakeEngine{engine}

	s, err := h.manager.StartSession(context.Background(), "CA100", "MZ100")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	if err := s.HandleMedia(context.Background(), mediaChunk(1)); !errors.Is(err, ErrRecognition) {
		t.Fatalf("Expected ErrRecognition, got %v", err)
	}

	if engine.released != 1 {
		t.Errorf("Broken engine released %d times, want 1", engine.released)
	}
	if engine.flushCalls != 0 {
		t.Errorf("Broken engine must not be flushed, got %d flush calls", engine.flushCalls)
	}
	if h.manager.Count() != 0 {
		t.Errorf("Failed session still registered: %d live", h.manager.Count())
	}
	if _, ok := h.sink.lastByOp("ended"); !ok {
		t.Error("Failed session never marked ended")
	}

	if err := s.HandleMedia(context.Background(), mediaChunk(1)); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Expected ErrSessionClosed after failure, got %v", err)
	}
}

func TestFirstCardLandsInActivityFeed(t *testing.T) {
	h := newHarness(t, Config{}, 4)
	h.factory.engines = []*fakeEngine{{
		results: []fakeResult{
			{"hello", false},
			{"hello there", false},
		},
	}}

	s, err := h.manager.StartSession(context.Background(), "CA100", "MZ100")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := s.HandleMedia(context.Background(), mediaChunk(2)); err != nil {
		t.Fatalf("HandleMedia failed: %v", err)
	}

	if n := h.sink.countByOp("card"); n != 2 {
		t.Fatalf("Expected 2 cards, got %d", n)
	}

	var summaryActivities int
	for _, e := range h.sink.events {
		if e.op == "activity" && e.payload == statesink.ActivityAISummary {
			summaryActivities++
		}
	}
	if summaryActivities != 1 {
		t.Errorf("Expected exactly 1 ai_summary activity, got %d", summaryActivities)
	}
}

func TestStopFinalizesPartialThenFlush(t *testing.T) {
	h := newHarness(t, Config{}, 4)
	engine := &fakeEngine{
		results: []fakeResult{
			{"I need a plumber.", true},
			{"for Tues", false},
		},
		flushes: []string{"", "day morning"}, // endpoint flush, then stop flush
	}
	h.factory.engines = []*fakeEngine{engine}

	s, err := h.manager.StartSession(context.Background(), "CA100", "MZ100")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := s.HandleMedia(context.Background(), mediaChunk(2)); err != nil {
		t.Fatalf("HandleMedia failed: %v", err)
	}

	h.clock = h.clock.Add(30 * time.Second)
	s.Stop(context.Background())

	ended, ok := h.sink.lastByOp("ended")
	if !ok {
		t.Fatal("Call never marked ended")
	}
	wantTranscript := "I need a plumber. for Tues day morning"
	if ended.payload != statesink.StatusCompleted+"|"+wantTranscript {
		t.Errorf("Unexpected terminal state: '%s'", ended.payload)
	}

	if engine.released != 1 {
		t.Errorf("Engine released %d times, want 1", engine.released)
	}
	if h.manager.Count() != 0 {
		t.Errorf("Finished session still registered: %d live", h.manager.Count())
	}

	activity, ok := h.sink.lastByOp("activity")
	if !ok || activity.payload != statesink.ActivityCallCompleted {
		t.Errorf("Expected call_completed activity last, got %+v", activity)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness(t, Config{}, 4)

	s, err := h.manager.StartSession(context.Background(), "CA100", "MZ100")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	s.Stop(context.Background())
	s.Stop(context.Background())

	if n := h.sink.countByOp("ended"); n != 1 {
		t.Errorf("Expected 1 ended write, got %d", n)
	}
	if engine := h.factory.engines[0]; engine.released != 1 {
		t.Errorf("Engine released %d times, want 1", engine.released)
	}
}

func TestMediaAfterStopIsRejected(t *testing.T) {
	h := newHarness(t, Config{}, 4)

	s, err := h.manager.StartSession(context.Background(), "CA100", "MZ100")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	s.Stop(context.Background())

	if err := s.HandleMedia(context.Background(), mediaChunk(1)); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Expected ErrSessionClosed, got %v", err)
	}
}

func TestGuardPausesLongCall(t *testing.T) {
	h := newHarness(t, Config{
		Guard: GuardPolicy{Enabled: true, MaxDuration: time.Minute},
	}, 4)
	engine := &fakeEngine{results: []fakeResult{{"hello", false}}}
	h.factory.engines = []*fakeEngine{engine}

	s, err := h.manager.StartSession(context.Background(), "CA100", "MZ100")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := s.HandleMedia(context.Background(), mediaChunk(1)); err != nil {
		t.Fatalf("HandleMedia failed: %v", err)
	}

	h.clock = h.clock.Add(2 * time.Minute)
	if err := s.HandleMedia(context.Background(), mediaChunk(1)); !errors.Is(err, ErrGuardPaused) {
		t.Fatalf("Expected ErrGuardPaused, got %v", err)
	}

	ended, ok := h.sink.lastByOp("ended")
	if !ok || !strings.HasPrefix(ended.payload, statesink.StatusPaused+"|") {
		t.Errorf("Expected paused status, got %+v", ended)
	}

	var guardActivity bool
	for _, e := range h.sink.events {
		if e.op == "activity" && e.payload == statesink.ActivityGuardPaused {
			guardActivity = true
		}
	}
	if !guardActivity {
		t.Error("Missing guard_paused activity entry")
	}

	if engine.released != 1 {
		t.Errorf("Engine released %d times, want 1", engine.released)
	}
	if h.manager.Count() != 0 {
		t.Errorf("Paused session still registered: %d live", h.manager.Count())
	}
}

func TestGuardDisabledNeverPauses(t *testing.T) {
	h := newHarness(t, Config{}, 4)

	s, err := h.manager.StartSession(context.Background(), "CA100", "MZ100")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	h.clock = h.clock.Add(3 * time.Hour)
	if err := s.HandleMedia(context.Background(), mediaChunk(1)); err != nil {
		t.Errorf("Disabled guard must not interrupt calls: %v", err)
	}
}

func TestCapacityFreedAfterStop(t *testing.T) {
	h := newHarness(t, Config{}, 1)

	s, err := h.manager.StartSession(context.Background(), "CA100", "MZ100")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	s.Stop(context.Background())

	if _, err := h.manager.StartSession(context.Background(), "CA200", "MZ200"); err != nil {
		t.Errorf("Expected capacity to be freed after stop, got %v", err)
	}
}

func TestShutdownStopsAllSessions(t *testing.T) {
	h := newHarness(t, Config{}, 4)

	for _, id := range []string{"CA1", "CA2", "CA3"} {
		if _, err := h.manager.StartSession(context.Background(), id, "MZ"+id); err != nil {
			t.Fatalf("StartSession %s failed: %v", id, err)
		}
	}

	h.manager.Shutdown(context.Background())

	if h.manager.Count() != 0 {
		t.Errorf("Expected 0 live sessions after shutdown, got %d", h.manager.Count())
	}
	if n := h.sink.countByOp("ended"); n != 3 {
		t.Errorf("Expected 3 ended writes, got %d", n)
	}
}

func TestSnapshotsOrderedByCallID(t *testing.T) {
	h := newHarness(t, Config{}, 4)

	for _, id := range []string{"CA3", "CA1", "CA2"} {
		if _, err := h.manager.StartSession(context.Background(), id, "MZ"+id); err != nil {
			t.Fatalf("StartSession %s failed: %v", id, err)
		}
	}

	infos := h.manager.Snapshots()
	if len(infos) != 3 {
		t.Fatalf("Expected 3 snapshots, got %d", len(infos))
	}
	for i, want := range []string{"CA1", "CA2", "CA3"} {
		if infos[i].CallID != want {
			t.Errorf("Snapshot %d: got %s, want %s", i, infos[i].CallID, want)
		}
	}
}

// blockingSummarizer parks inside Summarize until released, standing in for
// a slow model call
type blockingSummarizer struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSummarizer) Summarize(ctx context.Context, transcript string) (enrich.Card, error) {
	b.entered <- struct{}{}
	<-b.release
	return enrich.Card{Summary: "done"}, nil
}

func TestSnapshotNotBlockedBySlowSummarizer(t *testing.T) {
	h := newHarness(t, Config{}, 4)
	blocker := &blockingSummarizer{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	h.manager.summarizer = blocker
	h.factory.engines = []*fakeEngine{{results: []fakeResult{{"hello", false}}}}

	s, err := h.manager.StartSession(context.Background(), "CA100", "MZ100")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	mediaDone := make(chan error, 1)
	go func() {
		mediaDone <- s.HandleMedia(context.Background(), mediaChunk(1))
	}()
	<-blocker.entered

	// the pipeline is parked inside the summarizer; monitoring reads must
	// still return promptly
	snapped := make(chan Info, 1)
	go func() {
		snapped <- s.Snapshot()
	}()

	select {
	case info := <-snapped:
		if info.Transcript != "hello" {
			t.Errorf("Unexpected snapshot transcript: '%s'", info.Transcript)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Snapshot blocked behind the summarizer")
	}

	close(blocker.release)
	if err := <-mediaDone; err != nil {
		t.Errorf("HandleMedia failed: %v", err)
	}
}
