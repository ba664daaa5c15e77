package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voxchat/internal/conversation"
	"voxchat/internal/domain"
	"voxchat/internal/ports"
	"voxchat/internal/retry"
)

type harness struct {
	controller *TurnController
	recorder   *fakeRecorder
	assistant  *fakeAssistant
	store      *conversation.MemoryStore
	speech     *fakeSpeechCache
	player     *fakePlayer
	events     *fakeEventSink

	sleepMu sync.Mutex
	sleeps  []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		recorder:  &fakeRecorder{},
		assistant: &fakeAssistant{},
		store:     conversation.NewMemoryStore(),
		speech:    &fakeSpeechCache{entries: map[string][]byte{}},
		player:    &fakePlayer{},
		events:    &fakeEventSink{},
	}
	h.controller = NewTurnController(
		h.recorder,
		h.assistant,
		h.store,
		h.speech,
		h.player,
		h.events,
		Config{Language: domain.LanguageHindi, Policy: retry.NewPolicy()},
	)
	h.controller.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleepMu.Lock()
		h.sleeps = append(h.sleeps, d)
		h.sleepMu.Unlock()
		return ctx.Err()
	}
	var ids atomic.Int32
	h.controller.newID = func() string {
		return fmt.Sprintf("ex-%d", ids.Add(1))
	}
	return h
}

func (h *harness) snapshotSleeps() []time.Duration {
	h.sleepMu.Lock()
	defer h.sleepMu.Unlock()
	out := make([]time.Duration, len(h.sleeps))
	copy(out, h.sleeps)
	return out
}

func (h *harness) exchanges(t *testing.T) []domain.Exchange {
	t.Helper()
	out, err := h.store.Exchanges(context.Background())
	if err != nil {
		t.Fatalf("load exchanges: %v", err)
	}
	return out
}

type fakeRecorder struct {
	mu         sync.Mutex
	recordings []*fakeRecording
	err        error
	calls      int
}

func (f *fakeRecorder) Start(_ context.Context) (ports.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.recordings) == 0 {
		return nil, errors.New("no recording configured")
	}
	rec := f.recordings[0]
	f.recordings = f.recordings[1:]
	return rec, nil
}

type fakeRecording struct {
	mu         sync.Mutex
	audio      []byte
	err        error
	stopCalls  int
	abortCalls int
}

func (f *fakeRecording) Stop() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.audio, f.err
}

func (f *fakeRecording) Abort() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abortCalls++
}

func (f *fakeRecording) aborted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.abortCalls
}

type historyCall struct {
	prompt   string
	history  []domain.Exchange
	language domain.Language
	docs     domain.DocumentSet
}

type fakeAssistant struct {
	mu sync.Mutex

	transcribe func(ctx context.Context, audio []byte) (domain.Transcription, error)
	generate   func(ctx context.Context, prompt string) (string, error)
	synthesize func(ctx context.Context, text string) ([]byte, error)
	upload     func(ctx context.Context, files []domain.UploadFile) (domain.DocumentSet, error)
	query      func(ctx context.Context, query string) (string, error)

	transcribeCalls int
	synthesizeCalls int
	generateCalls   []historyCall
	queryCalls      []historyCall
}

func (f *fakeAssistant) Transcribe(ctx context.Context, audio []byte, _ domain.Language) (domain.Transcription, error) {
	f.mu.Lock()
	f.transcribeCalls++
	fn := f.transcribe
	f.mu.Unlock()
	if fn == nil {
		return domain.Transcription{Text: "hello"}, nil
	}
	return fn(ctx, audio)
}

func (f *fakeAssistant) GenerateResponse(ctx context.Context, prompt string, history []domain.Exchange, lang domain.Language) (string, error) {
	f.mu.Lock()
	f.generateCalls = append(f.generateCalls, historyCall{prompt: prompt, history: history, language: lang})
	fn := f.generate
	f.mu.Unlock()
	if fn == nil {
		return "hi there", nil
	}
	return fn(ctx, prompt)
}

func (f *fakeAssistant) SynthesizeSpeech(ctx context.Context, text string, _ domain.Language) ([]byte, error) {
	f.mu.Lock()
	f.synthesizeCalls++
	fn := f.synthesize
	f.mu.Unlock()
	if fn == nil {
		return []byte("speech:" + text), nil
	}
	return fn(ctx, text)
}

func (f *fakeAssistant) UploadDocuments(ctx context.Context, files []domain.UploadFile, _ domain.Language) (domain.DocumentSet, error) {
	f.mu.Lock()
	fn := f.upload
	f.mu.Unlock()
	if fn == nil {
		docs := make([]domain.Document, 0, len(files))
		for _, file := range files {
			docs = append(docs, domain.Document{Filename: file.Name})
		}
		return domain.DocumentSet{Documents: docs}, nil
	}
	return fn(ctx, files)
}

func (f *fakeAssistant) QueryDocuments(ctx context.Context, query string, docs domain.DocumentSet, history []domain.Exchange, lang domain.Language) (string, error) {
	f.mu.Lock()
	f.queryCalls = append(f.queryCalls, historyCall{prompt: query, history: history, language: lang, docs: docs})
	fn := f.query
	f.mu.Unlock()
	if fn == nil {
		return "from the documents", nil
	}
	return fn(ctx, query)
}

func (f *fakeAssistant) counts() (transcribe, generate, synthesize, query int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transcribeCalls, len(f.generateCalls), f.synthesizeCalls, len(f.queryCalls)
}

type fakeSpeechCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (f *fakeSpeechCache) Get(lang domain.Language, text string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	audio, ok := f.entries[string(lang)+"|"+text]
	return audio, ok
}

func (f *fakeSpeechCache) Put(lang domain.Language, text string, audio []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[string(lang)+"|"+text] = audio
}

type fakePlayer struct {
	mu        sync.Mutex
	err       error
	played    [][]byte
	playbacks []*fakePlayback
}

func (f *fakePlayer) Play(_ context.Context, audio []byte) (ports.Playback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.played = append(f.played, audio)
	pb := &fakePlayback{done: make(chan struct{})}
	f.playbacks = append(f.playbacks, pb)
	return pb, nil
}

func (f *fakePlayer) snapshot() []*fakePlayback {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakePlayback, len(f.playbacks))
	copy(out, f.playbacks)
	return out
}

type fakePlayback struct {
	once      sync.Once
	done      chan struct{}
	mu        sync.Mutex
	stopCalls int
}

func (f *fakePlayback) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakePlayback) Done() <-chan struct{} { return f.done }

func (f *fakePlayback) stopped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type stateEvent struct {
	state  domain.TurnState
	reason domain.StatusReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu sync.Mutex

	states      []stateEvent
	transcripts []string
	exchanges   []domain.Exchange
	documents   []domain.DocumentSet
	errors      []errEvent
}

func (f *fakeEventSink) TurnStateChanged(state domain.TurnState, reason domain.StatusReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) UserTranscript(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, text)
}

func (f *fakeEventSink) ExchangeCommitted(exchange domain.Exchange) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges = append(f.exchanges, exchange)
}

func (f *fakeEventSink) DocumentsChanged(set domain.DocumentSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, set)
}

func (f *fakeEventSink) TurnError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) reasons() []domain.StatusReason {
	states := f.snapshotStates()
	out := make([]domain.StatusReason, 0, len(states))
	for _, s := range states {
		out = append(out, s.reason)
	}
	return out
}

func (f *fakeEventSink) lastState(t *testing.T) stateEvent {
	t.Helper()
	states := f.snapshotStates()
	if len(states) == 0 {
		t.Fatalf("no state transitions recorded")
	}
	return states[len(states)-1]
}

func (f *fakeEventSink) sawReason(reason domain.StatusReason) bool {
	for _, r := range f.reasons() {
		if r == reason {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// hookStore wraps a MemoryStore with injectable failures and an optional
// gate that holds Append until closed.
type hookStore struct {
	*conversation.MemoryStore

	historyErr error
	appendErr  error
	clearErr   error

	appendGate    chan struct{}
	appendStarted chan struct{}
}

func (s *hookStore) History(ctx context.Context, mode domain.Mode) ([]domain.Exchange, error) {
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return s.MemoryStore.History(ctx, mode)
}

func (s *hookStore) Append(ctx context.Context, exchange domain.Exchange) error {
	if s.appendStarted != nil {
		close(s.appendStarted)
	}
	if s.appendGate != nil {
		<-s.appendGate
	}
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.MemoryStore.Append(ctx, exchange)
}

func (s *hookStore) Clear(ctx context.Context) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	return s.MemoryStore.Clear(ctx)
}
