package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// fakeProvider scripts probe and generate outcomes for Manager tests.
type fakeProvider struct {
	name string

	mu           sync.Mutex
	probeErr     error
	generateErr  error
	reply        string
	probeCalls   int
	genCalls     int
	lastHistory  []Message
	failureCount int // generate fails this many times, then succeeds
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Probe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCalls++
	return f.probeErr
}

func (f *fakeProvider) Generate(ctx context.Context, history []Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genCalls++
	f.lastHistory = history
	if f.failureCount > 0 {
		f.failureCount--
		return "", f.generateErr
	}
	if f.generateErr != nil {
		return "", f.generateErr
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return "reply from " + f.name, nil
}

func quotaErr() error {
	return &openai.APIError{HTTPStatusCode: 429, Message: "quota exceeded"}
}

func newTestManager(providers ...Provider) *Manager {
	return NewManager(providers, 100*time.Millisecond, time.Hour)
}

// --- Initialize ---

func TestInitialize_FirstHealthyWins(t *testing.T) {
	dead := &fakeProvider{name: "primary", probeErr: errors.New("boom")}
	live := &fakeProvider{name: "secondary"}
	third := &fakeProvider{name: "tertiary"}
	m := newTestManager(dead, live, third)

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !m.Ready() || m.DefaultEndpoint() != "secondary" {
		t.Fatalf("default = %q, ready = %v", m.DefaultEndpoint(), m.Ready())
	}
	if third.probeCalls != 0 {
		t.Fatalf("later endpoints must not be probed at startup")
	}
}

func TestInitialize_AllDeadIsFatal(t *testing.T) {
	m := newTestManager(
		&fakeProvider{name: "a", probeErr: errors.New("x")},
		&fakeProvider{name: "b", probeErr: errors.New("y")},
	)
	if err := m.Initialize(context.Background()); !errors.Is(err, ErrNoLiveEndpoint) {
		t.Fatalf("err = %v, want ErrNoLiveEndpoint", err)
	}
	if m.Ready() {
		t.Fatalf("manager must not report ready")
	}
}

// --- Dispatch happy path ---

func TestDispatch_UsesBoundEndpoint(t *testing.T) {
	p := &fakeProvider{name: "primary", reply: "hello there"}
	m := newTestManager(p)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	key := SessionKey{SessionID: "s1", Language: "en"}
	res := m.Dispatch(context.Background(), key, "hi", time.Second)
	if res.AllModelsFailed || res.Text != "hello there" || res.Endpoint != "primary" || res.Attempts != 1 {
		t.Fatalf("res = %+v", res)
	}
	// Persona seed leads the history exactly once.
	if len(p.lastHistory) != 2 || p.lastHistory[0].Role != RoleSystem {
		t.Fatalf("history = %+v", p.lastHistory)
	}

	// Second turn carries the assistant reply forward.
	m.Dispatch(context.Background(), key, "and again", time.Second)
	var assistants int
	for _, msg := range p.lastHistory {
		if msg.Role == RoleAssistant {
			assistants++
		}
	}
	if assistants != 1 {
		t.Fatalf("expected prior assistant turn in history: %+v", p.lastHistory)
	}
}

// --- Failover ---

func TestDispatch_FailsOverOnQuotaAndRebinds(t *testing.T) {
	p1 := &fakeProvider{name: "primary", generateErr: quotaErr()}
	p2 := &fakeProvider{name: "secondary", reply: "from backup"}
	m := newTestManager(p1, p2)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	key := SessionKey{SessionID: "s1", Language: "en"}
	res := m.Dispatch(context.Background(), key, "hi", time.Second)
	if res.AllModelsFailed || res.Endpoint != "secondary" || res.Attempts != 2 {
		t.Fatalf("res = %+v", res)
	}
	if p2.probeCalls != 1 {
		t.Fatalf("failover target must be probed once, got %d", p2.probeCalls)
	}
	// Rebound context is recreated, not replayed.
	if len(p2.lastHistory) != 2 || p2.lastHistory[0].Role != RoleSystem || p2.lastHistory[1].Content != "hi" {
		t.Fatalf("rebound history = %+v", p2.lastHistory)
	}

	// The session stays bound to the backup on the next turn.
	res = m.Dispatch(context.Background(), key, "still here", time.Second)
	if res.Endpoint != "secondary" || res.Attempts != 1 {
		t.Fatalf("second turn res = %+v", res)
	}
	if p1.genCalls != 1 {
		t.Fatalf("dead primary must not be retried for this session")
	}
}

func TestDispatch_SkipsEndpointsThatFailProbe(t *testing.T) {
	p1 := &fakeProvider{name: "a", generateErr: quotaErr()}
	p2 := &fakeProvider{name: "b"}
	p3 := &fakeProvider{name: "c", reply: "third time lucky"}
	m := newTestManager(p1, p2, p3)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	// b passes its startup-free state but fails the failover probe.
	p2.mu.Lock()
	p2.probeErr = errors.New("unreachable")
	p2.mu.Unlock()

	res := m.Dispatch(context.Background(), SessionKey{SessionID: "s", Language: "en"}, "hi", time.Second)
	if res.Endpoint != "c" {
		t.Fatalf("res = %+v", res)
	}
	if p2.genCalls != 0 {
		t.Fatalf("an endpoint that fails its probe must not receive traffic")
	}
}

// --- Exhaustion ---

func TestDispatch_ExhaustionReturnsStaticFallback(t *testing.T) {
	p1 := &fakeProvider{name: "a", generateErr: quotaErr()}
	p2 := &fakeProvider{name: "b", generateErr: quotaErr()}
	m := newTestManager(p1, p2)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	for _, lang := range []string{"en", "sw", "fr"} {
		res := m.Dispatch(context.Background(), SessionKey{SessionID: "s-" + lang, Language: lang}, "hi", time.Second)
		if !res.AllModelsFailed {
			t.Fatalf("lang %s: res = %+v", lang, res)
		}
		if res.Text != FallbackText(lang) {
			t.Fatalf("lang %s: wrong fallback text", lang)
		}
		if res.Endpoint != "" {
			t.Fatalf("exhaustion must not name an endpoint")
		}
	}
	// Unknown language falls back to English.
	if FallbackText("fr") != FallbackText("en") {
		t.Fatalf("unknown language must use the English fallback")
	}
	if !strings.Contains(FallbackText("en"), "1195") {
		t.Fatalf("fallback must carry the GBV hotline")
	}
}

func TestDispatch_NonRetryableErrorDoesNotCascade(t *testing.T) {
	bad := &openai.APIError{HTTPStatusCode: 400, Message: "invalid request"}
	p1 := &fakeProvider{name: "a", generateErr: bad}
	p2 := &fakeProvider{name: "b"}
	m := newTestManager(p1, p2)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	res := m.Dispatch(context.Background(), SessionKey{SessionID: "s", Language: "en"}, "hi", time.Second)
	if !res.AllModelsFailed {
		t.Fatalf("res = %+v", res)
	}
	if p2.probeCalls != 0 || p2.genCalls != 0 {
		t.Fatalf("a 400-class error must not trigger failover")
	}
}

// --- Session isolation ---

func TestDispatch_LanguagePartitionsTheSession(t *testing.T) {
	p := &fakeProvider{name: "a"}
	m := newTestManager(p)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	m.Dispatch(context.Background(), SessionKey{SessionID: "s1", Language: "en"}, "hello", time.Second)
	m.Dispatch(context.Background(), SessionKey{SessionID: "s1", Language: "sw"}, "habari", time.Second)

	m.sessMu.Lock()
	n := len(m.sessions)
	m.sessMu.Unlock()
	if n != 2 {
		t.Fatalf("sessions = %d, want 2 (one per language)", n)
	}
}

func TestDispatch_ConcurrentSessionsDoNotInterleave(t *testing.T) {
	p := &fakeProvider{name: "a"}
	m := newTestManager(p)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := SessionKey{SessionID: fmt.Sprintf("s%d", i%4), Language: "en"}
			res := m.Dispatch(context.Background(), key, "msg", time.Second)
			if res.AllModelsFailed {
				t.Errorf("unexpected exhaustion")
			}
		}(i)
	}
	wg.Wait()
}

func TestDispatch_FailoverAdvancesDefaultForNewSessions(t *testing.T) {
	p1 := &fakeProvider{name: "primary", generateErr: quotaErr()}
	p2 := &fakeProvider{name: "secondary", reply: "from backup"}
	m := newTestManager(p1, p2)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	res := m.Dispatch(context.Background(), SessionKey{SessionID: "s1", Language: "en"}, "hi", time.Second)
	if res.Endpoint != "secondary" {
		t.Fatalf("res = %+v", res)
	}
	if m.DefaultEndpoint() != "secondary" {
		t.Fatalf("default = %q, want the failover target", m.DefaultEndpoint())
	}
	if m.endpoints[0].lastErr == nil {
		t.Fatalf("the failed endpoint must record why it went down")
	}

	// A brand-new session seeds at the new default, never at the dead primary.
	deadGenCalls := p1.genCalls
	res = m.Dispatch(context.Background(), SessionKey{SessionID: "s2", Language: "en"}, "hello", time.Second)
	if res.Endpoint != "secondary" || res.Attempts != 1 {
		t.Fatalf("new session res = %+v", res)
	}
	if p1.genCalls != deadGenCalls {
		t.Fatalf("new sessions must not retry the dead default")
	}
}

// --- idle eviction ---

func TestGetSession_SweepSparesActiveSessions(t *testing.T) {
	p := &fakeProvider{name: "a"}
	m := NewManager([]Provider{p}, 100*time.Millisecond, 50*time.Millisecond)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	stale := SessionKey{SessionID: "stale", Language: "en"}
	fresh := SessionKey{SessionID: "fresh", Language: "en"}
	m.Dispatch(context.Background(), stale, "hi", time.Second)
	time.Sleep(80 * time.Millisecond)
	m.Dispatch(context.Background(), fresh, "hi", time.Second)

	// Enough lookups to trip the batched sweep. Each lookup refreshes fresh.
	for i := 0; i < 600; i++ {
		m.getSession(fresh)
	}

	m.sessMu.Lock()
	_, staleAlive := m.sessions[stale]
	_, freshAlive := m.sessions[fresh]
	m.sessMu.Unlock()
	if staleAlive {
		t.Fatalf("idle session must be evicted")
	}
	if !freshAlive {
		t.Fatalf("active session must survive the sweep")
	}
}

func TestDispatch_HotSessionConcurrentWithSweep(t *testing.T) {
	p := &fakeProvider{name: "a"}
	m := newTestManager(p)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// One hot session dispatching while other lookups trip the sweep, which
	// walks every session's idle clock.
	hot := SessionKey{SessionID: "hot", Language: "en"}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			m.Dispatch(context.Background(), hot, "msg", time.Second)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1200; i++ {
			m.getSession(SessionKey{SessionID: fmt.Sprintf("s%d", i%10), Language: "en"})
		}
	}()
	wg.Wait()
}

// --- error classification ---

func TestIsFailover(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"quota 429", quotaErr(), true},
		{"server 503", &openai.APIError{HTTPStatusCode: 503}, true},
		{"quota message", &openai.APIError{HTTPStatusCode: 403, Message: "You exceeded your current quota"}, true},
		{"bad request", &openai.APIError{HTTPStatusCode: 400, Message: "invalid"}, false},
		{"plain error", errors.New("whatever"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsFailover(tc.err); got != tc.want {
				t.Fatalf("IsFailover(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
