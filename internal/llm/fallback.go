package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ErrNoLiveEndpoint is returned by Initialize when every configured backend
// fails its startup probe. It is a fatal startup condition; Dispatch never
// returns it.
var ErrNoLiveEndpoint = errors.New("llm: no AI endpoint passed its startup probe")

// personaPrompt seeds every new conversation. The assistant supports GBV
// survivors: warm, never judgmental, never pressuring, no advice to confront
// a perpetrator, always defers to local emergency services for danger.
const personaPrompt = `You are Vee, a caring and supportive companion for people affected by gender-based violence in Kenya. Listen first. Validate feelings without judgment. Never pressure the person to share, report, or act. Never suggest confronting an abuser. If someone is in immediate danger, gently point them to 999/112 (police) or 1195 (GBV hotline). Keep replies short, warm, and in the language the person uses (English or Kiswahili).`

// fallbackText is the static safe reply per language when every endpoint is
// exhausted. It must never depend on a live backend.
var fallbackText = map[string]string{
	"en": "I'm here with you. I'm having trouble responding right now, but your words are not lost. If you are in immediate danger, please call 999 or 112, or the GBV hotline 1195. We can continue whenever you're ready.",
	"sw": "Niko hapa pamoja nawe. Nina shida kidogo kujibu kwa sasa, lakini maneno yako hayajapotea. Ukiwa hatarini sasa hivi, tafadhali piga 999 au 112, au nambari ya dharura ya GBV 1195. Tunaweza kuendelea wakati wowote uko tayari.",
}

// SessionKey identifies one conversational context. Language is part of the
// key so a survivor switching languages gets a fresh, correctly-seeded
// context instead of a mixed-language one.
type SessionKey struct {
	SessionID string
	Language  string
}

// DispatchResult is the outcome of one Dispatch call. Dispatch is total:
// exhaustion is reported through AllModelsFailed, never through an error.
type DispatchResult struct {
	Text            string
	Endpoint        string // backend that produced Text; empty on exhaustion
	Attempts        int
	AllModelsFailed bool
}

// endpoint is one prioritized backend with its health bookkeeping.
type endpoint struct {
	provider    Provider
	priority    int
	healthy     bool
	lastFailure time.Time
	lastErr     error
}

// session is one conversation's mutable state. turnMu serializes turns so
// interleaved messages from the same survivor cannot corrupt the history.
type session struct {
	turnMu      sync.Mutex
	endpointIdx int
	history     []Message
	lastSeen    time.Time
}

var (
	dispatchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_dispatch_attempts_total",
			Help: "Generation attempts by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
	dispatchFailovers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_dispatch_failovers_total",
			Help: "Times a session was rebound to a lower-priority endpoint.",
		},
	)
	dispatchExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_dispatch_exhausted_total",
			Help: "Dispatches that fell through to the static fallback text.",
		},
	)
)

func init() {
	prometheus.MustRegister(dispatchAttempts, dispatchFailovers, dispatchExhausted)
}

// Manager owns the ordered endpoint list and all per-session conversational
// contexts. All methods are safe for concurrent use; turns within one
// session are serialized, different sessions proceed in parallel.
type Manager struct {
	mu         sync.RWMutex
	endpoints  []*endpoint
	defaultIdx int
	ready      bool

	sessMu   sync.Mutex
	sessions map[SessionKey]*session

	probeWait time.Duration
	idleTTL   time.Duration
	sweepN    int
}

// NewManager builds a Manager over providers in ascending priority order
// (providers[0] is most preferred). probeWait bounds each liveness probe;
// idleTTL bounds how long an inactive conversation context is retained.
func NewManager(providers []Provider, probeWait, idleTTL time.Duration) *Manager {
	eps := make([]*endpoint, len(providers))
	for i, p := range providers {
		eps[i] = &endpoint{provider: p, priority: i}
	}
	return &Manager{
		endpoints: eps,
		sessions:  make(map[SessionKey]*session),
		probeWait: probeWait,
		idleTTL:   idleTTL,
	}
}

// Initialize probes endpoints in priority order and binds the process-wide
// default to the first that answers. Later endpoints are left unprobed;
// they are probed lazily when failover reaches them. All endpoints failing
// is fatal.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, ep := range m.endpoints {
		pctx, cancel := context.WithTimeout(ctx, m.probeWait)
		err := ep.provider.Probe(pctx)
		cancel()
		if err == nil {
			ep.healthy = true
			m.defaultIdx = i
			m.ready = true
			log.Info().Str("endpoint", ep.provider.Name()).Int("priority", i).
				Msg("AI endpoint selected as default")
			return nil
		}
		ep.healthy = false
		ep.lastFailure = time.Now()
		ep.lastErr = err
		log.Warn().Err(err).Str("endpoint", ep.provider.Name()).
			Msg("AI endpoint failed startup probe")
	}
	return ErrNoLiveEndpoint
}

// Ready reports whether Initialize succeeded. Used by the health endpoint.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// DefaultEndpoint returns the name of the currently preferred backend.
func (m *Manager) DefaultEndpoint() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return ""
	}
	return m.endpoints[m.defaultIdx].provider.Name()
}

// Dispatch sends message through the session's bound endpoint. On a
// failover-class error it walks strictly-later endpoints, probing each at
// most once for this message, rebinding the session to the first that
// succeeds. The rebound context is recreated from the persona seed plus the
// current message; earlier turns on the dead endpoint are not replayed.
// Exhaustion returns the static per-language fallback with
// AllModelsFailed=true.
func (m *Manager) Dispatch(ctx context.Context, key SessionKey, message string, timeout time.Duration) DispatchResult {
	ctx, span := otel.Tracer("llm").Start(ctx, "Manager.Dispatch")
	defer span.End()

	s := m.getSession(key)
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	history := append(s.history, Message{Role: RoleUser, Content: message})

	attempts := 0
	idx := s.endpointIdx
	for idx < len(m.endpoints) {
		ep := m.endpoints[idx]

		// A session bound past an endpoint that later recovered stays
		// where it is; only its own failures move it forward.
		if idx != s.endpointIdx {
			// Probing a candidate before handing it live traffic.
			pctx, cancel := context.WithTimeout(ctx, m.probeWait)
			perr := ep.provider.Probe(pctx)
			cancel()
			if perr != nil {
				m.markUnhealthy(ep, perr)
				idx++
				continue
			}
			dispatchFailovers.Inc()
			s.endpointIdx = idx
			// New sessions should not seed at an endpoint we just watched
			// die; the default follows the failover forward.
			m.advanceDefault(idx)
			// Context continuity is best effort: reseed from the persona.
			history = []Message{
				{Role: RoleSystem, Content: personaPrompt},
				{Role: RoleUser, Content: message},
			}
			log.Info().Str("endpoint", ep.provider.Name()).Str("session", key.SessionID).
				Msg("session rebound after failover")
		}

		attempts++
		gctx, cancel := context.WithTimeout(ctx, timeout)
		text, err := ep.provider.Generate(gctx, withPersona(history))
		cancel()
		if err == nil {
			dispatchAttempts.WithLabelValues(ep.provider.Name(), "ok").Inc()
			m.markHealthy(ep)
			s.history = append(history, Message{Role: RoleAssistant, Content: text})
			span.SetAttributes(
				attribute.String("ai.endpoint", ep.provider.Name()),
				attribute.Int("ai.attempts", attempts),
			)
			return DispatchResult{Text: text, Endpoint: ep.provider.Name(), Attempts: attempts}
		}

		dispatchAttempts.WithLabelValues(ep.provider.Name(), "error").Inc()
		m.markUnhealthy(ep, err)
		if !IsFailover(err) {
			// Non-failover errors would repeat identically everywhere.
			log.Error().Err(err).Str("endpoint", ep.provider.Name()).
				Msg("AI generation failed with non-retryable error")
			break
		}
		log.Warn().Err(err).Str("endpoint", ep.provider.Name()).
			Msg("AI generation failed, trying next endpoint")
		idx++
	}

	dispatchExhausted.Inc()
	span.SetAttributes(attribute.Bool("ai.exhausted", true))
	m.mu.RLock()
	for _, ep := range m.endpoints {
		if ep.lastErr != nil {
			log.Warn().Err(ep.lastErr).Str("endpoint", ep.provider.Name()).
				Time("last_failure", ep.lastFailure).Msg("endpoint down at exhaustion")
		}
	}
	m.mu.RUnlock()
	return DispatchResult{
		Text:            FallbackText(key.Language),
		Attempts:        attempts,
		AllModelsFailed: true,
	}
}

// FallbackText returns the static safe reply for lang, defaulting to English.
func FallbackText(lang string) string {
	if t, ok := fallbackText[lang]; ok {
		return t
	}
	return fallbackText["en"]
}

// withPersona guarantees the system seed leads the history exactly once.
func withPersona(history []Message) []Message {
	if len(history) > 0 && history[0].Role == RoleSystem {
		return history
	}
	return append([]Message{{Role: RoleSystem, Content: personaPrompt}}, history...)
}

func (m *Manager) markHealthy(ep *endpoint) {
	m.mu.Lock()
	ep.healthy = true
	m.mu.Unlock()
}

func (m *Manager) markUnhealthy(ep *endpoint, err error) {
	m.mu.Lock()
	ep.healthy = false
	ep.lastFailure = time.Now()
	ep.lastErr = err
	m.mu.Unlock()
}

// advanceDefault moves the process-wide default forward to idx. It never
// moves backward; recovery of an earlier endpoint only helps sessions
// already bound to it.
func (m *Manager) advanceDefault(idx int) {
	m.mu.Lock()
	if idx > m.defaultIdx {
		m.defaultIdx = idx
	}
	m.mu.Unlock()
}

// getSession returns the context for key, creating it bound to the default
// endpoint. The idle clock refreshes here, under sessMu, so the sweep never
// reads lastSeen concurrently with a writer. Eviction of idle contexts
// piggybacks on lookups, in batches.
func (m *Manager) getSession(key SessionKey) *session {
	m.mu.RLock()
	def := m.defaultIdx
	m.mu.RUnlock()

	m.sessMu.Lock()
	defer m.sessMu.Unlock()

	m.sweepN++
	if m.sweepN >= 500 {
		cutoff := time.Now().Add(-m.idleTTL)
		for k, s := range m.sessions {
			if s.lastSeen.Before(cutoff) {
				delete(m.sessions, k)
			}
		}
		m.sweepN = 0
	}

	if s, ok := m.sessions[key]; ok {
		s.lastSeen = time.Now()
		return s
	}
	s := &session{
		endpointIdx: def,
		history:     []Message{{Role: RoleSystem, Content: personaPrompt}},
		lastSeen:    time.Now(),
	}
	m.sessions[key] = s
	return s
}
