// Package services – ConversationService
//
// This file implements the conversation orchestrator: the glue between the
// HTTP chat endpoint, the NLU collaborator, the intake state machine, the AI
// dialogue layer, and the report submission gateway. It owns session
// lifecycle (create, load, checkpoint after every turn) and serializes turns
// per session so interleaved messages cannot corrupt intake state.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/crypto"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/domain"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/intake"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/llm"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/nlu"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/resources"
)

// MaxMessageRunes caps inbound chat messages.
const MaxMessageRunes = 2000

// crisisMessage short-circuits the turn when the collaborator flags a
// crisis. It never consumes an intake stage.
const crisisMessage = "I hear you, and I'm so glad you reached out. Your safety matters most right now. Please call 999 or 112 for police, or 1195 for the free GBV helpline, any time day or night. If you can, reach someone you trust nearby. I'm staying here with you, and we can keep talking whenever you want."

// SessionRepo defines the session persistence contract required by the
// orchestrator.
type SessionRepo interface {
	CreateSession(ctx context.Context, db *gorm.DB, s *domain.Session) error
	GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error)
	SaveSession(ctx context.Context, db *gorm.DB, s *domain.Session) error
}

// Dispatcher is the slice of the AI layer the orchestrator needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, key llm.SessionKey, message string, timeout time.Duration) llm.DispatchResult
}

// ChatReply is the orchestrator's answer to one survivor message.
type ChatReply struct {
	SessionID    string       `json:"session_id"`
	Reply        string       `json:"reply"`
	QuickReplies []string     `json:"quick_replies,omitempty"`
	Stage        domain.Stage `json:"stage"`
	Progress     float64      `json:"progress"`
	SafetyAlert  bool         `json:"safety_alert,omitempty"`
	ReportID     string       `json:"report_id,omitempty"`
}

// SessionStatus is the resumption probe for a stored session.
type SessionStatus struct {
	SessionID   string       `json:"session_id"`
	Progress    float64      `json:"progress"`
	LastStage   domain.Stage `json:"last_stage"`
	CanContinue bool         `json:"can_continue"`
}

// ConversationService orchestrates one turn at a time per session.
type ConversationService struct {
	DB       *gorm.DB
	Sessions SessionRepo
	Machine  *intake.Machine
	NLU      nlu.Analyzer
	AI       Dispatcher
	Reports  *ReportService
	Dir      *resources.Directory

	// NLUTimeout and AITimeout bound the external calls per turn.
	NLUTimeout time.Duration
	AITimeout  time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewConversationService wires the orchestrator.
func NewConversationService(db *gorm.DB, sessions SessionRepo, machine *intake.Machine, analyzer nlu.Analyzer, ai Dispatcher, reports *ReportService, dir *resources.Directory, nluTimeout, aiTimeout time.Duration) *ConversationService {
	return &ConversationService{
		DB:         db,
		Sessions:   sessions,
		Machine:    machine,
		NLU:        analyzer,
		AI:         ai,
		Reports:    reports,
		Dir:        dir,
		NLUTimeout: nluTimeout,
		AITimeout:  aiTimeout,
		locks:      make(map[string]*sync.Mutex),
	}
}

// HandleMessage processes one survivor message end to end: classify, detect
// crisis, drive the state machine, delegate free-form dialogue to the AI
// layer, submit when confirmed, and checkpoint the session. Turns for the
// same session are serialized; different sessions run in parallel.
func (c *ConversationService) HandleMessage(ctx context.Context, sessionID, message, language string) (ChatReply, error) {
	ctx, span := otel.Tracer("services").Start(ctx, "ConversationService.HandleMessage")
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return ChatReply{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > MaxMessageRunes {
		return ChatReply{}, ErrTooLong
	}
	if language == "" {
		language = "en"
	}

	lock := c.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	s, created, err := c.ensureSession(ctx, sessionID, language)
	if err != nil {
		return ChatReply{}, err
	}
	span.SetAttributes(
		attribute.String("session.stage", string(s.Stage)),
		attribute.Bool("session.created", created),
	)

	analysis := c.analyze(ctx, message, language)

	if analysis.CrisisDetected {
		s.SafetyFlag = true
		if err := c.Sessions.SaveSession(ctx, c.DB, s); err != nil {
			log.Error().Err(err).Msg("checkpoint write failed after crisis turn")
		}
		return c.reply(s, crisisMessage, nil, false), nil
	}

	if analysis.Intent == nlu.IntentSeekingResources {
		return c.reply(s, c.resourcesReply(s.County), nil, false), nil
	}

	// A returning survivor with a saved checkpoint gets the resumption
	// prompt instead of a cold restart.
	var outcome intake.TurnOutcome
	if !created && s.ReportInProgress && analysis.ReportInitiation && s.Stage != domain.StageConsent {
		outcome = c.Machine.Resume(s)
	} else {
		outcome = c.Machine.Turn(s, intake.TurnInput{Text: message, Analysis: analysis})
	}

	reply := outcome.Reply
	reportID := ""

	if outcome.ReadyToSubmit {
		res, err := c.submitFromSession(ctx, s)
		if err != nil {
			// The survivor's data is checkpointed; only the report row
			// failed. Surface reassurance, keep the session resumable.
			s.Stage = domain.StageSubmission
			s.ReportInProgress = true
			reply = "I'm having trouble saving your report right now, but your information is safe with me. We can try again in a moment."
		} else {
			reply = res.Message
			reportID = res.ReportID
		}
	}

	if outcome.NeedsAI && c.AI != nil {
		ai := c.AI.Dispatch(ctx, llm.SessionKey{SessionID: s.ID, Language: s.Language}, message, c.AITimeout)
		if ai.Text != "" {
			if reply != "" {
				reply = ai.Text + "\n\n" + reply
			} else {
				reply = ai.Text
			}
		}
	}

	if err := c.Sessions.SaveSession(ctx, c.DB, s); err != nil {
		log.Error().Err(err).Str("session", s.ID).Msg("checkpoint write failed")
		return ChatReply{}, err
	}

	out := c.reply(s, reply, outcome.QuickReplies, outcome.SafetyInterrupt)
	out.ReportID = reportID
	return out, nil
}

// Status reports whether a stored session can be resumed.
func (c *ConversationService) Status(ctx context.Context, sessionID string) (SessionStatus, error) {
	s, err := c.Sessions.GetSession(ctx, c.DB, sessionID)
	if err != nil {
		return SessionStatus{}, ErrSessionNotFound
	}
	return SessionStatus{
		SessionID:   s.ID,
		Progress:    s.Progress,
		LastStage:   s.LastCheckpoint,
		CanContinue: s.ReportInProgress && s.Stage != domain.StageComplete,
	}, nil
}

// --- internals ---

// sessionLock returns the per-session mutex, creating it on first use. The
// map only grows; entries are a mutex each and sessions are bounded by
// traffic, so no eviction is done here.
func (c *ConversationService) sessionLock(sessionID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.locks[sessionID]; ok {
		return l
	}
	l := &sync.Mutex{}
	c.locks[sessionID] = l
	return l
}

func (c *ConversationService) ensureSession(ctx context.Context, sessionID, language string) (*domain.Session, bool, error) {
	if sessionID != "" {
		s, err := c.Sessions.GetSession(ctx, c.DB, sessionID)
		if err == nil {
			return s, false, nil
		}
	}
	s := &domain.Session{
		ID:       crypto.NewSessionID(),
		Stage:    domain.StageConsent,
		Language: language,
	}
	if sessionID != "" {
		s.ID = sessionID
	}
	if err := c.Sessions.CreateSession(ctx, c.DB, s); err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// analyze calls the NLU collaborator with a bounded context. Collaborator
// failure degrades to an unknown-intent classification so the conversation
// keeps moving.
func (c *ConversationService) analyze(ctx context.Context, message, language string) nlu.Analysis {
	actx, cancel := context.WithTimeout(ctx, c.NLUTimeout)
	defer cancel()
	analysis, err := c.NLU.Analyze(actx, message, language)
	if err != nil {
		log.Warn().Err(err).Msg("NLU analysis unavailable, degrading to unknown intent")
		return nlu.Analysis{Intent: nlu.IntentUnknown}
	}
	return analysis
}

func (c *ConversationService) submitFromSession(ctx context.Context, s *domain.Session) (SubmitResult, error) {
	incidentType := domain.NotSpecified
	for _, t := range s.IncidentTypes {
		if t != domain.NotSpecified {
			incidentType = t
			break
		}
	}
	mappingConsent := s.County != "" && s.County != domain.NotSpecified
	res, err := c.Reports.Submit(ctx, SubmitRecord{
		SessionID:    s.ID,
		Description:  s.Description,
		County:       s.County,
		LocationText: s.LocationDescription,
		IncidentType: incidentType,
		Timeframe:    s.Timeframe,
		Relationship: s.Relationship,
		SupportNeeds: s.SupportNeeds,
		Barriers:     s.ReportingBarriers,
		Language:     s.Language,
		Source:       "chat",
	}, mappingConsent)
	if err != nil {
		return SubmitResult{}, err
	}
	if !res.Accepted {
		// Narrative too thin: back up one stage so the survivor can add
		// detail instead of dead-ending.
		s.Stage = domain.StageSubmission
		s.ReportInProgress = true
	}
	return res, nil
}

func (c *ConversationService) resourcesReply(county string) string {
	if county == domain.NotSpecified {
		county = ""
	}
	contacts := c.Dir.Lookup(county, "")
	var b strings.Builder
	b.WriteString("Here are services that can help:\n")
	for i, ct := range contacts {
		if i >= 6 {
			break
		}
		fmt.Fprintf(&b, "- %s: %s", ct.Name, ct.Phone)
		if ct.Hours != "" {
			fmt.Fprintf(&b, " (%s)", ct.Hours)
		}
		b.WriteString("\n")
	}
	b.WriteString("All of these are confidential.")
	return b.String()
}

func (c *ConversationService) reply(s *domain.Session, text string, quick []string, safety bool) ChatReply {
	return ChatReply{
		SessionID:    s.ID,
		Reply:        text,
		QuickReplies: quick,
		Stage:        s.Stage,
		Progress:     s.Progress,
		SafetyAlert:  safety || s.SafetyFlag,
	}
}
