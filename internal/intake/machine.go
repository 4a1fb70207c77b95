package intake

import (
	"strings"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/domain"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/nlu"
)

// stageOrder is the strict progression of the intake flow.
var stageOrder = []domain.Stage{
	domain.StageConsent,
	domain.StageIncidentType,
	domain.StageTemporal,
	domain.StageLocation,
	domain.StagePerpetrator,
	domain.StageSupportNeeds,
	domain.StageBarriers,
	domain.StageSubmission,
	domain.StageComplete,
}

// stageWeights distributes intake progress across the collecting stages.
// The weights sum to 1.0; consent and submission carry none.
var stageWeights = map[domain.Stage]float64{
	domain.StageIncidentType: 0.20,
	domain.StageTemporal:     0.15,
	domain.StageLocation:     0.15,
	domain.StagePerpetrator:  0.20,
	domain.StageSupportNeeds: 0.15,
	domain.StageBarriers:     0.15,
}

// nextStage returns the stage after s in the progression, or StageComplete
// when s is terminal or unknown.
func nextStage(s domain.Stage) domain.Stage {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return domain.StageComplete
}

// TurnInput is one classified survivor message.
type TurnInput struct {
	Text     string
	Analysis nlu.Analysis
}

// TurnOutcome is the machine's decision for one turn. Exactly one of the
// boolean facets describes the turn; a turn that extracts nothing is a
// re-prompt, never an error.
type TurnOutcome struct {
	Reply        string
	QuickReplies []string

	Advanced        bool // a stage was completed this turn
	SafetyInterrupt bool // danger detour; the interrupted question repeats
	ConsentDeclined bool // explicit no at the consent gate
	ReadyToSubmit   bool // survivor confirmed submission
	Completed       bool // flow ended without submission
	NeedsAI         bool // conversational input; delegate to the dialogue layer
}

// Machine drives intake transitions. It is stateless and safe for concurrent
// use; all mutable state lives on the Session.
type Machine struct{}

// NewMachine returns the intake state machine.
func NewMachine() *Machine { return &Machine{} }

// Turn processes one classified message against the session, mutating the
// session in place and returning the decision. The caller persists the
// session afterwards.
func (m *Machine) Turn(s *domain.Session, in TurnInput) TurnOutcome {
	intent := canonicalIntent(in.Analysis.Intent)

	if s.Stage == "" {
		s.Stage = domain.StageConsent
	}
	if s.Stage == domain.StageComplete {
		return TurnOutcome{Reply: completedMessage, Completed: true, NeedsAI: true}
	}

	danger := intent == nlu.IntentEmergency || textSignalsDanger(in.Text) ||
		timeframeByLabel[strings.ToLower(in.Analysis.Entity(nlu.EntityTimeframe))] == domain.TimeframeHappeningNow

	// The temporal question owns "happening now": an explicit answer there is
	// also the answer. Everywhere else danger is a non-consuming detour.
	if danger && s.Stage != domain.StageTemporal {
		s.SafetyFlag = true
		return TurnOutcome{
			Reply:           safetyMessage + "\n\n" + Prompt(s.Stage),
			QuickReplies:    QuickReplies(s.Stage),
			SafetyInterrupt: true,
		}
	}

	switch s.Stage {
	case domain.StageConsent:
		return m.consentTurn(s, intent)
	case domain.StageIncidentType:
		return m.incidentTypeTurn(s, intent, in)
	case domain.StageTemporal:
		return m.temporalTurn(s, intent, in, danger)
	case domain.StageLocation:
		return m.locationTurn(s, intent, in)
	case domain.StagePerpetrator:
		return m.perpetratorTurn(s, intent, in)
	case domain.StageSupportNeeds:
		return m.supportNeedsTurn(s, intent, in)
	case domain.StageBarriers:
		return m.barriersTurn(s, intent, in)
	case domain.StageSubmission:
		return m.submissionTurn(s, intent)
	}

	// Unknown stage values heal to the consent gate.
	s.Stage = domain.StageConsent
	return TurnOutcome{Reply: Prompt(domain.StageConsent), QuickReplies: QuickReplies(domain.StageConsent)}
}

// Resume produces the re-entry prompt for a dormant session: the question of
// the stage after the stored checkpoint. A session without a checkpoint
// restarts at the first question (or the consent gate when consent was never
// given).
func (m *Machine) Resume(s *domain.Session) TurnOutcome {
	if !s.ConsentGiven {
		return TurnOutcome{Reply: Prompt(domain.StageConsent), QuickReplies: QuickReplies(domain.StageConsent)}
	}
	next := domain.StageIncidentType
	if s.LastCheckpoint != "" {
		next = nextStage(s.LastCheckpoint)
	}
	if next == domain.StageComplete {
		return TurnOutcome{Reply: completedMessage, Completed: true}
	}
	s.Stage = next
	return TurnOutcome{
		Reply:        "Welcome back. We can pick up right where we left off. " + Prompt(next),
		QuickReplies: QuickReplies(next),
	}
}

// --- per-stage transitions ---

func (m *Machine) consentTurn(s *domain.Session, intent string) TurnOutcome {
	switch intent {
	case nlu.IntentAffirm:
		s.ConsentGiven = true
		s.ReportInProgress = true
		m.advance(s)
		return TurnOutcome{
			Reply:        Prompt(s.Stage),
			QuickReplies: QuickReplies(s.Stage),
			Advanced:     true,
		}
	case nlu.IntentDeny:
		s.ConsentGiven = false
		s.Stage = domain.StageComplete
		return TurnOutcome{Reply: consentDeclinedMessage, ConsentDeclined: true, Completed: true}
	default:
		// Anything that is not a clear yes or no re-explains data use.
		return TurnOutcome{Reply: consentReexplainMessage, QuickReplies: QuickReplies(domain.StageConsent)}
	}
}

func (m *Machine) incidentTypeTurn(s *domain.Session, intent string, in TurnInput) TurnOutcome {
	if wantsSkip(intent, in.Text) {
		s.IncidentTypes = s.IncidentTypes.Add(domain.NotSpecified)
		return m.advanceOutcome(s)
	}
	recorded := false
	for _, v := range in.Analysis.EntityValues(nlu.EntityIncidentType) {
		if norm := domain.NormalizeIncidentType(v); norm != "" {
			s.IncidentTypes = s.IncidentTypes.Add(norm)
			recorded = true
		}
	}
	if recorded {
		m.appendNarrative(s, in.Text)
		return m.advanceOutcome(s)
	}
	return m.reprompt(s, intent)
}

func (m *Machine) temporalTurn(s *domain.Session, intent string, in TurnInput, danger bool) TurnOutcome {
	if wantsSkip(intent, in.Text) {
		s.Timeframe = domain.TimeframeNotSpecified
		return m.advanceOutcome(s)
	}

	var tf domain.Timeframe
	if label := in.Analysis.Entity(nlu.EntityTimeframe); label != "" {
		tf = timeframeByLabel[strings.ToLower(label)]
	}
	// Only an explicit signal fills the timeframe: the extracted entity, the
	// emergency intent, or the survivor saying "happening now" outright.
	// Softer danger phrasing ("he is here right now") is not an answer; it
	// gets the same non-consuming detour as every other stage, and the
	// temporal question waits.
	if tf == "" && (intent == nlu.IntentEmergency || strings.Contains(strings.ToLower(in.Text), "happening now")) {
		tf = domain.TimeframeHappeningNow
	}
	if tf == "" {
		if danger {
			s.SafetyFlag = true
			return TurnOutcome{
				Reply:           safetyMessage + "\n\n" + Prompt(s.Stage),
				QuickReplies:    QuickReplies(s.Stage),
				SafetyInterrupt: true,
			}
		}
		return m.reprompt(s, intent)
	}

	s.Timeframe = tf
	if tf == domain.TimeframeHappeningNow || tf == domain.TimeframeOngoing {
		s.IsOngoing = true
	}
	m.appendNarrative(s, in.Text)

	if tf == domain.TimeframeHappeningNow {
		// Recorded and interrupted at once: the answer advances the flow,
		// the danger gets the safety guidance prepended.
		s.SafetyFlag = true
		out := m.advanceOutcome(s)
		out.Reply = safetyMessage + "\n\n" + out.Reply
		out.SafetyInterrupt = true
		return out
	}
	return m.advanceOutcome(s)
}

func (m *Machine) locationTurn(s *domain.Session, intent string, in TurnInput) TurnOutcome {
	if wantsSkip(intent, in.Text) {
		s.County = domain.NotSpecified
		return m.advanceOutcome(s)
	}

	if loc := in.Analysis.Entity(nlu.EntityLocation); loc != "" {
		s.LocationDescription = loc
	}

	candidate := in.Analysis.Entity(nlu.EntityCounty)
	if candidate == "" {
		// The raw message may itself name the county.
		candidate = in.Text
	}
	if canonical, ok := domain.NormalizeCounty(candidate); ok {
		s.County = canonical
		m.appendNarrative(s, in.Text)
		return m.advanceOutcome(s)
	}

	// A named but unrecognized county re-prompts without advancing.
	if in.Analysis.Entity(nlu.EntityCounty) != "" {
		return TurnOutcome{Reply: countyRepromptMessage, QuickReplies: QuickReplies(s.Stage)}
	}
	if s.LocationDescription != "" {
		return TurnOutcome{Reply: countyRepromptMessage, QuickReplies: QuickReplies(s.Stage)}
	}
	return m.reprompt(s, intent)
}

func (m *Machine) perpetratorTurn(s *domain.Session, intent string, in TurnInput) TurnOutcome {
	if wantsSkip(intent, in.Text) {
		s.Relationship = domain.RelPreferNotToSay
		return m.advanceOutcome(s)
	}
	if label := in.Analysis.Entity(nlu.EntityRelationship); label != "" {
		if rel, ok := relationshipByLabel[strings.ToLower(label)]; ok {
			s.Relationship = rel
			m.appendNarrative(s, in.Text)
			return m.advanceOutcome(s)
		}
	}
	return m.reprompt(s, intent)
}

func (m *Machine) supportNeedsTurn(s *domain.Session, intent string, in TurnInput) TurnOutcome {
	if wantsSkip(intent, in.Text) {
		s.SupportNeeds = s.SupportNeeds.Add(string(domain.NeedNoneSpecified))
		return m.advanceOutcome(s)
	}
	recorded := false
	for _, v := range in.Analysis.EntityValues(nlu.EntitySupportNeed) {
		if need, ok := supportNeedByLabel[strings.ToLower(v)]; ok {
			s.SupportNeeds = s.SupportNeeds.Add(string(need))
			recorded = true
		}
	}
	if recorded {
		m.appendNarrative(s, in.Text)
		return m.advanceOutcome(s)
	}
	return m.reprompt(s, intent)
}

func (m *Machine) barriersTurn(s *domain.Session, intent string, in TurnInput) TurnOutcome {
	if wantsSkip(intent, in.Text) {
		return m.advanceOutcome(s)
	}
	recorded := false
	for _, v := range in.Analysis.EntityValues(nlu.EntityBarrier) {
		if b, ok := barrierByLabel[strings.ToLower(v)]; ok {
			s.ReportingBarriers = s.ReportingBarriers.Add(string(b))
			recorded = true
		}
	}
	if recorded {
		m.appendNarrative(s, in.Text)
		return m.advanceOutcome(s)
	}
	return m.reprompt(s, intent)
}

func (m *Machine) submissionTurn(s *domain.Session, intent string) TurnOutcome {
	switch intent {
	case nlu.IntentAffirm, nlu.IntentReportIncident:
		s.Stage = domain.StageComplete
		s.LastCheckpoint = domain.StageSubmission
		s.ReportInProgress = false
		return TurnOutcome{ReadyToSubmit: true, Advanced: true}
	case nlu.IntentDeny:
		s.Stage = domain.StageComplete
		s.ReportInProgress = false
		return TurnOutcome{Reply: notSubmittedMessage, Completed: true}
	default:
		return TurnOutcome{Reply: Prompt(domain.StageSubmission), QuickReplies: QuickReplies(domain.StageSubmission)}
	}
}

// --- shared helpers ---

// advance records the current stage as the checkpoint, credits its weight,
// and moves to the next stage. Progress is monotone and capped at 1.
func (m *Machine) advance(s *domain.Session) {
	s.LastCheckpoint = s.Stage
	s.Progress += stageWeights[s.Stage]
	if s.Progress > 1 {
		s.Progress = 1
	}
	s.Stage = nextStage(s.Stage)
}

func (m *Machine) advanceOutcome(s *domain.Session) TurnOutcome {
	m.advance(s)
	return TurnOutcome{
		Reply:        Prompt(s.Stage),
		QuickReplies: QuickReplies(s.Stage),
		Advanced:     true,
	}
}

// reprompt repeats the current question. Clearly conversational input is
// flagged for the dialogue layer so the survivor gets a human-feeling reply
// ahead of the repeated question.
func (m *Machine) reprompt(s *domain.Session, intent string) TurnOutcome {
	out := TurnOutcome{Reply: Prompt(s.Stage), QuickReplies: QuickReplies(s.Stage)}
	switch intent {
	case nlu.IntentEmotionalSupport, nlu.IntentGreeting, nlu.IntentUnknown:
		out.NeedsAI = true
	}
	return out
}

// appendNarrative accumulates raw answers into the session description so
// the final report carries the survivor's own words.
func (m *Machine) appendNarrative(s *domain.Session, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if s.Description == "" {
		s.Description = text
		return
	}
	s.Description += " " + text
}
