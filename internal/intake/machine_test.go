package intake

import (
	"math"
	"strings"
	"testing"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/domain"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/nlu"
)

func newSession() *domain.Session {
	return &domain.Session{ID: "session_test", Stage: domain.StageConsent, Language: "en"}
}

func turn(intent, text string, entities ...nlu.Entity) TurnInput {
	return TurnInput{Text: text, Analysis: nlu.Analysis{Intent: intent, Entities: entities}}
}

// --- structural invariants ---

func TestStageWeights_SumToOne(t *testing.T) {
	var sum float64
	for _, w := range stageWeights {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("stage weights sum to %v, want 1.0", sum)
	}
}

func TestMappings_CoverEveryDomainValue(t *testing.T) {
	covered := func(m map[string]struct{}, v string) bool { _, ok := m[v]; return ok }

	tfs := map[string]struct{}{}
	for _, v := range timeframeByLabel {
		tfs[string(v)] = struct{}{}
	}
	for _, v := range []domain.Timeframe{
		domain.TimeframeHappeningNow, domain.TimeframeRecent,
		domain.TimeframePast, domain.TimeframeOngoing, domain.TimeframeNotSpecified,
	} {
		if !covered(tfs, string(v)) {
			t.Errorf("timeframe %q unreachable from any label", v)
		}
	}

	rels := map[string]struct{}{}
	for _, v := range relationshipByLabel {
		rels[string(v)] = struct{}{}
	}
	for _, v := range []domain.Relationship{
		domain.RelIntimatePartner, domain.RelExPartner, domain.RelFamilyMember,
		domain.RelAcquaintance, domain.RelColleague, domain.RelAuthorityFigure,
		domain.RelStranger, domain.RelMultiple, domain.RelPreferNotToSay,
	} {
		if !covered(rels, string(v)) {
			t.Errorf("relationship %q unreachable from any label", v)
		}
	}

	needs := map[string]struct{}{}
	for _, v := range supportNeedByLabel {
		needs[string(v)] = struct{}{}
	}
	for _, v := range []domain.SupportNeed{
		domain.NeedImmediateSafety, domain.NeedMedicalCare, domain.NeedLegalAssistance,
		domain.NeedCounseling, domain.NeedShelter, domain.NeedNoneSpecified,
	} {
		if !covered(needs, string(v)) {
			t.Errorf("support need %q unreachable from any label", v)
		}
	}

	bars := map[string]struct{}{}
	for _, v := range barrierByLabel {
		bars[string(v)] = struct{}{}
	}
	for _, v := range []domain.Barrier{
		domain.BarrierFearOfRetaliation, domain.BarrierStigma, domain.BarrierDistrustAuthority,
		domain.BarrierEconomicDependence, domain.BarrierFamilyPressure,
		domain.BarrierCulturalNorms, domain.BarrierDontKnowHow,
	} {
		if !covered(bars, string(v)) {
			t.Errorf("barrier %q unreachable from any label", v)
		}
	}
}

func TestEveryCollectingStageHasPromptAndNext(t *testing.T) {
	for _, st := range stageOrder[:len(stageOrder)-1] {
		if Prompt(st) == "" {
			t.Errorf("stage %q has no prompt", st)
		}
		if nextStage(st) == st {
			t.Errorf("stage %q does not progress", st)
		}
	}
	if nextStage(domain.StageComplete) != domain.StageComplete {
		t.Errorf("complete must be terminal")
	}
}

// --- consent gate ---

func TestConsent_AffirmAdvances(t *testing.T) {
	m := NewMachine()
	s := newSession()
	out := m.Turn(s, turn(nlu.IntentAffirm, "yes, that's okay"))
	if !out.Advanced || s.Stage != domain.StageIncidentType || !s.ConsentGiven {
		t.Fatalf("out=%+v stage=%q consent=%v", out, s.Stage, s.ConsentGiven)
	}
	if s.Progress != 0 {
		t.Fatalf("consent carries no progress weight, got %v", s.Progress)
	}
}

func TestConsent_DenyTerminatesAndRetainsData(t *testing.T) {
	m := NewMachine()
	s := newSession()
	s.IncidentTypes = domain.JSONStrings{"physical_violence"} // from a prior run
	out := m.Turn(s, turn(nlu.IntentDeny, "no"))
	if !out.ConsentDeclined || !out.Completed || s.ConsentGiven {
		t.Fatalf("out=%+v consent=%v", out, s.ConsentGiven)
	}
	if s.Stage != domain.StageComplete {
		t.Fatalf("stage = %q", s.Stage)
	}
	if len(s.IncidentTypes) != 1 {
		t.Fatalf("collected data must be retained on decline")
	}
}

func TestConsent_AmbiguousReexplains(t *testing.T) {
	m := NewMachine()
	s := newSession()
	out := m.Turn(s, turn(nlu.IntentUnknown, "what do you mean"))
	if out.Advanced || s.Stage != domain.StageConsent {
		t.Fatalf("ambiguous consent must not advance: %+v", out)
	}
	if !strings.Contains(out.Reply, "anonymous") {
		t.Fatalf("reply must re-explain data use: %q", out.Reply)
	}
}

// --- safety interrupt ---

func TestSafetyInterrupt_NonConsumingOutsideTemporal(t *testing.T) {
	m := NewMachine()
	s := newSession()
	s.ConsentGiven = true
	s.Stage = domain.StagePerpetrator

	out := m.Turn(s, turn(nlu.IntentEmergency, "he is attacking me"))
	if !out.SafetyInterrupt || out.Advanced {
		t.Fatalf("out = %+v", out)
	}
	if !s.SafetyFlag {
		t.Fatalf("safety flag must be set")
	}
	if s.Stage != domain.StagePerpetrator {
		t.Fatalf("interrupted stage must be preserved, got %q", s.Stage)
	}
	if !strings.Contains(out.Reply, "999") || !strings.Contains(out.Reply, Prompt(domain.StagePerpetrator)) {
		t.Fatalf("reply must carry guidance and repeat the question: %q", out.Reply)
	}
}

func TestSafetyInterrupt_PhraseMatchWithoutIntent(t *testing.T) {
	m := NewMachine()
	s := newSession()
	s.ConsentGiven = true
	s.Stage = domain.StageLocation

	out := m.Turn(s, turn(nlu.IntentProvideInfo, "I am in danger at home"))
	if !out.SafetyInterrupt || !s.SafetyFlag || s.Stage != domain.StageLocation {
		t.Fatalf("out=%+v stage=%q", out, s.Stage)
	}
}

func TestTemporal_DangerPhraseDetoursWithoutAnswering(t *testing.T) {
	m := NewMachine()
	s := newSession()
	s.ConsentGiven = true
	s.Stage = domain.StageTemporal

	// Danger phrasing without an explicit timeframe answer: the machine must
	// show the safety guidance, repeat the question, and record nothing.
	out := m.Turn(s, turn(nlu.IntentProvideInfo, "he is here right now"))
	if !out.SafetyInterrupt || out.Advanced {
		t.Fatalf("out = %+v", out)
	}
	if !s.SafetyFlag {
		t.Fatalf("safety flag must be set")
	}
	if s.Timeframe != "" || s.IsOngoing {
		t.Fatalf("timeframe must stay unanswered: %q ongoing=%v", s.Timeframe, s.IsOngoing)
	}
	if s.Stage != domain.StageTemporal {
		t.Fatalf("temporal question must repeat, got stage %q", s.Stage)
	}
	if !strings.Contains(out.Reply, "999") || !strings.Contains(out.Reply, Prompt(domain.StageTemporal)) {
		t.Fatalf("reply must carry guidance and repeat the question: %q", out.Reply)
	}
}

func TestTemporal_ExplicitHappeningNowRecordsAndInterrupts(t *testing.T) {
	m := NewMachine()

	cases := []struct {
		name string
		in   TurnInput
	}{
		{"entity", turn(nlu.IntentProvideInfo, "it is happening as we speak",
			nlu.Entity{Type: nlu.EntityTimeframe, Value: "happening_now"})},
		{"emergency intent", turn(nlu.IntentEmergency, "help me")},
		{"literal phrase", turn(nlu.IntentProvideInfo, "it is happening now")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSession()
			s.ConsentGiven = true
			s.Stage = domain.StageTemporal

			out := m.Turn(s, tc.in)
			if !out.SafetyInterrupt || !out.Advanced {
				t.Fatalf("out = %+v", out)
			}
			if s.Timeframe != domain.TimeframeHappeningNow || !s.IsOngoing || !s.SafetyFlag {
				t.Fatalf("session = %+v", s)
			}
			if s.Stage != domain.StageLocation {
				t.Fatalf("answer must advance the flow, got %q", s.Stage)
			}
			if !strings.Contains(out.Reply, "1195") {
				t.Fatalf("reply must include the hotline: %q", out.Reply)
			}
		})
	}
}

func TestSafetyInterrupt_HappeningNowEntityOutsideTemporal(t *testing.T) {
	m := NewMachine()
	s := newSession()
	s.ConsentGiven = true
	s.Stage = domain.StageIncidentType

	out := m.Turn(s, turn(nlu.IntentProvideInfo, "he came back",
		nlu.Entity{Type: nlu.EntityTimeframe, Value: "happening_now"}))
	if !out.SafetyInterrupt || out.Advanced || !s.SafetyFlag {
		t.Fatalf("out=%+v safety=%v", out, s.SafetyFlag)
	}
	if s.Stage != domain.StageIncidentType {
		t.Fatalf("interrupted stage must be preserved, got %q", s.Stage)
	}
	if s.Timeframe != "" {
		t.Fatalf("the detour must not consume the entity, got %q", s.Timeframe)
	}
}

// --- stage extraction ---

func TestIncidentType_EntityAdvances(t *testing.T) {
	m := NewMachine()
	s := newSession()
	s.ConsentGiven = true
	s.Stage = domain.StageIncidentType

	out := m.Turn(s, turn(nlu.IntentProvideInfo, "he beat me",
		nlu.Entity{Type: nlu.EntityIncidentType, Value: "Physical Violence"}))
	if !out.Advanced || s.Stage != domain.StageTemporal {
		t.Fatalf("out=%+v stage=%q", out, s.Stage)
	}
	if !s.IncidentTypes.Contains("physical_violence") {
		t.Fatalf("types = %v", s.IncidentTypes)
	}
	if s.LastCheckpoint != domain.StageIncidentType {
		t.Fatalf("checkpoint = %q", s.LastCheckpoint)
	}
	if math.Abs(s.Progress-0.20) > 1e-9 {
		t.Fatalf("progress = %v", s.Progress)
	}
	if s.Description == "" {
		t.Fatalf("narrative must accumulate the survivor's words")
	}
}

func TestIncidentType_NoEntityReprompts(t *testing.T) {
	m := NewMachine()
	s := newSession()
	s.ConsentGiven = true
	s.Stage = domain.StageIncidentType

	out := m.Turn(s, turn(nlu.IntentEmotionalSupport, "I feel so alone"))
	if out.Advanced || s.Stage != domain.StageIncidentType {
		t.Fatalf("out=%+v stage=%q", out, s.Stage)
	}
	if !out.NeedsAI {
		t.Fatalf("conversational input should delegate to the dialogue layer")
	}
}

func TestLocation_ValidCountyNormalizes(t *testing.T) {
	m := NewMachine()
	s := newSession()
	s.ConsentGiven = true
	s.Stage = domain.StageLocation

	out := m.Turn(s, turn(nlu.IntentProvideInfo, "it was in nairobi",
		nlu.Entity{Type: nlu.EntityCounty, Value: "nairobi"},
		nlu.Entity{Type: nlu.EntityLocation, Value: "Westlands"}))
	if !out.Advanced || s.County != "Nairobi" {
		t.Fatalf("out=%+v county=%q", out, s.County)
	}
	if s.LocationDescription != "Westlands" {
		t.Fatalf("location description = %q", s.LocationDescription)
	}
}

func TestLocation_MisspelledCountyReprompts(t *testing.T) {
	m := NewMachine()
	s := newSession()
	s.ConsentGiven = true
	s.Stage = domain.StageLocation

	out := m.Turn(s, turn(nlu.IntentProvideInfo, "Narobi",
		nlu.Entity{Type: nlu.EntityCounty, Value: "Narobi"}))
	if out.Advanced || s.County != "" {
		t.Fatalf("misspelling must not advance: out=%+v county=%q", out, s.County)
	}
	if !strings.Contains(out.Reply, "couldn't find") {
		t.Fatalf("reply = %q", out.Reply)
	}
	if s.Stage != domain.StageLocation {
		t.Fatalf("stage = %q", s.Stage)
	}
}

func TestLocation_RawTextCountyWithoutEntity(t *testing.T) {
	m := NewMachine()
	s := newSession()
	s.ConsentGiven = true
	s.Stage = domain.StageLocation

	out := m.Turn(s, turn(nlu.IntentProvideInfo, "Kisumu"))
	if !out.Advanced || s.County != "Kisumu" {
		t.Fatalf("out=%+v county=%q", out, s.County)
	}
}

func TestSkipSentinels(t *testing.T) {
	m := NewMachine()
	s := newSession()
	s.ConsentGiven = true

	s.Stage = domain.StageIncidentType
	m.Turn(s, turn(nlu.IntentSkip, "skip"))
	if !s.IncidentTypes.Contains(domain.NotSpecified) {
		t.Fatalf("incident types = %v", s.IncidentTypes)
	}

	s.Stage = domain.StageLocation
	m.Turn(s, turn(nlu.IntentProvideInfo, "I'd rather not say"))
	if s.County != domain.NotSpecified {
		t.Fatalf("county = %q", s.County)
	}

	s.Stage = domain.StagePerpetrator
	m.Turn(s, turn(nlu.IntentProvideInfo, "prefer not to say"))
	if s.Relationship != domain.RelPreferNotToSay {
		t.Fatalf("relationship = %q", s.Relationship)
	}
}

// --- full flow, progress, submission ---

func TestFullFlow_ProgressReachesOne(t *testing.T) {
	m := NewMachine()
	s := newSession()

	steps := []TurnInput{
		turn(nlu.IntentAffirm, "yes"),
		turn(nlu.IntentProvideInfo, "physical violence", nlu.Entity{Type: nlu.EntityIncidentType, Value: "physical_violence"}),
		turn(nlu.IntentProvideInfo, "it was recent", nlu.Entity{Type: nlu.EntityTimeframe, Value: "recent"}),
		turn(nlu.IntentProvideInfo, "nakuru", nlu.Entity{Type: nlu.EntityCounty, Value: "Nakuru"}),
		turn(nlu.IntentProvideInfo, "my husband", nlu.Entity{Type: nlu.EntityRelationship, Value: "husband"}),
		turn(nlu.IntentProvideInfo, "I need shelter", nlu.Entity{Type: nlu.EntitySupportNeed, Value: "shelter"}),
		turn(nlu.IntentProvideInfo, "I was afraid", nlu.Entity{Type: nlu.EntityBarrier, Value: "fear"}),
	}
	var last float64
	for i, in := range steps {
		out := m.Turn(s, in)
		if !out.Advanced {
			t.Fatalf("step %d did not advance: %+v (stage %q)", i, out, s.Stage)
		}
		if s.Progress < last {
			t.Fatalf("progress regressed at step %d: %v < %v", i, s.Progress, last)
		}
		last = s.Progress
	}
	if math.Abs(s.Progress-1.0) > 1e-9 {
		t.Fatalf("progress = %v, want 1.0", s.Progress)
	}
	if s.Stage != domain.StageSubmission {
		t.Fatalf("stage = %q", s.Stage)
	}

	out := m.Turn(s, turn(nlu.IntentAffirm, "yes, submit it"))
	if !out.ReadyToSubmit || s.Stage != domain.StageComplete {
		t.Fatalf("out=%+v stage=%q", out, s.Stage)
	}
}

func TestSubmission_DeclineCompletesWithoutSubmit(t *testing.T) {
	m := NewMachine()
	s := newSession()
	s.ConsentGiven = true
	s.Stage = domain.StageSubmission

	out := m.Turn(s, turn(nlu.IntentDeny, "not yet"))
	if out.ReadyToSubmit || !out.Completed {
		t.Fatalf("out = %+v", out)
	}
	if !strings.Contains(out.Reply, "nothing has been submitted") {
		t.Fatalf("reply = %q", out.Reply)
	}
}

// --- resumption ---

func TestResume_CheckpointMapsToNextPrompt(t *testing.T) {
	m := NewMachine()

	cases := []struct {
		name       string
		checkpoint domain.Stage
		consent    bool
		wantPrompt domain.Stage
	}{
		{"no checkpoint", "", true, domain.StageIncidentType},
		{"mid flow", domain.StageTemporal, true, domain.StageLocation},
		{"barriers done", domain.StageBarriers, true, domain.StageSubmission},
		{"never consented", domain.StageTemporal, false, domain.StageConsent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSession()
			s.ConsentGiven = tc.consent
			s.LastCheckpoint = tc.checkpoint
			out := m.Resume(s)
			if !strings.Contains(out.Reply, Prompt(tc.wantPrompt)) {
				t.Fatalf("reply %q missing prompt for %q", out.Reply, tc.wantPrompt)
			}
		})
	}
}

func TestResume_FinishedSessionIsComplete(t *testing.T) {
	m := NewMachine()
	s := newSession()
	s.ConsentGiven = true
	s.LastCheckpoint = domain.StageSubmission
	out := m.Resume(s)
	if !out.Completed {
		t.Fatalf("out = %+v", out)
	}
}
