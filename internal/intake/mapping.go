package intake

import (
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/domain"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/nlu"
)

// Closed lookup tables from collaborator entity labels to domain values.
// Unknown labels map to nothing; the turn then re-prompts instead of
// guessing. Exhaustiveness over the domain enums is asserted in tests.

var timeframeByLabel = map[string]domain.Timeframe{
	"happening_now": domain.TimeframeHappeningNow,
	"now":           domain.TimeframeHappeningNow,
	"recent":        domain.TimeframeRecent,
	"recently":      domain.TimeframeRecent,
	"past":          domain.TimeframePast,
	"ongoing":       domain.TimeframeOngoing,
	"not_specified": domain.TimeframeNotSpecified,
}

var relationshipByLabel = map[string]domain.Relationship{
	"intimate_partner":      domain.RelIntimatePartner,
	"partner":               domain.RelIntimatePartner,
	"husband":               domain.RelIntimatePartner,
	"wife":                  domain.RelIntimatePartner,
	"boyfriend":             domain.RelIntimatePartner,
	"girlfriend":            domain.RelIntimatePartner,
	"ex_partner":            domain.RelExPartner,
	"ex":                    domain.RelExPartner,
	"family_member":         domain.RelFamilyMember,
	"family":                domain.RelFamilyMember,
	"relative":              domain.RelFamilyMember,
	"acquaintance":          domain.RelAcquaintance,
	"neighbor":              domain.RelAcquaintance,
	"friend":                domain.RelAcquaintance,
	"colleague":             domain.RelColleague,
	"coworker":              domain.RelColleague,
	"boss":                  domain.RelAuthorityFigure,
	"authority_figure":      domain.RelAuthorityFigure,
	"teacher":               domain.RelAuthorityFigure,
	"police":                domain.RelAuthorityFigure,
	"stranger":              domain.RelStranger,
	"multiple_perpetrators": domain.RelMultiple,
	"multiple":              domain.RelMultiple,
	"prefer_not_to_say":     domain.RelPreferNotToSay,
}

var supportNeedByLabel = map[string]domain.SupportNeed{
	"immediate_safety": domain.NeedImmediateSafety,
	"safety":           domain.NeedImmediateSafety,
	"medical_care":     domain.NeedMedicalCare,
	"medical":          domain.NeedMedicalCare,
	"hospital":         domain.NeedMedicalCare,
	"legal_assistance": domain.NeedLegalAssistance,
	"legal":            domain.NeedLegalAssistance,
	"justice":          domain.NeedLegalAssistance,
	"counseling":       domain.NeedCounseling,
	"therapy":          domain.NeedCounseling,
	"shelter":          domain.NeedShelter,
	"housing":          domain.NeedShelter,
	"none_specified":   domain.NeedNoneSpecified,
	"none":             domain.NeedNoneSpecified,
}

var barrierByLabel = map[string]domain.Barrier{
	"fear_of_retaliation":    domain.BarrierFearOfRetaliation,
	"fear":                   domain.BarrierFearOfRetaliation,
	"stigma":                 domain.BarrierStigma,
	"shame":                  domain.BarrierStigma,
	"dont_trust_authorities": domain.BarrierDistrustAuthority,
	"distrust":               domain.BarrierDistrustAuthority,
	"economic_dependence":    domain.BarrierEconomicDependence,
	"money":                  domain.BarrierEconomicDependence,
	"family_pressure":        domain.BarrierFamilyPressure,
	"family":                 domain.BarrierFamilyPressure,
	"cultural_norms":         domain.BarrierCulturalNorms,
	"culture":                domain.BarrierCulturalNorms,
	"dont_know_how":          domain.BarrierDontKnowHow,
	"didnt_know_how":         domain.BarrierDontKnowHow,
}

// stageEntity names the entity type each collecting stage consumes. A stage
// absent from this table collects no entities (consent, submission).
var stageEntity = map[domain.Stage]string{
	domain.StageIncidentType: nlu.EntityIncidentType,
	domain.StageTemporal:     nlu.EntityTimeframe,
	domain.StageLocation:     nlu.EntityCounty,
	domain.StagePerpetrator:  nlu.EntityRelationship,
	domain.StageSupportNeeds: nlu.EntitySupportNeed,
	domain.StageBarriers:     nlu.EntityBarrier,
}

// knownIntents is the closed set of collaborator intents the machine
// recognizes. Anything else is handled as nlu.IntentUnknown.
var knownIntents = map[string]struct{}{
	nlu.IntentGreeting:         {},
	nlu.IntentAffirm:           {},
	nlu.IntentDeny:             {},
	nlu.IntentSkip:             {},
	nlu.IntentReportIncident:   {},
	nlu.IntentProvideInfo:      {},
	nlu.IntentEmergency:        {},
	nlu.IntentSeekingResources: {},
	nlu.IntentEmotionalSupport: {},
	nlu.IntentGoodbye:          {},
	nlu.IntentUnknown:          {},
}

func canonicalIntent(intent string) string {
	if _, ok := knownIntents[intent]; ok {
		return intent
	}
	return nlu.IntentUnknown
}
