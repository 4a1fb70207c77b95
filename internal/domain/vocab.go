// Package domain defines the persistence models and the closed vocabularies
// used across the intake flow: incident categories, timeframes, perpetrator
// relationships, support needs, reporting barriers, intake stages, and the
// validated list of Kenyan counties. The vocabularies are externally supplied
// enumerations; the code treats them as closed sets and never invents values.
package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Sentinel values written when a survivor skips a question. They are valid
// field values, not errors.
const (
	NotSpecified   = "not_specified"
	PreferNotToSay = "prefer_not_to_say"
)

// IncidentType categorizes what happened. The set mirrors the externally
// supplied GBV taxonomy.
type IncidentType string

const (
	IncidentPhysicalViolence IncidentType = "physical_violence"
	IncidentSexualViolence   IncidentType = "sexual_violence"
	IncidentEmotionalAbuse   IncidentType = "emotional_abuse"
	IncidentEconomicAbuse    IncidentType = "economic_abuse"
	IncidentHarassment       IncidentType = "harassment"
	IncidentStalking         IncidentType = "stalking"
	IncidentOnlineGBV        IncidentType = "online_gbv"
	IncidentHarmfulPractices IncidentType = "harmful_practices"
	IncidentOther            IncidentType = "other"
)

// Timeframe locates the incident in time.
type Timeframe string

const (
	TimeframeHappeningNow Timeframe = "happening_now"
	TimeframeRecent       Timeframe = "recent"
	TimeframePast         Timeframe = "past"
	TimeframeOngoing      Timeframe = "ongoing"
	TimeframeNotSpecified Timeframe = NotSpecified
)

// Relationship describes the survivor's relationship to the perpetrator.
type Relationship string

const (
	RelIntimatePartner Relationship = "intimate_partner"
	RelExPartner       Relationship = "ex_partner"
	RelFamilyMember    Relationship = "family_member"
	RelAcquaintance    Relationship = "acquaintance"
	RelColleague       Relationship = "colleague"
	RelAuthorityFigure Relationship = "authority_figure"
	RelStranger        Relationship = "stranger"
	RelMultiple        Relationship = "multiple_perpetrators"
	RelPreferNotToSay  Relationship = PreferNotToSay
)

// SupportNeed tags the kind of help a survivor asked for.
type SupportNeed string

const (
	NeedImmediateSafety SupportNeed = "immediate_safety"
	NeedMedicalCare     SupportNeed = "medical_care"
	NeedLegalAssistance SupportNeed = "legal_assistance"
	NeedCounseling      SupportNeed = "counseling"
	NeedShelter         SupportNeed = "shelter"
	NeedNoneSpecified   SupportNeed = "none_specified"
)

// Barrier tags a reason the survivor has not reported through formal channels.
type Barrier string

const (
	BarrierFearOfRetaliation  Barrier = "fear_of_retaliation"
	BarrierStigma             Barrier = "stigma"
	BarrierDistrustAuthority  Barrier = "dont_trust_authorities"
	BarrierEconomicDependence Barrier = "economic_dependence"
	BarrierFamilyPressure     Barrier = "family_pressure"
	BarrierCulturalNorms      Barrier = "cultural_norms"
	BarrierDontKnowHow        Barrier = "dont_know_how"
)

// Stage identifies one step of the intake conversation. Stages are strictly
// ordered; each non-terminal stage doubles as a checkpoint name.
type Stage string

const (
	StageConsent         Stage = "consent"
	StageIncidentType    Stage = "incident_type"
	StageTemporal        Stage = "temporal"
	StageLocation        Stage = "location"
	StagePerpetrator     Stage = "perpetrator"
	StageSupportNeeds    Stage = "support_needs"
	StageBarriers        Stage = "barriers"
	StageSubmission      Stage = "submission"
	StageComplete        Stage = "complete"
	StageSafetyInterrupt Stage = "safety_interrupt"
)

// ReportStatus is the moderation state of a persisted incident report.
type ReportStatus string

const (
	StatusUnverified ReportStatus = "unverified"
	StatusVerified   ReportStatus = "verified"
	StatusRejected   ReportStatus = "rejected"
)

// ValidReportStatus reports whether s is one of the three moderation states.
func ValidReportStatus(s ReportStatus) bool {
	switch s {
	case StatusUnverified, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// counties is the closed list of the 47 Kenyan counties, title-cased.
var counties = []string{
	"Baringo", "Bomet", "Bungoma", "Busia", "Elgeyo-Marakwet", "Embu",
	"Garissa", "Homa Bay", "Isiolo", "Kajiado", "Kakamega", "Kericho",
	"Kiambu", "Kilifi", "Kirinyaga", "Kisii", "Kisumu", "Kitui", "Kwale",
	"Laikipia", "Lamu", "Machakos", "Makueni", "Mandera", "Marsabit",
	"Meru", "Migori", "Mombasa", "Murang'a", "Nairobi", "Nakuru", "Nandi",
	"Narok", "Nyamira", "Nyandarua", "Nyeri", "Samburu", "Siaya",
	"Taita-Taveta", "Tana River", "Tharaka-Nithi", "Trans Nzoia", "Turkana",
	"Uasin Gishu", "Vihiga", "Wajir", "West Pokot",
}

// countyByKey maps the case-folded name to its canonical spelling.
var countyByKey = func() map[string]string {
	m := make(map[string]string, len(counties))
	for _, c := range counties {
		m[strings.ToLower(c)] = c
	}
	return m
}()

// Counties returns the closed county list in alphabetical order.
func Counties() []string {
	out := make([]string, len(counties))
	copy(out, counties)
	return out
}

// NormalizeCounty validates a free-text county name against the closed list.
// It returns the canonical title-cased name and true on a match, or ("",
// false) when the name is not a Kenyan county. Matching is case-insensitive;
// spelling must be exact: "Narobi" is a rejection, not a fuzzy hit.
func NormalizeCounty(name string) (string, bool) {
	canonical, ok := countyByKey[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok
}

// TitleCase renders a lower-cased vocabulary value for display
// ("medical_care" -> "Medical Care").
func TitleCase(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

var titleCaser = cases.Title(language.English)

// NormalizeIncidentType lower-cases and underscores a free-form incident
// label so taxonomy matching is stable ("Physical Violence" ->
// "physical_violence").
func NormalizeIncidentType(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}
