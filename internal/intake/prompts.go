// Package intake implements the guided reporting conversation as a pure
// state machine over a Session: ordered stages with progress weights,
// consent gating, an orthogonal safety interrupt, skip sentinels, and
// checkpoint-based resumption. Transitions never touch storage or the
// network; the orchestrator persists the session after every turn.
package intake

import (
	"strings"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/domain"
)

// Prompts for each collecting stage. Every question is skippable and says
// so; tone follows trauma-informed guidance (no pressure, no judgment).
var stagePrompts = map[domain.Stage]string{
	domain.StageConsent: "Before we continue, I want you to know how this works. Anything you share is stored anonymously and encrypted. You can skip any question, and you can stop at any time. Is it okay if I ask you a few questions about what happened?",

	domain.StageIncidentType: "Thank you for trusting me. Can you tell me what kind of incident you would like to report? For example physical violence, sexual violence, emotional abuse, or something else. You can also say 'skip'.",

	domain.StageTemporal: "When did this happen? It could be happening now, recently, in the past, or ongoing. You can say 'skip' if you'd rather not say.",

	domain.StageLocation: "If you feel comfortable sharing, which county did this happen in? A nearby town or area also helps. You can say 'skip'.",

	domain.StagePerpetrator: "If it's okay to ask, what is your relationship to the person who did this? For example a partner, family member, colleague, or a stranger. You can say 'prefer not to say'.",

	domain.StageSupportNeeds: "What kind of support would help you most right now? For example safety, medical care, legal help, counseling, or shelter. You can say 'skip'.",

	domain.StageBarriers: "Is there anything that has made it hard to report this before? For example fear, stigma, or not knowing how. You can say 'skip'.",

	domain.StageSubmission: "Thank you for sharing all of this with me. Would you like me to submit your report now? It stays anonymous either way.",
}

// Quick-reply chips offered alongside each prompt.
var stageQuickReplies = map[domain.Stage][]string{
	domain.StageConsent:      {"Yes, it's okay", "No, not now"},
	domain.StageIncidentType: {"Physical violence", "Sexual violence", "Emotional abuse", "Skip"},
	domain.StageTemporal:     {"Happening now", "Recently", "In the past", "Skip"},
	domain.StageLocation:     {"Skip"},
	domain.StagePerpetrator:  {"Partner", "Family member", "Stranger", "Prefer not to say"},
	domain.StageSupportNeeds: {"Safety", "Medical care", "Legal help", "Counseling", "Skip"},
	domain.StageBarriers:     {"Fear", "Stigma", "Didn't know how", "Skip"},
	domain.StageSubmission:   {"Yes, submit it", "Not yet"},
}

// Prompt returns the question for a stage, empty for terminal stages.
func Prompt(stage domain.Stage) string { return stagePrompts[stage] }

// QuickReplies returns the suggested answers for a stage.
func QuickReplies(stage domain.Stage) []string { return stageQuickReplies[stage] }

// consentDeclinedMessage closes the flow respectfully when consent is denied.
const consentDeclinedMessage = "That's completely okay, and thank you for telling me. Nothing you shared will be submitted. I'm still here if you want to talk, and you can come back any time."

// consentReexplainMessage answers anything that is neither a clear yes nor
// a clear no at the consent gate.
const consentReexplainMessage = "Just so it's clear: your report is anonymous, your words are encrypted, and nothing is shared without your say-so. You can skip any question. Would you like to continue?"

// safetyMessage is the immediate-danger guidance. Delivered once per
// interrupt, before returning to the interrupted question.
const safetyMessage = "Your safety comes first. If you are in immediate danger, please call 999 or 112 for police, or 1195 for the toll-free GBV helpline. If you can, move somewhere safer or to someone you trust. I'm staying right here with you."

// countyRepromptMessage is returned for a location answer that is not a
// recognizable Kenyan county.
const countyRepromptMessage = "I couldn't find that county. Could you check the spelling, or name the nearest big town? You can also say 'skip'."

// notSubmittedMessage closes the flow when the survivor declines submission.
const notSubmittedMessage = "That's okay. Your answers are saved safely, and nothing has been submitted. If you change your mind, just tell me and we can pick up where we left off."

// completedMessage acknowledges a finished conversation.
const completedMessage = "There's nothing more I need to ask. Thank you for your courage in sharing this."

// skipWords are free-text skip signals checked alongside the skip intent.
var skipWords = []string{"skip", "pass", "rather not", "prefer not", "don't want to say", "sipendi kusema"}

func wantsSkip(intent, text string) bool {
	if intent == "skip" {
		return true
	}
	t := strings.ToLower(text)
	for _, w := range skipWords {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

// emergencyIndicators are phrase-level danger signals checked on every
// message regardless of the collaborator's classification.
var emergencyIndicators = []string{
	"right now", "happening now", "he's here", "she's here",
	"in danger", "attacking me", "emergency",
}

func textSignalsDanger(text string) bool {
	t := strings.ToLower(text)
	for _, p := range emergencyIndicators {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}
