package intervention

import "github.com/havenmind/sentinel/pkg/contracts"

// Canned immediate responses, keyed by the assessment's first crisis type
// and tiered by crisis level. An unknown or absent type falls back to the
// generic crisis-line referral.
var responseTemplates = map[contracts.CrisisType]map[contracts.CrisisLevel]string{
	contracts.CrisisSuicidalIdeation: {
		contracts.CrisisCritical: "I'm very concerned about your safety right now. Please call or text 988 " +
			"(Suicide & Crisis Lifeline) immediately — they're available 24/7. If you are in immediate " +
			"danger, call 911. I'm staying with you in this conversation. Are you somewhere safe right now?",
		contracts.CrisisHigh: "What you're describing worries me, and I want you to have real support. The 988 " +
			"Suicide & Crisis Lifeline is free and confidential — call or text 988 any time. Can we talk " +
			"about what's brought you to this point?",
		contracts.CrisisModerate: "Thank you for trusting me with something this heavy. Thoughts like these " +
			"deserve real attention — the 988 lifeline is always there, and I'd like to understand more about " +
			"how you're feeling.",
		contracts.CrisisLow: "I hear that things feel dark. I'm here, and support like the 988 lifeline is " +
			"always available if these feelings grow stronger.",
	},
	contracts.CrisisSelfHarm: {
		contracts.CrisisCritical: "I'm concerned you may hurt yourself. If you're injured, please call 911. " +
			"The Crisis Text Line (text HOME to 741741) can help right now. Can you put some distance between " +
			"yourself and anything you might use to hurt yourself?",
		contracts.CrisisHigh: "The urge to hurt yourself sounds strong right now. Let's slow down together — " +
			"try holding an ice cube or pressing your feet hard into the floor. The Crisis Text Line is at " +
			"741741 (text HOME) if you need someone this minute.",
		contracts.CrisisModerate: "I hear that hurting yourself has been on your mind. You deserve care, not " +
			"harm. Would you tell me more about when these urges show up?",
		contracts.CrisisLow: "Thank you for being honest about this. Even passing thoughts of self-harm are " +
			"worth taking seriously together.",
	},
	contracts.CrisisSevereDepression: {
		contracts.CrisisCritical: "The weight you're describing sounds crushing, and I don't want you to carry " +
			"it alone. Please reach out to 988 or a trusted person right now — and stay with me here while " +
			"you do.",
		contracts.CrisisHigh: "What you're feeling sounds like more than sadness — it sounds like it's taken " +
			"over everything. Support beyond this conversation could really help; the 988 lifeline is one " +
			"call away. What has today been like?",
		contracts.CrisisModerate: "It sounds like everything has felt heavy and gray. Those feelings are real, " +
			"and they can shift with support. What's one small thing that used to bring you relief?",
		contracts.CrisisLow: "I hear the exhaustion in what you're sharing. Let's take it one piece at a time.",
	},
}

const genericCrisisResponse = "I'm concerned about what you've shared. You don't have to handle this alone — " +
	"the 988 Suicide & Crisis Lifeline (call or text 988) and the Crisis Text Line (text HOME to 741741) are " +
	"free, confidential, and available 24/7. I'm here to keep talking with you."

// responseFor selects the immediate automated response for an assessment.
func responseFor(a *contracts.CrisisAssessment) string {
	if len(a.CrisisTypes) == 0 {
		return genericCrisisResponse
	}
	tiers, ok := responseTemplates[a.CrisisTypes[0]]
	if !ok {
		return genericCrisisResponse
	}
	if text, ok := tiers[a.Level]; ok {
		return text
	}
	return genericCrisisResponse
}
