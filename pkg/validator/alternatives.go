package validator

import (
	"strings"

	"github.com/havenmind/sentinel/pkg/contracts"
)

// Scripted alternative responses, tiered: crisis-type-specific scripts take
// priority, then professional-boundary language, then generic copy for the
// overall level.
const (
	altSuicidalIdeation = "I hear how much pain you're in right now, and I'm genuinely concerned about you. " +
		"You don't have to face this alone. Please reach out to the 988 Suicide & Crisis Lifeline — " +
		"call or text 988, any time, free and confidential. If you're in immediate danger, call 911. " +
		"Would you be willing to talk about what's making things feel this heavy?"

	altSelfHarm = "It sounds like you're carrying something really painful. When the urge to hurt yourself " +
		"feels strong, it can help to ground yourself: hold an ice cube, name five things you can see, " +
		"four you can touch, three you can hear. You deserve care, not harm. The Crisis Text Line is " +
		"there too — text HOME to 741741."

	altEthicsBoundary = "I care about the work we do together, and that's exactly why our relationship needs " +
		"to stay within this therapeutic space. Those boundaries are what make it safe to bring anything here."

	altGenericBlocked = "I'm not able to continue in that direction, but I don't want to leave you without " +
		"support. Can we look together at what's underneath this?"

	altGenericWarning = "I want to be thoughtful about how we approach this. Could you tell me more about " +
		"what's going on for you, so we can find a safer way through it?"
)

func alternativeContent(r *contracts.ValidationResult) string {
	for _, ct := range r.CrisisTypes {
		switch ct {
		case contracts.CrisisSuicidalIdeation:
			return altSuicidalIdeation
		case contracts.CrisisSelfHarm:
			return altSelfHarm
		}
	}

	for _, f := range r.Findings {
		if strings.Contains(f.Category, "ethics") || strings.Contains(f.RuleID, "ethics") {
			return altEthicsBoundary
		}
	}

	switch r.Level {
	case contracts.LevelBlocked:
		return altGenericBlocked
	case contracts.LevelWarning:
		return altGenericWarning
	}
	return ""
}
