package engine

import (
	"regexp"

	"github.com/havenmind/sentinel/pkg/contracts"
)

// crisisPattern is one entry in the fixed internal crisis catalog. The
// crisis-detection strategy matches these regardless of the rule's own
// pattern, so catalog edits cannot silently drop crisis coverage.
type crisisPattern struct {
	Type   contracts.CrisisType
	Regexp *regexp.Regexp
}

var crisisPatterns = []crisisPattern{
	{
		Type: contracts.CrisisSuicidalIdeation,
		Regexp: regexp.MustCompile(`(?i)\b(kill(ing)?\s+(myself|me)\b|suicid|end(ing)?\s+my\s+(own\s+)?life|take\s+my\s+(own\s+)?life|want\s+to\s+die|don'?t\s+want\s+to\s+(live|be\s+alive)|better\s+off\s+dead|no\s+reason\s+to\s+live)`),
	},
	{
		Type: contracts.CrisisSelfHarm,
		Regexp: regexp.MustCompile(`(?i)(cut(ting)?\s+(myself|my\s+(arms?|legs?|wrists?))|hurt(ing)?\s+myself|self[\s-]?harm|burn(ing)?\s+myself|punish(ing)?\s+myself\s+physically)`),
	},
	{
		Type: contracts.CrisisSevereDepression,
		Regexp: regexp.MustCompile(`(?i)(hopeless|worthless|no\s+point\s+(in|to)\s+anything|can'?t\s+go\s+on|completely\s+empty|nothing\s+matters|unbearable)`),
	},
}
