package contracts

// Session context keys. The context map is optional everywhere it appears;
// a missing key reads as its zero value, never as an error.
const (
	CtxSessionCount             = "session_count"
	CtxPreviousViolations       = "previous_violations"
	CtxTherapeuticSession       = "therapeutic_session"
	CtxPreviousCrisisIndicators = "previous_crisis_indicators"
	CtxLocation                 = "location"
	CtxPositiveInteractions     = "positive_interactions"
	CtxSupportNetwork           = "support_network"
	CtxEngagedWithTherapist     = "engaged_with_therapist"
)

// CtxInt reads an integer signal from a session context map, tolerating
// int, int64 and float64 encodings (JSON decoding yields float64).
func CtxInt(ctx map[string]any, key string) int {
	if ctx == nil {
		return 0
	}
	switch v := ctx[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// CtxBool reads a boolean signal from a session context map. A non-zero
// numeric value also reads as true, matching loosely-typed callers.
func CtxBool(ctx map[string]any, key string) bool {
	if ctx == nil {
		return false
	}
	switch v := ctx[key].(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	return false
}

// CtxString reads a string signal from a session context map.
func CtxString(ctx map[string]any, key string) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx[key].(string)
	return s
}
