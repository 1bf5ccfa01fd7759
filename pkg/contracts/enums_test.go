package contracts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenmind/sentinel/pkg/contracts"
)

func TestParseSafetyLevel(t *testing.T) {
	for _, s := range []string{"safe", "warning", "blocked"} {
		level, err := contracts.ParseSafetyLevel(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(level))
	}

	_, err := contracts.ParseSafetyLevel("severe")
	assert.Error(t, err)
}

func TestSafetyLevel_Severity_Ordering(t *testing.T) {
	assert.Less(t, contracts.LevelSafe.Severity(), contracts.LevelWarning.Severity())
	assert.Less(t, contracts.LevelWarning.Severity(), contracts.LevelBlocked.Severity())
}

func TestParseValidationStrategy(t *testing.T) {
	for _, s := range []string{"keyword", "sentiment", "context_aware", "crisis_detection", "therapeutic_boundary"} {
		strategy, err := contracts.ParseValidationStrategy(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(strategy))
	}

	_, err := contracts.ParseValidationStrategy("regex")
	assert.Error(t, err)
}

func TestCrisisType_HighRisk(t *testing.T) {
	assert.True(t, contracts.CrisisSuicidalIdeation.HighRisk())
	assert.True(t, contracts.CrisisSelfHarm.HighRisk())
	assert.False(t, contracts.CrisisSevereDepression.HighRisk())
}

func TestCrisisLevel_Rank_Ordering(t *testing.T) {
	assert.Less(t, contracts.CrisisLow.Rank(), contracts.CrisisModerate.Rank())
	assert.Less(t, contracts.CrisisModerate.Rank(), contracts.CrisisHigh.Rank())
	assert.Less(t, contracts.CrisisHigh.Rank(), contracts.CrisisCritical.Rank())
}

func TestParseNotificationChannel(t *testing.T) {
	ch, err := contracts.ParseNotificationChannel("sms")
	require.NoError(t, err)
	assert.Equal(t, contracts.ChannelSMS, ch)

	_, err = contracts.ParseNotificationChannel("carrier-pigeon")
	assert.Error(t, err)
}

func TestCtxHelpers(t *testing.T) {
	ctx := map[string]any{
		"session_count": 4,
		"float_count":   float64(7),
		"int64_count":   int64(9),
		"flag":          true,
		"name":          "plaza",
	}

	assert.Equal(t, 4, contracts.CtxInt(ctx, "session_count"))
	assert.Equal(t, 7, contracts.CtxInt(ctx, "float_count"))
	assert.Equal(t, 9, contracts.CtxInt(ctx, "int64_count"))
	assert.Equal(t, 0, contracts.CtxInt(ctx, "missing"))
	assert.True(t, contracts.CtxBool(ctx, "flag"))
	assert.True(t, contracts.CtxBool(ctx, "session_count"))
	assert.True(t, contracts.CtxBool(ctx, "float_count"))
	assert.True(t, contracts.CtxBool(ctx, "int64_count"))
	assert.False(t, contracts.CtxBool(ctx, "missing"))
	assert.False(t, contracts.CtxBool(map[string]any{"zero": int64(0)}, "zero"))
	assert.Equal(t, "plaza", contracts.CtxString(ctx, "name"))
	assert.Equal(t, "", contracts.CtxString(nil, "name"))
}
