package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenmind/sentinel/pkg/catalog"
	"github.com/havenmind/sentinel/pkg/contracts"
)

func sampleRules() []contracts.SafetyRule {
	return []contracts.SafetyRule{
		{
			ID:       "low-prio",
			Category: "behavioral_pattern",
			Priority: 10,
			Level:    contracts.LevelWarning,
			Strategy: contracts.StrategyKeyword,
			Pattern:  `bypass`,
		},
		{
			ID:       "high-prio",
			Category: "crisis_detection",
			Priority: 90,
			Level:    contracts.LevelBlocked,
			Strategy: contracts.StrategyCrisisDetection,
		},
	}
}

func TestNew_SortsByPriorityDescending(t *testing.T) {
	cat, err := catalog.New(sampleRules())
	require.NoError(t, err)

	rules := cat.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "high-prio", rules[0].ID)
	assert.Equal(t, "low-prio", rules[1].ID)
}

func TestNew_RejectsDuplicateIDs(t *testing.T) {
	rules := sampleRules()
	rules[1].ID = rules[0].ID

	_, err := catalog.New(rules)
	require.Error(t, err)
	var cfgErr *catalog.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "id", cfgErr.Field)
}

func TestNew_RejectsUnknownEnums(t *testing.T) {
	rules := sampleRules()
	rules[0].Level = "severe"
	_, err := catalog.New(rules)
	assert.Error(t, err)

	rules = sampleRules()
	rules[0].Strategy = "regex"
	_, err = catalog.New(rules)
	assert.Error(t, err)

	rules = sampleRules()
	rules[0].CrisisType = "mild_worry"
	_, err = catalog.New(rules)
	assert.Error(t, err)
}

func TestNew_DefaultsEscalationThreshold(t *testing.T) {
	cat, err := catalog.New(sampleRules())
	require.NoError(t, err)

	rule, ok := cat.Rule("low-prio")
	require.True(t, ok)
	assert.Equal(t, catalog.DefaultEscalationThreshold, rule.EscalationThreshold)
}

func TestNew_BadPatternDisablesOnlyThatRule(t *testing.T) {
	rules := sampleRules()
	rules[0].Pattern = `([unclosed`

	cat, err := catalog.New(rules)
	require.NoError(t, err)

	broken, ok := cat.Rule("low-prio")
	require.True(t, ok)
	assert.Error(t, broken.PatternErr)
	assert.Nil(t, broken.Regexp)

	healthy, ok := cat.Rule("high-prio")
	require.True(t, ok)
	assert.NoError(t, healthy.PatternErr)
}

func TestContentHash_IndependentOfRuleOrder(t *testing.T) {
	rules := sampleRules()
	a, err := catalog.New(rules)
	require.NoError(t, err)

	reversed := []contracts.SafetyRule{rules[1], rules[0]}
	b, err := catalog.New(reversed)
	require.NoError(t, err)

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Version(), b.Version())
}

func TestContentHash_ChangesWithContent(t *testing.T) {
	a, err := catalog.New(sampleRules())
	require.NoError(t, err)

	changed := sampleRules()
	changed[0].Sensitivity = 0.42
	b, err := catalog.New(changed)
	require.NoError(t, err)

	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestHolder_AddRule_SwapsNewVersion(t *testing.T) {
	cat, err := catalog.New(sampleRules())
	require.NoError(t, err)
	holder := catalog.NewHolder(cat)

	before := holder.Current()

	var reloaded *catalog.Catalog
	holder.OnReload(func(c *catalog.Catalog) { reloaded = c })

	next, err := holder.AddRule(contracts.SafetyRule{
		ID:       "added",
		Category: "professional_ethics",
		Priority: 50,
		Level:    contracts.LevelWarning,
		Strategy: contracts.StrategyKeyword,
		Pattern:  `be my friend`,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, next.Len())
	assert.Same(t, next, holder.Current())
	assert.Same(t, next, reloaded)
	// The earlier snapshot is untouched.
	assert.Equal(t, 2, before.Len())
}

func TestHolder_AddRule_InvalidRuleLeavesCatalog(t *testing.T) {
	cat, err := catalog.New(sampleRules())
	require.NoError(t, err)
	holder := catalog.NewHolder(cat)

	_, err = holder.AddRule(contracts.SafetyRule{ID: "bad", Strategy: "nope", Level: contracts.LevelSafe, Category: "x"})
	require.Error(t, err)
	assert.Same(t, cat, holder.Current())
}

func TestHolder_RemoveRule(t *testing.T) {
	cat, err := catalog.New(sampleRules())
	require.NoError(t, err)
	holder := catalog.NewHolder(cat)

	removed, err := holder.RemoveRule("low-prio")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 1, holder.Current().Len())

	removed, err = holder.RemoveRule("no-such-rule")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 1, holder.Current().Len())
}

func TestDefault_BuildsCleanCatalog(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	assert.Greater(t, cat.Len(), 0)
	for _, rule := range cat.Rules() {
		assert.NoError(t, rule.PatternErr, "rule %s", rule.ID)
	}
}
