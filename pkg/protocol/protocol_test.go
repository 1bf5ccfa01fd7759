package protocol_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenmind/sentinel/pkg/contracts"
	"github.com/havenmind/sentinel/pkg/protocol"
)

type recordingNotifier struct {
	messages []string
	err      error
}

func (n *recordingNotifier) NotifyHuman(_ context.Context, message string, _ map[string]any) error {
	n.messages = append(n.messages, message)
	return n.err
}

type recordingContactor struct {
	services []string
	err      error
}

func (c *recordingContactor) ContactEmergency(_ context.Context, service string, _ map[string]any) error {
	c.services = append(c.services, service)
	return c.err
}

func TestNewEngine_RejectsUnknownStepType(t *testing.T) {
	_, err := protocol.NewEngine(map[string][]protocol.Step{
		"default": {{Name: "bad", Type: "summon_wizard"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step type")
}

func TestNewEngine_NilUsesBuiltinCatalog(t *testing.T) {
	e, err := protocol.NewEngine(nil)
	require.NoError(t, err)

	steps := e.Resolve(contracts.CrisisSuicidalIdeation, contracts.CrisisCritical)
	require.NotEmpty(t, steps)
	assert.Equal(t, protocol.StepGenerateResponse, steps[0].Type)
}

func TestResolve_FallbackChain(t *testing.T) {
	e, err := protocol.NewEngine(map[string][]protocol.Step{
		"suicidal_ideation:critical": {{Name: "exact", Type: protocol.StepLogEvent}},
		"suicidal_ideation:default":  {{Name: "type-default", Type: protocol.StepLogEvent}},
		"default":                    {{Name: "global-default", Type: protocol.StepLogEvent}},
	})
	require.NoError(t, err)

	assert.Equal(t, "exact", e.Resolve(contracts.CrisisSuicidalIdeation, contracts.CrisisCritical)[0].Name)
	assert.Equal(t, "type-default", e.Resolve(contracts.CrisisSuicidalIdeation, contracts.CrisisHigh)[0].Name)
	assert.Equal(t, "global-default", e.Resolve(contracts.CrisisSevereDepression, contracts.CrisisHigh)[0].Name)
}

func TestExecute_CriticalStepFailureAborts(t *testing.T) {
	contactor := &recordingContactor{err: errors.New("gateway refused")}
	notifier := &recordingNotifier{}
	e, err := protocol.NewEngine(map[string][]protocol.Step{
		"default": {
			{Name: "contact", Type: protocol.StepContactEmergency, Critical: true, Params: map[string]any{"service": "mental_health_crisis"}},
			{Name: "alert", Type: protocol.StepNotifyHuman, Params: map[string]any{"message": "never reached"}},
		},
	}, protocol.WithContactor(contactor), protocol.WithNotifier(notifier))
	require.NoError(t, err)

	exec := e.Execute(context.Background(), contracts.CrisisSuicidalIdeation, contracts.CrisisCritical, nil)

	assert.False(t, exec.Success)
	assert.True(t, exec.Aborted)
	require.Len(t, exec.Steps, 1)
	assert.False(t, exec.Steps[0].Success)
	assert.Contains(t, exec.Steps[0].Error, "gateway refused")
	assert.Empty(t, notifier.messages)

	// Failed executions are archived too.
	require.Len(t, e.History(), 1)
	assert.Equal(t, exec.ID, e.History()[0].ID)
}

func TestExecute_NonCriticalFailureContinues(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("pager offline")}
	e, err := protocol.NewEngine(map[string][]protocol.Step{
		"default": {
			{Name: "alert", Type: protocol.StepNotifyHuman, Params: map[string]any{"message": "m"}},
			{Name: "resources", Type: protocol.StepProvideResources},
		},
	}, protocol.WithNotifier(notifier))
	require.NoError(t, err)

	exec := e.Execute(context.Background(), contracts.CrisisSelfHarm, contracts.CrisisHigh, nil)

	assert.False(t, exec.Success)
	assert.False(t, exec.Aborted)
	require.Len(t, exec.Steps, 2)
	assert.False(t, exec.Steps[0].Success)
	assert.True(t, exec.Steps[1].Success)
}

func TestExecute_TemplateSubstitution(t *testing.T) {
	notifier := &recordingNotifier{}
	e, err := protocol.NewEngine(map[string][]protocol.Step{
		"default": {
			{Name: "respond", Type: protocol.StepGenerateResponse, Params: map[string]any{"template": "Stay with me, session {session_id}."}},
			{Name: "alert", Type: protocol.StepNotifyHuman, Params: map[string]any{"message": "crisis in {session_id} at level {crisis_level}"}},
		},
	}, protocol.WithNotifier(notifier))
	require.NoError(t, err)

	exec := e.Execute(context.Background(), contracts.CrisisSuicidalIdeation, contracts.CrisisHigh, map[string]any{
		"session_id":   "sess-42",
		"crisis_level": "high",
	})

	require.True(t, exec.Success)
	assert.Equal(t, "Stay with me, session sess-42.", exec.Steps[0].Output["response"])
	require.Len(t, notifier.messages, 1)
	assert.Equal(t, "crisis in sess-42 at level high", notifier.messages[0])
}

func TestExecute_ProvideResourcesDefaults(t *testing.T) {
	e, err := protocol.NewEngine(map[string][]protocol.Step{
		"default": {{Name: "resources", Type: protocol.StepProvideResources}},
	})
	require.NoError(t, err)

	exec := e.Execute(context.Background(), contracts.CrisisSelfHarm, contracts.CrisisModerate, nil)
	require.True(t, exec.Success)
	resources, ok := exec.Steps[0].Output["resources"].([]string)
	require.True(t, ok)
	require.NotEmpty(t, resources)
	assert.Contains(t, resources[0], "988")
}

func TestExecute_ScheduleFollowupDefaultDelay(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	e, err := protocol.NewEngine(map[string][]protocol.Step{
		"default": {{Name: "followup", Type: protocol.StepScheduleFollowup}},
	}, protocol.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	exec := e.Execute(context.Background(), contracts.CrisisSevereDepression, contracts.CrisisModerate, nil)
	require.True(t, exec.Success)
	at, ok := exec.Steps[0].Output["followup_at"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, now.Add(24*time.Hour), at)
}

func TestExecute_EmergencyContactReachesContactor(t *testing.T) {
	contactor := &recordingContactor{}
	e, err := protocol.NewEngine(nil, protocol.WithContactor(contactor))
	require.NoError(t, err)

	exec := e.Execute(context.Background(), contracts.CrisisSuicidalIdeation, contracts.CrisisCritical, map[string]any{
		"session_id": "sess-1",
	})

	assert.True(t, exec.Success)
	assert.Equal(t, []string{"mental_health_crisis"}, contactor.services)
}
