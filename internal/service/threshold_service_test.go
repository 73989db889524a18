package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wisefido-threshold/internal/effective"
	"wisefido-threshold/internal/matrix"
	m "wisefido-threshold/internal/models"
	"wisefido-threshold/internal/notifier"
	"wisefido-threshold/internal/override"
	"wisefido-threshold/internal/store"
	"wisefido-threshold/internal/tagdelta"
	"wisefido-threshold/internal/tagstate"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryContexts struct {
	mu   sync.Mutex
	data map[string]*m.PatientContext
	sets int
}

func (r *memoryContexts) GetContext(ctx context.Context, patientID string) (*m.PatientContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pc, ok := r.data[patientID]
	if !ok {
		return m.EmptyContext(patientID), nil
	}
	cp := *pc
	return &cp, nil
}

func (r *memoryContexts) SetContext(ctx context.Context, pc *m.PatientContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *pc
	r.data[pc.PatientID] = &cp
	r.sets++
	return nil
}

type recordingChannel struct {
	mu       sync.Mutex
	messages []*m.ThresholdMessage
	onSend   func()
	err      error
}

func (c *recordingChannel) Send(ctx context.Context, messageType string, payload interface{}) error {
	c.mu.Lock()
	c.messages = append(c.messages, payload.(*m.ThresholdMessage))
	c.mu.Unlock()
	if c.onSend != nil {
		c.onSend()
	}
	return c.err
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *recordingChannel) last() *m.ThresholdMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages[len(c.messages)-1]
}

type testEnv struct {
	svc       *ThresholdService
	contexts  *memoryContexts
	overrides *store.OverrideStore
	channel   *recordingChannel
	mr        *miniredis.Miniredis
	notifier  *notifier.Notifier
	clock     *time.Time
}

func strPtr(s string) *string { return &s }

func setupService(t *testing.T) *testEnv {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	kv := store.NewRedisKV(client)
	logger := zap.NewNop()

	contexts := &memoryContexts{data: map[string]*m.PatientContext{
		"p-1": {PatientID: "p-1", ProblemID: strPtr("sepsis"), RiskLevel: m.RiskHigh, BedNumber: strPtr("ICU-03")},
	}}
	tags := store.NewTagStore(kv, "threshold:tags:", logger)
	overrides := store.NewOverrideStore(kv, "threshold:overrides:", logger)
	snapshots := store.NewSnapshotStore(kv, "vital-focus:patient:", ":thresholds", 30*time.Second, logger)

	pipeline := effective.NewPipeline(contexts, tags, overrides, matrix.NewMatrix(logger), tagdelta.NewEngine(), logger)
	cache := effective.NewCache(pipeline, effective.DefaultTTL, nil, logger)
	layer := override.NewLayer(overrides, cache, nil, nil, logger)
	machine := tagstate.NewMachine(tags, nil, logger)

	ch := &recordingChannel{}
	n, err := notifier.New(ch, notifier.DefaultWindow, 64, nil, logger)
	require.NoError(t, err)

	// 所有组件共用一个可控时钟
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cache.SetClock(clock)
	n.SetClock(clock)

	svc := NewThresholdService(contexts, machine, layer, cache, snapshots, n, logger)
	svc.now = clock

	return &testEnv{svc: svc, contexts: contexts, overrides: overrides, channel: ch, mr: mr, notifier: n, clock: &now}
}

func (e *testEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

func TestToggleConditionTag_SepsisScenario(t *testing.T) {
	env := setupService(t)

	res, err := env.svc.ToggleConditionTag(context.Background(), "p-1", "sepsis", true)
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, tagstate.Inactive, res.From)
	assert.Equal(t, tagstate.Active, res.To)
	assert.True(t, res.EffectiveValues.ParameterRanges[m.ParamHR].Equal(m.NewRange(70, 140, "bpm")))
	assert.True(t, res.EffectiveValues.ParameterRanges[m.ParamBPMean].Equal(m.NewRange(40, 70, "mmHg")))

	require.Equal(t, 1, env.channel.count())
	msg := env.channel.last()
	assert.Equal(t, m.ChangeTagAdjustment, msg.ChangeType)
	assert.Equal(t, m.SourceTagAdjusted, msg.DataSource)
	assert.Equal(t, "ICU-03", *msg.BedNumber)

	// 阶段 3 快照
	assert.True(t, env.mr.Exists("vital-focus:patient:p-1:thresholds"))
}

func TestToggleConditionTag_Idempotent(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	first, err := env.svc.ToggleConditionTag(ctx, "p-1", "sepsis", true)
	require.NoError(t, err)
	assert.True(t, first.Changed)

	env.advance(time.Second)
	second, err := env.svc.ToggleConditionTag(ctx, "p-1", "sepsis", true)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	require.NotNil(t, second.EffectiveValues)
	assert.Same(t, first.EffectiveValues, second.EffectiveValues)

	assert.Equal(t, 1, env.channel.count())
}

func TestToggleConditionTag_NoDrift(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	on, err := env.svc.ToggleConditionTag(ctx, "p-1", "sepsis", true)
	require.NoError(t, err)
	env.advance(time.Second)
	_, err = env.svc.ToggleConditionTag(ctx, "p-1", "sepsis", false)
	require.NoError(t, err)
	env.advance(time.Second)
	again, err := env.svc.ToggleConditionTag(ctx, "p-1", "sepsis", true)
	require.NoError(t, err)

	assert.True(t, on.EffectiveValues.ParameterRanges.Equal(again.EffectiveValues.ParameterRanges))
	assert.Equal(t, on.EffectiveValues.OrganLevels, again.EffectiveValues.OrganLevels)
	assert.Equal(t, 3, env.channel.count())
}

func TestToggleConditionTag_ClearsOverrides(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	require.NoError(t, env.svc.SetManualOverride(ctx, "p-1", m.ParamHR, m.NewRange(100, 110, "bpm"), "nurse"))
	_, err := env.svc.ToggleConditionTag(ctx, "p-1", "copd", true)
	require.NoError(t, err)

	list, err := env.overrides.GetOverrides(ctx, "p-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSetManualOverride_Precedence(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.svc.ToggleConditionTag(ctx, "p-1", "sepsis", true)
	require.NoError(t, err)
	require.NoError(t, env.svc.SetManualOverride(ctx, "p-1", m.ParamHR, m.NewRange(100, 110, "bpm"), "nurse"))

	v, err := env.svc.GetEffectiveValues(ctx, "p-1", effective.Options{})
	require.NoError(t, err)

	assert.True(t, v.ParameterRanges[m.ParamHR].Equal(m.NewRange(100, 110, "bpm")))
	assert.Equal(t, m.SourceManualOverride, v.DataSource)
	assert.Equal(t, m.ChangeManualOverride, env.channel.last().ChangeType)
}

func TestSetManualOverride_InvalidRange(t *testing.T) {
	env := setupService(t)

	err := env.svc.SetManualOverride(context.Background(), "p-1", m.ParamHR, m.NewRange(120, 100, "bpm"), "nurse")

	assert.ErrorIs(t, err, m.ErrInvalidRange)
	assert.Zero(t, env.channel.count())
}

func TestSetProblemAndRisk_ClearsOverridesAndRecomputes(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.svc.ToggleConditionTag(ctx, "p-1", "sepsis", true)
	require.NoError(t, err)
	require.NoError(t, env.svc.SetManualOverride(ctx, "p-1", m.ParamHR, m.NewRange(100, 110, "bpm"), "nurse"))

	require.NoError(t, env.svc.SetProblemAndRisk(ctx, "p-1", strPtr("sepsis"), m.RiskMid))

	list, err := env.overrides.GetOverrides(ctx, "p-1")
	require.NoError(t, err)
	assert.Empty(t, list)

	v, err := env.svc.GetEffectiveValues(ctx, "p-1", effective.Options{})
	require.NoError(t, err)
	assert.Equal(t, m.SourceTagAdjusted, v.DataSource)
	assert.Equal(t, m.RiskMid, v.BaseContext.RiskLevel)
	assert.False(t, v.ParameterRanges[m.ParamHR].Equal(m.NewRange(100, 110, "bpm")))

	expected := v.BaseContext.MatrixRanges[m.ParamHR]
	assert.Equal(t, *expected.Min, *v.ParameterRanges[m.ParamHR].Min)
	assert.Equal(t, *expected.Max+15, *v.ParameterRanges[m.ParamHR].Max)

	assert.Equal(t, m.ChangeMatrix, env.channel.last().ChangeType)
	// 床位保留
	pc, err := env.svc.GetContext(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "ICU-03", *pc.BedNumber)
}

func TestSetProblemAndRisk_UnchangedIsNoop(t *testing.T) {
	env := setupService(t)

	require.NoError(t, env.svc.SetProblemAndRisk(context.Background(), "p-1", strPtr("sepsis"), m.RiskHigh))

	assert.Zero(t, env.contexts.sets)
	assert.Zero(t, env.channel.count())
}

func TestSetProblemAndRisk_UnknownRisk(t *testing.T) {
	env := setupService(t)

	err := env.svc.SetProblemAndRisk(context.Background(), "p-1", strPtr("sepsis"), "critical")

	assert.ErrorIs(t, err, m.ErrUnknownRiskLevel)
}

func TestClearManualOverrides(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	require.NoError(t, env.svc.ClearManualOverrides(ctx, "p-1", ""))
	assert.Zero(t, env.channel.count())

	require.NoError(t, env.svc.SetManualOverride(ctx, "p-1", m.ParamRR, m.NewRange(10, 22, "/min"), "nurse"))
	env.advance(time.Second)
	require.NoError(t, env.svc.ClearManualOverrides(ctx, "p-1", ""))

	list, err := env.svc.ListOverrides(ctx, "p-1")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 2, env.channel.count())
	assert.Equal(t, m.SourceMatrix, env.channel.last().DataSource)
}

func TestNotificationRunsOutsideLock(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	reentered := make(chan error, 1)
	env.channel.onSend = func() {
		_, err := env.svc.ToggleConditionTag(ctx, "p-1", "sepsis", true)
		reentered <- err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := env.svc.ToggleConditionTag(ctx, "p-1", "sepsis", true)
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("re-entrant toggle deadlocked")
	}
	assert.NoError(t, <-reentered)
	assert.Equal(t, 1, env.channel.count())
}

func TestMutations_RequirePatient(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.svc.ToggleConditionTag(ctx, "", "sepsis", true)
	assert.ErrorIs(t, err, m.ErrPatientRequired)
	assert.ErrorIs(t, env.svc.SetManualOverride(ctx, "", m.ParamHR, m.NewRange(1, 2, "bpm"), "x"), m.ErrPatientRequired)
	assert.ErrorIs(t, env.svc.ClearManualOverrides(ctx, "", "x"), m.ErrPatientRequired)
	assert.ErrorIs(t, env.svc.SetProblemAndRisk(ctx, "", nil, m.RiskLow), m.ErrPatientRequired)
}

func TestChannelFailureKeepsCommittedState(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	env.channel.err = errors.New("broker unavailable")

	res, err := env.svc.ToggleConditionTag(ctx, "p-1", "sepsis", true)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, env.channel.count())

	active, err := env.svc.ActiveTags(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, []m.TagID{"sepsis"}, active)

	v, err := env.svc.GetEffectiveValues(ctx, "p-1", effective.Options{})
	require.NoError(t, err)
	assert.Same(t, res.EffectiveValues, v)
	assert.True(t, v.ParameterRanges[m.ParamHR].Equal(m.NewRange(70, 140, "bpm")))
	assert.True(t, env.mr.Exists("vital-focus:patient:p-1:thresholds"))

	env.advance(time.Second)
	require.NoError(t, env.svc.SetManualOverride(ctx, "p-1", m.ParamHR, m.NewRange(100, 110, "bpm"), "nurse"))

	list, err := env.overrides.GetOverrides(ctx, "p-1")
	require.NoError(t, err)
	require.Contains(t, list, m.ParamHR)

	v, err = env.svc.GetEffectiveValues(ctx, "p-1", effective.Options{})
	require.NoError(t, err)
	assert.True(t, v.ParameterRanges[m.ParamHR].Equal(m.NewRange(100, 110, "bpm")))
	assert.Equal(t, m.SourceManualOverride, v.DataSource)
	assert.Equal(t, 2, env.channel.count())
}
