package score_test

import (
	"testing"
	"time"

	"github.com/eth2node/peerd/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModel_DefaultScore(t *testing.T) {
	now := time.Now()
	m := score.NewModel(now)
	assert.Equal(t, score.DefaultScore, m.Score(now))
}

func TestApply_Deltas(t *testing.T) {
	now := time.Now()
	m := score.NewModel(now)

	m.Apply(score.HighToleranceError, now)
	assert.InDelta(t, -1.0, m.Score(now), 1e-9)

	m.Apply(score.MidToleranceError, now)
	assert.InDelta(t, -3.5, m.Score(now), 1e-9)

	m.Apply(score.LowToleranceError, now)
	assert.InDelta(t, -8.5, m.Score(now), 1e-9)
}

func TestApply_Fatal_CrossesBannedThreshold(t *testing.T) {
	now := time.Now()
	m := score.NewModel(now)
	m.Apply(score.Fatal, now)
	assert.True(t, m.IsBanned(now))
	assert.LessOrEqual(t, m.Score(now), score.BannedThreshold)
}

func TestApply_ClampsToBounds(t *testing.T) {
	now := time.Now()
	m := score.NewModel(now)
	for i := 0; i < 1000; i++ {
		m.Apply(score.ValuableGossipMessage, now)
	}
	require.LessOrEqual(t, m.Score(now), score.MaxScore)

	m2 := score.NewModel(now)
	for i := 0; i < 1000; i++ {
		m2.Apply(score.LowToleranceError, now)
	}
	require.GreaterOrEqual(t, m2.Score(now), score.MinScore)
}

func TestDecay_MonotoneTowardZero(t *testing.T) {
	now := time.Now()
	m := score.NewModel(now)
	m.AddToScore(-30, now)

	t1 := now.Add(score.HalfLife)
	s1 := m.Score(t1)
	assert.InDelta(t, -15.0, s1, 1e-6)

	t2 := t1.Add(score.HalfLife)
	s2 := m.Score(t2)
	assert.InDelta(t, -7.5, s2, 1e-6)

	// Magnitude never grows between reads with no intervening report.
	assert.Less(t, s1, 0.0)
	assert.Greater(t, s2, s1)
}

func TestApply_SameActionTwiceEqualsSummedDelta(t *testing.T) {
	now := time.Now()
	a := score.NewModel(now)
	a.Apply(score.MidToleranceError, now)
	a.Apply(score.MidToleranceError, now)

	b := score.NewModel(now)
	b.AddToScore(-5.0, now)

	assert.InDelta(t, b.Score(now), a.Score(now), 1e-9)
}
