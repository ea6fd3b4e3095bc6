package toem

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opcon/internal/testutil"
)

func TestNew_BaseProbSetsExponent(t *testing.T) {
	for _, phrase := range Concepts() {
		t.Run(fmt.Sprintf("%q", phrase), func(t *testing.T) {
			a, err := New("probe", WithBaseProb(phrase))
			require.NoError(t, err)
			assert.Equal(t, lexicon[phrase], a.P())
		})
	}
}

func TestNew_InvalidConcept(t *testing.T) {
	_, err := New("probe", WithBaseProb("impossible"))
	require.Error(t, err)
	assert.True(t, IsInvalidConcept(err))

	var ce *ConceptError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "impossible", ce.Phrase)

	_, err = New("probe", WithSkillLevel("veteran"))
	assert.True(t, IsInvalidConcept(err))
}

func TestNew_BaseAndSkillAdd(t *testing.T) {
	a := MustNew("probe", WithBaseProb("unlikely"), WithSkillLevel("elite"))
	assert.Equal(t, 2, a.P())
	assert.False(t, a.IsTrue(), "unresolved argument is not true")
	_, ok := a.Increment()
	assert.False(t, ok, "increment absent before resolution")
}

func TestScenario_BuyTicketSucceeds(t *testing.T) {
	a := MustNew("buy ticket", WithBaseProb("neutral"))

	inc, err := a.ResolveWith(0.49)
	require.NoError(t, err)
	assert.Equal(t, 0, inc)
	assert.True(t, a.IsTrue())
}

func TestScenario_BuyTicketFailsNarrowly(t *testing.T) {
	a := MustNew("buy ticket")

	inc, err := a.ResolveWith(0.51)
	require.NoError(t, err)
	assert.Equal(t, -1, inc)
	assert.False(t, a.IsTrue())
	assert.Empty(t, a.Blame())
}

func TestScenario_BuyTicketFailsBadly(t *testing.T) {
	a := MustNew("buy ticket")

	inc, err := a.ResolveWith(0.75)
	require.NoError(t, err)
	assert.Equal(t, -2, inc)
}

func TestScenario_AttackBlamesCon(t *testing.T) {
	a := MustNew("attack")
	require.NoError(t, a.AddConString("under fire"))

	_, err := a.ResolveWith(0.51)
	require.NoError(t, err)
	assert.Equal(t, []string{"under fire"}, a.BlameLabels())
}

func TestScenario_SetSkillLevelAdds(t *testing.T) {
	a := MustNew("probe", WithBaseProb("very unlikely"))
	require.NoError(t, a.SetSkillLevel("green"))
	assert.Equal(t, -4, a.P())
}

func TestScenario_SetBaseProbReplaces(t *testing.T) {
	a := MustNew("probe", WithBaseProb("likely"))
	require.NoError(t, a.SetBaseProb("expert task"))
	require.NoError(t, a.SetSkillLevel("professional"))
	assert.Equal(t, -2, a.P())
}

func TestSetters_RejectInvalidConcept(t *testing.T) {
	a := MustNew("probe")
	assert.True(t, IsInvalidConcept(a.SetBaseProb("hopeless")))
	assert.True(t, IsInvalidConcept(a.SetSkillLevel("legendary")))
	assert.Equal(t, 0, a.P(), "failed setters leave p untouched")
}

func TestResolve_TwiceReturnsCachedOutcome(t *testing.T) {
	a := MustNew("probe")

	first, err := a.ResolveWith(0.49)
	require.NoError(t, err)
	second, err := a.ResolveWith(0.99)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, a.IsTrue())
	assert.Equal(t, 0.49, a.Variate())
}

func TestResolve_MutationAfterResolutionFails(t *testing.T) {
	a := MustNew("probe")
	_, err := a.ResolveWith(0.3)
	require.NoError(t, err)

	assert.ErrorIs(t, a.AddProString("late"), ErrResolved)
	assert.ErrorIs(t, a.AddConString("late"), ErrResolved)
	assert.ErrorIs(t, a.SetBaseProb("likely"), ErrResolved)
	assert.ErrorIs(t, a.SetSkillLevel("elite"), ErrResolved)
}

func TestResolve_VariateOutOfRange(t *testing.T) {
	a := MustNew("probe")

	_, err := a.ResolveWith(1.0)
	assert.ErrorIs(t, err, ErrVariateRange)
	_, err = a.ResolveWith(-0.1)
	assert.ErrorIs(t, err, ErrVariateRange)
	assert.False(t, a.IsResolved())
}

func TestResolve_DrawsFromSource(t *testing.T) {
	a := MustNew("probe", WithSource(testutil.ConstSource(0.49)))

	inc, err := a.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 0, inc)
	assert.Equal(t, 0.49, a.Variate())
}

func TestResolve_DefaultSource(t *testing.T) {
	prev := SetDefaultSource(testutil.ConstSource(0.51))
	t.Cleanup(func() { SetDefaultSource(prev) })

	inc, err := MustNew("probe").Resolve()
	require.NoError(t, err)
	assert.Equal(t, -1, inc)
}

func TestResolve_SuccessMarginCountsThresholds(t *testing.T) {
	a := MustNew("probe")
	require.NoError(t, a.AddProString("surprise"))

	inc, err := a.ResolveWith(0.2)
	require.NoError(t, err)
	// p0 = 1; 0.2 clears PValue(0)=0.5 and PValue(-1)=0.25 but not PValue(-2).
	assert.Equal(t, 2, inc)
	assert.Equal(t, 1, a.P0())
	assert.Equal(t, -1, a.P())
}

func TestBlame_UnresolvedIsEmpty(t *testing.T) {
	a := MustNew("probe")
	require.NoError(t, a.AddConString("rain"))
	assert.Empty(t, a.Blame())
}

func TestBlame_SuccessIsEmpty(t *testing.T) {
	a := MustNew("probe")
	require.NoError(t, a.AddConString("rain"))
	_, err := a.ResolveWith(0.01)
	require.NoError(t, err)

	assert.True(t, a.IsTrue())
	assert.Empty(t, a.Blame())
}

func TestBlame_FailedProsBeforeCons(t *testing.T) {
	prep := MustNew("artillery prep",
		WithBaseProb("very unlikely"),
		WithSource(testutil.ConstSource(0.9)),
	)
	a := MustNew("assault")
	require.NoError(t, a.AddProArg(prep))
	require.NoError(t, a.AddConString("mud"))

	inc, err := a.ResolveWith(0.6)
	require.NoError(t, err)

	// Failed pro leaves p at 0, mud drops it to -1. 0.6 meets PValue(-1)
	// and PValue(0) but not PValue(1).
	assert.Equal(t, -2, inc)
	assert.False(t, prep.IsTrue())
	assert.Equal(t, []string{"artillery prep", "mud"}, a.BlameLabels())
}

func TestBlame_LimitedToIncrement(t *testing.T) {
	a := MustNew("probe", WithSource(testutil.ConstSource(0)))
	for _, con := range []string{"a", "b", "c"} {
		require.NoError(t, a.AddConString(con))
	}

	inc, err := a.ResolveWith(0.1)
	require.NoError(t, err)
	// p0 = -3; PValue(-3)=1/16 < 0.1 <= PValue(-2)=1/8.
	assert.Equal(t, -1, inc)
	assert.Len(t, a.Blame(), 1)
}

func TestBlame_ShuffleOrderFollowsSource(t *testing.T) {
	src := testutil.NewFixedSource(0.0, 0.99)
	a := MustNew("probe", WithSource(src))
	for _, con := range []string{"a", "b", "c"} {
		require.NoError(t, a.AddConString(con))
	}

	inc, err := a.ResolveWith(0.99)
	require.NoError(t, err)
	assert.Equal(t, -9, inc)
	assert.Equal(t, []string{"c", "b", "a"}, a.BlameLabels())
	assert.Equal(t, 0, src.Remaining())

	// Original order is kept for introspection.
	cons := a.Cons()
	require.Len(t, cons, 3)
	assert.Equal(t, "a", cons[0].String())

	// Memoised.
	assert.Equal(t, a.BlameLabels(), a.BlameLabels())
}

func TestNested_SuccessfulProRaisesExponent(t *testing.T) {
	cover := MustNew("find cover", WithSource(testutil.ConstSource(0.1)))
	a := MustNew("advance")
	require.NoError(t, a.AddProArg(cover))

	inc, err := a.ResolveWith(0.7)
	require.NoError(t, err)
	assert.True(t, cover.IsTrue())
	assert.Equal(t, 1, a.P0())
	assert.Equal(t, 0, inc)
}

func TestNested_SuccessfulConLowersExponent(t *testing.T) {
	ambush := MustNew("enemy ambush", WithSource(testutil.ConstSource(0.1)))
	failedCon := MustNew("enemy artillery", WithBaseProb("very unlikely"), WithSource(testutil.ConstSource(0.5)))
	a := MustNew("advance")
	require.NoError(t, a.AddConArg(ambush))
	require.NoError(t, a.AddConArg(failedCon))
	require.NoError(t, a.AddProString("momentum"))

	_, err := a.ResolveWith(0.4)
	require.NoError(t, err)
	// +1 momentum, -1 ambush, failed con ignored.
	assert.Equal(t, 0, a.P0())
}

func TestNested_AlreadyResolvedSubIsReused(t *testing.T) {
	sub := MustNew("recon")
	_, err := sub.ResolveWith(0.9)
	require.NoError(t, err)

	a := MustNew("strike")
	require.NoError(t, a.AddProArg(sub))
	_, err = a.ResolveWith(0.4)
	require.NoError(t, err)

	assert.Equal(t, 0, a.P0(), "failed sub-argument does not raise p")
}

func TestCycleDetection(t *testing.T) {
	a := MustNew("a")
	assert.ErrorIs(t, a.AddProArg(a), ErrCycle)

	b := MustNew("b")
	require.NoError(t, a.AddConArg(b))
	assert.ErrorIs(t, b.AddProArg(a), ErrCycle)

	c := MustNew("c")
	require.NoError(t, b.AddProArg(c))
	assert.ErrorIs(t, c.AddConArg(a), ErrCycle)

	// Shared leaf is fine: DAGs are allowed.
	d := MustNew("d")
	require.NoError(t, a.AddProArg(d))
	require.NoError(t, b.AddConArg(d))
}

func TestIncrementSignMatchesOutcome(t *testing.T) {
	variates := []float64{0, 0.01, 0.1, 0.2, 0.25, 0.3, 0.49, 0.5, 0.51, 0.74, 0.75, 0.8, 0.9, 0.99}

	for p := -8; p <= 8; p++ {
		for _, d := range variates {
			a := MustNew("probe", WithSource(testutil.ConstSource(0.3)))
			for i := 0; i < p; i++ {
				require.NoError(t, a.AddProString("edge"))
			}
			for i := 0; i > p; i-- {
				require.NoError(t, a.AddConString("drag"))
			}

			inc, err := a.ResolveWith(d)
			require.NoError(t, err)
			assert.Equal(t, d <= PValue(p), inc >= 0, "p=%d d=%v", p, d)
			assert.Equal(t, crossings(p, d), absInt(inc), "p=%d d=%v", p, d)
		}
	}
}

// crossings counts the thresholds the variate clears below p0 on success,
// or meets at and above p0 on failure.
func crossings(p0 int, d float64) int {
	n := 0
	if d <= PValue(p0) {
		for k := p0 - 1; k >= MinExponent && d <= PValue(k); k-- {
			n++
		}
		return n
	}
	for k := p0; k < MaxExponent && d >= PValue(k); k++ {
		n++
	}
	return n
}

func TestResult(t *testing.T) {
	a := MustNew("attack", WithOutcome("objective taken"))
	require.NoError(t, a.AddConString("under fire"))

	_, ok := a.Result()
	assert.False(t, ok)

	_, err := a.ResolveWith(0.51)
	require.NoError(t, err)

	res, ok := a.Result()
	require.True(t, ok)
	assert.Equal(t, Result{
		Label:     "attack",
		Outcome:   "objective taken",
		P0:        -1,
		PFinal:    1,
		Variate:   0.51,
		Increment: -2,
		Success:   false,
		Blame:     []string{"under fire"},
	}, res)
}
