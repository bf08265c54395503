package candidate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectBest_NoCandidatesSkips(t *testing.T) {
	outcome, err := selectBest(nil, 1000, false)
	require.NoError(t, err)
	require.True(t, outcome.Skipped)
	require.Equal(t, "no candidate met threshold", outcome.SkipReason)
}

func TestSelectBest_PicksSmallest(t *testing.T) {
	candidates := []Candidate{
		{Data: make([]byte, 500), QualityLabel: "q80"},
		{Data: make([]byte, 300), QualityLabel: "q72"},
		{Data: make([]byte, 900), QualityLabel: "q88"},
	}
	outcome, err := selectBest(candidates, 1000, false)
	require.NoError(t, err)
	require.False(t, outcome.Skipped)
	require.Equal(t, "q72", outcome.Selected.QualityLabel)
}

func TestSelectBest_SkipsWhenNotSmallerThanOriginal(t *testing.T) {
	candidates := []Candidate{{Data: make([]byte, 1200)}}
	outcome, err := selectBest(candidates, 1000, false)
	require.NoError(t, err)
	require.True(t, outcome.Skipped)
	require.Equal(t, "candidate not smaller than original", outcome.SkipReason)
}

func TestSelectBest_AllowLargerOverridesSizeGate(t *testing.T) {
	candidates := []Candidate{{Data: make([]byte, 1200)}}
	outcome, err := selectBest(candidates, 1000, true)
	require.NoError(t, err)
	require.False(t, outcome.Skipped)
}
