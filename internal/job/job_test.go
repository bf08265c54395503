package job

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileJob_HappyPath(t *testing.T) {
	j := New("1", "/in/a.jpg")
	var events []Event
	j.OnEvent(func(e Event) { events = append(events, e) })

	require.NoError(t, j.Start())
	require.NoError(t, j.Advance(StageAnalyzing))
	require.NoError(t, j.Advance(StageEncoding))
	require.NoError(t, j.Succeed("/out/a.jpg", 1000, 400))

	require.Equal(t, StatusSuccess, j.Status())
	require.Len(t, events, 4)
	require.Equal(t, int64(400), j.Result().BytesOutput)
}

func TestFileJob_CannotLeaveTerminalState(t *testing.T) {
	j := New("1", "/in/a.jpg")
	require.NoError(t, j.Start())
	require.NoError(t, j.Fail(errors.New("boom")))

	require.Error(t, j.Start())
	require.Error(t, j.Succeed("x", 1, 1))
	require.Equal(t, StatusFailed, j.Status())
}

func TestFileJob_SkipFromQueued(t *testing.T) {
	j := New("1", "/in/a.jpg")
	require.NoError(t, j.Skip("duplicate of prior run"))
	require.Equal(t, StatusSkipped, j.Status())
}

func TestFileJob_SkipFromRunning(t *testing.T) {
	j := New("1", "/in/a.jpg")
	require.NoError(t, j.Start())
	require.NoError(t, j.Skip("no candidate smaller than original"))
	require.Equal(t, StatusSkipped, j.Status())
}

func TestFileJob_RunningOnlyFromQueued(t *testing.T) {
	j := New("1", "/in/a.jpg")
	require.NoError(t, j.Start())
	require.Error(t, j.Start())
}

func TestFileJob_AdvanceRequiresRunning(t *testing.T) {
	j := New("1", "/in/a.jpg")
	require.Error(t, j.Advance(StageDecoding))
}

func TestFileJob_CancelOnlyFromRunning(t *testing.T) {
	j := New("1", "/in/a.jpg")
	require.Error(t, j.Cancel())
	require.NoError(t, j.Start())
	require.NoError(t, j.Cancel())
	require.Equal(t, StatusCancelled, j.Status())
}
