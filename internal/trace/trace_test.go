package trace

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Unit_NodePhase_Done_WritesChromeTraceEvent_Success(t *testing.T) {
	var buf bytes.Buffer
	Sink(&buf)

	span := NodePhase("//a:b", "Self", false, 0)
	span.Done()

	out := strings.TrimSuffix(strings.TrimPrefix(buf.String(), "["), ",")
	var ev PendingEvent
	require.NoError(t, json.Unmarshal([]byte(out), &ev))
	require.Equal(t, "//a:b Self", ev.Name)
	require.Equal(t, "X", ev.Type)
	require.EqualValues(t, 0, ev.Pid)
	require.EqualValues(t, 0, ev.Tid)
}

func Test_Unit_NodePhase_OnWorker_UsesWorkerPidAndSlot_Success(t *testing.T) {
	var buf bytes.Buffer
	Sink(&buf)

	span := NodePhase("//a:b", "Self", true, 3)
	span.Done()

	out := strings.TrimSuffix(strings.TrimPrefix(buf.String(), "["), ",")
	var ev PendingEvent
	require.NoError(t, json.Unmarshal([]byte(out), &ev))
	require.EqualValues(t, 1, ev.Pid)
	require.EqualValues(t, 3, ev.Tid)
}
