package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vburojevic/dbgwire/internal/domain"
)

func decodeLine(t *testing.T, dec *json.Decoder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, dec.Decode(&m))
	return m
}

func TestNDJSONRunEvents(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.WriteRunStart(domain.NewRunStart("run-1", "case1", "/tmp/case1.py", 5678)))
	require.NoError(t, w.WriteStateChange(domain.NewStateChange("run-1", domain.StateListening, domain.StateConnected)))
	step := domain.NewStepEvent("run-1", 2, "wait_for_breakpoint_hit", "line=10")
	step.ThreadID = "pid_1_id_2"
	require.NoError(t, w.WriteStep(step))
	require.NoError(t, w.WriteRunEnd(domain.NewRunEnd("run-1", "case1", domain.StateFailed, -11, 1500*time.Millisecond, errors.New("crashed"))))

	dec := json.NewDecoder(buf)
	m := decodeLine(t, dec)
	require.Equal(t, "run_start", m["type"])
	require.EqualValues(t, 1, m["schemaVersion"])
	require.Equal(t, "run-1", m["run_id"])
	require.EqualValues(t, 5678, m["port"])

	m = decodeLine(t, dec)
	require.Equal(t, "state", m["type"])
	require.Equal(t, "listening", m["from"])
	require.Equal(t, "connected", m["to"])

	m = decodeLine(t, dec)
	require.Equal(t, "step", m["type"])
	require.EqualValues(t, 2, m["index"])
	require.Equal(t, "pid_1_id_2", m["thread_id"])
	_, hasFrame := m["frame_id"]
	require.False(t, hasFrame)

	m = decodeLine(t, dec)
	require.Equal(t, "run_end", m["type"])
	require.Equal(t, "failed", m["state"])
	require.EqualValues(t, -11, m["exit_code"])
	require.EqualValues(t, 1.5, m["duration_seconds"])
	require.Equal(t, "crashed", m["error"])
}

func TestNDJSONWriteError(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.WriteError("SCRIPT_INVALID", "bad <script>", "run dbgwire check"))
	assert.Contains(t, buf.String(), "bad <script>")

	m := decodeLine(t, json.NewDecoder(buf))
	require.Equal(t, "error", m["type"])
	require.Equal(t, "SCRIPT_INVALID", m["code"])
	require.Equal(t, "run dbgwire check", m["hint"])
}

func TestTextWriter(t *testing.T) {
	t.Run("quiet hides steps and states", func(t *testing.T) {
		buf := &bytes.Buffer{}
		w := NewTextWriter(buf, false)
		require.NoError(t, w.WriteRunStart(domain.NewRunStart("r", "case1", "case1.py", 9000)))
		require.NoError(t, w.WriteStep(domain.NewStepEvent("r", 0, "make_initial_run", "")))
		require.NoError(t, w.WriteStateChange(domain.NewStateChange("r", domain.StateNotStarted, domain.StateListening)))
		require.NoError(t, w.WriteRunEnd(domain.NewRunEnd("r", "case1", domain.StateVerified, 0, 2*time.Second, nil)))
		assert.Equal(t, "=== RUN   case1 (case1.py, port 9000)\n--- PASS: case1 (2.00s)\n", buf.String())
	})

	t.Run("verbose shows steps and report", func(t *testing.T) {
		buf := &bytes.Buffer{}
		w := NewTextWriter(buf, true)
		require.NoError(t, w.WriteStep(domain.NewStepEvent("r", 0, "add_breakpoint", "line=3")))
		end := domain.NewRunEnd("r", "case1", domain.StateFailed, 1, time.Second, errors.New("no marker"))
		end.Report = "/tmp/r.txt"
		require.NoError(t, w.WriteRunEnd(end))
		assert.Equal(t, "    step 1 add_breakpoint line=3\n--- FAIL: case1 (1.00s)\n    report: /tmp/r.txt\n", buf.String())
	})
}

func TestStepTable(t *testing.T) {
	buf := &bytes.Buffer{}
	err := StepTable(buf, "case1 (case1.py)", []StepRow{
		{Index: 0, Action: "add_breakpoint", Detail: "line=10"},
		{Index: 1, Action: "make_initial_run"},
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "case1 (case1.py)\n")
	assert.Contains(t, out, "add_breakpoint")
	assert.Contains(t, out, "line=10")
	assert.Contains(t, out, "make_initial_run")
}
