package script

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vburojevic/dbgwire/internal/scenario"
	"github.com/vburojevic/dbgwire/internal/session"
	"github.com/vburojevic/dbgwire/internal/waiter"
	"github.com/vburojevic/dbgwire/internal/wire"
)

const sampleScript = `
name: breakpoint-and-vars
file: _debugger_case1.py
steps:
  - action: add_breakpoint
    line: 10
    func: call
    as: first
  - action: make_initial_run
  - action: wait_for_breakpoint_hit
    line: 10
  - action: get_variable
    attrs: "self"
  - action: wait_for_var
    expect: '<var name="x"'
  - action: remove_breakpoint
    breakpoint: first
  - action: run_thread
`

func TestLoadResolvesTargetRelativeToScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "case1.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleScript), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "breakpoint-and-vars", s.Name())
	assert.Equal(t, filepath.Join(dir, "_debugger_case1.py"), s.File())
	assert.Equal(t, path, s.Path())
	require.Len(t, s.Steps, 7)
	assert.Equal(t, Expect{`<var name="x"`}, s.Steps[4].Expect)
}

func TestNameFallsBackToFileName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "step_over.yml")
	require.NoError(t, os.WriteFile(path, []byte("file: /abs/case.py\nsteps:\n  - action: make_initial_run\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "step_over", s.Name())
	assert.Equal(t, "/abs/case.py", s.File())
}

func TestExpectAcceptsList(t *testing.T) {
	s, err := Parse([]byte(`
file: a.py
steps:
  - action: wait_for_multiple_vars
    expect: ["a", "b"]
`))
	require.NoError(t, err)
	assert.Equal(t, Expect{"a", "b"}, s.Steps[0].Expect)
}

func TestParseRejectsInvalidScripts(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{"no file", "steps:\n  - action: make_initial_run\n", []string{"file is required"}},
		{"no steps", "file: a.py\n", []string{"at least one step"}},
		{"unknown action", "file: a.py\nsteps:\n  - action: fly\n", []string{`unknown action "fly"`, "add_breakpoint"}},
		{"missing line", "file: a.py\nsteps:\n  - action: add_breakpoint\n", []string{"step 1 (add_breakpoint): missing line"}},
		{"bad reason", "file: a.py\nsteps:\n  - action: wait_for_breakpoint_hit\n    reason: sideways\n", []string{"step 1"}},
		{"undefined breakpoint", "file: a.py\nsteps:\n  - action: remove_breakpoint\n    breakpoint: nope\n", []string{`breakpoint "nope" is not defined`}},
		{"custom operation", "file: a.py\nsteps:\n  - action: run_custom_operation\n", []string{"missing code", "missing function"}},
		{"single expect", "file: a.py\nsteps:\n  - action: wait_for_vars\n    expect: [a, b]\n", []string{"missing expect"}},
		{"bad pattern", "file: a.py\nsteps:\n  - action: wait_for\n    expect: '~('\n", []string{"invalid regex"}},
		{"unknown field", "file: a.py\nsteps:\n  - action: make_initial_run\n    colour: red\n", []string{"colour"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	enable := true
	assert.Equal(t, "line=10 func=call as=first", Step{Action: "add_breakpoint", Line: 10, Func: "call", As: "first"}.Describe())
	assert.Equal(t, `expect="a","b"`, Step{Expect: Expect{"a", "b"}}.Describe())
	assert.Equal(t, "enable=true", Step{Enable: &enable}.Describe())
}

func TestActionNames(t *testing.T) {
	names := ActionNames()
	assert.Contains(t, names, "wait_for_custom_operation")
	assert.Contains(t, names, "set_property_trace")
	assert.IsIncreasing(t, names)
}

// fakePeer answers just enough of the protocol to drive sampleScript.
type fakePeer struct {
	conn net.Conn
	mu   sync.Mutex
	got  []string
}

func (p *fakePeer) serve() {
	sc := bufio.NewScanner(p.conn)
	for sc.Scan() {
		line := sc.Text()
		p.mu.Lock()
		p.got = append(p.got, line)
		p.mu.Unlock()
		id, _ := wire.Split(line).Command()
		switch id {
		case wire.CmdRun:
			_, _ = p.conn.Write([]byte("111\t2\t<xml><thread id=\"pid_4_id_1\" stop_reason=\"111\" message=\"\">" +
				"<frame id=\"77\" name=\"call\" file=\"_debugger_case1.py\" line=\"10\"></frame></thread></xml>\n"))
		case wire.CmdGetVariable:
			_, _ = p.conn.Write([]byte("110\t4\t<xml><var name=\"x\" type=\"int\" value=\"int%253A%2B1\" /></xml>\n"))
		}
	}
}

func (p *fakePeer) lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.got...)
}

func connect(t *testing.T, file string) (*session.Controller, *fakePeer) {
	t.Helper()
	c := session.New(
		session.WithFile(file),
		session.WithWaits(session.Waits{
			Response: waiter.Policy{Attempts: 40, Interval: 25 * time.Millisecond},
			Thread:   waiter.Policy{Attempts: 40, Interval: 25 * time.Millisecond},
			Ack:      waiter.Policy{Attempts: 2, Interval: 5 * time.Millisecond},
			Settle:   time.Millisecond,
		}),
	)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Listen("127.0.0.1", 0))

	dialed := make(chan net.Conn, 1)
	go func() {
		conn, err := net.Dial("tcp", c.Addr().String())
		if err != nil {
			close(dialed)
			return
		}
		dialed <- conn
	}()
	require.NoError(t, c.Accept(context.Background()))
	conn, ok := <-dialed
	require.True(t, ok)
	t.Cleanup(func() { _ = conn.Close() })

	p := &fakePeer{conn: conn}
	go p.serve()
	return c, p
}

func TestRunDrivesSession(t *testing.T) {
	s, err := Parse([]byte(sampleScript))
	require.NoError(t, err)
	c, peer := connect(t, "case1.py")

	var steps []scenario.Step
	ctx := scenario.WithStepFunc(context.Background(), func(st scenario.Step) {
		steps = append(steps, st)
	})
	require.NoError(t, s.Run(ctx, c))

	require.Eventually(t, func() bool { return len(peer.lines()) == 6 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{
		"501\t1\t1.0\tUNIX\tID",
		"111\t3\t1\tpython-line\tcase1.py\t10\tcall\tNone\tNone",
		"101\t5\t",
		"110\t7\tpid_4_id_1\t77\tFRAME\tself",
		"112\t9\tpython-line\tcase1.py\t1",
		"106\t11\tpid_4_id_1",
	}, peer.lines())

	require.Len(t, steps, 7)
	assert.Equal(t, "wait_for_breakpoint_hit", steps[2].Action)
	assert.Equal(t, "pid_4_id_1", steps[2].ThreadID)
	assert.Equal(t, "77", steps[2].FrameID)
	assert.True(t, strings.Contains(strings.Join(c.OperationLog(), "\n"), "step 7: run_thread"))
}

func TestRunStopsAtFailingStep(t *testing.T) {
	s, err := Parse([]byte("file: a.py\nsteps:\n  - action: step_over\n"))
	require.NoError(t, err)
	c, _ := connect(t, "a.py")

	err = s.Run(context.Background(), c)
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 0, se.Index)
	assert.Equal(t, "step_over", se.Action)
	assert.Contains(t, err.Error(), "no thread captured yet")
}

func TestRunTimesOutWaiting(t *testing.T) {
	s, err := Parse([]byte("file: a.py\nsteps:\n  - action: wait_for_vars\n    expect: never\n"))
	require.NoError(t, err)
	c, _ := connect(t, "a.py")

	err = s.Run(context.Background(), c)
	var te *waiter.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, `"never"`, te.Expected)
}

func TestRunWaitForPatterns(t *testing.T) {
	s, err := Parse([]byte(`
file: a.py
steps:
  - action: make_initial_run
  - action: wait_for
    expect:
      - '~stop_reason="11[01]"'
      - '!pydevd.'
`))
	require.NoError(t, err)
	c, _ := connect(t, "a.py")

	require.NoError(t, s.Run(context.Background(), c))
	assert.Contains(t, c.LastReceived(), `frame id="77"`)
}
