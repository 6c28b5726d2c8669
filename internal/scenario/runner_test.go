package scenario

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vburojevic/dbgwire/internal/domain"
	"github.com/vburojevic/dbgwire/internal/session"
	"github.com/vburojevic/dbgwire/internal/supervisor"
	"github.com/vburojevic/dbgwire/internal/waiter"
	"github.com/vburojevic/dbgwire/internal/wire"
)

const helperEnv = "DBGWIRE_HELPER_DEBUGGEE"

// TestHelperDebuggee is not a real test. It is re-executed as the debugged
// process by the runner tests and speaks just enough of the protocol.
func TestHelperDebuggee(t *testing.T) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		return
	}
	os.Exit(fakeDebuggee(mode, os.Args))
}

func fakeDebuggee(mode string, args []string) int {
	var host, port string
	for i := 0; i < len(args)-1; i++ {
		switch args[i] {
		case "--client":
			host = args[i+1]
		case "--port":
			port = args[i+1]
		}
	}
	conn, err := net.Dial("tcp", net.JoinHostPort(host, port))
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial:", err)
		return 2
	}
	defer conn.Close()

	if mode == "hang" {
		time.Sleep(30 * time.Second)
		return 0
	}

	breakLine := "0"
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		rec := wire.Split(sc.Text())
		id, _ := rec.Command()
		switch id {
		case wire.CmdVersion:
			seq, _ := rec.Seq()
			fmt.Fprintf(conn, "501\t%d\t1.0\n", seq)
		case wire.CmdSetBreakpoint:
			if p := rec.Payload(); len(p) > 3 {
				breakLine = p[3]
			}
		case wire.CmdRun:
			fmt.Fprintf(conn, "103\t2\t<xml><thread name=\"MainThread\" id=\"pid_1_id_7\" /></xml>\n")
			time.Sleep(50 * time.Millisecond)
			fmt.Fprintf(conn, "111\t4\t<xml><thread id=\"pid_1_id_7\" stop_reason=\"111\" message=\"\">"+
				"<frame id=\"frame_3\" name=\"main\" file=\"target.py\" line=\"%s\"></frame></thread></xml>\n", breakLine)
		case wire.CmdRunThread:
			fmt.Println("TEST SUCEEDED")
			return 0
		}
	}
	return 1
}

type recorder struct {
	mu     sync.Mutex
	events []string
	steps  []*domain.StepEvent
	end    *domain.RunEnd
}

func (r *recorder) WriteRunStart(e *domain.RunStart) error { return r.add(e.Type) }
func (r *recorder) WriteStateChange(e *domain.StateChange) error {
	return r.add(e.Type + ":" + e.To)
}

func (r *recorder) WriteStep(e *domain.StepEvent) error {
	r.mu.Lock()
	r.steps = append(r.steps, e)
	r.mu.Unlock()
	return r.add(e.Type)
}

func (r *recorder) WriteRunEnd(e *domain.RunEnd) error {
	r.mu.Lock()
	r.end = e
	r.mu.Unlock()
	return r.add(e.Type)
}

func (r *recorder) add(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func fastWaits() session.Waits {
	return session.Waits{
		Response: waiter.Policy{Attempts: 40, Interval: 50 * time.Millisecond},
		Thread:   waiter.Policy{Attempts: 40, Interval: 50 * time.Millisecond},
		Ack:      waiter.Policy{Attempts: 2, Interval: 10 * time.Millisecond},
		Settle:   5 * time.Millisecond,
	}
}

func newTestRunner(t *testing.T, mode string, rec *recorder, opts ...RunnerOption) *Runner {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("helper debuggee is not supported on windows")
	}
	policy := supervisor.DefaultPolicy()
	policy.PollInterval = 10 * time.Millisecond
	policy.FailAfter = 50
	policy.FinishAttempts = 20
	policy.FinishInterval = 10 * time.Millisecond
	sup := supervisor.New(supervisor.WithPolicy(policy))

	launch := supervisor.Launch{
		Command: []string{os.Args[0], "-test.run=^TestHelperDebuggee$", "--"},
		Flags:   []string{},
		Host:    "127.0.0.1",
		Env:     []string{helperEnv + "=" + mode},
	}
	all := append([]RunnerOption{
		WithEmitter(rec),
		WithSessionOptions(session.WithWaits(fastWaits())),
	}, opts...)
	return NewRunner(sup, launch, all...)
}

func breakpointScenario() Func {
	return Func{
		ScenarioName: "breakpoint",
		Target:       "target.py",
		Fn: func(ctx context.Context, c *session.Controller) error {
			if _, err := c.AddBreakpoint(ctx, 10, ""); err != nil {
				return err
			}
			if err := c.MakeInitialRun(ctx); err != nil {
				return err
			}
			ReportStep(ctx, Step{Index: 0, Action: "make_initial_run"})
			ev, err := c.WaitForBreakpointHit(ctx, wire.StopBreakpoint)
			if err != nil {
				return err
			}
			if ev.Line != 10 {
				return fmt.Errorf("stopped at line %d", ev.Line)
			}
			ReportStep(ctx, Step{Index: 1, Action: "wait_for_breakpoint_hit", ThreadID: ev.ThreadID, FrameID: ev.FrameID})
			return c.RunThread(ctx, ev.ThreadID)
		},
	}
}

func TestRunnerVerifiesSuccessfulRun(t *testing.T) {
	rec := &recorder{}
	r := newTestRunner(t, "serve", rec)

	rep, err := r.Run(context.Background(), breakpointScenario())
	require.NoError(t, err)
	assert.False(t, rep.Failed())
	assert.Equal(t, domain.StateVerified, rep.State)
	assert.Equal(t, []domain.RunState{
		domain.StateNotStarted,
		domain.StateListening,
		domain.StateConnected,
		domain.StateHandshaked,
		domain.StateProcessExited,
		domain.StateVerified,
	}, rep.States)
	assert.NotZero(t, rep.Port)
	assert.Len(t, rep.RunID, 36)
	assert.Contains(t, rep.Stdout, "TEST SUCEEDED")
	assert.Contains(t, rep.Log, "start_socket")
	assert.Contains(t, rep.Log, "End: wait_for_breakpoint_hit")

	events := rec.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, "run_start", events[0])
	assert.Equal(t, "run_end", events[len(events)-1])
	assert.Contains(t, events, "state:handshaked")
	assert.Contains(t, events, "state:verified")

	require.Len(t, rec.steps, 2)
	assert.Equal(t, rep.RunID, rec.steps[1].RunID)
	assert.Equal(t, "pid_1_id_7", rec.steps[1].ThreadID)
	assert.Equal(t, "frame_3", rec.steps[1].FrameID)
	assert.Equal(t, "verified", rec.end.State)
}

func TestRunnerAbortsOnScenarioError(t *testing.T) {
	rec := &recorder{}
	var reported *Report
	r := newTestRunner(t, "hang", rec, WithFailureReport(func(rep *Report) (string, error) {
		reported = rep
		return "/tmp/report.txt", nil
	}))
	boom := errors.New("expected record never arrived")
	sc := Func{ScenarioName: "boom", Target: "target.py", Fn: func(ctx context.Context, c *session.Controller) error {
		return boom
	}}

	start := time.Now()
	rep, err := r.Run(context.Background(), sc)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Less(t, time.Since(start), 20*time.Second)

	assert.True(t, rep.Failed())
	assert.Equal(t, domain.StateFailed, rep.State)
	assert.Contains(t, rep.States, domain.StateHandshaked)
	assert.Same(t, rep, reported)
	assert.Equal(t, "/tmp/report.txt", rec.end.Report)
	assert.True(t, strings.Contains(strings.Join(rep.Log, "\n"), "scenario error"))
}

func TestRunnerFailsWhenPortIsTaken(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip()
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	rec := &recorder{}
	r := NewRunner(nil, supervisor.Launch{Command: []string{"true"}, Host: "127.0.0.1", Port: port}, WithEmitter(rec))
	rep, err := r.Run(context.Background(), breakpointScenario())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind listener")
	assert.Equal(t, domain.StateFailed, rep.State)
	assert.Equal(t, []string{"run_start", "state:failed", "run_end"}, rec.snapshot())
	assert.Zero(t, rep.Port)
}
