package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stopRecord = `107	27	<xml><thread id="pid_123_id_456" stop_reason="111" message=""><frame id="140234" name="bar" file="/tmp/foo.py" line="10"></frame></thread></xml>` + "\n"

func TestNewCommandEncode(t *testing.T) {
	rec := NewCommand(CmdSetBreakpoint, 3, "1", "python-line", "foo.py", "10", "bar", "None", "None")
	assert.Equal(t, "111\t3\t1\tpython-line\tfoo.py\t10\tbar\tNone\tNone\n", string(rec.Encode()))

	id, ok := rec.Command()
	require.True(t, ok)
	assert.Equal(t, CmdSetBreakpoint, id)

	seq, ok := rec.Seq()
	require.True(t, ok)
	assert.Equal(t, 3, seq)
	assert.Equal(t, []string{"1", "python-line", "foo.py", "10", "bar", "None", "None"}, rec.Payload())
}

func TestNewCommandWithoutPayload(t *testing.T) {
	rec := NewCommand(CmdRun, 1, "")
	assert.Equal(t, "101\t1\t\n", string(rec.Encode()))
}

func TestSplitMalformedIsNotAnError(t *testing.T) {
	rec := Split("garbage without tabs\n")
	require.Len(t, rec, 1)
	_, ok := rec.Command()
	assert.False(t, ok)
	assert.Nil(t, Split("\r\n"))
}

func TestLines(t *testing.T) {
	recs := Lines("103\t1\ta\n104\t2\tb\n")
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].Payload()[0])
	assert.Equal(t, "b", recs[1].Payload()[0])
}

func TestParseStopEvent(t *testing.T) {
	ev, err := ParseStopEvent(stopRecord)
	require.NoError(t, err)
	assert.Equal(t, "pid_123_id_456", ev.ThreadID)
	assert.Equal(t, "140234", ev.FrameID)
	assert.Equal(t, "111", ev.Reason)
	assert.True(t, ev.LineKnown)
	assert.Equal(t, 10, ev.Line)
}

func TestParseStopEventMalformed(t *testing.T) {
	_, err := ParseStopEvent(`<xml><thread id="1">`)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestParseThreadCreated(t *testing.T) {
	raw := `103	4	<xml><thread name="MainThread" id="12103472" /></xml>` + "\n"
	require.True(t, IsThreadCreated(raw))
	id, err := ParseThreadCreated(raw)
	require.NoError(t, err)
	assert.Equal(t, "12103472", id)

	assert.False(t, IsThreadCreated(`103	4	<xml><thread name="pydevd.Reader" id="1" /></xml>`))
	assert.False(t, IsThreadCreated(stopRecord))
}

func TestParseStopReason(t *testing.T) {
	tests := []struct {
		in   string
		want StopReason
		ok   bool
	}{
		{"", StopBreakpoint, true},
		{"111", StopBreakpoint, true},
		{"over", StopStepOver, true},
		{"step_return", StopStepReturn, true},
		{"109", StopStepReturn, true},
		{"nope", 0, false},
		{"-3", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseStopReason(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, `stop_reason="108"`, StopStepOver.Fragment())
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, "a+b%2Fc%3D1", QuotePlus("a b/c=1"))
	assert.Equal(t, "a%20b/c%3D1", Quote("a b/c=1"))
	assert.Equal(t, "val%3D%27x~y%27%21%2A", QuotePlus("val='x~y'!*"))
	assert.Equal(t, "a%3A%40%26%2B%24/b", Quote("a:@&+$/b"))
	assert.Equal(t, "a%2Bb%252Fc", DoubleEncode("a b/c"))
	assert.Equal(t, "a b/c=1", UnquotePlus("a+b%2Fc%3D1"))
	assert.Equal(t, "100%", UnquotePlus("100%"))
	assert.Equal(t, "%zz", UnquotePlus("%zz"))
	assert.Equal(t, "é", UnquotePlus(QuotePlus("é")))
}

func TestCommandIDString(t *testing.T) {
	assert.Equal(t, "add_breakpoint", CmdSetBreakpoint.String())
	assert.Equal(t, "999", CommandID(999).String())
}
