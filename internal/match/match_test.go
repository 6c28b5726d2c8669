package match

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsAndAlternatives(t *testing.T) {
	m := AnyOf(Strings("<var name=\"a\"", "<var name=\"b\"")...)
	assert.True(t, m.Match(`<xml><var name="b" type="int" /></xml>`))
	assert.False(t, m.Match(`<xml><var name="c" /></xml>`))
}

func TestAllOf(t *testing.T) {
	m := AllOf(Strings("a=1", "b=2")...)
	assert.True(t, m.Match("a=1 b=2"))
	assert.False(t, m.Match("a=1"))
}

func TestRawOrDecoded(t *testing.T) {
	m := RawOrDecoded(Contains("val='hello world'"))
	assert.True(t, m.Match("val='hello world'"))
	assert.True(t, m.Match("val%3D%27hello+world%27"))
	assert.False(t, m.Match("val%3D%27bye%27"))
}

func TestLinePicksMatchingRecord(t *testing.T) {
	chunk := "103\t2\t<xml><thread name=\"pydevd.Reader\" id=\"-1\" />\n" +
		"111\t4\t<xml><thread id=\"T1\" stop_reason=\"111\">\n"
	m := Contains(`stop_reason="111"`)

	line, ok := Line(chunk, m)
	require.True(t, ok)
	assert.Equal(t, "111\t4\t<xml><thread id=\"T1\" stop_reason=\"111\">", line)
	assert.True(t, AnyLine(m).Match(chunk))

	notDebugger := Func("user thread", func(s string) bool { return !Contains("pydevd.").Match(s) })
	assert.False(t, notDebugger.Match(chunk))
	assert.True(t, AnyLine(notDebugger).Match(chunk))

	_, ok = Line(chunk, Contains("missing"))
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	tests := []struct {
		expr   string
		record string
		want   bool
	}{
		{"stop_reason", `stop_reason="111"`, true},
		{`~stop_reason="1(08|09)"`, `stop_reason="109"`, true},
		{`~stop_reason="1(08|09)"`, `stop_reason="111"`, false},
		{"!error", "all good", true},
		{"!error", "an error", false},
		{`\!bang`, "a !bang here", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			m, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Match(tt.record))
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)

	_, err = Parse("~(")
	assert.Error(t, err)

	_, err = ParseAll([]string{"ok", "~["})
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	m := AnyOf(Contains("a"), Regexp(regexp.MustCompile("b+")))
	assert.Equal(t, `"a" or ~b+`, m.String())
	assert.Equal(t, `!"x"`, Not(Contains("x")).String())
}
