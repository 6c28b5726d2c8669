package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Token positions after splitting a suspend notification on '"'. The peer
// renders <thread id="T" stop_reason="R" message="M"><frame id="F" name="N"
// file="P" line="L">, so the positions are fixed.
const (
	stopThreadToken = 1
	stopReasonToken = 3
	stopFrameToken  = 7
	stopLineToken   = 13

	createdThreadToken = 3
)

const (
	threadCreatedPrefix  = `<xml><thread name="`
	internalThreadPrefix = `<xml><thread name="pydevd.`
)

// ErrMalformed is returned when a record lacks the tokens an accessor needs.
var ErrMalformed = errors.New("wire: malformed record")

// StopEvent is the parsed head of a thread suspend notification.
type StopEvent struct {
	ThreadID  string
	FrameID   string
	Reason    string
	Line      int
	LineKnown bool
}

// ParseStopEvent extracts thread id, frame id and line from a suspend
// notification. Thread and frame ids are opaque.
func ParseStopEvent(raw string) (StopEvent, error) {
	tok := strings.Split(raw, `"`)
	if len(tok) <= stopFrameToken {
		return StopEvent{}, fmt.Errorf("%w: stop event has %d tokens", ErrMalformed, len(tok))
	}
	ev := StopEvent{
		ThreadID: tok[stopThreadToken],
		Reason:   tok[stopReasonToken],
		FrameID:  tok[stopFrameToken],
	}
	if len(tok) > stopLineToken {
		if n, err := strconv.Atoi(tok[stopLineToken]); err == nil {
			ev.Line = n
			ev.LineKnown = true
		}
	}
	return ev, nil
}

// IsThreadCreated reports whether raw announces a new user thread.
// Threads owned by the debugger itself are ignored.
func IsThreadCreated(raw string) bool {
	return strings.Contains(raw, threadCreatedPrefix) && !strings.Contains(raw, internalThreadPrefix)
}

// ParseThreadCreated returns the id of the thread announced in raw,
// e.g. <xml><thread name="MainThread" id="12103472" /></xml>.
func ParseThreadCreated(raw string) (string, error) {
	tok := strings.Split(raw, `"`)
	if len(tok) <= createdThreadToken {
		return "", fmt.Errorf("%w: thread notification has %d tokens", ErrMalformed, len(tok))
	}
	return tok[createdThreadToken], nil
}
