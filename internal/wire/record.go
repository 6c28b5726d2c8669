// Package wire encodes and inspects records of the line-oriented debugger
// protocol: one record per line, fields separated by tabs.
package wire

import (
	"strconv"
	"strings"
)

const (
	// FieldSeparator separates fields of a record.
	FieldSeparator = "\t"
	// RecordDelimiter terminates a record on the wire.
	RecordDelimiter = '\n'
	// SubFieldSeparator separates sub-fields inside a single field where
	// the sub-field itself may contain tabs (custom operations).
	SubFieldSeparator = "||"
)

// Record is an ordered list of fields.
type Record []string

// NewCommand builds an outbound record: command id, sequence number, payload.
func NewCommand(id CommandID, seq int, payload ...string) Record {
	rec := make(Record, 0, len(payload)+2)
	rec = append(rec, strconv.Itoa(int(id)), strconv.Itoa(seq))
	return append(rec, payload...)
}

// String joins the fields without the trailing delimiter.
func (r Record) String() string {
	return strings.Join(r, FieldSeparator)
}

// Encode returns the record as it is sent on the wire.
func (r Record) Encode() []byte {
	b := make([]byte, 0, 64)
	b = append(b, r.String()...)
	return append(b, RecordDelimiter)
}

// Command returns the command id in field 0, if it is numeric.
func (r Record) Command() (CommandID, bool) {
	if len(r) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(r[0])
	if err != nil {
		return 0, false
	}
	return CommandID(n), true
}

// Seq returns the sequence number in field 1, if present and numeric.
func (r Record) Seq() (int, bool) {
	if len(r) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(r[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Payload returns the fields after the command id and sequence number.
func (r Record) Payload() []string {
	if len(r) < 2 {
		return nil
	}
	return r[2:]
}

// Split breaks a single line (with or without its delimiter) into fields.
// Malformed input is not an error; it simply yields whatever fields exist.
func Split(line string) Record {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil
	}
	return Record(strings.Split(line, FieldSeparator))
}

// Lines splits a published buffer into its individual records.
func Lines(buf string) []Record {
	var out []Record
	for _, line := range strings.Split(buf, string(RecordDelimiter)) {
		if rec := Split(line); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}
