package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedRecord is returned (wrapped in a *ParseError) when a trace line
// cannot be parsed into a Record.
var ErrMalformedRecord = errors.New("malformed trace record")

// lineMarker is the optional token that starts every line of a trace file.
const lineMarker = "#"

// ParseError describes a trace line that could not be parsed.
type ParseError struct {
	// Line is the 1-based line number within the trace.
	Line int
	// Text is the raw line content.
	Text string
	// Reason explains which field was wrong.
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %s (%q)", e.Line, ErrMalformedRecord, e.Reason, e.Text)
}

// Unwrap allows errors.Is(err, ErrMalformedRecord).
func (e *ParseError) Unwrap() error {
	return ErrMalformedRecord
}

// Reader parses the text trace format, one record per line:
//
//	# <accessType> <hexAddress> <instructionGap>
//
// accessType is 0 for reads and 1 for writes, hexAddress has no 0x prefix and
// instructionGap is a decimal count. The leading '#' is optional.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next record. Blank lines are skipped. It returns io.EOF at
// the end of input and a *ParseError for any line that does not parse.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++

		text := r.scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		rec, err := ParseLine(text)
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				perr.Line = r.line
			}
			return Record{}, err
		}

		return rec, nil
	}

	if err := r.scanner.Err(); errors.Is(err, bufio.ErrTooLong) {
		return Record{}, &ParseError{
			Line:   r.line + 1,
			Reason: fmt.Sprintf("line longer than %d bytes", bufio.MaxScanTokenSize),
		}
	} else if err != nil {
		return Record{}, fmt.Errorf("failed to read trace at line %d: %w", r.line+1, err)
	}

	return Record{}, io.EOF
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int {
	return r.line
}

// ParseLine parses a single trace line. The returned error is a *ParseError
// with Line left at zero.
func ParseLine(text string) (Record, error) {
	fields := strings.Fields(text)
	if len(fields) > 0 && fields[0] == lineMarker {
		fields = fields[1:]
	}

	if len(fields) != 3 {
		return Record{}, &ParseError{
			Text:   text,
			Reason: fmt.Sprintf("expected 3 fields (type, address, gap), got %d", len(fields)),
		}
	}

	var rec Record

	switch fields[0] {
	case "0":
		rec.Kind = Read
	case "1":
		rec.Kind = Write
	default:
		return Record{}, &ParseError{
			Text:   text,
			Reason: fmt.Sprintf("access type must be 0 or 1, got %q", fields[0]),
		}
	}

	addr, err := strconv.ParseUint(fields[1], 16, 64)
	if err != nil {
		return Record{}, &ParseError{
			Text:   text,
			Reason: fmt.Sprintf("invalid hex address %q", fields[1]),
		}
	}
	rec.Address = addr

	gap, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return Record{}, &ParseError{
			Text:   text,
			Reason: fmt.Sprintf("invalid instruction gap %q", fields[2]),
		}
	}
	rec.Gap = gap

	return rec, nil
}
