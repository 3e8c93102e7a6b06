package trace

import "io"

// Source produces trace records in order. Next returns io.EOF once the trace
// is exhausted; any other error means the trace could not be read or a record
// was malformed.
type Source interface {
	Next() (Record, error)
}

// SliceSource replays an in-memory sequence of records.
type SliceSource struct {
	records []Record
	pos     int
}

// NewSliceSource creates a source that yields the given records in order.
func NewSliceSource(records ...Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next returns the next record, or io.EOF after the last one.
func (s *SliceSource) Next() (Record, error) {
	if s.pos >= len(s.records) {
		return Record{}, io.EOF
	}

	rec := s.records[s.pos]
	s.pos++

	return rec, nil
}

// Remaining returns how many records have not been consumed yet.
func (s *SliceSource) Remaining() int {
	return len(s.records) - s.pos
}
