package trace

import (
	"bufio"
	"fmt"
	"io"
)

// Writer emits records in the text trace format understood by Reader.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a Writer over w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write appends one record.
func (w *Writer) Write(rec Record) error {
	_, err := fmt.Fprintf(w.w, "%s %d %x %d\n", lineMarker, rec.Kind, rec.Address, rec.Gap)
	return err
}

// WriteAll appends every record and flushes.
func (w *Writer) WriteAll(records []Record) error {
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return err
		}
	}

	return w.Flush()
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
