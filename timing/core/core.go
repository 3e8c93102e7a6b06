// Package core drives a cache model with a trace. It is the loop that pulls
// records from a trace source and feeds them, in order, to the cache.
package core

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-logr/logr"

	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/trace"
)

// Processor consumes one record at a time and keeps the run's statistics.
// *cache.Cache satisfies it.
type Processor interface {
	Process(rec trace.Record) cache.AccessOutcome
	Summary() cache.Summary
}

// Flusher is implemented by processors that can write back their dirty
// contents at the end of a run.
type Flusher interface {
	Flush() int
}

// Result is what a run produced. It is filled in even when the run fails,
// and then covers the records processed before the failure.
type Result struct {
	// Records is the number of records processed.
	Records uint64
	// Summary is the processor's statistics at the end of the run.
	Summary cache.Summary
}

// Core represents one trace-driven simulation run.
type Core struct {
	processor  Processor
	log        logr.Logger
	flushAtEnd bool
	limit      uint64

	records uint64
}

// Option configures a Core.
type Option func(*Core)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logr.Logger) Option {
	return func(c *Core) {
		c.log = l
	}
}

// WithFlushAtEnd makes a successful run flush the processor after the last
// record, so that dirty blocks still resident are written back.
func WithFlushAtEnd() Option {
	return func(c *Core) {
		c.flushAtEnd = true
	}
}

// WithMaxRecords stops the run after n records. Zero means no limit.
func WithMaxRecords(n uint64) Option {
	return func(c *Core) {
		c.limit = n
	}
}

// NewCore creates a Core that feeds the given processor.
func NewCore(p Processor, opts ...Option) *Core {
	c := &Core{
		processor: p,
		log:       logr.Discard(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run processes every record of src in order until src returns io.EOF.
// Any other error from src aborts the run; the returned Result then holds
// the statistics of the records processed before it, and the error wraps
// the source error (trace.ErrMalformedRecord for a bad line).
func (c *Core) Run(src trace.Source) (Result, error) {
	for c.limit == 0 || c.records < c.limit {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.log.Error(err, "trace aborted", "records", c.records)
			return c.result(), fmt.Errorf("trace aborted after %d records: %w", c.records, err)
		}

		c.processor.Process(rec)
		c.records++
	}

	if c.flushAtEnd {
		if f, ok := c.processor.(Flusher); ok {
			f.Flush()
		}
	}

	res := c.result()
	c.log.V(1).Info("trace finished",
		"records", res.Records,
		"hits", res.Summary.Hits,
		"misses", res.Summary.Misses)

	return res, nil
}

// RunFile opens the trace at path, runs it, and closes the file on every
// exit path.
func (c *Core) RunFile(path string) (res Result, err error) {
	f, err := trace.Open(path)
	if err != nil {
		return c.result(), err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close trace file: %w", cerr)
		}
	}()

	c.log.V(1).Info("running trace", "path", path)

	return c.Run(f)
}

// Records returns the number of records processed so far.
func (c *Core) Records() uint64 {
	return c.records
}

func (c *Core) result() Result {
	return Result{
		Records: c.records,
		Summary: c.processor.Summary(),
	}
}
