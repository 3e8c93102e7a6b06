// Package trace provides the memory-access records consumed by the cache
// simulator, together with the sources that produce them and a writer for
// the text trace format.
package trace

import "fmt"

// Kind identifies whether an access reads or writes memory.
type Kind uint8

const (
	// Read is a load from memory. Encoded as 0 in trace files.
	Read Kind = iota
	// Write is a store to memory. Encoded as 1 in trace files.
	Write
)

// String returns a human-readable name for the access kind.
func (k Kind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Record is a single memory reference taken from a trace.
type Record struct {
	// Kind is the access type.
	Kind Kind
	// Address is the full byte address being referenced.
	Address uint64
	// Gap is the number of instructions retired since the previous access.
	Gap uint64
}

// IsWrite returns true if the record is a store.
func (r Record) IsWrite() bool {
	return r.Kind == Write
}

// R builds a read record with no instruction gap.
func R(addr uint64) Record {
	return Record{Kind: Read, Address: addr}
}

// W builds a write record with no instruction gap.
func W(addr uint64) Record {
	return Record{Kind: Write, Address: addr}
}
