package benchmarks

import "github.com/sarchlab/cachesim/trace"

// Workload is a named, in-memory trace.
type Workload struct {
	Name        string
	Description string
	Records     []trace.Record
}

// conflictStride maps every access to set 0 of any cache whose set span
// (size / associativity) divides it, which covers all presets.
const conflictStride = 1 << 16

// GetWorkloads returns the standard set of synthetic workloads.
// Each one targets a specific cache behavior.
func GetWorkloads() []Workload {
	return []Workload{
		SequentialScan(),
		SequentialReuse(),
		ConflictThrash(),
		DirtyEviction(),
		MatrixRowMajor(),
		MatrixColumnMajor(),
		RandomUniform(),
	}
}

// GetWorkload returns the workload with the given name.
func GetWorkload(name string) (Workload, bool) {
	for _, w := range GetWorkloads() {
		if w.Name == name {
			return w, true
		}
	}
	return Workload{}, false
}

// SequentialScan touches each 64-byte block of a 512KiB region once.
func SequentialScan() Workload {
	return Workload{
		Name:        "sequential_scan",
		Description: "one pass over 512KiB, one read per 64B block - compulsory misses only",
		Records:     trace.Sequential(0, 64, 8192),
	}
}

// SequentialReuse walks a 32KiB region four times.
func SequentialReuse() Workload {
	return Workload{
		Name:        "sequential_reuse",
		Description: "four passes over 32KiB - misses on the first pass, hits afterwards",
		Records:     trace.Strided(0, 64, 512, 4),
	}
}

// ConflictThrash cycles through 16 blocks that all map to one set.
func ConflictThrash() Workload {
	return Workload{
		Name:        "conflict_thrash",
		Description: "16 blocks in one set, 8 passes - thrashes below 16 ways",
		Records:     trace.Strided(0, conflictStride, 16, 8),
	}
}

// DirtyEviction writes to more same-set blocks than any preset has ways, so
// every eviction after the first fills is dirty.
func DirtyEviction() Workload {
	reads := trace.Strided(0, conflictStride, 24, 4)
	records := make([]trace.Record, len(reads))
	for i, r := range reads {
		records[i] = trace.W(r.Address)
	}

	return Workload{
		Name:        "dirty_eviction",
		Description: "writes to 24 same-set blocks, 4 passes - dirty writeback on every eviction",
		Records:     records,
	}
}

// MatrixRowMajor walks a 256x256 matrix of 8-byte elements in storage order.
func MatrixRowMajor() Workload {
	return Workload{
		Name:        "matrix_row_major",
		Description: "256x256 doubles, row-major walk - one miss per block",
		Records:     trace.MatrixWalk(0, 256, 256, 8, false),
	}
}

// MatrixColumnMajor walks the same matrix down its columns.
func MatrixColumnMajor() Workload {
	return Workload{
		Name:        "matrix_column_major",
		Description: "256x256 doubles, column-major walk - poor spatial locality",
		Records:     trace.MatrixWalk(0, 256, 256, 8, true),
	}
}

// RandomUniform issues seeded uniform random accesses over 1MiB.
func RandomUniform() Workload {
	return Workload{
		Name:        "random_uniform",
		Description: "20000 random 8B-aligned accesses over 1MiB, 30% writes",
		Records:     trace.Random(42, 20000, 0, 1<<20, 8, 0.3),
	}
}
