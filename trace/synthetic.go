package trace

import "math/rand/v2"

// Sequential returns count reads starting at base and advancing by stride
// bytes each time.
func Sequential(base, stride uint64, count int) []Record {
	records := make([]Record, 0, count)
	for i := 0; i < count; i++ {
		records = append(records, R(base+uint64(i)*stride))
	}
	return records
}

// Strided repeats a Sequential walk of count elements passes times. With a
// stride equal to the set span of a cache, every element lands in the same set.
func Strided(base, stride uint64, count, passes int) []Record {
	walk := Sequential(base, stride, count)
	records := make([]Record, 0, len(walk)*passes)
	for p := 0; p < passes; p++ {
		records = append(records, walk...)
	}
	return records
}

// Alternating returns rounds pairs of reads, a then b.
func Alternating(a, b uint64, rounds int) []Record {
	records := make([]Record, 0, 2*rounds)
	for i := 0; i < rounds; i++ {
		records = append(records, R(a), R(b))
	}
	return records
}

// MatrixWalk visits every element of a rows x cols matrix of elemSize-byte
// elements stored row-major at base. When columnMajor is set the walk goes
// down each column first, which defeats spatial locality.
func MatrixWalk(base uint64, rows, cols int, elemSize uint64, columnMajor bool) []Record {
	records := make([]Record, 0, rows*cols)
	addr := func(r, c int) uint64 {
		return base + (uint64(r)*uint64(cols)+uint64(c))*elemSize
	}

	if columnMajor {
		for c := 0; c < cols; c++ {
			for r := 0; r < rows; r++ {
				records = append(records, R(addr(r, c)))
			}
		}
		return records
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			records = append(records, R(addr(r, c)))
		}
	}
	return records
}

// Random returns count accesses spread uniformly over [base, base+span),
// aligned to align bytes. writeFraction of them (0..1) are writes and every
// record carries a gap between 1 and 8 instructions. The same seed always
// produces the same trace.
func Random(seed uint64, count int, base, span, align uint64, writeFraction float64) []Record {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	if align == 0 {
		align = 1
	}
	slots := span / align
	if slots == 0 {
		slots = 1
	}

	records := make([]Record, 0, count)
	for i := 0; i < count; i++ {
		rec := Record{
			Kind:    Read,
			Address: base + rng.Uint64N(slots)*align,
			Gap:     1 + rng.Uint64N(8),
		}
		if rng.Float64() < writeFraction {
			rec.Kind = Write
		}
		records = append(records, rec)
	}
	return records
}
