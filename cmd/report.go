package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sarchlab/cachesim/crosscheck"
	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/core"
)

type report struct {
	Cache   cache.Config  `json:"cache"`
	Sets    int           `json:"sets"`
	Records uint64        `json:"records"`
	Summary cache.Summary `json:"summary"`
}

func newReport(config cache.Config, geometry cache.Geometry, res core.Result) report {
	return report{
		Cache:   config,
		Sets:    geometry.NumSets,
		Records: res.Records,
		Summary: res.Summary,
	}
}

func (r report) write(w io.Writer, format string) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(r)
	}

	s := r.Summary
	lines := []struct {
		label string
		value any
	}{
		{"cache", fmt.Sprintf("%s (%d sets)", r.Cache, r.Sets)},
		{"records", r.Records},
		{"accesses", s.Accesses},
		{"reads", s.Reads},
		{"writes", s.Writes},
		{"hits", s.Hits},
		{"misses", s.Misses},
		{"miss rate", fmt.Sprintf("%.4f", s.MissRate)},
		{"dirty writebacks", s.DirtyWritebacks},
		{"flush writebacks", s.FlushWritebacks},
		{"evictions", s.Evictions},
		{"cold fills", s.ColdFills},
		{"instruction gap", s.InstructionGap},
		{"estimated cycles", s.EstimatedCycles},
		{"cycles per access", fmt.Sprintf("%.3f", s.AverageAccessCycles())},
	}

	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%-18s %v\n", l.label+":", l.value); err != nil {
			return err
		}
	}

	return nil
}

func writeVerification(w io.Writer, oracle *crosscheck.Oracle) error {
	if err := oracle.Err(); err != nil {
		for _, m := range oracle.Mismatches() {
			_, _ = fmt.Fprintf(w, "mismatch: %s\n", m)
		}
		return err
	}

	_, err := fmt.Fprintf(w, "crosscheck: %d accesses agree with akita\n", oracle.Checked())
	return err
}
