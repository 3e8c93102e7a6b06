// Package crosscheck replays accesses through Akita's cache directory and
// compares the outcome with the cachesim cache model.
//
// Akita's directory tracks LRU order with a queue rather than timestamps, so
// agreement between the two is a useful check on the replacement logic.
package crosscheck

import (
	"fmt"

	"github.com/go-logr/logr"
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/trace"
)

// maxMismatches bounds how many mismatches are kept in memory.
const maxMismatches = 64

// Outcome is what the reference directory decided for one access.
type Outcome struct {
	Hit            bool
	DirtyWriteback bool
}

// Mismatch records an access on which the model and the oracle disagreed.
type Mismatch struct {
	Seq    uint64
	Record trace.Record
	Model  Outcome
	Oracle Outcome
}

func (m Mismatch) String() string {
	return fmt.Sprintf("access %d (%s 0x%x): model hit=%v wb=%v, oracle hit=%v wb=%v",
		m.Seq, m.Record.Kind, m.Record.Address,
		m.Model.Hit, m.Model.DirtyWriteback,
		m.Oracle.Hit, m.Oracle.DirtyWriteback)
}

// Oracle is a reference LRU cache built on Akita's DirectoryImpl. It can be
// driven directly with Access, or attached to a cache.Cache as a hook.
type Oracle struct {
	directory *akitacache.DirectoryImpl
	blockSize uint64
	log       logr.Logger

	seq        uint64
	mismatches []Mismatch
	total      uint64
}

// New creates an oracle with the same geometry as config. Only LRU
// configurations can be checked.
func New(config cache.Config, log logr.Logger) (*Oracle, error) {
	geometry, err := cache.NewGeometry(config)
	if err != nil {
		return nil, err
	}

	if config.Policy != "" && config.Policy != cache.PolicyLRU {
		return nil, fmt.Errorf("crosscheck supports only the %s policy, got %q",
			cache.PolicyLRU, config.Policy)
	}

	return &Oracle{
		directory: akitacache.NewDirectory(
			geometry.NumSets,
			geometry.Associativity,
			geometry.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		blockSize: uint64(geometry.BlockSize),
		log:       log,
	}, nil
}

// Access runs one record through the reference directory.
func (o *Oracle) Access(rec trace.Record) Outcome {
	blockAddr := rec.Address / o.blockSize * o.blockSize

	block := o.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		o.directory.Visit(block)
		if rec.IsWrite() {
			block.IsDirty = true
		}
		return Outcome{Hit: true}
	}

	victim := o.directory.FindVictim(blockAddr)
	outcome := Outcome{DirtyWriteback: victim.IsValid && victim.IsDirty}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = rec.IsWrite()
	o.directory.Visit(victim)

	return outcome
}

// Func implements sim.Hook. It replays the access carried by the hook
// context and records a mismatch when the cache decided differently.
func (o *Oracle) Func(ctx sim.HookCtx) {
	if ctx.Pos != cache.HookPosAccess {
		return
	}

	rec, ok := ctx.Item.(trace.Record)
	if !ok {
		return
	}
	modelOutcome, ok := ctx.Detail.(cache.AccessOutcome)
	if !ok {
		return
	}

	o.seq++
	model := Outcome{Hit: modelOutcome.Hit, DirtyWriteback: modelOutcome.DirtyWriteback}
	oracle := o.Access(rec)

	if model == oracle {
		return
	}

	o.total++
	if len(o.mismatches) < maxMismatches {
		o.mismatches = append(o.mismatches, Mismatch{
			Seq:    o.seq,
			Record: rec,
			Model:  model,
			Oracle: oracle,
		})
	}

	o.log.Info("crosscheck mismatch", "seq", o.seq, "addr", rec.Address,
		"modelHit", model.Hit, "oracleHit", oracle.Hit)
}

// Checked returns how many accesses were compared through the hook.
func (o *Oracle) Checked() uint64 {
	return o.seq
}

// MismatchCount returns how many accesses disagreed.
func (o *Oracle) MismatchCount() uint64 {
	return o.total
}

// Mismatches returns the first recorded mismatches.
func (o *Oracle) Mismatches() []Mismatch {
	return o.mismatches
}

// Err returns an error describing the first mismatch, or nil if the model
// and the oracle always agreed.
func (o *Oracle) Err() error {
	if o.total == 0 {
		return nil
	}
	return fmt.Errorf("crosscheck failed on %d of %d accesses, first: %s",
		o.total, o.seq, o.mismatches[0])
}
