package stats

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/zemu/bus"
	"github.com/sarchlab/zemu/trace"
)

// LocalityConfig sizes the directory backing the locality estimate.
type LocalityConfig struct {
	// Size in bytes.
	Size int
	// Associativity (number of ways).
	Associativity int
	// BlockSize in bytes (cache line size).
	BlockSize int
}

// DefaultLocalityConfig models a typical L1 data cache: 128KiB, 8-way,
// 64-byte lines.
func DefaultLocalityConfig() LocalityConfig {
	return LocalityConfig{
		Size:          128 * 1024,
		Associativity: 8,
		BlockSize:     64,
	}
}

func (c LocalityConfig) normalized() LocalityConfig {
	d := DefaultLocalityConfig()
	if c.Size <= 0 {
		c.Size = d.Size
	}
	if c.Associativity <= 0 {
		c.Associativity = d.Associativity
	}
	if c.BlockSize <= 0 {
		c.BlockSize = d.BlockSize
	}
	return c
}

// Locality is the hit/miss estimate from replaying a trace's memory rows
// through an LRU directory.
type Locality struct {
	Accesses  uint64
	Reads     uint64
	Writes    uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns the fraction of accesses that hit, zero for an empty
// replay.
func (l Locality) HitRate() float64 {
	if l.Accesses == 0 {
		return 0
	}
	return float64(l.Hits) / float64(l.Accesses)
}

// EstimateLocality replays rows in order through an LRU directory sized by
// cfg. Only tags are modeled; fills and write-backs carry no data, so the
// estimate is purely about reuse distance.
func EstimateLocality(rows []trace.MemRow, cfg LocalityConfig) Locality {
	cfg = cfg.normalized()
	numSets := cfg.Size / (cfg.Associativity * cfg.BlockSize)
	if numSets < 1 {
		numSets = 1
	}
	dir := akitacache.NewDirectory(
		numSets,
		cfg.Associativity,
		cfg.BlockSize,
		akitacache.NewLRUVictimFinder(),
	)

	var loc Locality
	blockSize := uint64(cfg.BlockSize)
	for i := range rows {
		row := &rows[i]
		loc.Accesses++
		if row.Kind == bus.AccessWrite {
			loc.Writes++
		} else {
			loc.Reads++
		}

		blockAddr := row.Addr / blockSize * blockSize
		if block := dir.Lookup(0, blockAddr); block != nil && block.IsValid {
			loc.Hits++
			dir.Visit(block)
			continue
		}

		loc.Misses++
		victim := dir.FindVictim(blockAddr)
		if victim == nil {
			continue
		}
		if victim.IsValid {
			loc.Evictions++
		}
		victim.Tag = blockAddr
		victim.IsValid = true
		victim.IsDirty = false
		dir.Visit(victim)
	}
	return loc
}
