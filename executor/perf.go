package executor

import (
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

// perfStats snapshots time and allocation at a phase boundary so the phase
// can log what it cost.
type perfStats struct {
	start    time.Time
	startMem uint64
}

func newPerfStats() *perfStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &perfStats{start: time.Now(), startMem: m.TotalAlloc}
}

// log reports the elapsed time and allocation since the snapshot.
func (p *perfStats) log(prefix string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	alloc := (m.TotalAlloc - p.startMem) / 1024 / 1024
	log.Debugf("%s took %0.3fs using %d MiB", prefix, time.Since(p.start).Seconds(), alloc)
}
