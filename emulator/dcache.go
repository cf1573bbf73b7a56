package emulator

import "github.com/isgasho/baremetalisp/aarch64"

// Geometry of one modeled cache level
type LevelConfig struct {
	Type     aarch64.CacheType
	LineSize uint32 // bytes per line, power of two, at least 16
	Ways     uint32
	Sets     uint32
}

// State of one cache line
type CacheLine struct {
	Valid bool
	Dirty bool
}

// One data or unified cache level
type DCacheLevel struct {
	Config LevelConfig

	// way-major line array, Ways*Sets entries
	Lines []CacheLine

	Writebacks int // dirty lines written back by clean operations
	DirtyLost  int // dirty lines dropped by a plain invalidate

	lineShift uint32
}

func newDCacheLevel(cfg LevelConfig) *DCacheLevel {
	if cfg.LineSize < 16 || cfg.LineSize&(cfg.LineSize-1) != 0 {
		panicFmt("emulator: line size %d is not a power of two >= 16", cfg.LineSize)
	}
	if cfg.Ways == 0 || cfg.Sets == 0 {
		panicFmt("emulator: cache level needs at least 1 way and 1 set")
	}
	return &DCacheLevel{
		Config:    cfg,
		Lines:     make([]CacheLine, cfg.Ways*cfg.Sets),
		lineShift: log2U32(cfg.LineSize),
	}
}

// Returns the CCSIDR value describing this level
func (l *DCacheLevel) Ccsidr() aarch64.Ccsidr {
	return aarch64.MakeCcsidr(l.lineShift, l.Config.Ways, l.Config.Sets)
}

// Returns the line at `way`, `set`
func (l *DCacheLevel) Line(way, set uint32) *CacheLine {
	if way >= l.Config.Ways || set >= l.Config.Sets {
		panicFmt("emulator: line (%d, %d) outside %dx%d cache",
			way, set, l.Config.Ways, l.Config.Sets)
	}
	return &l.Lines[way*l.Config.Sets+set]
}

// Marks the line at `way`, `set` valid and dirty
func (l *DCacheLevel) MarkDirty(way, set uint32) {
	line := l.Line(way, set)
	line.Valid = true
	line.Dirty = true
}

// Marks every line valid and dirty
func (l *DCacheLevel) FillDirty() {
	for i := range l.Lines {
		l.Lines[i].Valid = true
		l.Lines[i].Dirty = true
	}
}

// Returns the number of valid lines
func (l *DCacheLevel) ValidCount() int {
	n := 0
	for i := range l.Lines {
		if l.Lines[i].Valid {
			n++
		}
	}
	return n
}

// Returns the number of dirty lines
func (l *DCacheLevel) DirtyCount() int {
	n := 0
	for i := range l.Lines {
		if l.Lines[i].Dirty {
			n++
		}
	}
	return n
}

// Applies one maintenance operation to the line at `way`, `set`
func (l *DCacheLevel) apply(op aarch64.CacheOp, way, set uint32) {
	line := l.Line(way, set)
	switch op {
	case aarch64.CACHE_OP_CLEAN:
		l.clean(line)
	case aarch64.CACHE_OP_INVALIDATE:
		if line.Valid && line.Dirty {
			// dropping a dirty line loses its data
			l.DirtyLost++
		}
		line.Valid = false
		line.Dirty = false
	case aarch64.CACHE_OP_CLEAN_INVALIDATE:
		l.clean(line)
		line.Valid = false
	default:
		panicFmt("emulator: invalid cache maintenance op %d", uint32(op))
	}
}

func (l *DCacheLevel) clean(line *CacheLine) {
	if line.Valid && line.Dirty {
		l.Writebacks++
	}
	line.Dirty = false
}
