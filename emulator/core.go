package emulator

import "github.com/isgasho/baremetalisp/aarch64"

// One recorded maintenance instruction
type Maintenance struct {
	Op    aarch64.CacheOp
	Level uint32 // 1-based cache level
	Way   uint32
	Set   uint32
}

// Software model of one aarch64 core's cache identification registers and
// data cache hierarchy. Implements aarch64.SysRegs.
//
// The model is deliberately strict: reading CCSIDR before the CSSELR
// write has been made visible with an ISB, selecting a level without a
// data cache, or issuing an operand whose decoded way/set is out of range
// all panic, since each of those is a silent bug on real hardware.
type Core struct {
	clidr  aarch64.Clidr
	levels [aarch64.MAX_CACHE_LEVEL]*DCacheLevel

	csselr     aarch64.Csselr
	selectSync bool // ISB seen since the last CSSELR write

	DsbCount int
	IsbCount int

	trace []Maintenance
}

// Builds a core whose CLIDR reports the given per-level configurations
// (levels[0] is level 1) and LoUIS/LoC indices. Levels with an
// instruction-only or absent cache carry no line state
func NewCore(levels []LevelConfig, louis, loc uint32) *Core {
	if len(levels) > aarch64.MAX_CACHE_LEVEL {
		panicFmt("emulator: at most %d cache levels, got %d",
			aarch64.MAX_CACHE_LEVEL, len(levels))
	}
	core := &Core{selectSync: true}
	types := make([]aarch64.CacheType, len(levels))
	for i, cfg := range levels {
		types[i] = cfg.Type
		if cfg.Type.HasDataCache() {
			core.levels[i] = newDCacheLevel(cfg)
		}
	}
	core.clidr = aarch64.MakeClidr(types, louis, loc)
	return core
}

// Returns the modeled data cache at the 1-based `level`, or nil if the
// level has no data cache
func (core *Core) Level(level uint32) *DCacheLevel {
	if level == 0 || level > aarch64.MAX_CACHE_LEVEL {
		return nil
	}
	return core.levels[level-1]
}

// Returns every maintenance instruction issued so far, oldest first
func (core *Core) Trace() []Maintenance {
	return core.trace
}

// Forgets the recorded maintenance instructions and barrier counts
func (core *Core) ResetTrace() {
	core.trace = nil
	core.DsbCount = 0
	core.IsbCount = 0
}

// Returns the current cache selection
func (core *Core) SelectedCache() aarch64.Csselr {
	return core.csselr
}

// Reads CLIDR_EL1
func (core *Core) CLIDR() aarch64.Clidr {
	return core.clidr
}

// Writes CSSELR_EL1
func (core *Core) SetCSSELR(sel aarch64.Csselr) {
	core.csselr = sel
	core.selectSync = false
}

// Reads CCSIDR_EL1 for the currently selected level
func (core *Core) CCSIDR() aarch64.Ccsidr {
	if !core.selectSync {
		panicFmt("emulator: CCSIDR read before the CSSELR write was synchronized with an isb")
	}
	if core.csselr.InstructionNotData() {
		panicFmt("emulator: instruction caches are not modeled")
	}
	level := core.csselr.Level()
	l := core.Level(level)
	if l == nil {
		panicFmt("emulator: CCSIDR read with no data cache at level %d selected", level)
	}
	return l.Ccsidr()
}

// Issues one `dc` instruction by set and way. The packed operand is
// decoded against the geometry of the level it names
func (core *Core) DCOp(op aarch64.CacheOp, operand uint32) {
	level := (operand>>1)&7 + 1
	l := core.Level(level)
	if l == nil {
		panicFmt("emulator: set/way op on level %d, which has no data cache", level)
	}

	geom := l.Ccsidr()
	wayShift := uint64(geom.WayShift())
	way := uint32(uint64(operand) >> wayShift)
	set := uint32((uint64(operand) & (1<<wayShift - 1)) >> geom.LineSizeShift())
	if way >= l.Config.Ways || set >= l.Config.Sets {
		panicFmt("emulator: operand 0x%x decodes to line (%d, %d) outside the %dx%d level %d cache",
			operand, way, set, l.Config.Ways, l.Config.Sets, level)
	}

	l.apply(op, way, set)
	core.trace = append(core.trace, Maintenance{Op: op, Level: level, Way: way, Set: set})
}

// Data synchronization barrier
func (core *Core) DSB() {
	core.DsbCount++
}

// Instruction synchronization barrier
func (core *Core) ISB() {
	core.IsbCount++
	core.selectSync = true
}
