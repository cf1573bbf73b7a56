package aarch64

// Data cache maintenance by set and way.
//
// The walker reads the cache topology from CLIDR, selects each data cache
// level in turn through CSSELR, decodes that level's geometry from CCSIDR
// and issues one maintenance instruction per (way, set) pair. This is how
// a core flushes its own hierarchy during boot and power transitions, when
// maintenance by virtual address cannot be relied on yet.

// A 3 bit cache type code from the CLIDR register
type CacheType uint32

const (
	CACHE_TYPE_NONE        CacheType = 0 // no cache at this level
	CACHE_TYPE_INSTRUCTION CacheType = 1 // instruction cache only
	CACHE_TYPE_DATA        CacheType = 2 // data cache only
	CACHE_TYPE_SPLIT       CacheType = 3 // separate instruction and data caches
	CACHE_TYPE_UNIFIED     CacheType = 4 // unified cache
)

// Returns whether a data or unified cache is present at this level
func (ct CacheType) HasDataCache() bool {
	return ct >= CACHE_TYPE_DATA
}

// CLIDR_EL1 can describe up to 7 cache levels
const MAX_CACHE_LEVEL = 7

// Cache Level ID register (CLIDR_EL1)
type Clidr uint64

const (
	clidrLouisShift = 21
	clidrLocShift   = 24
)

// Returns the cache type code of the 1-based `level`, stored in bits
// [3(level-1)+2 : 3(level-1)]
func (c Clidr) CacheType(level uint32) CacheType {
	return CacheType((uint64(c) >> (3 * (level - 1))) & 7)
}

// Level of Unification Inner Shareable in bits [23:21]
func (c Clidr) LoUIS() uint32 {
	return uint32(c>>clidrLouisShift) & 7
}

// Level of Coherence in bits [26:24]
func (c Clidr) LoC() uint32 {
	return uint32(c>>clidrLocShift) & 7
}

// Composes a CLIDR value from per-level cache type codes (types[0] is
// level 1) and the LoUIS/LoC level indices
func MakeClidr(types []CacheType, louis, loc uint32) Clidr {
	if len(types) > MAX_CACHE_LEVEL {
		panicFmt("aarch64: CLIDR describes at most %d levels, got %d",
			MAX_CACHE_LEVEL, len(types))
	}
	var c uint64
	for i, ct := range types {
		c |= uint64(ct&7) << (3 * i)
	}
	c |= uint64(louis&7) << clidrLouisShift
	c |= uint64(loc&7) << clidrLocShift
	return Clidr(c)
}

// Current Cache Size ID register (CCSIDR_EL1). Describes the geometry of
// the cache level selected by CSSELR
type Ccsidr uint32

// Log2 of the line length in bytes, bits [2:0] hold log2(line) - 4
func (c Ccsidr) LineSizeShift() uint32 {
	return (uint32(c) & 7) + 4
}

// Associativity minus one, bits [12:3]
func (c Ccsidr) MaxWay() uint32 {
	return (uint32(c) >> 3) & 0x3ff
}

// Number of sets minus one, bits [27:13]
func (c Ccsidr) MaxSet() uint32 {
	return (uint32(c) >> 13) & 0x7fff
}

// Bit position of the way index in a set/way operand. The way field sits
// at the top of the word, so its shift is the number of leading zeroes of
// the maximum way number
func (c Ccsidr) WayShift() uint32 {
	return countLeadingZeroesU32(c.MaxWay())
}

// Composes a CCSIDR value from a cache geometry. `lineSizeShift` is log2
// of the line length in bytes (at least 4), `ways` and `sets` are the true
// counts (at least 1)
func MakeCcsidr(lineSizeShift, ways, sets uint32) Ccsidr {
	if lineSizeShift < 4 {
		panicFmt("aarch64: line size shift %d below the minimum of 4", lineSizeShift)
	}
	if ways == 0 || sets == 0 {
		panicFmt("aarch64: cache geometry needs at least 1 way and 1 set")
	}
	c := (lineSizeShift - 4) & 7
	c |= ((ways - 1) & 0x3ff) << 3
	c |= ((sets - 1) & 0x7fff) << 13
	return Ccsidr(c)
}

// Cache Size Selection register (CSSELR_EL1). Bit 0 selects instruction
// (1) or data/unified (0), bits [3:1] hold the 0-based level
type Csselr uint32

// Canonical "no selection" state, level 1 data cache
const CSSELR_RESET Csselr = 0

// Returns the selected 1-based cache level
func (s Csselr) Level() uint32 {
	return (uint32(s)>>1)&7 + 1
}

// Returns whether the instruction side is selected instead of data
func (s Csselr) InstructionNotData() bool {
	return s&1 != 0
}

// A data cache maintenance operation applied to one line by set and way
type CacheOp uint32

const (
	CACHE_OP_INVALIDATE       CacheOp = 0 // dc isw
	CACHE_OP_CLEAN_INVALIDATE CacheOp = 1 // dc cisw
	CACHE_OP_CLEAN            CacheOp = 2 // dc csw
)

func (op CacheOp) valid() bool {
	return op <= CACHE_OP_CLEAN
}

func (op CacheOp) String() string {
	switch op {
	case CACHE_OP_INVALIDATE:
		return "invalidate"
	case CACHE_OP_CLEAN_INVALIDATE:
		return "clean+invalidate"
	case CACHE_OP_CLEAN:
		return "clean"
	}
	return "invalid"
}

// SysRegs is the hardware surface consumed by the set/way walker. On real
// hardware every method is a single MRS/MSR/DC/DSB/ISB instruction; the
// emulator package provides a software model of it
type SysRegs interface {
	// Reads CLIDR_EL1
	CLIDR() Clidr
	// Writes CSSELR_EL1. The new selection is observed by CCSIDR reads
	// only after an ISB
	SetCSSELR(sel Csselr)
	// Reads CCSIDR_EL1 for the current selection
	CCSIDR() Ccsidr
	// Issues one `dc isw/cisw/csw` instruction with the packed
	// level|way|set operand
	DCOp(op CacheOp, operand uint32)
	// Data synchronization barrier (dsb sy)
	DSB()
	// Instruction synchronization barrier (isb)
	ISB()
}

// Walks the data cache hierarchy over the encoded level range
// [start, stop), issuing `op` on every (way, set) pair of every level with
// a data cache present. Levels are encoded in the CSSELR convention,
// (level-1)*2, so the loop steps by 2 and `stop` is the first encoded
// level that is not visited.
//
// The selection register is returned to its reset state on every exit
// path, including stop == 0, so no stale selection survives the call.
func dcswOp(regs SysRegs, op CacheOp, start, stop uint32) {
	if !op.valid() {
		panicFmt("aarch64: invalid cache maintenance op %d", uint32(op))
	}
	if stop != 0 {
		clidr := regs.CLIDR()
		for level := start; level < stop; level += 2 {
			if !clidr.CacheType(level/2 + 1).HasDataCache() {
				// nothing to maintain here, no selection and
				// no barrier either
				continue
			}

			regs.SetCSSELR(Csselr(level))
			regs.ISB() // expose the new selection to CCSIDR
			geom := regs.CCSIDR()
			lineShift := geom.LineSizeShift()
			wayShift := geom.WayShift()
			maxWay := geom.MaxWay()
			maxSet := geom.MaxSet()

			regs.DSB() // complete outstanding stores first
			for way := int64(maxWay); way >= 0; way-- {
				for set := int64(maxSet); set >= 0; set-- {
					operand := level |
						uint32(uint64(way)<<wayShift) |
						uint32(set)<<lineShift
					regs.DCOp(op, operand)
				}
			}
		}
	}
	regs.DSB()
	regs.SetCSSELR(CSSELR_RESET)
	regs.ISB()
}

// Performs `op` on every data cache level up to the Level of Unification
// Inner Shareable reported by CLIDR
func DCacheOpLoUIS(regs SysRegs, op CacheOp) {
	dcswOp(regs, op, 0, regs.CLIDR().LoUIS()<<1)
}

// Performs `op` on every data cache level up to the Level of Coherence
// reported by CLIDR
func DCacheOpLoC(regs SysRegs, op CacheOp) {
	dcswOp(regs, op, 0, regs.CLIDR().LoC()<<1)
}

func dcacheOpLevel(regs SysRegs, level uint32, op CacheOp) {
	stop := level << 1
	dcswOp(regs, op, stop-2, stop)
}

// Performs `op` on level 1 only
func DCacheOpLevel1(regs SysRegs, op CacheOp) {
	dcacheOpLevel(regs, 1, op)
}

// Performs `op` on level 2 only
func DCacheOpLevel2(regs SysRegs, op CacheOp) {
	dcacheOpLevel(regs, 2, op)
}

// Performs `op` on level 3 only
func DCacheOpLevel3(regs SysRegs, op CacheOp) {
	dcacheOpLevel(regs, 3, op)
}
