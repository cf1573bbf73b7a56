package aarch64

import "github.com/isgasho/baremetalisp/driver"

// MMU setup for a 64KiB granule with level 2 and 3 translation tables.
// A level 2 table covers 4TiB, each level 3 table covers 512MiB.

const PAGESIZE uint64 = 64 * 1024

// entries per table (64KiB / 8 bytes)
const tableEntries = 8192

// NSTable (bit 63)
const FLAG_L2_NS uint64 = 1 << 63 // non secure table

const (
	FLAG_L3_XN   uint64 = 1 << 54 // execute never
	FLAG_L3_PXN  uint64 = 1 << 53 // privileged execute never
	FLAG_L3_CONT uint64 = 1 << 52 // contiguous
	FLAG_L3_DBM  uint64 = 1 << 51 // dirty bit modifier
	FLAG_L3_AF   uint64 = 1 << 10 // access flag
	FLAG_L3_NS   uint64 = 1 << 5  // non secure
)

// [9:8]: shareability attribute, for normal memory
//
//	00: non shareable
//	10: outer shareable
//	11: inner shareable
const (
	FLAG_L3_OSH uint64 = 0b10 << 8
	FLAG_L3_ISH uint64 = 0b11 << 8
)

// [7:6]: access permissions
//
//	   | higher EL  | EL0
//	00 | read/write | none
//	01 | read/write | read/write
//	10 | read-only  | none
//	11 | read-only  | read-only
const (
	FLAG_L3_SH_RW_N  uint64 = 0
	FLAG_L3_SH_RW_RW uint64 = 1 << 6
	FLAG_L3_SH_R_N   uint64 = 0b10 << 6
	FLAG_L3_SH_R_R   uint64 = 0b11 << 6
)

// [4:2]: AttrIndx into the MAIR register, see MairValue
const (
	FLAG_L3_ATTR_MEM uint64 = 0      // normal memory
	FLAG_L3_ATTR_DEV uint64 = 1 << 2 // device MMIO
	FLAG_L3_ATTR_NC  uint64 = 2 << 2 // non-cacheable
)

// valid table / page descriptor
const descValid uint64 = 0b11

// Translation table pair for one address space
type TTable struct {
	lv2    []uint64
	lv3    []uint64
	numLv2 int
	numLv3 int
}

// Allocates and links a fresh table. Every level 2 entry that has a level
// 3 table behind it is marked valid
func NewTTable(numLv2, numLv3 int) *TTable {
	t := &TTable{
		lv2:    make([]uint64, tableEntries*numLv2),
		lv3:    make([]uint64, tableEntries*numLv3),
		numLv2: numLv2,
		numLv3: numLv3,
	}
	for i := 0; i < tableEntries*numLv2 && i < numLv3; i++ {
		t.lv2[i] = uint64(i)*PAGESIZE | descValid
	}
	return t
}

func (t *TTable) indices(vmAddr uint64) (int, int) {
	lv2idx := int((vmAddr >> 29) & (tableEntries - 1))
	lv3idx := int((vmAddr >> 16) & (tableEntries - 1))
	return lv2idx, lv3idx
}

// Maps the page at `vmAddr` to `phyAddr` with the descriptor `flag` bits
func (t *TTable) Map(vmAddr, phyAddr, flag uint64) {
	lv2idx, lv3idx := t.indices(vmAddr)
	if lv2idx >= t.numLv3 {
		panicFmt("aarch64: map of 0x%x is outside the translation table", vmAddr)
	}
	t.lv3[lv2idx*tableEntries+lv3idx] = phyAddr & ^(PAGESIZE-1) | flag | descValid
}

// Removes the mapping of the page at `vmAddr`
func (t *TTable) Unmap(vmAddr uint64) {
	lv2idx, lv3idx := t.indices(vmAddr)
	if lv2idx >= t.numLv3 {
		panicFmt("aarch64: unmap of 0x%x is outside the translation table", vmAddr)
	}
	t.lv3[lv2idx*tableEntries+lv3idx] = 0
}

// Returns the level 3 descriptor for `vmAddr` and whether it is valid
func (t *TTable) Lookup(vmAddr uint64) (uint64, bool) {
	lv2idx, lv3idx := t.indices(vmAddr)
	if lv2idx >= t.numLv3 {
		return 0, false
	}
	e := t.lv3[lv2idx*tableEntries+lv3idx]
	return e, e&descValid == descValid
}

// Memory attribute array for MAIR_ELx
func MairValue() uint64 {
	return (0xFF << 0) | // AttrIdx=0: normal, IWBWA, OWBWA, NTR
		(0x04 << 8) | // AttrIdx=1: device, nGnRE (must be OSH too)
		(0x44 << 16) // AttrIdx=2: non cacheable
}

// TCR_EL2/TCR_EL3 value. `paBits` is the PARange field of
// ID_AA64MMFR0_EL1
func TcrFirmValue(paBits uint64) uint64 {
	return 1<<31 | // Res1
		1<<23 | // Res1
		paBits<<16 |
		1<<14 | // 64KiB granule
		3<<12 | // inner shareable
		1<<10 | // normal memory, outer write-back read/write allocate
		1<<8 | // normal memory, inner write-back read/write allocate
		22 // T0SZ = 22, levels 2 and 3, 4TiB space
}

// TCR_EL1 value, covering both TTBR0 and TTBR1
func TcrEL1Value(paBits uint64) uint64 {
	return paBits<<32 |
		3<<30 | // 64KiB granule, TTBR1
		3<<28 | // inner shareable, TTBR1
		1<<26 | // normal memory, outer write-back, TTBR1
		1<<24 | // normal memory, inner write-back, TTBR1
		22<<16 | // T1SZ = 22, levels 2 and 3, 4TiB space
		1<<14 | // 64KiB granule
		3<<12 | // inner shareable, TTBR0
		1<<10 | // normal memory, outer write-back, TTBR0
		1<<8 | // normal memory, inner write-back, TTBR0
		22 // T0SZ = 22, levels 2 and 3, 4TiB space
}

// Returns `sctlr` with the MMU and caches enabled
func UpdateSctlr(sctlr uint64) uint64 {
	sctlr |= 1<<44 | // set DSSBS, enable speculative load and store
		1<<12 | // set I, instruction cache
		1<<2 | // set C, data cache
		1 // set M, enable MMU
	return sctlr & ^uint64(1<<25| // clear EE
		1<<19| // clear WXN
		1<<3| // clear SA
		1<<1) // clear A
}

// table counts for the firmware and EL1 address spaces:
// level 2 x 1 (4TiB), level 3 x N (512MiB each)
const (
	FIRM_LV2_TABLE_NUM = 1
	FIRM_LV3_TABLE_NUM = 8

	KERN_TTBR0_LV2_TABLE_NUM = 1
	KERN_TTBR0_LV3_TABLE_NUM = 8

	KERN_TTBR1_LV2_TABLE_NUM = 1
	KERN_TTBR1_LV3_TABLE_NUM = 4
)

const (
	FIRM_TABLE_NUM       = FIRM_LV2_TABLE_NUM + FIRM_LV3_TABLE_NUM
	KERN_TTBR0_TABLE_NUM = KERN_TTBR0_LV2_TABLE_NUM + KERN_TTBR0_LV3_TABLE_NUM
	KERN_TTBR1_TABLE_NUM = KERN_TTBR1_LV2_TABLE_NUM + KERN_TTBR1_LV3_TABLE_NUM
)

// Physical layout of the kernel's working memory, derived from where free
// memory starts and how many cores share it
type MemoryMap struct {
	// must be the same as physical
	NoCacheStart    uint64
	NoCacheEnd      uint64
	TTFirmStart     uint64
	TTFirmEnd       uint64
	TTEL1TTBR0Start uint64
	TTEL1TTBR0End   uint64
	TTEL1TTBR1Start uint64
	TTEL1TTBR1End   uint64
	RomStart        uint64
	RomEnd          uint64
	SramStart       uint64
	SramEnd         uint64

	StackSize uint64

	// independent from physical
	StackEL1End   uint64
	StackEL1Start uint64
	StackEL0End   uint64
	StackEL0Start uint64
	EL0HeapStart  uint64
	EL0HeapEnd    uint64
}

// Computes the memory layout above `freeMemStart` for `numCPU` cores
func NewMemoryMap(freeMemStart uint64, numCPU uint64) MemoryMap {
	var m MemoryMap

	m.NoCacheStart = freeMemStart
	m.NoCacheEnd = m.NoCacheStart + PAGESIZE*numCPU

	// MMU translation table for the firmware
	m.TTFirmStart = m.NoCacheEnd
	m.TTFirmEnd = m.TTFirmStart + PAGESIZE*FIRM_TABLE_NUM

	// MMU translation table #0 for EL1
	m.TTEL1TTBR0Start = m.TTFirmEnd
	m.TTEL1TTBR0End = m.TTEL1TTBR0Start + PAGESIZE*KERN_TTBR0_TABLE_NUM

	// MMU translation table #1 for EL1
	m.TTEL1TTBR1Start = m.TTEL1TTBR0End
	m.TTEL1TTBR1End = m.TTEL1TTBR1Start + PAGESIZE*KERN_TTBR1_TABLE_NUM

	// 2MiB stack for each core
	m.StackSize = 32 * PAGESIZE
	stackTotal := m.StackSize * numCPU

	// EL1's stack
	m.StackEL1End = m.TTEL1TTBR1End
	m.StackEL1Start = m.StackEL1End + stackTotal

	// EL0's stack
	m.StackEL0End = m.StackEL1Start
	m.StackEL0Start = m.StackEL0End + stackTotal

	// heap memory for EL0, 64MiB
	m.EL0HeapStart = m.StackEL0Start
	m.EL0HeapEnd = m.EL0HeapStart + PAGESIZE*1024

	m.RomStart = driver.ROM_START
	m.RomEnd = driver.ROM_END
	m.SramStart = driver.SRAM_START
	m.SramEnd = driver.SRAM_END

	return m
}
