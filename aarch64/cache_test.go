package aarch64_test

import (
	"fmt"
	"testing"

	"github.com/isgasho/baremetalisp/aarch64"
	"github.com/isgasho/baremetalisp/emulator"
)

func TestCacheTypeClassification(t *testing.T) {
	assert := func(v bool) {
		if !v {
			t.Error("assert failed")
		}
	}
	for code := uint32(0); code < 8; code++ {
		hasData := aarch64.CacheType(code).HasDataCache()
		assert(hasData == (code >= 2))
	}
}

func TestClidrAccessors(t *testing.T) {
	types := []aarch64.CacheType{
		aarch64.CACHE_TYPE_SPLIT,
		aarch64.CACHE_TYPE_UNIFIED,
		aarch64.CACHE_TYPE_NONE,
		aarch64.CACHE_TYPE_INSTRUCTION,
		aarch64.CACHE_TYPE_DATA,
	}
	clidr := aarch64.MakeClidr(types, 1, 2)

	for i, want := range types {
		got := clidr.CacheType(uint32(i) + 1)
		if got != want {
			t.Errorf("level %d: cache type %d, want %d", i+1, got, want)
		}
	}
	if clidr.CacheType(6) != aarch64.CACHE_TYPE_NONE {
		t.Error("unconfigured level should report no cache")
	}
	if clidr.LoUIS() != 1 || clidr.LoC() != 2 {
		t.Errorf("LoUIS/LoC = %d/%d, want 1/2", clidr.LoUIS(), clidr.LoC())
	}
}

func TestCcsidrAccessors(t *testing.T) {
	// 16 byte lines, 4 ways, 128 sets: the raw register holds
	// line field 0, way field 3, set field 127
	raw := aarch64.Ccsidr(127<<13 | 3<<3 | 0)
	if got := aarch64.MakeCcsidr(4, 4, 128); got != raw {
		t.Errorf("MakeCcsidr = 0x%x, want 0x%x", uint32(got), uint32(raw))
	}
	if raw.LineSizeShift() != 4 {
		t.Errorf("line size shift = %d, want 4", raw.LineSizeShift())
	}
	if raw.MaxWay() != 3 || raw.MaxSet() != 127 {
		t.Errorf("max way/set = %d/%d, want 3/127", raw.MaxWay(), raw.MaxSet())
	}
	// way index must land above bits [31:30]
	if raw.WayShift() != 30 {
		t.Errorf("way shift = %d, want 30", raw.WayShift())
	}

	// direct mapped cache: the way field is empty and the shift
	// degenerates to the full register width
	dm := aarch64.MakeCcsidr(6, 1, 256)
	if dm.MaxWay() != 0 || dm.WayShift() != 32 {
		t.Errorf("direct mapped way/shift = %d/%d, want 0/32", dm.MaxWay(), dm.WayShift())
	}
}

// every (way, set) pair of the level must appear in the trace exactly once
func checkFullCoverage(t *testing.T, trace []emulator.Maintenance, level, ways, sets uint32) {
	t.Helper()
	if len(trace) != int(ways*sets) {
		t.Fatalf("%d operations, want %d", len(trace), ways*sets)
	}
	seen := make(map[[2]uint32]bool)
	for _, m := range trace {
		if m.Level != level {
			t.Fatalf("operation on level %d, want %d", m.Level, level)
		}
		key := [2]uint32{m.Way, m.Set}
		if seen[key] {
			t.Fatalf("line (%d, %d) visited twice", m.Way, m.Set)
		}
		seen[key] = true
	}
}

func TestLoUISWalkCoversEveryLine(t *testing.T) {
	// unified level 1 cache, 16 byte lines, 4 ways, 128 sets
	core := emulator.NewCore([]emulator.LevelConfig{
		{Type: aarch64.CACHE_TYPE_UNIFIED, LineSize: 16, Ways: 4, Sets: 128},
	}, 1, 1)

	aarch64.DCacheOpLoUIS(core, aarch64.CACHE_OP_INVALIDATE)

	checkFullCoverage(t, core.Trace(), 1, 4, 128)
	for _, m := range core.Trace() {
		if m.Op != aarch64.CACHE_OP_INVALIDATE {
			t.Fatalf("operation %v, want invalidate", m.Op)
		}
	}
	if core.SelectedCache() != aarch64.CSSELR_RESET {
		t.Error("cache selection not reset after the walk")
	}
}

func TestLoCWalkSkipsInstructionOnlyLevel(t *testing.T) {
	// level 1 holds only an instruction cache, level 2 is unified
	core := emulator.NewCore([]emulator.LevelConfig{
		{Type: aarch64.CACHE_TYPE_INSTRUCTION},
		{Type: aarch64.CACHE_TYPE_UNIFIED, LineSize: 64, Ways: 8, Sets: 256},
	}, 1, 2)

	aarch64.DCacheOpLoC(core, aarch64.CACHE_OP_CLEAN)

	checkFullCoverage(t, core.Trace(), 2, 8, 256)
	// one barrier for level 2 plus the final one; the skipped level
	// contributes none
	if core.DsbCount != 2 {
		t.Errorf("%d data barriers, want 2", core.DsbCount)
	}
	if core.SelectedCache() != aarch64.CSSELR_RESET {
		t.Error("cache selection not reset after the walk")
	}
}

func TestLoCWalkCoversEveryLevelExactlyOnce(t *testing.T) {
	// two data-bearing levels with different geometries
	configs := []emulator.LevelConfig{
		{Type: aarch64.CACHE_TYPE_SPLIT, LineSize: 32, Ways: 2, Sets: 64},
		{Type: aarch64.CACHE_TYPE_UNIFIED, LineSize: 64, Ways: 8, Sets: 256},
	}
	core := emulator.NewCore(configs, 2, 2)

	aarch64.DCacheOpLoC(core, aarch64.CACHE_OP_CLEAN_INVALIDATE)

	// the walk runs level 1 to completion before moving on to level 2,
	// and covers every line of each exactly once
	byLevel := make(map[uint32][]emulator.Maintenance)
	last := uint32(0)
	for _, m := range core.Trace() {
		if m.Level < last {
			t.Fatalf("level %d visited after level %d", m.Level, last)
		}
		last = m.Level
		byLevel[m.Level] = append(byLevel[m.Level], m)
	}
	if len(byLevel) != len(configs) {
		t.Fatalf("operations on %d levels, want %d", len(byLevel), len(configs))
	}
	for i, cfg := range configs {
		level := uint32(i) + 1
		checkFullCoverage(t, byLevel[level], level, cfg.Ways, cfg.Sets)
	}
}

func TestLevelWrappersTouchOnlyTheirLevel(t *testing.T) {
	configs := []emulator.LevelConfig{
		{Type: aarch64.CACHE_TYPE_SPLIT, LineSize: 64, Ways: 4, Sets: 128},
		{Type: aarch64.CACHE_TYPE_UNIFIED, LineSize: 64, Ways: 8, Sets: 512},
		{Type: aarch64.CACHE_TYPE_UNIFIED, LineSize: 64, Ways: 16, Sets: 1024},
	}
	wrappers := []func(aarch64.SysRegs, aarch64.CacheOp){
		aarch64.DCacheOpLevel1,
		aarch64.DCacheOpLevel2,
		aarch64.DCacheOpLevel3,
	}

	for i, wrapper := range wrappers {
		level := uint32(i) + 1
		core := emulator.NewCore(configs, 3, 3)
		for l := uint32(1); l <= 3; l++ {
			core.Level(l).FillDirty()
		}

		wrapper(core, aarch64.CACHE_OP_CLEAN_INVALIDATE)

		cfg := configs[i]
		checkFullCoverage(t, core.Trace(), level, cfg.Ways, cfg.Sets)
		for l := uint32(1); l <= 3; l++ {
			dl := core.Level(l)
			if l == level {
				if dl.ValidCount() != 0 || dl.DirtyCount() != 0 {
					t.Errorf("level %d not fully flushed", l)
				}
				continue
			}
			if dl.DirtyCount() != len(dl.Lines) {
				t.Errorf("level %d touched by a level %d walk", l, level)
			}
		}
	}
}

func TestZeroStopLevelIsANoop(t *testing.T) {
	// LoUIS of 0 means there is nothing to unify: no operand traffic,
	// but the selection register must still end up reset
	core := emulator.NewCore([]emulator.LevelConfig{
		{Type: aarch64.CACHE_TYPE_UNIFIED, LineSize: 16, Ways: 4, Sets: 128},
	}, 0, 1)
	core.SetCSSELR(aarch64.Csselr(2))
	core.ISB()
	core.ResetTrace()

	aarch64.DCacheOpLoUIS(core, aarch64.CACHE_OP_INVALIDATE)

	if len(core.Trace()) != 0 {
		t.Fatalf("%d operations on a no-op walk", len(core.Trace()))
	}
	if core.SelectedCache() != aarch64.CSSELR_RESET {
		t.Error("cache selection not reset on the no-op path")
	}
	if core.DsbCount != 1 || core.IsbCount != 1 {
		t.Errorf("dsb/isb = %d/%d, want 1/1", core.DsbCount, core.IsbCount)
	}
}

func TestInvalidOperationPanics(t *testing.T) {
	core := emulator.NewCore([]emulator.LevelConfig{
		{Type: aarch64.CACHE_TYPE_UNIFIED, LineSize: 16, Ways: 4, Sets: 128},
	}, 1, 1)

	defer func() {
		if recover() == nil {
			t.Error("out of range operation did not panic")
		}
	}()
	aarch64.DCacheOpLoUIS(core, aarch64.CacheOp(3))
}

// records the exact instruction sequence the walker emits
type sequenceRegs struct {
	core   *emulator.Core
	events []string
}

func (r *sequenceRegs) CLIDR() aarch64.Clidr { return r.core.CLIDR() }

func (r *sequenceRegs) SetCSSELR(sel aarch64.Csselr) {
	r.core.SetCSSELR(sel)
	r.events = append(r.events, fmt.Sprintf("select %d", uint32(sel)))
}

func (r *sequenceRegs) CCSIDR() aarch64.Ccsidr { return r.core.CCSIDR() }

func (r *sequenceRegs) DCOp(op aarch64.CacheOp, operand uint32) {
	r.core.DCOp(op, operand)
	if len(r.events) == 0 || r.events[len(r.events)-1] != "dc" {
		r.events = append(r.events, "dc")
	}
}

func (r *sequenceRegs) DSB() {
	r.core.DSB()
	r.events = append(r.events, "dsb")
}

func (r *sequenceRegs) ISB() {
	r.core.ISB()
	r.events = append(r.events, "isb")
}

func TestWalkInstructionOrder(t *testing.T) {
	core := emulator.NewCore([]emulator.LevelConfig{
		{Type: aarch64.CACHE_TYPE_SPLIT, LineSize: 64, Ways: 4, Sets: 128},
		{Type: aarch64.CACHE_TYPE_UNIFIED, LineSize: 64, Ways: 8, Sets: 256},
	}, 2, 2)
	regs := &sequenceRegs{core: core}

	aarch64.DCacheOpLoC(regs, aarch64.CACHE_OP_CLEAN_INVALIDATE)

	want := []string{
		"select 0", "isb", "dsb", "dc", // level 1
		"select 2", "isb", "dsb", "dc", // level 2
		"dsb", "select 0", "isb", // epilogue
	}
	if len(regs.events) != len(want) {
		t.Fatalf("event sequence %v, want %v", regs.events, want)
	}
	for i, e := range want {
		if regs.events[i] != e {
			t.Fatalf("event sequence %v, want %v", regs.events, want)
		}
	}
}
