package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/isgasho/baremetalisp/aarch64"
	"github.com/isgasho/baremetalisp/driver"
	"github.com/isgasho/baremetalisp/emulator"
)

func main() {
	// parse arguments
	opName := flag.String("op", "ci", "maintenance operation: i (invalidate), c (clean), ci (clean+invalidate)")
	scope := flag.String("scope", "loc", "walk scope: louis, loc, l1, l2, l3")
	flag.Parse()

	op, err := parseOp(*opName)
	if err != nil {
		log.Fatal(err)
	}

	// model a three level hierarchy: 32KiB 4-way L1 data cache, 512KiB
	// 16-way unified L2, 1MiB 16-way unified L3
	core := emulator.NewCore([]emulator.LevelConfig{
		{Type: aarch64.CACHE_TYPE_SPLIT, LineSize: 64, Ways: 4, Sets: 128},
		{Type: aarch64.CACHE_TYPE_UNIFIED, LineSize: 64, Ways: 16, Sets: 512},
		{Type: aarch64.CACHE_TYPE_UNIFIED, LineSize: 64, Ways: 16, Sets: 1024},
	}, 1, 3)
	core.Level(1).FillDirty()
	core.Level(2).FillDirty()
	core.Level(3).FillDirty()

	switch *scope {
	case "louis":
		aarch64.DCacheOpLoUIS(core, op)
	case "loc":
		aarch64.DCacheOpLoC(core, op)
	case "l1":
		aarch64.DCacheOpLevel1(core, op)
	case "l2":
		aarch64.DCacheOpLevel2(core, op)
	case "l3":
		aarch64.DCacheOpLevel3(core, op)
	default:
		log.Fatalf("unknown scope %q", *scope)
	}

	uart := driver.NewUART(os.Stdout)
	uart.PrintMsg("op", op.String())
	uart.PrintMsg("scope", *scope)
	uart.Puts("[clidr       ] 0x")
	uart.Hex(uint64(core.CLIDR()))
	uart.Puts("\n")
	uart.PrintMsg("maintenance", fmt.Sprintf("%d line operations", len(core.Trace())))
	for level := uint32(1); level <= aarch64.MAX_CACHE_LEVEL; level++ {
		l := core.Level(level)
		if l == nil {
			continue
		}
		uart.PrintMsg(fmt.Sprintf("level %d", level),
			fmt.Sprintf("%d writebacks, %d dirty lost, %d lines still valid",
				l.Writebacks, l.DirtyLost, l.ValidCount()))
	}
}

func parseOp(name string) (aarch64.CacheOp, error) {
	switch name {
	case "i":
		return aarch64.CACHE_OP_INVALIDATE, nil
	case "c":
		return aarch64.CACHE_OP_CLEAN, nil
	case "ci":
		return aarch64.CACHE_OP_CLEAN_INVALIDATE, nil
	}
	return 0, fmt.Errorf("unknown maintenance operation %q", name)
}
