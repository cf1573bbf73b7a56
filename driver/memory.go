package driver

// Allwinner A64 memory map

const (
	DEVICE_MEM_START uint64 = 0x01000000
	DEVICE_MEM_END   uint64 = 0x02000000
	ROM_START        uint64 = 0x00000000
	ROM_END          uint64 = 0x00010000
	SRAM_START       uint64 = 0x00010000
	SRAM_END         uint64 = 0x00054000
	DRAM_BASE        uint64 = 0x40000000
)

// Memory regions
const (
	SUNXI_ROM_BASE     uint64 = 0x00000000
	SUNXI_ROM_SIZE     uint64 = 0x00010000
	SUNXI_SRAM_BASE    uint64 = 0x00010000
	SUNXI_SRAM_SIZE    uint64 = 0x00044000
	SUNXI_SRAM_A1_BASE uint64 = 0x00010000
	SUNXI_SRAM_A1_SIZE uint64 = 0x00008000
	SUNXI_SRAM_A2_BASE uint64 = 0x00040000
	SUNXI_SRAM_A2_SIZE uint64 = 0x00014000
	SUNXI_SRAM_C_BASE  uint64 = 0x00018000
	SUNXI_SRAM_C_SIZE  uint64 = 0x0001c000
)

// Memory-mapped devices
const (
	SUNXI_CPUCFG_BASE   uint64 = 0x01700000
	SUNXI_SYSCON_BASE   uint64 = 0x01c00000
	SUNXI_DMA_BASE      uint64 = 0x01c02000
	SUNXI_CCU_BASE      uint64 = 0x01c20000
	SUNXI_PIO_BASE      uint64 = 0x01c20800
	SUNXI_TIMER_BASE    uint64 = 0x01c20c00
	SUNXI_WDOG_BASE     uint64 = 0x01c20ca0
	SUNXI_UART0_BASE    uint64 = 0x01c28000
	SUNXI_UART1_BASE    uint64 = 0x01c28400
	SUNXI_UART2_BASE    uint64 = 0x01c28800
	SUNXI_UART3_BASE    uint64 = 0x01c28c00
	SUNXI_SCU_BASE      uint64 = 0x01c80000
	SUNXI_GICD_BASE     uint64 = 0x01c81000
	SUNXI_GICC_BASE     uint64 = 0x01c82000
	SUNXI_RTC_BASE      uint64 = 0x01f00000
	SUNXI_R_PRCM_BASE   uint64 = 0x01f01400
	SUNXI_R_CPUCFG_BASE uint64 = 0x01f01c00
	SUNXI_R_UART_BASE   uint64 = 0x01f02800
)

// A contiguous physical memory region
type MemRegion struct {
	Start  uint64 // Start address
	Length uint64 // Length of the region
}

var (
	ROM_REGION    = MemRegion{ROM_START, ROM_END - ROM_START}
	SRAM_REGION   = MemRegion{SRAM_START, SRAM_END - SRAM_START}
	DEVICE_REGION = MemRegion{DEVICE_MEM_START, DEVICE_MEM_END - DEVICE_MEM_START}
)

// Returns whether `addr` is located inside this region
func (r *MemRegion) Contains(addr uint64) bool {
	return addr >= r.Start && addr < r.Start+r.Length
}

// Returns the offset between `addr` and the `Start` of the region.
// Does not check if the region contains the address
func (r *MemRegion) Offset(addr uint64) uint64 {
	return addr - r.Start
}

// Returns whether `addr` falls in device MMIO space and must be mapped as
// device memory
func IsDeviceMemory(addr uint64) bool {
	return DEVICE_REGION.Contains(addr)
}
