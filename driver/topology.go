package driver

// CPU topology of the Allwinner A64: one cluster of four Cortex-A53 cores

const (
	CORES_PER_CLUSTER = 4
	CLUSTER_COUNT     = 1
	CORE_COUNT        = CORES_PER_CLUSTER * CLUSTER_COUNT
)

// Returns the linear core index for an MPIDR_EL1 value. Affinity level 0
// is the core within its cluster, affinity level 1 the cluster
func CorePos(mpidr uint64) uint32 {
	aff0 := uint32(mpidr & 0xff)
	aff1 := uint32((mpidr >> 8) & 0xff)
	return aff1*CORES_PER_CLUSTER + aff0
}
