package stitch

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryWarning reports a non-empty message when allocating the stitched
// canvas would consume more than half of the currently available memory.
// Advisory only: the stitch proceeds either way.
func MemoryWarning(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	need := uint64(width) * uint64(height) * 4
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Available == 0 {
		return ""
	}
	if need > vm.Available/2 {
		return fmt.Sprintf("stitched canvas needs ~%d MiB with only %d MiB available", need/(1<<20), vm.Available/(1<<20))
	}
	return ""
}
