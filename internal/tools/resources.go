package tools

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceSnapshot reports free capacity on the workspace volume and
// system memory.
type ResourceSnapshot struct {
	FreeDiskBytes   uint64 `json:"freeDiskBytes"`
	FreeMemoryBytes uint64 `json:"freeMemoryBytes"`
}

// Resources samples free disk space at path and available memory.
func Resources(path string) (ResourceSnapshot, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return ResourceSnapshot{}, fmt.Errorf("disk usage: %w", err)
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return ResourceSnapshot{}, fmt.Errorf("memory stats: %w", err)
	}
	return ResourceSnapshot{FreeDiskBytes: usage.Free, FreeMemoryBytes: vm.Available}, nil
}

// CheckResources fails when free disk or memory is below the given
// thresholds. A zero threshold disables that check.
func CheckResources(path string, minDiskBytes, minMemoryBytes uint64) error {
	if minDiskBytes == 0 && minMemoryBytes == 0 {
		return nil
	}
	snap, err := Resources(path)
	if err != nil {
		return err
	}
	if minDiskBytes > 0 && snap.FreeDiskBytes < minDiskBytes {
		return fmt.Errorf("insufficient disk space: %d bytes free, %d required", snap.FreeDiskBytes, minDiskBytes)
	}
	if minMemoryBytes > 0 && snap.FreeMemoryBytes < minMemoryBytes {
		return fmt.Errorf("insufficient memory: %d bytes available, %d required", snap.FreeMemoryBytes, minMemoryBytes)
	}
	return nil
}
