// disk_usage.go — ёмкость файловой системы output-директории для /api/v1/info.
// Платформозависимый код для Unix-подобных систем.
package main

import (
	"fmt"
	"syscall"
)

// getDiskUsage возвращает total, used, available в байтах
// для файловой системы, содержащей path.
func getDiskUsage(path string) (total, used, available int64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, 0, fmt.Errorf("ошибка statfs %s: %w", path, err)
	}

	bsize := int64(stat.Bsize) //nolint:unconvert // тип Bsize зависит от платформы
	total = int64(stat.Blocks) * bsize
	available = int64(stat.Bavail) * bsize
	used = total - int64(stat.Bfree)*bsize

	return total, used, available, nil
}
