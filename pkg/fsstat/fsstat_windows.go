//go:build windows

package fsstat

import "os"

// Windows' os.FileInfo.Sys() exposes *syscall.Win32FileAttributeData,
// which carries no device/inode equivalent; the real file-index pair
// requires opening the file with backup semantics, which a stat-only
// cache-validation path deliberately avoids paying for.
func devIno(info os.FileInfo) (dev, ino uint64) {
	return 0, 0
}
