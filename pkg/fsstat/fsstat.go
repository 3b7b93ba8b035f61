// Package fsstat extracts the device/inode pair from an os.FileInfo,
// completing the (mtime, size, dev, ino) cache-validation tuple spec.md
// calls for wherever a file cache entry's identity needs to survive a
// path being replaced (same path, different underlying file) rather than
// just edited in place (same file, new mtime/size).
package fsstat

import "os"

// DevIno returns the device and inode numbers backing info, or (0, 0) on
// platforms (Windows) where no cheap equivalent is available from a
// plain os.Stat call. On those platforms the validation tuple degrades
// to (mtime, size) exactly as it behaved before dev/ino was added; on
// unix it closes the gap where a path reused by a different underlying
// file (same mtime/size by coincidence, or a replace-in-place editor)
// could otherwise be mistaken for the previously cached one.
func DevIno(info os.FileInfo) (dev, ino uint64) {
	return devIno(info)
}
