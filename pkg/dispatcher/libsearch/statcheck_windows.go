//go:build windows

package libsearch

import "os"

// isRegularFile reports whether path is a regular file. No unix-style
// stat is needed on Windows; os.Stat's mode bits are sufficient.
func isRegularFile(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular()
}
