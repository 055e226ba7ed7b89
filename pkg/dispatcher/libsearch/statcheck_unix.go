//go:build !windows

package libsearch

import "golang.org/x/sys/unix"

// isRegularFile reports whether path resolves (following symlinks) to a
// regular file, so a broken symlink or named pipe left in a search
// directory is never handed to dlopen. Mirrors the DRM tooling in
// helixml-helix's api/pkg/drm, which also stats devices via
// golang.org/x/sys/unix rather than os.Stat before touching them.
func isRegularFile(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	return st.Mode&unix.S_IFMT == unix.S_IFREG
}
