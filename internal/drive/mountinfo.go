package drive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const mountinfoPath = "/proc/self/mountinfo"

// mountinfoIdentity resolves the mount point covering sourcePath from the
// kernel mount table and fingerprints the filesystem via statfs. Less stable
// than a filesystem UUID but available without shelling out.
func mountinfoIdentity(sourcePath string) (Identity, error) {
	file, err := os.Open(mountinfoPath)
	if err != nil {
		return Identity{}, fmt.Errorf("open mountinfo: %w", err)
	}
	defer file.Close()

	mountPoint, ok := findMountPoint(file, sourcePath)
	if !ok {
		return Identity{}, fmt.Errorf("no mount entry covers %q", sourcePath)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(mountPoint, &stat); err != nil {
		return Identity{}, fmt.Errorf("statfs %q: %w", mountPoint, err)
	}

	hint := fmt.Sprintf("fsid:%x:%x:%s", stat.Fsid.Val[0], stat.Fsid.Val[1], mountPoint)
	return Identity{
		Label:       filepath.Base(mountPoint),
		Fingerprint: fingerprintFromHint(hint),
		MountPoint:  mountPoint,
	}, nil
}

// findMountPoint returns the deepest mount point in mountinfo-format input
// that is a prefix of sourcePath. The mount point is the fifth field of each
// line; octal escapes cover spaces in paths.
func findMountPoint(r io.Reader, sourcePath string) (string, bool) {
	var (
		best  string
		found bool
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}
		mountPoint := unescapeMountPath(fields[4])
		if !pathHasPrefix(sourcePath, mountPoint) {
			continue
		}
		if !found || len(mountPoint) > len(best) {
			best = mountPoint
			found = true
		}
	}
	return best, found
}

func unescapeMountPath(path string) string {
	if !strings.Contains(path, `\`) {
		return path
	}
	replacer := strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)
	return replacer.Replace(path)
}
