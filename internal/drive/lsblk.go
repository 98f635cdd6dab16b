package drive

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// lsblkIdentity shells out to lsblk and picks the block device whose mount
// point is the longest prefix of sourcePath. The filesystem UUID becomes the
// fingerprint, so the identity survives relabeling and remounting.
func lsblkIdentity(ctx context.Context, sourcePath string, timeout time.Duration) (Identity, error) {
	lsblkCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		lsblkCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output, err := exec.CommandContext(lsblkCtx, "lsblk", "-P", "-o", "NAME,LABEL,UUID,MOUNTPOINT").Output()
	if err != nil {
		return Identity{}, fmt.Errorf("failed to run lsblk: %w", err)
	}

	identity, ok := ParseLSBLKDevices(string(output), sourcePath)
	if !ok {
		return Identity{}, fmt.Errorf("no mounted device covers %q", sourcePath)
	}
	return identity, nil
}

// ParseLSBLKDevices parses lsblk -P output and returns the identity of the
// mounted device that covers sourcePath, preferring the deepest mount point.
func ParseLSBLKDevices(output, sourcePath string) (Identity, bool) {
	var (
		best  Identity
		found bool
	)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		data := parseLSBLKKeyValueLine(line)
		mountPoint := data["MOUNTPOINT"]
		if mountPoint == "" || !pathHasPrefix(sourcePath, mountPoint) {
			continue
		}
		if !found || len(mountPoint) > len(best.MountPoint) {
			best = Identity{
				Label:       data["LABEL"],
				Fingerprint: data["UUID"],
				MountPoint:  mountPoint,
			}
			found = true
		}
	}
	return best, found
}

func parseLSBLKKeyValueLine(line string) map[string]string {
	result := make(map[string]string)
	fields := splitQuotedFields(line)
	for _, field := range fields {
		parts := strings.SplitN(field, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"")
		result[key] = value
	}
	return result
}

// splitQuotedFields splits KEY="value" pairs on spaces while keeping spaces
// inside quoted values intact, which plain strings.Fields would break on
// labels like "MY PHOTOS".
func splitQuotedFields(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case r == ' ' && !inQuotes:
			if current.Len() > 0 {
				fields = append(fields, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		fields = append(fields, current.String())
	}
	return fields
}

func pathHasPrefix(path, prefix string) bool {
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
