package drive

import (
	"context"
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"mediadedup/internal/config"
)

// Identity describes the drive that holds a scan source.
type Identity struct {
	Label       string
	Fingerprint string
	MountPoint  string
}

// Resolve determines the identity of the drive behind sourcePath using the
// configured detection mode. Mode "auto" degrades gracefully from lsblk to
// mountinfo to a synthetic path-derived identity and never fails; explicit
// modes surface their errors.
func Resolve(ctx context.Context, cfg config.Drive, sourcePath string) (Identity, error) {
	sourcePath, err := config.ExpandPath(sourcePath)
	if err != nil {
		return Identity{}, err
	}

	timeout := time.Duration(cfg.DetectTimeout) * time.Second

	var identity Identity
	switch cfg.Mode {
	case "synthetic":
		identity = syntheticIdentity(sourcePath)
	case "mountinfo":
		identity, err = mountinfoIdentity(sourcePath)
	case "lsblk":
		identity, err = lsblkIdentity(ctx, sourcePath, timeout)
	case "auto", "":
		identity, err = lsblkIdentity(ctx, sourcePath, timeout)
		if err != nil {
			identity, err = mountinfoIdentity(sourcePath)
		}
		if err != nil {
			identity = syntheticIdentity(sourcePath)
			err = nil
		}
	default:
		return Identity{}, fmt.Errorf("unknown drive detection mode %q", cfg.Mode)
	}
	if err != nil {
		return Identity{}, err
	}

	if cfg.LabelOverride != "" {
		identity.Label = cfg.LabelOverride
	}
	if cfg.IDHintOverride != "" {
		identity.Fingerprint = fingerprintFromHint(cfg.IDHintOverride)
	}
	if identity.MountPoint == "" {
		identity.MountPoint = sourcePath
	}
	return identity, nil
}

// syntheticIdentity derives a repeatable identity from the source path alone.
// It is the fallback for sources with no resolvable block device, such as
// network mounts or test fixtures.
func syntheticIdentity(sourcePath string) Identity {
	return Identity{
		Label:       filepath.Base(sourcePath),
		Fingerprint: fingerprintFromHint("path:" + sourcePath),
		MountPoint:  sourcePath,
	}
}

func fingerprintFromHint(hint string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(hint)))
	return fmt.Sprintf("%x", sum[:16])
}
