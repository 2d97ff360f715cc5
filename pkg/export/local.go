package export

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/util/context"
)

// LocalCopyConfig is configuration for the local filesystem exporter.
type LocalCopyConfig struct {
	Dir string `json:"dir" env:"EXPORT_LOCAL_DIR"`
}

// NewLocalCopy returns an Exporter copying artifacts into a local directory.
func NewLocalCopy(conf LocalCopyConfig) (Exporter, error) {
	if conf.Dir == "" {
		return nil, errors.New("local export directory is required")
	}
	return localCopy{dir: conf.Dir}, nil
}

type localCopy struct {
	dir string
}

func (e localCopy) Export(ctx context.Context, artifacts map[string][]byte) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return errors.Wrapf(err, "cannot create export directory %s", e.dir)
	}
	for name, data := range artifacts {
		dst := filepath.Join(e.dir, name)
		tmp := dst + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return errors.Wrapf(err, "cannot write %s", dst)
		}
		if err := os.Rename(tmp, dst); err != nil {
			os.Remove(tmp)
			return errors.Wrapf(err, "cannot write %s", dst)
		}
		ctx.Logger().Infof("copied %s to %s", name, dst)
	}
	return nil
}
