package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	runsDir     = "runs"
	latestFile  = "LATEST"
	tmpSuffix   = ".tmp"
	fileMode    = 0o644
	dirMode     = 0o755
	maxNamePart = 255
)

// NewFSStore returns a Store backed by the local filesystem, rooted at the
// given directory. Layout is <root>/runs/<runID>/<task>/<name>; the promoted
// run is recorded in <root>/LATEST.
func NewFSStore(root string) (Store, error) {
	if root == "" {
		return nil, errors.New("artifact store root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, runsDir), dirMode); err != nil {
		return nil, errors.Wrapf(err, "cannot create artifact root %s", root)
	}
	return &fsStore{root: root}, nil
}

type fsStore struct {
	root string
}

func (s *fsStore) Put(ctx context.Context, runID, task, name string, data []byte) (string, error) {
	if err := checkKey(runID, task, name); err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, runsDir, runID, task)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return "", WriteError(fmt.Sprintf("artifact %s/%s/%s", runID, task, name), err)
	}
	path := filepath.Join(dir, name)

	// Write to a temp file then rename so a reader never observes a
	// partially written artifact.
	tmp := path + tmpSuffix
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return "", WriteError(fmt.Sprintf("artifact %s/%s/%s", runID, task, name), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", WriteError(fmt.Sprintf("artifact %s/%s/%s", runID, task, name), err)
	}
	return path, nil
}

func (s *fsStore) Get(ctx context.Context, runID, task, name string) ([]byte, error) {
	if err := checkKey(runID, task, name); err != nil {
		return nil, err
	}
	path := filepath.Join(s.root, runsDir, runID, task, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NotFoundError(fmt.Sprintf("artifact %s/%s/%s", runID, task, name))
		}
		return nil, errors.Wrapf(err, "cannot read artifact %s/%s/%s", runID, task, name)
	}
	return data, nil
}

func (s *fsStore) Promote(ctx context.Context, runID string) error {
	if err := checkKey(runID); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(s.root, runsDir, runID)); err != nil {
		if os.IsNotExist(err) {
			return NotFoundError(fmt.Sprintf("run %s", runID))
		}
		return errors.Wrapf(err, "cannot stat run %s", runID)
	}

	// The pointer file is replaced with a rename, so consumers either see
	// the previous promoted run or this one, never an in-between state.
	path := filepath.Join(s.root, latestFile)
	tmp := path + tmpSuffix
	if err := os.WriteFile(tmp, []byte(runID+"\n"), fileMode); err != nil {
		return WriteError("latest pointer", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return WriteError("latest pointer", err)
	}
	return nil
}

func (s *fsStore) Latest(ctx context.Context) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, latestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", NotFoundError("promoted run")
		}
		return "", errors.Wrap(err, "cannot read latest pointer")
	}
	return strings.TrimSpace(string(data)), nil
}

// checkKey rejects key parts that would escape the store namespace.
func checkKey(parts ...string) error {
	for _, p := range parts {
		if p == "" || len(p) > maxNamePart {
			return errors.Errorf("invalid artifact key part %q", p)
		}
		if strings.ContainsAny(p, "/\\") || p == "." || p == ".." {
			return errors.Errorf("invalid artifact key part %q", p)
		}
	}
	return nil
}
