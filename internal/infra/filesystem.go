package infra

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// GetWorkDir expands base (which may start with ~), joins path and makes sure the directory exists.
func GetWorkDir(base string, path ...string) (string, error) {
	expanded, err := homedir.Expand(base)
	if err != nil {
		return "", errors.Wrap(err, "expand work dir")
	}
	workDir := filepath.Join(append([]string{expanded}, path...)...)
	if err := os.MkdirAll(workDir, os.ModePerm); err != nil {
		return "", errors.Wrap(err, "create work dir")
	}
	return workDir, nil
}
