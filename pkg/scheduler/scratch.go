package scheduler

import (
	"fmt"
	"os"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
)

// writeScratchFile materializes content into a uniquely-suffixed temp file
// under dir (or the OS default temp dir when empty) and returns its path.
// The caller is responsible for removing it on every exit path.
func writeScratchFile(dir, suffix, content string) (string, error) {
	f, err := os.CreateTemp(dir, fmt.Sprintf("segctl-submit-*%s", suffix))
	if err != nil {
		return "", taxerrors.Wrap(taxerrors.KindInternal, err, "creating scratch file")
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		_ = os.Remove(f.Name())
		return "", taxerrors.Wrap(taxerrors.KindInternal, err, "writing scratch file")
	}
	return f.Name(), nil
}

// cleanupScratchFile removes path, swallowing a not-exist error since the
// cleanup path runs unconditionally.
func cleanupScratchFile(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
