package dumputil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FilesystemOutput writes debugging artifacts (rendered markup, screenshots) into
// a directory, each file is prefixed with the time it was written so runs don't
// overwrite each other.
type FilesystemOutput struct {
	directory string
}

func NewFilesystemOutput(dir string) FilesystemOutput {
	return FilesystemOutput{directory: dir}
}

func (o FilesystemOutput) Dir() string {
	return o.directory
}

var unsafeChars = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

// Write stores contents as "<timestamp>-<id>" and returns the path written.
func (o FilesystemOutput) Write(at time.Time, id string, contents []byte) (string, error) {
	err := os.MkdirAll(o.directory, 0700)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s", at.Format("20060102-150405"), unsafeChars.Replace(id))
	path := filepath.Join(o.directory, name)
	err = os.WriteFile(path, contents, 0600)
	if err != nil {
		return "", err
	}
	return path, nil
}
