package storage

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

type DiskConfig struct {
	BasePath string `yaml:"basePath"`
}

// NewDisk roots an afero file system at BasePath. The directory itself is
// not required to exist yet.
func NewDisk(c DiskConfig) (afero.Fs, error) {
	if c.BasePath == "" {
		return nil, fmt.Errorf("disk: empty base path")
	}
	if st, err := os.Stat(c.BasePath); err == nil && !st.IsDir() {
		return nil, fmt.Errorf("disk: %s exists but is not a directory", c.BasePath)
	}
	return afero.NewBasePathFs(afero.NewOsFs(), c.BasePath), nil
}
