// Package source loads gridded time series from datasets on disk.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/globe2video/internal/grid"
)

// Source yields one scalar field as a series with its coordinate fields.
type Source interface {
	Load(variable string) (*grid.Series, error)
	Close() error
}

// FindLatestDataset returns the most recently modified .nc file in dir.
func FindLatestDataset(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !strings.EqualFold(filepath.Ext(f.Name()), ".nc") {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no .nc datasets found in %s", dir)
	}
	return latestFile, nil
}
