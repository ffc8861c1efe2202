// Package master imports the destination master from CSV, JSON, and YAML
// files.
package master

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/freight-cli/internal/model"
)

// Format is a master file encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", eris.Errorf("master: unsupported file type %q", filepath.Ext(path))
}

// Load reads and validates a master file. Destinations are returned sorted by
// name.
func Load(ctx context.Context, path string) ([]model.Destination, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "master: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var ds []model.Destination
	switch format {
	case FormatCSV:
		ds, err = ParseCSV(ctx, f)
	case FormatJSON:
		ds, err = ParseJSON(f)
	case FormatYAML:
		ds, err = ParseYAML(f)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "master: load %s", path)
	}
	return ds, nil
}

// finish validates and sorts parsed destinations, rejecting duplicates.
func finish(ds []model.Destination) ([]model.Destination, error) {
	seen := make(map[string]bool, len(ds))
	for i := range ds {
		ds[i].Name = strings.TrimSpace(ds[i].Name)
		if err := ds[i].Validate(); err != nil {
			return nil, err
		}
		if seen[ds[i].Name] {
			return nil, eris.Errorf("master: duplicate destination %q", ds[i].Name)
		}
		seen[ds[i].Name] = true
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].Name < ds[j].Name })
	return ds, nil
}
