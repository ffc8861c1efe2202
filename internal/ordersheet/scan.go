package ordersheet

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/freight-cli/internal/model"
)

// ScanMessageID is the message id given to documents found in a drop directory.
const ScanMessageID = "file"

// Source is an order workbook waiting to be ingested.
type Source struct {
	Path string
	Key  model.DocumentKey
}

// Scan lists the .xlsx workbooks in dir, sorted by name. The document key
// uses the file's modification time so a re-dropped file is a new document.
func Scan(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ordersheet: scan %s", dir)
	}

	var out []Source
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".xlsx") || strings.HasPrefix(name, "~$") {
			continue
		}
		src, err := SourceFor(filepath.Join(dir, name), ScanMessageID)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Name < out[j].Key.Name })
	return out, nil
}

// SourceFor builds the Source for a single workbook under messageID.
func SourceFor(path, messageID string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, eris.Wrapf(err, "ordersheet: stat %s", path)
	}
	return Source{
		Path: path,
		Key: model.DocumentKey{
			MessageID: messageID,
			Timestamp: strconv.FormatInt(info.ModTime().UnixMilli(), 10),
			Name:      filepath.Base(path),
		},
	}, nil
}
