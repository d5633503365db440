package parse

import (
	"strings"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
)

// FileTree parses recursive ls-tree output ("<mode> <type> <object>\t<path>")
// into a path to File mapping. Only blob entries are kept; submodule commits
// have no content to measure.
type FileTree struct {
	files map[string]*models.File
}

// NewFileTree creates an empty tree parser
func NewFileTree() *FileTree {
	return &FileTree{files: make(map[string]*models.File)}
}

// Consume implements process.Consumer
func (p *FileTree) Consume(line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	meta, path, found := strings.Cut(line, "\t")
	if !found {
		return errors.MalformedOutput(line, "missing tab before path in tree entry")
	}
	fields := strings.Fields(meta)
	if len(fields) != 3 {
		return errors.MalformedOutput(line, "expected mode, type and object in tree entry")
	}
	if fields[1] != "blob" {
		return nil
	}
	if !isHash(fields[2]) {
		return errors.MalformedOutput(line, "invalid object id %q", fields[2])
	}
	path = UnquotePath(path)
	p.files[path] = models.NewFile(path, fields[2])
	return nil
}

// Files returns the parsed mapping
func (p *FileTree) Files() map[string]*models.File {
	return p.files
}
