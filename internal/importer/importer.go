package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/store"
)

// Parser converts a statement CSV into store rows.
type Parser interface {
	Parse(r io.Reader) ([]store.Row, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file waiting in an import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&StandardParser{})
	r.Register(&ChaseParser{})
	return r
}

// ParseFile opens path and runs it through p.
func ParseFile(p Parser, path string) ([]store.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

const (
	importDir    = "import"
	processedDir = "import/processed"
)

// SourceDir returns the directory statements of source are dropped into.
func SourceDir(root string, source model.SourceKind) string {
	return filepath.Join(root, importDir, string(source))
}

// ProcessedDir returns the directory imported files are moved to.
func ProcessedDir(root string) string {
	return filepath.Join(root, processedDir)
}

// Scan returns CSV files in <root>/import/<source>/.
func Scan(root string, source model.SourceKind) ([]FileInfo, error) {
	dir := SourceDir(root, source)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/<source>/ to import/processed/,
// prefixing the source so bank and ledger files of the same name do not clash.
func MarkProcessed(root string, source model.SourceKind, fileName string) error {
	src := filepath.Join(SourceDir(root, source), fileName)
	dstDir := ProcessedDir(root)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, string(source)+"_"+fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
