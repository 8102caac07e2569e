package wireviz

import (
	"fmt"
	"os"
	"path/filepath"

	"wireviz-web/internal/domain"
)

const (
	inputFile = "input.yml"
	inputStem = "input"
	assetsDir = "resources"
)

// workspace is the scoped staging directory for a single engine invocation.
// It is created fresh per render and removed afterwards.
type workspace struct {
	dir string
}

// newWorkspace creates a staging directory under base. An empty base falls
// back to the system temp dir.
func newWorkspace(base string) (*workspace, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create working area %q: %w", base, err)
		}
	}
	dir, err := os.MkdirTemp(base, "wireviz-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create render workspace: %w", err)
	}
	return &workspace{dir: dir}, nil
}

// stage writes the description document and its auxiliary assets, returning
// the path of the staged input file. Assets keep their original base names;
// on a name collision the later asset wins. Names that do not resolve to a
// usable base name are skipped.
func (w *workspace) stage(req domain.RenderRequest) (string, error) {
	input := filepath.Join(w.dir, inputFile)
	if err := os.WriteFile(input, req.YAML, 0o644); err != nil {
		return "", fmt.Errorf("cannot write description: %w", err)
	}

	if len(req.Assets) > 0 {
		resDir := filepath.Join(w.dir, assetsDir)
		if err := os.MkdirAll(resDir, 0o755); err != nil {
			return "", fmt.Errorf("cannot create %s dir: %w", assetsDir, err)
		}
		for _, a := range req.Assets {
			name := filepath.Base(a.Name)
			if name == "." || name == ".." || name == string(os.PathSeparator) {
				continue
			}
			if err := os.WriteFile(filepath.Join(resDir, name), a.Data, 0o644); err != nil {
				return "", fmt.Errorf("cannot write asset %q: %w", name, err)
			}
		}
	}

	return input, nil
}

// outputPath is where the engine leaves its artifact for the given format.
func (w *workspace) outputPath(f domain.Format) string {
	return filepath.Join(w.dir, inputStem+"."+f.Ext())
}

func (w *workspace) cleanup() {
	_ = os.RemoveAll(w.dir)
}
