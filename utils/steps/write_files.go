package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/recipeforge/reciperunner/utils/fileutil"
	"github.com/recipeforge/reciperunner/utils/fsspec"
	"github.com/recipeforge/reciperunner/utils/registry"
	"github.com/recipeforge/reciperunner/utils/rerr"
	"github.com/recipeforge/reciperunner/utils/state"
	"github.com/recipeforge/reciperunner/utils/template"
)

const writeFilesType = "write_files"

// writeFilesStep resolves a FileSpec list artifact and writes each one
// to disk under an optional root, rendering root and path first.
type writeFilesStep struct {
	filesKey string
	root string
}

// NewWriteFilesFactory returns the write_files factory.
func NewWriteFilesFactory() registry.Factory {
	return func(logger *log.Logger, config map[string]interface{}) (registry.Step, error) {
		filesKey, err := requireString(config, writeFilesType, "files_key")
		if err != nil {
			return nil, err
		}
		root, err := optionalString(config, writeFilesType, "root", "")
		if err != nil {
			return nil, err
		}
		return &writeFilesStep{filesKey: filesKey, root: root}, nil
	}
}

func (s *writeFilesStep) Execute(ctx context.Context, st *state.State) error {
	view := st.FlatView()

	renderedRoot, err := template.Render(s.root, view)
	if err != nil {
		return err
	}
	root, err := fileutil.ExpandPath(renderedRoot)
	if err != nil {
		return err
	}

	raw, err := st.Get(s.filesKey)
	if err != nil {
		return err
	}
	specs, err := toFileSpecs(raw)
	if err != nil {
		return err
	}

	for _, spec := range specs {
		renderedPath, err := template.Render(spec.Path, view)
		if err != nil {
			return err
		}

		fullPath := renderedPath
		if root != "" {
			fullPath = filepath.Join(root, renderedPath)
		}
		if err := checkWithinRoot(root, fullPath); err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			return err
		}

		data, err := contentToBytes(spec.Content)
		if err != nil {
			return err
		}
		if err := os.WriteFile(fullPath, data, 0o644); err != nil {
			return err
		}
	}

	return nil
}

func toFileSpecs(raw interface{}) ([]fsspec.FileSpec, error) {
	switch v := raw.(type) {
	case []fsspec.FileSpec:
		return v, nil
	case fsspec.FileSpec:
		return []fsspec.FileSpec{v}, nil
	case []interface{}:
		out := make([]fsspec.FileSpec, 0, len(v))
		for _, e := range v {
			m, ok := e.(map[string]interface{})
			if !ok {
				return nil, &rerr.ConfigInvalid{StepType: writeFilesType, Reason: "files_key entries must be FileSpec-shaped objects"}
			}
			path, _ := m["path"].(string)
			if path == "" {
				return nil, &rerr.ConfigInvalid{StepType: writeFilesType, Reason: "FileSpec.path must be a non-empty string"}
			}
			out = append(out, fsspec.FileSpec{Path: path, Content: m["content"]})
		}
		return out, nil
	default:
		return nil, &rerr.ConfigInvalid{StepType: writeFilesType, Reason: "files_key must resolve to a FileSpec list"}
	}
}

// contentToBytes turns a FileSpec's content into bytes. Plain text is
// written as-is; structured content (object or list) is JSON-encoded.
func contentToBytes(content interface{}) ([]byte, error) {
	switch v := content.(type) {
	case string:
		return []byte(v), nil
	case nil:
		return []byte{}, nil
	case map[string]interface{}, []interface{}:
		data, err := json.MarshalIndent(v, "", " ")
		if err != nil {
			return nil, fmt.Errorf("encoding file content: %w", err)
		}
		return data, nil
	default:
		return []byte(fmt.Sprintf("%v", v)), nil
	}
}

// checkWithinRoot enforces that a rendered path must not escape the
// configured write root.
func checkWithinRoot(root, fullPath string) error {
	if root == "" {
		return nil
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return err
	}
	if rel == ".." || len(rel) >= 2 && rel[:2] == ".." {
		return &rerr.ConfigInvalid{StepType: writeFilesType, Reason: "path escapes configured write root: " + fullPath}
	}
	return nil
}
