package steps

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/recipeforge/reciperunner/utils/fileutil"
	"github.com/recipeforge/reciperunner/utils/registry"
	"github.com/recipeforge/reciperunner/utils/rerr"
	"github.com/recipeforge/reciperunner/utils/state"
	"github.com/recipeforge/reciperunner/utils/template"
)

const readFilesType = "read_files"

// readFilesStep reads one or more UTF-8 files, rendering their path(s)
// against the context and merging multi-path reads per merge_mode.
type readFilesStep struct {
	pathTemplates []string
	contentKey    string
	mergeMode     string
	optional      bool
}

// NewReadFilesFactory returns the read_files factory.
func NewReadFilesFactory() registry.Factory {
	return func(logger *log.Logger, config map[string]interface{}) (registry.Step, error) {
		paths, err := parsePathField(config)
		if err != nil {
			return nil, err
		}
		contentKey, err := requireString(config, readFilesType, "content_key")
		if err != nil {
			return nil, err
		}
		mergeMode, err := optionalString(config, readFilesType, "merge_mode", "concat")
		if err != nil {
			return nil, err
		}
		if mergeMode != "concat" && mergeMode != "dict" {
			return nil, &rerr.ConfigInvalid{StepType: readFilesType, Reason: "merge_mode must be \"concat\" or \"dict\""}
		}
		optional, err := optionalBool(config, readFilesType, "optional", false)
		if err != nil {
			return nil, err
		}

		return &readFilesStep{
			pathTemplates: paths,
			contentKey:    contentKey,
			mergeMode:     mergeMode,
			optional:      optional,
		}, nil
	}
}

// parsePathField accepts path as a single template string (optionally
// comma-separated for multiple paths) or a list of template strings.
func parsePathField(config map[string]interface{}) ([]string, error) {
	raw, ok := config["path"]
	if !ok {
		return nil, &rerr.ConfigInvalid{StepType: readFilesType, Reason: "missing required field \"path\""}
	}
	switch v := raw.(type) {
	case string:
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, &rerr.ConfigInvalid{StepType: readFilesType, Reason: "path list entries must be strings"}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &rerr.ConfigInvalid{StepType: readFilesType, Reason: "path must be a string or a list of strings"}
	}
}

func (s *readFilesStep) Execute(ctx context.Context, st *state.State) error {
	view := st.FlatView()

	renderedPaths := make([]string, len(s.pathTemplates))
	for i, tmpl := range s.pathTemplates {
		p, err := template.Render(tmpl, view)
		if err != nil {
			return err
		}
		expanded, err := fileutil.ExpandPath(p)
		if err != nil {
			return err
		}
		renderedPaths[i] = expanded
	}

	if len(renderedPaths) == 1 {
		content, err := s.readOne(renderedPaths[0])
		if err != nil {
			return err
		}
		st.Set(s.contentKey, content)
		return nil
	}

	if s.mergeMode == "dict" {
		out := make(map[string]interface{}, len(renderedPaths))
		for _, p := range renderedPaths {
			content, err := s.readOne(p)
			if err != nil {
				return err
			}
			out[filepath.Base(p)] = content
		}
		st.Set(s.contentKey, out)
		return nil
	}

	contents := make([]string, len(renderedPaths))
	for i, p := range renderedPaths {
		content, err := s.readOne(p)
		if err != nil {
			return err
		}
		contents[i] = content
	}
	st.Set(s.contentKey, strings.Join(contents, "\n"))
	return nil
}

func (s *readFilesStep) readOne(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if s.optional {
				return "", nil
			}
			return "", &rerr.FileMissing{Path: path}
		}
		return "", err
	}
	return string(data), nil
}
