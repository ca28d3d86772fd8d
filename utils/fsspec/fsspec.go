// Package fsspec defines FileSpec, the unit of file output passed from
// the llm_generate step (output_format: "files") to write_files.
package fsspec

// FileSpec is a single file to be written to disk. Content is one of:
// plain text (string), a structured object (map[string]interface{}), or
// a list of structured objects ([]interface{}).
type FileSpec struct {
	Path string `json:"path"`
	Content interface{} `json:"content"`
}

// Clone returns a deep copy of f, so a FileSpec held by one State clone
// can't be mutated through another.
func (f FileSpec) Clone() FileSpec {
	return FileSpec{Path: f.Path, Content: cloneContent(f.Content)}
}

func cloneContent(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = cloneContent(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = cloneContent(e)
		}
		return out
	default:
		return v
	}
}

// CloneSlice deep-copies a []FileSpec.
func CloneSlice(specs []FileSpec) []FileSpec {
	out := make([]FileSpec, len(specs))
	for i, s := range specs {
		out[i] = s.Clone()
	}
	return out
}
