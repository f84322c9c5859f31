package records

import (
	"encoding/json"
	"path"
	"strings"
)

// Document is an admin-uploaded file attached to a record.
type Document struct {
	Category string `db:"category" json:"category"`
	FileName string `db:"file_name" json:"fileName"`
	FilePath string `db:"file_path" json:"filePath"`
}

// UploadPaths decodes a questionnaire upload column. Columns hold either a
// JSON array of paths or a single bare path.
func UploadPaths(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var paths []string
		if err := json.Unmarshal([]byte(raw), &paths); err == nil {
			out := paths[:0]
			for _, p := range paths {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			return out
		}
	}
	return []string{raw}
}

// BaseName returns the file name of an upload path.
func BaseName(p string) string {
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}
