package types

import (
	"encoding/json"
	"sort"
	"time"
)

// FileMap maps forward-slash relative paths to full file contents. It is the
// entire build artifact of an extension; there is no separate manifest
// entity.
type FileMap map[string]string

// Paths returns the file paths in lexicographic order.
func (m FileMap) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns a shallow copy of the map.
func (m FileMap) Clone() FileMap {
	out := make(FileMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns a copy of m with every key in other overwritten and every
// key absent from other preserved.
func (m FileMap) Merge(other FileMap) FileMap {
	out := m.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Extension is a named, described bundle of generated files. An extension
// belongs to exactly one session and is destroyed with it.
type Extension struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Files       FileMap   `json:"files"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsEmpty reports whether the extension has no generated files yet.
func (e *Extension) IsEmpty() bool {
	return e == nil || len(e.Files) == 0
}

// manifest holds the subset of manifest.json we surface to the user.
type manifest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DescribeFiles extracts the extension name and description from the
// manifest.json entry of a file map. Missing or unparseable manifests fall
// back to generic values so a bad generation never breaks the summary.
func DescribeFiles(files FileMap) (name, description string) {
	name = "Chrome Extension"
	description = "A Chrome extension"

	raw, ok := files["manifest.json"]
	if !ok {
		return name, description
	}

	var m manifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return name, description
	}
	if m.Name != "" {
		name = m.Name
	}
	if m.Description != "" {
		description = m.Description
	}
	return name, description
}
