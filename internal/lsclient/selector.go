package lsclient

import (
	"path/filepath"
	"slices"

	glob "github.com/ryanuber/go-glob"
)

// Selector decides which documents are synchronized with the server.
type Selector struct {
	Languages []string
	Patterns  []string
}

var DefaultSelector = Selector{
	Languages: []string{"xml", "java", "groovy", "kotlin", "javascript", "properties", "yaml", "json", "jsonc"},
	Patterns:  []string{"*.camel.yaml", "*.camel.xml", "*.kamelet.yaml", "*.properties"},
}

// Matches is true when languageID is selected or the base name of path
// matches one of the patterns.
func (s Selector) Matches(languageID, path string) bool {
	if languageID != "" && slices.Contains(s.Languages, languageID) {
		return true
	}
	if path == "" {
		return false
	}
	base := filepath.Base(filepath.FromSlash(path))
	for _, pattern := range s.Patterns {
		if glob.Glob(pattern, base) {
			return true
		}
	}
	return false
}
