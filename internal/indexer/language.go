package indexer

import (
	"path/filepath"
	"strings"
)

// UnknownLanguage is recorded for extensions missing from the table.
const UnknownLanguage = "unknown"

// languages maps a lower-cased file extension to a language label.
var languages = map[string]string{
	".py":   "python",
	".ts":   "typescript",
	".js":   "javascript",
	".tsx":  "tsx",
	".jsx":  "jsx",
	".md":   "markdown",
	".json": "json",
	".go":   "go",
	".jac":  "jac",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
	".sh":   "shell",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
}

// LanguageFor derives a file's language from its extension.
func LanguageFor(path string) string {
	if lang, ok := languages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return UnknownLanguage
}
