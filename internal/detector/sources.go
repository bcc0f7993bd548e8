// Package detector finds the C translation units under a path.
package detector

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

var skipDirs = []string{".git", "vendor", "node_modules", "third_party"}

// FindSources returns the C source files at root, sorted. root may be a single
// file, which is returned as is. Headers are not units and are left out.
func FindSources(root string, exclude []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var sources []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if shouldSkipFile(root, path, info, exclude) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() && isCUnit(path) {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(sources)
	return sources, nil
}

// shouldSkipFile determines if a file or directory should be skipped during discovery
func shouldSkipFile(root, path string, info os.FileInfo, exclude []string) bool {
	if path == root {
		return false
	}

	if strings.HasPrefix(info.Name(), ".") {
		return true
	}

	relPath, _ := filepath.Rel(root, path)
	if enry.IsVendor(relPath) {
		return true
	}

	for _, part := range strings.Split(relPath, string(filepath.Separator)) {
		for _, skip := range skipDirs {
			if part == skip {
				return true
			}
		}
		for _, skip := range exclude {
			if part == skip {
				return true
			}
		}
	}

	for _, pattern := range exclude {
		if ok, _ := filepath.Match(pattern, relPath); ok {
			return true
		}
	}

	return false
}

func isCUnit(path string) bool {
	if strings.ToLower(filepath.Ext(path)) == ".h" {
		return false
	}
	return DetectFileLanguage(path) == "C"
}

// DetectFileLanguage classifies path by extension, reading the content only
// when the extension is ambiguous.
func DetectFileLanguage(path string) string {
	lang, safe := enry.GetLanguageByExtension(path)
	if safe && lang != "" {
		return lang
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	return enry.GetLanguage(path, content)
}
