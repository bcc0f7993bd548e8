// Package emitter applies a Rewrite to source text and writes the result.
package emitter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Emit applies the edits of r to src in one pass. Insertions at the same
// offset keep the order they were added in and come before a replacement
// starting there. Bytes outside every edit are copied unchanged.
func Emit(src []byte, r Rewrite) ([]byte, error) {
	edits := make([]Edit, len(r.Edits))
	copy(edits, r.Edits)
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].Start != edits[j].Start {
			return edits[i].Start < edits[j].Start
		}
		return edits[i].Type == EditInsert && edits[j].Type != EditInsert
	})

	var out bytes.Buffer
	out.Grow(len(src))
	pos := uint32(0)
	for _, e := range edits {
		if e.End < e.Start || int(e.End) > len(src) {
			return nil, fmt.Errorf("edit [%d,%d) is outside the source", e.Start, e.End)
		}
		if e.Start < pos {
			return nil, fmt.Errorf("edit [%d,%d) overlaps an earlier replacement ending at %d", e.Start, e.End, pos)
		}
		out.Write(src[pos:e.Start])
		out.WriteString(e.Content)
		pos = e.End
	}
	out.Write(src[pos:])
	return out.Bytes(), nil
}

// WriteFile writes the woven output to path, creating its directory and
// keeping the original as path.backup when backup is set.
func WriteFile(path string, original, woven []byte, backup bool) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	backupPath := ""
	if backup {
		backupPath = path + ".backup"
		if err := os.WriteFile(backupPath, original, 0644); err != nil {
			return "", fmt.Errorf("failed to create backup: %w", err)
		}
	}
	if err := os.WriteFile(path, woven, 0644); err != nil {
		return "", fmt.Errorf("failed to write woven file: %w", err)
	}
	return backupPath, nil
}
