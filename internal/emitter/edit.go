package emitter

// EditType represents the type of an edit
type EditType string

const (
	EditInsert  EditType = "insert"
	EditReplace EditType = "replace"
)

// Edit is one change to the source, located by byte offsets of the original
// text. An insertion has Start == End.
type Edit struct {
	Type    EditType `json:"type" yaml:"type"`
	Start   uint32   `json:"start" yaml:"start"`
	End     uint32   `json:"end" yaml:"end"`
	Content string   `json:"content" yaml:"content"`
	Reason  string   `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Rewrite is the ordered list of edits produced for one unit.
type Rewrite struct {
	Path  string `json:"path" yaml:"path"`
	Edits []Edit `json:"edits" yaml:"edits"`
	// Injected counts directive bodies placed in the output.
	Injected int `json:"injected" yaml:"injected"`
}

// Insert adds content at offset at.
func (r *Rewrite) Insert(at uint32, content, reason string) {
	if content == "" {
		return
	}
	r.Edits = append(r.Edits, Edit{Type: EditInsert, Start: at, End: at, Content: content, Reason: reason})
}

// Replace substitutes content for the bytes [start, end).
func (r *Rewrite) Replace(start, end uint32, content, reason string) {
	r.Edits = append(r.Edits, Edit{Type: EditReplace, Start: start, End: end, Content: content, Reason: reason})
}
