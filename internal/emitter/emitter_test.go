package emitter

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmit(t *testing.T) {
	t.Parallel()

	src := []byte("a = b;\nc = d;\n")

	tests := []struct {
		name    string
		edits   func(r *Rewrite)
		want    string
		wantErr bool
	}{
		{
			name:  "no edits is identity",
			edits: func(r *Rewrite) {},
			want:  string(src),
		},
		{
			name: "insertions keep order at one offset",
			edits: func(r *Rewrite) {
				r.Insert(0, "x();\n", "before")
				r.Insert(0, "y();\n", "before")
			},
			want: "x();\ny();\na = b;\nc = d;\n",
		},
		{
			name: "insertion precedes replacement at same offset",
			edits: func(r *Rewrite) {
				r.Replace(7, 8, "t", "hoist")
				r.Insert(7, "int t = c;\n", "hoist")
			},
			want: "a = b;\nint t = c;\nt = d;\n",
		},
		{
			name: "insertion at end of replacement",
			edits: func(r *Rewrite) {
				r.Insert(6, "\nafter();", "after")
				r.Replace(0, 6, "int t = b;", "result")
			},
			want: "int t = b;\nafter();\nc = d;\n",
		},
		{
			name: "overlapping replacements",
			edits: func(r *Rewrite) {
				r.Replace(0, 4, "x", "")
				r.Replace(2, 6, "y", "")
			},
			wantErr: true,
		},
		{
			name: "insertion inside replacement",
			edits: func(r *Rewrite) {
				r.Replace(0, 6, "x", "")
				r.Insert(3, "y", "")
			},
			wantErr: true,
		},
		{
			name: "out of range",
			edits: func(r *Rewrite) {
				r.Replace(10, 99, "x", "")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var r Rewrite
			tt.edits(&r)
			got, err := Emit(src, r)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Emit() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteFileBackup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "unit.c")
	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	backup, err := WriteFile(path, []byte("old"), []byte("new"), true)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if backup != path+".backup" {
		t.Errorf("backup path = %q", backup)
	}
	if got, _ := os.ReadFile(path); string(got) != "new" {
		t.Errorf("woven file = %q", got)
	}
	if got, _ := os.ReadFile(backup); string(got) != "old" {
		t.Errorf("backup file = %q", got)
	}
}
