package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileReadTool(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "notes"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes", "brief.txt"), []byte("one\ntwo\nthree\nfour"), 0644); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(filepath.Dir(root), "outside.txt")

	tool := NewFileReadTool(root)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{
			name:  "whole file",
			input: `{"file_path":"notes/brief.txt"}`,
			want:  "     1\tone\n     2\ttwo\n     3\tthree\n     4\tfour\n",
		},
		{
			name:  "offset and limit",
			input: `{"file_path":"notes/brief.txt","offset":2,"limit":2}`,
			want:  "     2\ttwo\n     3\tthree\n",
		},
		{
			name:  "absolute path inside root",
			input: `{"file_path":"` + filepath.ToSlash(filepath.Join(root, "notes", "brief.txt")) + `","limit":1}`,
			want:  "     1\tone\n",
		},
		{
			name:    "offset past end",
			input:   `{"file_path":"notes/brief.txt","offset":10}`,
			wantErr: "Offset beyond end of file",
		},
		{
			name:    "escapes root",
			input:   `{"file_path":"../outside.txt"}`,
			wantErr: "outside",
		},
		{
			name:    "absolute path outside root",
			input:   `{"file_path":"` + filepath.ToSlash(outside) + `"}`,
			wantErr: "outside",
		},
		{
			name:    "missing file",
			input:   `{"file_path":"nope.txt"}`,
			wantErr: "Failed to read file",
		},
		{
			name:    "no path",
			input:   `{}`,
			wantErr: "file_path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tool.Execute(context.Background(), json.RawMessage(tt.input))
			if res.Err != nil {
				t.Fatalf("file read failures are never fatal: %v", res.Err)
			}
			if tt.wantErr != "" {
				if !res.IsError || !strings.Contains(res.Content, tt.wantErr) {
					t.Errorf("got %+v, want error containing %q", res, tt.wantErr)
				}
				return
			}
			if res.IsError {
				t.Fatalf("unexpected error: %s", res.Content)
			}
			if res.Content != tt.want {
				t.Errorf("content = %q, want %q", res.Content, tt.want)
			}
		})
	}
}

func TestFileReadToolSymlinks(t *testing.T) {
	root := t.TempDir()
	secret := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(secret, []byte("do not share"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "plan.txt"), []byte("step one"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(secret, filepath.Join(root, "leak.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Dir(secret), filepath.Join(root, "elsewhere")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "plan.txt"), filepath.Join(root, "alias.txt")); err != nil {
		t.Fatal(err)
	}

	tool := NewFileReadTool(root)

	for _, path := range []string{"leak.txt", "elsewhere/secret.txt"} {
		res := tool.Execute(context.Background(), json.RawMessage(`{"file_path":"`+path+`"}`))
		if !res.IsError || !strings.Contains(res.Content, "outside") {
			t.Errorf("%s: got %+v, want outside-root error", path, res)
		}
		if strings.Contains(res.Content, "do not share") {
			t.Errorf("%s: content leaked", path)
		}
	}

	res := tool.Execute(context.Background(), json.RawMessage(`{"file_path":"alias.txt"}`))
	if res.IsError || res.Content != "     1\tstep one\n" {
		t.Errorf("link inside root: got %+v", res)
	}
}

func TestFileReadToolTruncates(t *testing.T) {
	root := t.TempDir()
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("0123456789\n")
	}
	if err := os.WriteFile(filepath.Join(root, "big.txt"), []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}

	tool := NewFileReadTool(root)
	tool.maxBytes = 25

	res := tool.Execute(context.Background(), json.RawMessage(`{"file_path":"big.txt"}`))
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Content)
	}
	want := "     1\t0123456789\n     2\t0123456789\n[file truncated after 25 bytes]\n"
	if res.Content != want {
		t.Errorf("content = %q, want %q", res.Content, want)
	}
}
