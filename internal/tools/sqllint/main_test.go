package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRunAcceptsMarkedQueries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "q.go", "package q\n\nconst QOne = `--sql 11111111-2222-4333-8444-555555555555\nselect 1;\n`\n\nconst Greeting = \"hello\"\n")

	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 0 {
		t.Fatalf("expected success, got %d: %s", code, stderr.String())
	}
}

func TestRunReportsViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing marker",
			body: "package q\n\nconst QBad = `select 1;`\n",
			want: "missing or invalid",
		},
		{
			name: "duplicate marker",
			body: "package q\n\nconst (\n\tQA = `--sql 11111111-2222-4333-8444-555555555555\nselect 1;`\n\tQB = `--sql 11111111-2222-4333-8444-555555555555\nselect 2;`\n)\n",
			want: "already used by QA",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "q.go", tt.body)
			var stderr bytes.Buffer
			if code := run([]string{dir}, &stderr); code != 1 {
				t.Fatalf("expected failure exit code, got %d", code)
			}
			if !strings.Contains(stderr.String(), tt.want) {
				t.Fatalf("stderr %q does not mention %q", stderr.String(), tt.want)
			}
		})
	}
}

func TestRepositoryQueriesAreMarked(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{filepath.Join("..", "..", "sqlinline")}, &stderr); code != 0 {
		t.Fatalf("sqlinline queries failed lint: %s", stderr.String())
	}
}
