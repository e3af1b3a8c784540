package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseTarballName(t *testing.T) {
	tests := []struct {
		file, name, version string
		ok                  bool
	}{
		{"lodash-4.17.21.tgz", "lodash", "4.17.21", true},
		{"left-pad-1.3.0.tgz", "left-pad", "1.3.0", true},
		{"core-7.24.0.TGZ", "core", "7.24.0", true},
		{"@babel%2Fcore-7.24.0.tgz", "@babel/core", "7.24.0", true},
		{"@babel%2fcore-7.24.0.tgz", "@babel/core", "7.24.0", true},
		{"typescript-5.4.0-beta.tgz", "typescript", "5.4.0-beta", true},
		{"esbuild-0.20.0-rc.1.tgz", "esbuild", "0.20.0-rc.1", true},
		{"lodash-4.17.tgz", "", "", false},
		{"lodash-4.17.21.zip", "", "", false},
		{"README.md", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			name, version, ok := ParseTarballName(tt.file, ".tgz")
			if name != tt.name || version != tt.version || ok != tt.ok {
				t.Errorf("ParseTarballName(%q) = %q, %q, %v", tt.file, name, version, ok)
			}
		})
	}

	if name, version, ok := ParseTarballName("pkg-1.0.0.tar.gz", ".tar.gz"); !ok || name != "pkg" || version != "1.0.0" {
		t.Errorf("custom extension: %q %q %v", name, version, ok)
	}
}

func TestScan(t *testing.T) {
	root1, root2 := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(root1, "lodash-4.17.21.tgz"), "lodash")
	writeFile(t, filepath.Join(root1, "nested", "deep", "@babel%2Fcore-7.24.0.tgz"), "scoped")
	writeFile(t, filepath.Join(root1, "core-7.23.0.tgz"), "unscoped")
	writeFile(t, filepath.Join(root1, "notes.txt"), "x")
	writeFile(t, filepath.Join(root2, "lodash-4.17.21.tgz"), "override")
	writeFile(t, filepath.Join(root2, "JSONStream-1.3.5.tgz"), "json")

	ix, err := Scan(".tgz", root1, filepath.Join(root1, "missing"), root2)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if ix.Len() != 4 {
		t.Errorf("Len = %d, want 4", ix.Len())
	}
	if ix.Packages() != 4 {
		t.Errorf("Packages = %d, want 4", ix.Packages())
	}

	e, ok := ix.Lookup("lodash", "4.17.21")
	if !ok || filepath.Dir(e.Path) != root2 {
		t.Errorf("later root should win: %+v", e)
	}
	if _, ok := ix.Lookup("jsonstream", "1.3.5"); !ok {
		t.Error("lookup should ignore case")
	}

	versions := ix.Versions("@babel/core")
	if len(versions) != 2 || versions[0].Version != "7.23.0" || versions[1].Name != "@babel/core" {
		t.Errorf("scoped versions = %+v", versions)
	}
	if got := ix.Versions("core"); len(got) != 1 {
		t.Errorf("unscoped request must not see scoped files: %+v", got)
	}
	if got := ix.Versions("@other/core"); len(got) != 1 || got[0].Version != "7.23.0" {
		t.Errorf("unscoped tail match = %+v", got)
	}
}

func TestVersionsPrefersFullName(t *testing.T) {
	ix := NewIndex([]Entry{
		{Name: "core", Version: "1.0.0", Path: "/a/core-1.0.0.tgz"},
		{Name: "@s/core", Version: "1.0.0", Path: "/a/@s%2Fcore-1.0.0.tgz"},
	})
	got := ix.Versions("@s/core")
	if len(got) != 1 || got[0].Name != "@s/core" {
		t.Errorf("Versions = %+v", got)
	}
	if e, _ := ix.Lookup("@S/Core", "1.0.0"); e.Name != "@s/core" {
		t.Errorf("Lookup = %+v", e)
	}
}
