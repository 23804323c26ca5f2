// Copyright 2025 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package util

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestFileExists(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, dir string)
		filename string
		expected bool
	}{
		{
			name: "regular file",
			setup: func(t *testing.T, dir string) {
				if err := os.WriteFile(filepath.Join(dir, "archive_viewer.py"), []byte("import streamlit"), 0644); err != nil {
					t.Fatal(err)
				}
			},
			filename: "archive_viewer.py",
			expected: true,
		},
		{
			name: "directory",
			setup: func(t *testing.T, dir string) {
				if err := os.Mkdir(filepath.Join(dir, "venv"), 0755); err != nil {
					t.Fatal(err)
				}
			},
			filename: "venv",
			expected: false,
		},
		{
			name:     "missing",
			setup:    func(t *testing.T, dir string) {},
			filename: "missing.py",
			expected: false,
		},
		{
			name:     "empty filename",
			setup:    func(t *testing.T, dir string) {},
			filename: "",
			expected: false,
		},
		{
			name: "symlink to file",
			setup: func(t *testing.T, dir string) {
				if runtime.GOOS == "windows" {
					t.Skip("symlinks need privileges on windows")
				}
				target := filepath.Join(dir, "target.py")
				if err := os.WriteFile(target, nil, 0644); err != nil {
					t.Fatal(err)
				}
				if err := os.Symlink(target, filepath.Join(dir, "link.py")); err != nil {
					t.Fatal(err)
				}
			},
			filename: "link.py",
			expected: true,
		},
		{
			name: "broken symlink",
			setup: func(t *testing.T, dir string) {
				if runtime.GOOS == "windows" {
					t.Skip("symlinks need privileges on windows")
				}
				if err := os.Symlink("/non/existent/path", filepath.Join(dir, "broken")); err != nil {
					t.Fatal(err)
				}
			},
			filename: "broken",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)

			if result := FileExists(dir, tt.filename); result != tt.expected {
				t.Errorf("FileExists(%q, %q) = %v, want %v", dir, tt.filename, result, tt.expected)
			}
		})
	}
}

func TestFileExistsEmptyDir(t *testing.T) {
	if FileExists("", "go.mod") {
		t.Error("FileExists should be false for an empty directory")
	}
}

func TestDirExists(t *testing.T) {
	dir := t.TempDir()
	if !DirExists(dir) {
		t.Error("DirExists should be true for a directory")
	}
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if DirExists(file) {
		t.Error("DirExists should be false for a file")
	}
	if DirExists(filepath.Join(dir, "missing")) {
		t.Error("DirExists should be false for a missing path")
	}
}
