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

package pydeps

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
)

const (
	StreamlitPackage    = "streamlit"
	StreamlitMinVersion = "1.28.0"
)

var (
	ErrNotDeclared    = errors.New("package not declared in any project file")
	ErrNoProjectFiles = errors.New("unable to locate project files")
)

// Requirement is a package declaration found in a project file.
type Requirement struct {
	Name        string
	Version     string
	FoundInFile string
}

type VersionCheckResult struct {
	Requirement
	MinVersion string
	Satisfied  bool
	Error      error
}

var specifierPattern = regexp.MustCompile(`^([=~><!]+)?\s*(.*)$`)

var projectFiles = []string{
	"requirements.txt",
	"requirements.lock",
	"pyproject.toml",
	"poetry.lock",
	"uv.lock",
}

// lock files pin what is installed, so they beat the declarations
var filePriority = map[string]int{
	"poetry.lock":       10,
	"uv.lock":           10,
	"requirements.lock": 8,
	"pyproject.toml":    5,
	"requirements.txt":  3,
}

// CheckVersion looks for pkg in the project files of dir and reports
// whether the declared version is at least minVersion.
func CheckVersion(dir, pkg, minVersion string) (*VersionCheckResult, error) {
	var files []string
	for _, name := range projectFiles {
		if path := filepath.Join(dir, name); fileExists(path) {
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		return nil, ErrNoProjectFiles
	}

	var results []VersionCheckResult
	for _, file := range files {
		result := checkPackageInFile(file, pkg, minVersion)
		if result.Error == nil && result.Name != "" {
			results = append(results, result)
		}
	}

	best := findBestResult(results)
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotDeclared, pkg)
	}
	return best, nil
}

func checkPackageInFile(filePath, pkg, minVersion string) VersionCheckResult {
	fileName := filepath.Base(filePath)

	switch {
	case strings.HasPrefix(fileName, "requirements"):
		return checkRequirementsFile(filePath, pkg, minVersion)
	case fileName == "pyproject.toml":
		return checkPyprojectToml(filePath, pkg, minVersion)
	case fileName == "poetry.lock", fileName == "uv.lock":
		return checkLockFile(filePath, pkg, minVersion)
	}

	return VersionCheckResult{Error: fmt.Errorf("unsupported file type: %s", fileName)}
}

func newResult(pkg, version, filePath, minVersion string) VersionCheckResult {
	satisfied, err := IsVersionSatisfied(version, minVersion)
	return VersionCheckResult{
		Requirement: Requirement{
			Name:        pkg,
			Version:     version,
			FoundInFile: filePath,
		},
		MinVersion: minVersion,
		Satisfied:  satisfied,
		Error:      err,
	}
}

// ParseRequirement extracts the version constraint for pkg from a PEP 508
// requirement line.
func ParseRequirement(line, pkg string) (string, bool) {
	name := regexp.QuoteMeta(pkg)

	// Git URLs don't have traditional versions, so we treat them as "latest"
	gitPattern := regexp.MustCompile(`(?i)^` + name + `(?:\[[^\]]+\])?\s*@\s*git\+`)
	if gitPattern.MatchString(line) {
		return "latest", true
	}

	pattern := regexp.MustCompile(`(?i)^` + name + `(?:\[[^\]]+\])?(.*)$`)
	matches := pattern.FindStringSubmatch(line)
	if matches == nil {
		return "", false
	}
	rest := strings.TrimSpace(matches[1])
	// a longer name sharing the prefix, e.g. streamlit-aggrid
	if rest != "" && !strings.ContainsRune("=~><!;(#", rune(rest[0])) {
		return "", false
	}
	if i := strings.IndexAny(rest, "#;"); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSpace(strings.Trim(rest, "() "))

	constraint := specifierPattern.FindStringSubmatch(rest)
	operator, version := constraint[1], strings.TrimSpace(constraint[2])

	if version == "" {
		return "latest", true
	}

	// take the first constraint that carries a version, e.g. ">=1.28,<2"
	for _, part := range strings.FieldsFunc(version, func(r rune) bool { return r == ',' || r == ' ' }) {
		if !regexp.MustCompile(`\d`).MatchString(part) {
			continue
		}
		if strings.ContainsAny(part, "=~><") || operator == "" {
			return part, true
		}
		return operator + part, true
	}
	return "latest", true
}

func checkRequirementsFile(filePath, pkg, minVersion string) VersionCheckResult {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return VersionCheckResult{Error: err}
	}

	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}

		if version, found := ParseRequirement(line, pkg); found {
			return newResult(pkg, version, filePath, minVersion)
		}
	}

	return VersionCheckResult{}
}

func checkPyprojectToml(filePath, pkg, minVersion string) VersionCheckResult {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return VersionCheckResult{Error: err}
	}

	var doc struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(content, &doc); err != nil {
		return VersionCheckResult{Error: err}
	}

	for _, line := range doc.Project.Dependencies {
		if version, found := ParseRequirement(line, pkg); found {
			return newResult(pkg, version, filePath, minVersion)
		}
	}

	for name, spec := range doc.Tool.Poetry.Dependencies {
		if !strings.EqualFold(name, pkg) {
			continue
		}
		var version string
		switch s := spec.(type) {
		case string:
			version = s
		case map[string]any:
			version, _ = s["version"].(string)
		}
		if version == "" || version == "*" {
			version = "latest"
		}
		return newResult(pkg, version, filePath, minVersion)
	}

	return VersionCheckResult{}
}

// checkLockFile reads the [[package]] tables shared by poetry.lock and uv.lock.
func checkLockFile(filePath, pkg, minVersion string) VersionCheckResult {
	var lock struct {
		Package []struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
		} `toml:"package"`
	}
	if _, err := toml.DecodeFile(filePath, &lock); err != nil {
		return VersionCheckResult{Error: err}
	}

	for _, p := range lock.Package {
		if strings.EqualFold(p.Name, pkg) {
			return newResult(pkg, p.Version, filePath, minVersion)
		}
	}

	return VersionCheckResult{}
}

// IsVersionSatisfied checks if a version satisfies the minimum requirement
func IsVersionSatisfied(version, minVersion string) (bool, error) {
	if version == "latest" || version == "*" || version == "" {
		return true, nil
	}

	v, err := semver.NewVersion(normalizeVersion(version))
	if err != nil {
		return false, fmt.Errorf("invalid version format: %s", version)
	}

	min, err := semver.NewVersion(normalizeVersion(minVersion))
	if err != nil {
		return false, fmt.Errorf("invalid minimum version format: %s", minVersion)
	}

	if !v.LessThan(min) {
		return true, nil
	}

	// a prerelease of the minimum counts, e.g. 1.28.0rc1 satisfies 1.28.0
	if v.Major() == min.Major() && v.Minor() == min.Minor() && v.Patch() == min.Patch() && v.Prerelease() != "" {
		return true, nil
	}

	return false, nil
}

// normalizeVersion normalizes version strings for semver parsing
func normalizeVersion(version string) string {
	version = strings.TrimSpace(version)
	version = strings.Trim(version, " \"'")

	// specifiers are not part of the version itself
	version = regexp.MustCompile(`^[=~><!^]+`).ReplaceAllString(version, "")
	// wildcard releases like 1.28.*
	version = strings.TrimSuffix(version, ".*")

	// 1.0.0.rc2 -> 1.0.0-rc2
	if dotIndex := strings.LastIndex(version, "."); dotIndex > 0 {
		if dotIndex < len(version)-1 && regexp.MustCompile(`^[a-zA-Z]`).MatchString(version[dotIndex+1:]) {
			version = version[:dotIndex] + "-" + version[dotIndex+1:]
		}
	}

	// 1.3.0rc1 -> 1.3.0-rc1, 1.3rc -> 1.3.0-rc
	prereleasePattern := regexp.MustCompile(`^(\d+(?:\.\d+)*)([a-zA-Z][a-zA-Z0-9]*.*)$`)
	if matches := prereleasePattern.FindStringSubmatch(version); matches != nil {
		parts := strings.Split(matches[1], ".")
		for len(parts) < 3 {
			parts = append(parts, "0")
		}
		version = strings.Join(parts, ".") + "-" + matches[2]
	}

	return version
}

func findBestResult(results []VersionCheckResult) *VersionCheckResult {
	var best *VersionCheckResult
	bestPriority := -1

	for i := range results {
		result := &results[i]
		if result.Error != nil {
			continue
		}
		priority := filePriority[filepath.Base(result.FoundInFile)]
		if priority > bestPriority {
			bestPriority = priority
			best = result
		}
	}

	return best
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
