package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// RepoNameFile is the fixed location, relative to a repository's root,
// that carries its symbolic name (spec §6: "Repository name file").
const RepoNameFile = "yamConfig/repoName.txt"

// ReadRepoName reads and validates <repoDir>/yamConfig/repoName.txt.
func ReadRepoName(repoDir string) (string, error) {
	path := filepath.Join(repoDir, RepoNameFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	name := strings.TrimSpace(string(data))
	if !repoNamePattern.MatchString(name) {
		return "", fmt.Errorf("%s: %q is not a valid repository name (must match %s)", path, name, repoNamePattern.String())
	}
	return name, nil
}
