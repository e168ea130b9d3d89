// Package workspace reads workspace-level rule files the builder consults
// before touching disk.
package workspace

import (
	"bufio"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// ProtectedRulesFile is the workspace file declaring paths no run may
// write, in gitignore syntax.
const ProtectedRulesFile = ".patchsmith/protected"

// LoadProtectedRules compiles the workspace protected-path rules. A missing
// or empty rules file yields nil, meaning no workspace-level restrictions.
func LoadProtectedRules(rootDir string) *ignore.GitIgnore {
	lines, err := readRuleFile(filepath.Join(rootDir, ProtectedRulesFile))
	if err != nil || len(lines) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(lines...)
}

// LoadIgnoreRules compiles the workspace .gitignore so file listings skip
// build artifacts and vendored trees. Missing file yields nil.
func LoadIgnoreRules(rootDir string) *ignore.GitIgnore {
	lines, err := readRuleFile(filepath.Join(rootDir, ".gitignore"))
	if err != nil || len(lines) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(lines...)
}

func readRuleFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// ListFiles walks the workspace and returns relative paths of regular
// files, honoring the compiled ignore rules when non-nil.
func ListFiles(rootDir string, rules *ignore.GitIgnore) ([]string, error) {
	var files []string
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(rootDir, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if rel == ".git" || rel == ".patchsmith" || (rules != nil && rules.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if rules != nil && rules.MatchesPath(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
