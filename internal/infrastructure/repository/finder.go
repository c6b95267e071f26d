package repository

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gitty.dev/cli/internal/core/domain"
)

// Layout describes where a repository keeps its data
type Layout struct {
	// GitDir holds HEAD, refs and objects
	GitDir string
	// WorkTree is empty for bare repositories
	WorkTree string
	// ObjectDirs lists the primary objects directory first, followed by
	// any alternates
	ObjectDirs []string
}

// ObjectsDir returns the repository's own objects directory
func (l Layout) ObjectsDir() string {
	return l.ObjectDirs[0]
}

// Finder locates a git directory by searching upward from a start directory
type Finder struct {
	// MaxAlternateDepth bounds alternates that themselves have alternates
	MaxAlternateDepth int
}

// NewFinder creates a finder with git's default alternate depth
func NewFinder() *Finder {
	return &Finder{MaxAlternateDepth: 5}
}

// Discover walks from startDir toward the filesystem root and returns the
// first repository found
func (f *Finder) Discover(startDir string) (Layout, error) {
	if startDir == "" {
		return Layout{}, &domain.OpError{Op: "repository.discover", Kind: domain.KindInvalidConfig, Err: errors.New("start directory is empty")}
	}

	abs, err := filepath.Abs(startDir)
	if err != nil {
		return Layout{}, &domain.OpError{Op: "repository.discover", Kind: domain.KindIO, Err: err}
	}

	cur := filepath.Clean(abs)
	for {
		dotGit := filepath.Join(cur, ".git")
		if info, err := os.Stat(dotGit); err == nil {
			gitDir := dotGit
			if !info.IsDir() {
				if gitDir, err = readGitFile(dotGit); err != nil {
					return Layout{}, err
				}
			}
			if isGitDir(gitDir) {
				return f.layout(gitDir, cur)
			}
		}

		if isGitDir(cur) {
			return f.layout(cur, "")
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return Layout{}, &domain.OpError{
				Op:   "repository.discover",
				Kind: domain.KindNotFound,
				Path: abs,
				Err:  domain.ErrNotRepository,
			}
		}
		cur = parent
	}
}

// Open uses gitDir as given, skipping discovery
func (f *Finder) Open(gitDir string) (Layout, error) {
	abs, err := filepath.Abs(gitDir)
	if err != nil {
		return Layout{}, &domain.OpError{Op: "repository.open", Kind: domain.KindIO, Err: err}
	}
	if !isGitDir(abs) {
		return Layout{}, &domain.OpError{Op: "repository.open", Kind: domain.KindNotFound, Path: abs, Err: domain.ErrNotRepository}
	}

	workTree := ""
	if filepath.Base(abs) == ".git" {
		workTree = filepath.Dir(abs)
	}
	return f.layout(abs, workTree)
}

func (f *Finder) layout(gitDir, workTree string) (Layout, error) {
	objects := filepath.Join(gitDir, "objects")
	dirs := []string{objects}

	seen := map[string]bool{objects: true}
	queue := []string{objects}
	for depth := 0; len(queue) > 0 && depth <= f.MaxAlternateDepth; depth++ {
		var next []string
		for _, dir := range queue {
			alts, err := readAlternates(dir)
			if err != nil {
				return Layout{}, err
			}
			for _, alt := range alts {
				if seen[alt] {
					continue
				}
				seen[alt] = true
				dirs = append(dirs, alt)
				next = append(next, alt)
			}
		}
		queue = next
	}

	return Layout{GitDir: gitDir, WorkTree: workTree, ObjectDirs: dirs}, nil
}

// isGitDir applies git's cheap validity test: HEAD, objects/ and refs/
func isGitDir(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, "HEAD")); err != nil {
		return false
	}
	for _, sub := range []string{"objects", "refs"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

// readGitFile follows a "gitdir: <path>" file used by worktrees and submodules
func readGitFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &domain.OpError{Op: "repository.gitfile", Kind: domain.KindIO, Path: path, Err: err}
	}

	line := strings.TrimSpace(string(data))
	target, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		return "", &domain.OpError{Op: "repository.gitfile", Kind: domain.KindCorrupt, Path: path, Err: fmt.Errorf("invalid gitfile format")}
	}

	target = strings.TrimSpace(target)
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return filepath.Clean(target), nil
}

// readAlternates parses objects/info/alternates. Relative entries are
// resolved against the objects directory; comments and blanks are skipped.
func readAlternates(objectsDir string) ([]string, error) {
	path := filepath.Join(objectsDir, "info", "alternates")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.OpError{Op: "repository.alternates", Kind: domain.KindIO, Path: path, Err: err}
	}

	var dirs []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(objectsDir, line)
		}
		dirs = append(dirs, filepath.Clean(line))
	}
	return dirs, nil
}
