package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitty.dev/cli/internal/core/domain"
)

func makeGitDir(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "objects", "info"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "refs", "heads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))
}

func TestDiscover_FindsDotGitFromNestedDir(t *testing.T) {
	root := t.TempDir()
	makeGitDir(t, filepath.Join(root, ".git"))
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	layout, err := NewFinder().Discover(nested)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, ".git"), layout.GitDir)
	assert.Equal(t, root, layout.WorkTree)
	assert.Equal(t, []string{filepath.Join(root, ".git", "objects")}, layout.ObjectDirs)
}

func TestDiscover_FollowsGitFile(t *testing.T) {
	root := t.TempDir()
	storage := filepath.Join(root, "storage", "wt.git")
	makeGitDir(t, storage)

	work := filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(work, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(work, ".git"), []byte("gitdir: ../storage/wt.git\n"), 0o644))

	layout, err := NewFinder().Discover(work)
	require.NoError(t, err)
	assert.Equal(t, storage, layout.GitDir)
	assert.Equal(t, work, layout.WorkTree)
}

func TestDiscover_RejectsBadGitFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git"), []byte("nonsense"), 0o644))

	_, err := NewFinder().Discover(root)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindCorrupt))
}

func TestDiscover_BareRepository(t *testing.T) {
	bare := filepath.Join(t.TempDir(), "project.git")
	makeGitDir(t, bare)

	layout, err := NewFinder().Discover(bare)
	require.NoError(t, err)
	assert.Equal(t, bare, layout.GitDir)
	assert.Empty(t, layout.WorkTree)
}

func TestDiscover_NotFound(t *testing.T) {
	_, err := NewFinder().Discover(t.TempDir())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	assert.ErrorIs(t, err, domain.ErrNotRepository)

	_, err = NewFinder().Discover("")
	assert.True(t, domain.IsKind(err, domain.KindInvalidConfig))
}

func TestOpen(t *testing.T) {
	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	makeGitDir(t, gitDir)

	layout, err := NewFinder().Open(gitDir)
	require.NoError(t, err)
	assert.Equal(t, gitDir, layout.GitDir)
	assert.Equal(t, root, layout.WorkTree)

	_, err = NewFinder().Open(root)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestLayout_Alternates(t *testing.T) {
	root := t.TempDir()
	main := filepath.Join(root, "main.git")
	shared := filepath.Join(root, "shared.git")
	deeper := filepath.Join(root, "deeper.git")
	for _, d := range []string{main, shared, deeper} {
		makeGitDir(t, d)
	}

	// main -> shared (absolute), shared -> deeper (relative), deeper -> main (cycle)
	writeAlternates(t, main, filepath.Join(shared, "objects")+"\n# comment\n\n")
	writeAlternates(t, shared, "../../deeper.git/objects\n")
	writeAlternates(t, deeper, filepath.Join(main, "objects")+"\n")

	layout, err := NewFinder().Open(main)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(main, "objects"),
		filepath.Join(shared, "objects"),
		filepath.Join(deeper, "objects"),
	}, layout.ObjectDirs)
	assert.Equal(t, filepath.Join(main, "objects"), layout.ObjectsDir())
}

func writeAlternates(t *testing.T, gitDir, content string) {
	t.Helper()
	path := filepath.Join(gitDir, "objects", "info", "alternates")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
