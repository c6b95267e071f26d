package integration_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitty.dev/cli/internal/core/object"
	"gitty.dev/cli/internal/core/testfixtures"
)

// newHistory builds a repository whose main branch has three commits,
// the first two stored in a pack and the last one loose
func newHistory(t *testing.T) (*testfixtures.Repo, []object.ID) {
	t.Helper()
	repo := testfixtures.NewRepo(t)

	b := testfixtures.NewPackBuilder()
	readme := []byte(strings.Repeat("readme text\n", 10))
	blob := b.Add(object.KindBlob, readme)
	tree := b.Add(object.KindTree, (&object.Tree{Entries: []object.TreeEntry{
		{Mode: object.ModeBlob, Name: "README", ID: blob.ID},
	}}).Encode())
	c1 := b.Add(object.KindCommit, repo.CommitData(tree.ID, "first"))
	blob2 := b.AddOfsDelta(blob, append(append([]byte(nil), readme...), "more\n"...))
	tree2 := b.Add(object.KindTree, (&object.Tree{Entries: []object.TreeEntry{
		{Mode: object.ModeBlob, Name: "README", ID: blob2.ID},
	}}).Encode())
	c2 := b.Add(object.KindCommit, repo.CommitData(tree2.ID, "second", c1.ID))
	repo.WritePack(b, 2)

	c3 := repo.Commit(tree2.ID, "third", c2.ID)
	repo.PackedRefs(c2.ID.String() + " refs/heads/main")
	repo.SetRef("refs/heads/main", c3)

	return repo, []object.ID{c1.ID, c2.ID, c3}
}

// TestCLI_ReadsRepositoryFromWorkTree runs the commands from a nested
// directory, relying on discovery
func TestCLI_ReadsRepositoryFromWorkTree(t *testing.T) {
	repo, commits := newHistory(t)
	dir := filepath.Join(repo.Root, "docs", "api")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	t.Run("rev_parse_prefers_loose_ref", func(t *testing.T) {
		res := runGitty(t, dir, nil, "rev-parse", "main")
		require.Equal(t, 0, res.Code, res.Stderr)
		assert.Equal(t, commits[2].String()+"\n", res.Stdout)
	})

	t.Run("log_crosses_loose_and_packed", func(t *testing.T) {
		res := runGitty(t, dir, nil, "log", "--oneline")
		require.Equal(t, 0, res.Code, res.Stderr)
		assert.Equal(t,
			commits[2].Short(7)+" third\n"+commits[1].Short(7)+" second\n"+commits[0].Short(7)+" first\n",
			res.Stdout)
	})

	t.Run("cat_file_resolves_delta", func(t *testing.T) {
		res := runGitty(t, dir, nil, "cat-file", "-p", "main:README")
		assert.Equal(t, 128, res.Code, "path lookups are not revision syntax")

		tree := runGitty(t, dir, nil, "rev-parse", "main^{tree}")
		require.Equal(t, 0, tree.Code, tree.Stderr)
		listing := runGitty(t, dir, nil, "ls-tree", strings.TrimSpace(tree.Stdout))
		require.Equal(t, 0, listing.Code, listing.Stderr)

		fields := strings.Fields(listing.Stdout)
		require.Len(t, fields, 4)
		blob := runGitty(t, dir, nil, "cat-file", "-p", fields[2])
		require.Equal(t, 0, blob.Code, blob.Stderr)
		assert.True(t, strings.HasSuffix(blob.Stdout, "readme text\nmore\n"))
	})

	t.Run("count_objects", func(t *testing.T) {
		res := runGitty(t, dir, nil, "count-objects", "-v")
		require.Equal(t, 0, res.Code, res.Stderr)
		assert.Contains(t, res.Stdout, "count: 1\n")
		assert.Contains(t, res.Stdout, "in-pack: 6\n")
	})
}

// TestCLI_ErrorHandling_ReportsCorrectly checks exit statuses and stderr
func TestCLI_ErrorHandling_ReportsCorrectly(t *testing.T) {
	repo, _ := newHistory(t)

	t.Run("outside_a_repository", func(t *testing.T) {
		res := runGitty(t, t.TempDir(), nil, "log")
		assert.Equal(t, 128, res.Code)
		assert.Empty(t, res.Stdout)
		assert.Equal(t, "fatal: not a git repository (or any of the parent directories): .git\n", res.Stderr)
	})

	t.Run("missing_object_exit_status", func(t *testing.T) {
		res := runGitty(t, repo.Root, nil, "cat-file", "-e", strings.Repeat("0", 40))
		assert.Equal(t, 1, res.Code)
		assert.Empty(t, res.Stderr)
	})

	t.Run("unknown_command", func(t *testing.T) {
		res := runGitty(t, repo.Root, nil, "push")
		assert.Equal(t, 128, res.Code)
		assert.Contains(t, res.Stderr, "unknown command")
	})

	t.Run("invalid_config_file", func(t *testing.T) {
		cfg := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("log_level: loud\n"), 0o644))

		res := runGitty(t, repo.Root, []string{"GITTY_CONFIG=" + cfg}, "rev-parse", "HEAD")
		assert.Equal(t, 128, res.Code)
		assert.Contains(t, res.Stderr, "invalid_config")
	})
}

// TestCLI_Configuration_Layers checks that env and flags reach the binary
func TestCLI_Configuration_Layers(t *testing.T) {
	repo, commits := newHistory(t)
	elsewhere := t.TempDir()

	t.Run("git_dir_from_env", func(t *testing.T) {
		res := runGitty(t, elsewhere, []string{"GIT_DIR=" + repo.GitDir}, "rev-parse", "HEAD")
		require.Equal(t, 0, res.Code, res.Stderr)
		assert.Equal(t, commits[2].String()+"\n", res.Stdout)
	})

	t.Run("debug_logs_go_to_stderr", func(t *testing.T) {
		res := runGitty(t, elsewhere, []string{"NO_COLOR=1"}, "--git-dir", repo.GitDir, "--debug", "rev-parse", "HEAD")
		require.Equal(t, 0, res.Code, res.Stderr)
		assert.Equal(t, commits[2].String()+"\n", res.Stdout)
		assert.Contains(t, res.Stderr, "repository.open")
		assert.NotContains(t, res.Stderr, "\x1b[")
	})

	t.Run("config_file_sets_git_dir", func(t *testing.T) {
		cfg := filepath.Join(t.TempDir(), "gitty.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("git_dir: "+repo.GitDir+"\ncache_mb: 8\n"), 0o644))

		res := runGitty(t, elsewhere, nil, "--config", cfg, "show-ref", "--heads")
		require.Equal(t, 0, res.Code, res.Stderr)
		assert.Equal(t, commits[2].String()+" refs/heads/main\n", res.Stdout)
	})

	t.Run("version", func(t *testing.T) {
		res := runGitty(t, elsewhere, nil, "--version")
		require.Equal(t, 0, res.Code)
		assert.True(t, strings.HasPrefix(res.Stdout, "gitty version dev\n"), res.Stdout)
	})
}
