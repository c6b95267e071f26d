package di

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitty.dev/cli/internal/core/domain"
	"gitty.dev/cli/internal/core/object"
	"gitty.dev/cli/internal/core/testfixtures"
	"gitty.dev/cli/internal/infrastructure/config"
	"gitty.dev/cli/internal/infrastructure/pack"
)

func envOf(vars map[string]string) config.LookupEnv {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestNewContainerWiresRepository(t *testing.T) {
	repo := testfixtures.NewRepo(t)
	blob := repo.Blob("loose\n")
	b := testfixtures.NewPackBuilder()
	packed := b.Add(object.KindBlob, []byte("packed\n"))
	repo.WritePack(b, 2)
	repo.SetRef("refs/heads/main", repo.Commit(repo.Tree(), "root"))

	var logs bytes.Buffer
	c, err := NewContainer(context.Background(), config.Overrides{GitDir: repo.GitDir, Debug: true}, Options{
		Env:       envOf(nil),
		LogOutput: &logs,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown() })

	assert.Equal(t, []string{repo.ObjectsDir}, c.Layout.ObjectDirs)
	assert.Equal(t, "debug", c.Config.LogLevel)
	assert.Len(t, c.Packs.Packs(), 1)
	assert.Contains(t, logs.String(), "repository.open")

	ctx := context.Background()
	for id, backend := range map[object.ID]string{blob: "loose", packed.ID: "packed"} {
		got, err := c.Objects.Backend(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, backend, got)
	}

	head, err := c.Objects.Resolve(ctx, "HEAD")
	require.NoError(t, err)
	_, err = c.Objects.Commit(ctx, head)
	require.NoError(t, err)

	inv, err := c.Inventory.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.InPack)
	assert.Equal(t, 3, inv.Count)

	cli := c.CLIContainer()
	assert.NotNil(t, cli.Objects)
	assert.NotNil(t, cli.Inspector)
	require.NoError(t, cli.Close())
	require.NoError(t, cli.Close(), "closing twice is harmless")
}

func TestNewContainerJSONLogs(t *testing.T) {
	repo := testfixtures.NewRepo(t)
	var logs bytes.Buffer
	c, err := NewContainer(context.Background(), config.Overrides{GitDir: repo.GitDir, Debug: true}, Options{
		Env:       envOf(map[string]string{"GITTY_LOG_FORMAT": "json"}),
		LogOutput: &logs,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown() })

	assert.Contains(t, logs.String(), `"event":"repository.open"`)
}

func TestNewContainerCrossPackDeltaCycle(t *testing.T) {
	repo := testfixtures.NewRepo(t)
	xData := []byte("x side\n")
	yData := []byte("y side\n")
	xID := object.Hash(object.KindBlob, xData)
	yID := object.Hash(object.KindBlob, yData)

	a := testfixtures.NewPackBuilder()
	a.AddRefDelta(yID, object.KindBlob, yData, xData)
	repo.WritePack(a, 2)
	b := testfixtures.NewPackBuilder()
	b.AddRefDelta(xID, object.KindBlob, xData, yData)
	repo.WritePack(b, 2)

	c, err := NewContainer(context.Background(), config.Overrides{GitDir: repo.GitDir}, Options{Env: envOf(nil)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown() })

	_, err = c.Objects.Get(context.Background(), xID)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindCorrupt))
	assert.ErrorIs(t, err, pack.ErrChainTooLong)
}

func TestNewContainerAlternates(t *testing.T) {
	shared := testfixtures.NewRepo(t)
	borrowed := shared.Blob("from the alternate\n")
	sb := testfixtures.NewPackBuilder()
	borrowedPacked := sb.Add(object.KindBlob, []byte("packed in the alternate\n"))
	shared.WritePack(sb, 2)

	repo := testfixtures.NewRepo(t)
	repo.WriteFile("objects/info/alternates", shared.ObjectsDir+"\n")

	c, err := NewContainer(context.Background(), config.Overrides{GitDir: repo.GitDir}, Options{Env: envOf(nil)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown() })

	require.Len(t, c.Loose, 2)
	obj, err := c.Objects.Get(context.Background(), borrowed)
	require.NoError(t, err)
	assert.Equal(t, "from the alternate\n", string(obj.Data))
	_, err = c.Objects.Get(context.Background(), borrowedPacked.ID)
	require.NoError(t, err)

	inv, err := c.Inventory.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, inv.Count)
	assert.Equal(t, 0, inv.Packs)
	assert.Equal(t, 0, inv.InPack)
	assert.Zero(t, inv.SizePack)
}

func TestNewContainerDiscovery(t *testing.T) {
	repo := testfixtures.NewRepo(t)
	sub := filepath.Join(repo.Root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	c, err := NewContainer(context.Background(), config.Overrides{}, Options{Env: envOf(nil), WorkDir: sub})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown() })
	assert.Equal(t, repo.GitDir, c.Layout.GitDir)

	// GIT_DIR from the environment wins over discovery
	other := testfixtures.NewRepo(t)
	c2, err := NewContainer(context.Background(), config.Overrides{}, Options{
		Env:     envOf(map[string]string{"GIT_DIR": other.GitDir}),
		WorkDir: sub,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c2.Shutdown() })
	assert.Equal(t, other.GitDir, c2.Layout.GitDir)
}

func TestNewContainerErrors(t *testing.T) {
	_, err := NewContainer(context.Background(), config.Overrides{GitDir: t.TempDir()}, Options{Env: envOf(nil)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotRepository)

	_, err = NewContainer(context.Background(), config.Overrides{}, Options{
		Env:     envOf(map[string]string{"GITTY_CACHE_MB": "0"}),
		WorkDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInvalidConfig))

	_, err = NewContainer(context.Background(), config.Overrides{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}, Options{Env: envOf(nil)})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestBootstrapWith(t *testing.T) {
	repo := testfixtures.NewRepo(t)
	boot := BootstrapWith(Options{Env: envOf(nil)})

	cli, err := boot(context.Background(), config.Overrides{GitDir: repo.GitDir, NoColor: true})
	require.NoError(t, err)
	assert.True(t, cli.NoColor)
	require.NoError(t, cli.Close())
}
