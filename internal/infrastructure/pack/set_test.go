package pack

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitty.dev/cli/internal/core/domain"
	"gitty.dev/cli/internal/core/object"
	"gitty.dev/cli/internal/core/testfixtures"
)

func TestLoadSet(t *testing.T) {
	repo := testfixtures.NewRepo(t)
	other := testfixtures.NewRepo(t)

	b1 := testfixtures.NewPackBuilder()
	a := b1.Add(object.KindBlob, []byte("first pack\n"))
	repo.WritePack(b1, 2)

	b2 := testfixtures.NewPackBuilder()
	c := b2.Add(object.KindBlob, []byte("second pack\n"))
	shared := b2.Add(object.KindBlob, []byte("first pack\n"))
	other.WritePack(b2, 1)

	// an index whose pack was removed is skipped
	b3 := testfixtures.NewPackBuilder()
	b3.Add(object.KindBlob, []byte("orphan\n"))
	orphan := repo.WritePack(b3, 2)
	require.NoError(t, os.Remove(strings.TrimSuffix(orphan, ".idx")+".pack"))

	var logs bytes.Buffer
	set, err := LoadSet(context.Background(), []string{repo.ObjectsDir, other.ObjectsDir}, Options{
		CacheBytes: 1 << 20,
		Logger:     zerolog.New(&logs),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })

	assert.Equal(t, "packed", set.Name())
	assert.Len(t, set.Packs(), 2)
	assert.Contains(t, logs.String(), `"event":"pack.skip"`)

	ctx := context.Background()
	for _, id := range []object.ID{a.ID, c.ID} {
		ok, err := set.Contains(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)

		obj, err := set.Read(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, obj.ID)
	}
	assert.Equal(t, a.ID, shared.ID)

	p, err := object.ParsePrefix(a.ID.String()[:8])
	require.NoError(t, err)
	matches, err := set.MatchPrefix(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []object.ID{a.ID}, matches)

	var walked int
	require.NoError(t, set.Walk(ctx, func(object.ID) error { walked++; return nil }))
	assert.Equal(t, 3, walked)

	local := set.LocalStats(repo.ObjectsDir).Stats()
	require.Len(t, local, 1)
	assert.Equal(t, 1, local[0].Objects)
	assert.Len(t, set.Stats(), 2)

	_, err = set.Read(ctx, object.MustParseID("0123456789012345678901234567890123456789"))
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestSetCrossPackDeltaCycle(t *testing.T) {
	repo := testfixtures.NewRepo(t)
	xData := []byte("x refers to y\n")
	yData := []byte("y refers to x\n")
	xID := object.Hash(object.KindBlob, xData)
	yID := object.Hash(object.KindBlob, yData)

	a := testfixtures.NewPackBuilder()
	a.AddRefDelta(yID, object.KindBlob, yData, xData)
	repo.WritePack(a, 2)

	b := testfixtures.NewPackBuilder()
	b.AddRefDelta(xID, object.KindBlob, xData, yData)
	repo.WritePack(b, 2)

	set, err := LoadSet(context.Background(), []string{repo.ObjectsDir}, Options{CacheBytes: 1 << 20, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })
	require.Len(t, set.Packs(), 2)
	set.SetBaseResolver(set.Read)

	_, err = set.Read(context.Background(), xID)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindCorrupt))
	assert.ErrorIs(t, err, ErrChainTooLong)
}

func TestLoadSetFailsOnCorruptIndex(t *testing.T) {
	repo := testfixtures.NewRepo(t)
	repo.WriteFile("objects/pack/pack-bad.idx", "not an index")
	repo.WriteFile("objects/pack/pack-bad.pack", "PACK")

	_, err := LoadSet(context.Background(), []string{repo.ObjectsDir}, Options{Logger: zerolog.Nop()})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindCorrupt))
}

func TestLoadSetEmpty(t *testing.T) {
	repo := testfixtures.NewRepo(t)
	set, err := LoadSet(context.Background(), []string{repo.ObjectsDir}, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Empty(t, set.Packs())
	assert.NoError(t, set.Close())
}
