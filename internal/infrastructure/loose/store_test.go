package loose

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitty.dev/cli/internal/core/domain"
	"gitty.dev/cli/internal/core/object"
	"gitty.dev/cli/internal/core/testfixtures"
)

func TestStoreRead(t *testing.T) {
	repo := testfixtures.NewRepo(t)
	id := repo.Blob("hello\n")
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", id.String())

	var logs bytes.Buffer
	s := NewStore(repo.ObjectsDir, zerolog.New(&logs).Level(zerolog.DebugLevel))
	ctx := context.Background()

	ok, err := s.Contains(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	obj, err := s.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, object.KindBlob, obj.Kind)
	assert.Equal(t, int64(6), obj.Size)
	assert.Equal(t, "hello\n", string(obj.Data))
	assert.Contains(t, logs.String(), `"event":"loose.read"`)
	assert.Contains(t, logs.String(), `"backend":"loose"`)
}

func TestStoreReadMissing(t *testing.T) {
	repo := testfixtures.NewRepo(t)
	s := NewStore(repo.ObjectsDir, zerolog.Nop())
	id := object.MustParseID("e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")

	ok, err := s.Contains(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Read(context.Background(), id)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreReadCorrupt(t *testing.T) {
	id := object.MustParseID("1111111111111111111111111111111111111111")

	cases := []struct {
		name  string
		write func(r *testfixtures.Repo)
	}{
		{"not zlib", func(r *testfixtures.Repo) { r.WriteLooseFile(id, []byte("plain text")) }},
		{"unknown kind", func(r *testfixtures.Repo) { r.WriteLooseRaw(id, []byte("widget 3\x00abc")) }},
		{"no space", func(r *testfixtures.Repo) { r.WriteLooseRaw(id, []byte("blob3\x00abc")) }},
		{"bad size", func(r *testfixtures.Repo) { r.WriteLooseRaw(id, []byte("blob x\x00abc")) }},
		{"negative size", func(r *testfixtures.Repo) { r.WriteLooseRaw(id, []byte("blob -1\x00")) }},
		{"short payload", func(r *testfixtures.Repo) { r.WriteLooseRaw(id, []byte("blob 10\x00abc")) }},
		{"huge declared size", func(r *testfixtures.Repo) { r.WriteLooseRaw(id, []byte("blob 99999999999999999\x00abc")) }},
		{"long payload", func(r *testfixtures.Repo) { r.WriteLooseRaw(id, []byte("blob 1\x00abc")) }},
		{"no terminator", func(r *testfixtures.Repo) { r.WriteLooseRaw(id, []byte("blob 3")) }},
		{"header too long", func(r *testfixtures.Repo) {
			r.WriteLooseRaw(id, append(bytes.Repeat([]byte("b"), 64), 0))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := testfixtures.NewRepo(t)
			tc.write(repo)

			_, err := NewStore(repo.ObjectsDir, zerolog.Nop()).Read(context.Background(), id)
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindCorrupt), "got %v", err)
		})
	}
}

func TestStoreWalkAndMatchPrefix(t *testing.T) {
	repo := testfixtures.NewRepo(t)
	var want []object.ID
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		want = append(want, repo.Blob(s))
	}

	// stray files in fan-out directories are ignored
	dir := filepath.Join(repo.ObjectsDir, want[0].String()[:2])
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp_obj_abcdef"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zz"+want[0].String()[4:]), nil, 0o644))

	s := NewStore(repo.ObjectsDir, zerolog.Nop())
	ctx := context.Background()

	var got []object.ID
	require.NoError(t, s.Walk(ctx, func(id object.ID) error {
		got = append(got, id)
		return nil
	}))
	sortIDs(want)
	sortIDs(got)
	assert.Equal(t, want, got)

	for _, id := range want {
		p, err := object.ParsePrefix(id.String()[:5])
		require.NoError(t, err)
		matches, err := s.MatchPrefix(ctx, p)
		require.NoError(t, err)
		assert.Contains(t, matches, id)
	}

	count, size, err := s.Stat(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.Positive(t, size)
}

func TestStoreWalkStopsOnError(t *testing.T) {
	repo := testfixtures.NewRepo(t)
	repo.Blob("one")
	repo.Blob("two")

	stop := assert.AnError
	calls := 0
	err := NewStore(repo.ObjectsDir, zerolog.Nop()).Walk(context.Background(), func(object.ID) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func sortIDs(ids []object.ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
}
