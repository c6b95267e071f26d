// Package testfixtures builds throwaway git repositories, loose objects
// and pack files for tests.
package testfixtures

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"

	"gitty.dev/cli/internal/core/object"
)

// Repo is a git directory under t.TempDir()
type Repo struct {
	t          testing.TB
	Root       string
	GitDir     string
	ObjectsDir string
	clock      time.Time
}

// NewRepo creates <tmp>/.git with an unborn main branch
func NewRepo(t testing.TB) *Repo {
	t.Helper()

	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	r := &Repo{
		t:          t,
		Root:       root,
		GitDir:     gitDir,
		ObjectsDir: filepath.Join(gitDir, "objects"),
		clock:      time.Unix(1700000000, 0).UTC(),
	}

	for _, dir := range []string{
		filepath.Join(r.ObjectsDir, "pack"),
		filepath.Join(r.ObjectsDir, "info"),
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "tags"),
	} {
		r.must(os.MkdirAll(dir, 0o755))
	}
	r.must(os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))

	return r
}

func (r *Repo) must(err error) {
	r.t.Helper()
	if err != nil {
		r.t.Fatalf("testfixtures: %v", err)
	}
}

// Compress zlib-deflates data
func Compress(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write(data)
	_ = zw.Close()
	return buf.Bytes()
}

// WriteLoose stores an object in the loose fan-out directory
func (r *Repo) WriteLoose(kind object.Kind, data []byte) object.ID {
	r.t.Helper()

	raw := append(object.Header(kind, int64(len(data))), data...)
	id := object.Hash(kind, data)
	r.WriteLooseRaw(id, raw)
	return id
}

// WriteLooseRaw stores arbitrary uncompressed bytes under id, for
// corruption tests
func (r *Repo) WriteLooseRaw(id object.ID, raw []byte) {
	r.t.Helper()
	r.WriteLooseFile(id, Compress(raw))
}

// WriteLooseFile stores already-compressed bytes under id
func (r *Repo) WriteLooseFile(id object.ID, compressed []byte) {
	r.t.Helper()

	h := id.String()
	dir := filepath.Join(r.ObjectsDir, h[:2])
	r.must(os.MkdirAll(dir, 0o755))
	r.must(os.WriteFile(filepath.Join(dir, h[2:]), compressed, 0o444))
}

// Blob writes a loose blob
func (r *Repo) Blob(content string) object.ID {
	r.t.Helper()
	return r.WriteLoose(object.KindBlob, []byte(content))
}

// Tree writes a loose tree
func (r *Repo) Tree(entries ...object.TreeEntry) object.ID {
	r.t.Helper()
	return r.WriteLoose(object.KindTree, (&object.Tree{Entries: entries}).Encode())
}

// CommitData renders a commit payload. Each call advances the fixture
// clock by one minute so histories have distinct committer times.
func (r *Repo) CommitData(tree object.ID, message string, parents ...object.ID) []byte {
	r.clock = r.clock.Add(time.Minute)
	sig := fmt.Sprintf("Test Author <test@example.com> %d +0000", r.clock.Unix())

	c := &object.Commit{
		Tree:      tree,
		Parents:   parents,
		Author:    sig,
		Committer: sig,
		Message:   []byte(message + "\n"),
	}
	return c.Encode()
}

// Commit writes a loose commit
func (r *Repo) Commit(tree object.ID, message string, parents ...object.ID) object.ID {
	r.t.Helper()
	return r.WriteLoose(object.KindCommit, r.CommitData(tree, message, parents...))
}

// Tag writes a loose annotated tag
func (r *Repo) Tag(target object.ID, kind object.Kind, name string) object.ID {
	r.t.Helper()
	tag := &object.Tag{
		Object:  target,
		Type:    kind,
		Name:    name,
		Tagger:  "Test Tagger <tagger@example.com> 1700000000 +0000",
		Message: []byte("tag " + name + "\n"),
	}
	return r.WriteLoose(object.KindTag, tag.Encode())
}

// SetRef writes a loose ref such as "refs/heads/main"
func (r *Repo) SetRef(name string, id object.ID) {
	r.t.Helper()
	r.WriteFile(name, id.String()+"\n")
}

// SetSymbolicRef points name at another ref, e.g. HEAD -> refs/heads/dev
func (r *Repo) SetSymbolicRef(name, target string) {
	r.t.Helper()
	r.WriteFile(name, "ref: "+target+"\n")
}

// WriteFile writes a file relative to the git directory
func (r *Repo) WriteFile(rel, content string) {
	r.t.Helper()
	path := filepath.Join(r.GitDir, filepath.FromSlash(rel))
	r.must(os.MkdirAll(filepath.Dir(path), 0o755))
	r.must(os.WriteFile(path, []byte(content), 0o644))
}

// PackedRefs writes a packed-refs file from "<hex> <name>" lines
func (r *Repo) PackedRefs(lines ...string) {
	r.t.Helper()
	r.WriteFile("packed-refs", "# pack-refs with: peeled fully-peeled sorted \n"+strings.Join(lines, "\n")+"\n")
}

// WritePack writes pack-<sum>.pack and its index into objects/pack and
// returns the index path
func (r *Repo) WritePack(b *PackBuilder, indexVersion int) string {
	r.t.Helper()

	pack, idx, sum := b.Build(indexVersion)
	base := filepath.Join(r.ObjectsDir, "pack", "pack-"+sum.String())
	r.must(os.WriteFile(base+".pack", pack, 0o444))
	r.must(os.WriteFile(base+".idx", idx, 0o444))
	return base + ".idx"
}
