package object

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"gitty.dev/cli/internal/core/domain"
)

const sampleCommit = "tree 4b825dc642cb6eb9a060e54bf8d69288fbee4904\n" +
	"parent 1111111111111111111111111111111111111111\n" +
	"parent 2222222222222222222222222222222222222222\n" +
	"author A U Thor <author@example.com> 1700000000 +0100\n" +
	"committer C O Mitter <committer@example.com> 1700000100 -0530\n" +
	"encoding ISO-8859-1\n" +
	"gpgsig -----BEGIN PGP SIGNATURE-----\n" +
	" \n" +
	" iQGzBAABCAAdFiEEgJI70ezQ5DZnHcjpujNQaGyRhgYFAmWAUvoACgkQujNQaGyR\n" +
	" -----END PGP SIGNATURE-----\n" +
	"\n" +
	"Merge branches\n\nWith a body.\n"

const sampleTag = "object 4b825dc642cb6eb9a060e54bf8d69288fbee4904\n" +
	"type tree\n" +
	"tag v1.0\n" +
	"tagger T Agger <tagger@example.com> 1700000000 +0000\n" +
	"\n" +
	"Release 1.0\n"

func TestHash_KnownValues(t *testing.T) {
	// Well-known ids: the empty tree and the empty blob.
	assert.Equal(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904", Hash(KindTree, nil).String())
	assert.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", Hash(KindBlob, nil).String())
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", Hash(KindBlob, []byte("hello\n")).String())
}

func TestObject_Verify(t *testing.T) {
	obj := New(KindBlob, []byte("hello\n"))
	require.NoError(t, obj.Verify())

	obj.Data = []byte("tampered\n")
	err := obj.Verify()
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindCorrupt))
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindCommit, KindTree, KindBlob, KindTag} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
		assert.True(t, k.Valid())
	}

	_, err := ParseKind("ofs-delta")
	assert.Error(t, err)
	assert.False(t, Kind(6).Valid())
}

func TestParseCommit(t *testing.T) {
	c, err := ParseCommit([]byte(sampleCommit))
	require.NoError(t, err)

	assert.Equal(t, MustParseID("4b825dc642cb6eb9a060e54bf8d69288fbee4904"), c.Tree)
	require.Len(t, c.Parents, 2)
	assert.Equal(t, "2222222222222222222222222222222222222222", c.Parents[1].String())
	assert.Equal(t, "A U Thor <author@example.com> 1700000000 +0100", c.Author)
	assert.Equal(t, "ISO-8859-1", c.Encoding)
	assert.Equal(t, "Merge branches", c.Subject())

	sig, ok := c.Header("gpgsig")
	require.True(t, ok)
	assert.Equal(t, "-----BEGIN PGP SIGNATURE-----\n\niQGzBAABCAAdFiEEgJI70ezQ5DZnHcjpujNQaGyRhgYFAmWAUvoACgkQujNQaGyR\n-----END PGP SIGNATURE-----", sig)

	assert.Equal(t, sampleCommit, string(c.Encode()), "commit should re-encode byte for byte")
}

func TestParseCommit_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"MissingTree", "author a <a> 1 +0000\ncommitter c <c> 1 +0000\n\nmsg"},
		{"MissingAuthor", "tree " + emptyTreeHex + "\ncommitter c <c> 1 +0000\n\nmsg"},
		{"MissingCommitter", "tree " + emptyTreeHex + "\nauthor a <a> 1 +0000\n\nmsg"},
		{"BadTree", "tree xyz\nauthor a <a> 1 +0000\ncommitter c <c> 1 +0000\n\n"},
		{"BadParent", "tree " + emptyTreeHex + "\nparent 123\nauthor a <a> 1 +0000\ncommitter c <c> 1 +0000\n\n"},
		{"LeadingContinuation", " orphan\n\n"},
		{"HeaderWithoutValue", "tree\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommit([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParseTag(t *testing.T) {
	tag, err := ParseTag([]byte(sampleTag))
	require.NoError(t, err)

	want := &Tag{
		Object:  MustParseID(emptyTreeHex),
		Type:    KindTree,
		Name:    "v1.0",
		Tagger:  "T Agger <tagger@example.com> 1700000000 +0000",
		Message: []byte("Release 1.0\n"),
	}
	if diff := cmp.Diff(want, tag); diff != "" {
		t.Errorf("ParseTag() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, sampleTag, string(tag.Encode()))
}

func TestParseTag_WithoutTagger(t *testing.T) {
	data := "object " + emptyTreeHex + "\ntype tree\ntag ancient\n\nold tag\n"
	tag, err := ParseTag([]byte(data))
	require.NoError(t, err)
	assert.Empty(t, tag.Tagger)
	assert.Equal(t, data, string(tag.Encode()))
}

func TestParseTag_RejectsUnknownType(t *testing.T) {
	_, err := ParseTag([]byte("object " + emptyTreeHex + "\ntype widget\ntag x\n\n"))
	assert.Error(t, err)
}

func TestParseTree(t *testing.T) {
	blob := Hash(KindBlob, []byte("hello\n"))
	sub := Hash(KindTree, nil)

	want := &Tree{Entries: []TreeEntry{
		{Mode: ModeBlob, Name: "README", ID: blob},
		{Mode: ModeExecutable, Name: "build.sh", ID: blob},
		{Mode: ModeTree, Name: "docs", ID: sub},
		{Mode: ModeGitlink, Name: "vendor", ID: sub},
	}}

	got, err := ParseTree(want.Encode())
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseTree() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, KindBlob, got.Entries[0].Type())
	assert.Equal(t, KindTree, got.Entries[2].Type())
	assert.Equal(t, KindCommit, got.Entries[3].Type())
	assert.Equal(t, "040000 tree 4b825dc642cb6eb9a060e54bf8d69288fbee4904\tdocs", got.Entries[2].String())

	entry, ok := got.Find("build.sh")
	assert.True(t, ok)
	assert.Equal(t, ModeExecutable, entry.Mode)
}

func TestParseTree_RejectsMalformed(t *testing.T) {
	tests := map[string][]byte{
		"missing mode":  []byte(" name\x00"),
		"bad mode":      []byte("9x9 name\x00" + string(make([]byte, 20))),
		"no terminator": []byte("100644 name"),
		"empty name":    []byte("100644 \x00" + string(make([]byte, 20))),
		"truncated id":  []byte("100644 name\x00abc"),
		"missing space": []byte("100644"),
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTree(data)
			assert.Error(t, err)
		})
	}
}

func TestObject_Pretty(t *testing.T) {
	blob := Hash(KindBlob, []byte("x"))
	tree := &Tree{Entries: []TreeEntry{{Mode: ModeBlob, Name: "a.txt", ID: blob}}}
	obj := New(KindTree, tree.Encode())

	var buf bytes.Buffer
	require.NoError(t, obj.Pretty(&buf))
	assert.Equal(t, "100644 blob "+blob.String()+"\ta.txt\n", buf.String())

	buf.Reset()
	require.NoError(t, New(KindCommit, []byte(sampleCommit)).Pretty(&buf))
	assert.Equal(t, sampleCommit, buf.String())
}

func TestObject_Decode(t *testing.T) {
	c, err := New(KindCommit, []byte(sampleCommit)).Decode()
	require.NoError(t, err)
	assert.Equal(t, KindCommit, c.Kind())

	_, err = New(KindCommit, []byte("garbage")).Decode()
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindCorrupt))
}

func TestParseSignature(t *testing.T) {
	sig, err := ParseSignature("A U Thor <author@example.com> 1700000000 -0530")
	require.NoError(t, err)

	assert.Equal(t, "A U Thor", sig.Name)
	assert.Equal(t, "author@example.com", sig.Email)
	assert.Equal(t, int64(1700000000), sig.When.Unix())
	_, offset := sig.When.Zone()
	assert.Equal(t, -(5*3600 + 30*60), offset)
	assert.Equal(t, "-0530", sig.When.Format("-0700"))

	bare, err := ParseSignature("Nobody <nobody@example.com>")
	require.NoError(t, err)
	assert.True(t, bare.When.IsZero())

	_, err = ParseSignature("no email here 123 +0000")
	assert.Error(t, err)
	_, err = ParseSignature("x <y> notanumber +0000")
	assert.Error(t, err)
	_, err = ParseSignature("x <y> 1 0100")
	assert.Error(t, err)
}

// TestCommit_PropertyBased_EncodeRoundTrip tests that any commit built
// from well-formed fields decodes back to itself
func TestCommit_PropertyBased_EncodeRoundTrip(t *testing.T) {
	line := rapid.StringMatching(`[A-Za-z][A-Za-z .]{0,20} <[a-z]{1,8}@example\.com> [0-9]{1,10} [+-][01][0-9][0-5][0-9]`)

	rapid.Check(t, func(t *rapid.T) {
		c := &Commit{
			Tree:      drawID(t, "tree"),
			Parents:   rapid.SliceOfN(rapid.Custom(func(t *rapid.T) ID { return drawID(t, "parent") }), 0, 3).Draw(t, "parents"),
			Author:    line.Draw(t, "author"),
			Committer: line.Draw(t, "committer"),
			Message:   []byte(rapid.StringMatching(`[ -~\n]{0,60}`).Draw(t, "message")),
		}
		if rapid.Bool().Draw(t, "signed") {
			body := rapid.SliceOfN(rapid.StringMatching(`[A-Za-z0-9+/=]{0,30}`), 1, 4).Draw(t, "sig")
			c.Extra = []ExtraHeader{{Name: "gpgsig", Value: joinLines(body)}}
		}

		got, err := ParseCommit(c.Encode())
		require.NoError(t, err)
		if len(c.Parents) == 0 {
			c.Parents = nil
		}
		if len(c.Message) == 0 {
			c.Message = nil
			got.Message = nil
		}
		if diff := cmp.Diff(c, got); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
	})
}

func joinLines(lines []string) string {
	var buf bytes.Buffer
	for i, l := range lines {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(l)
	}
	return buf.String()
}

func TestSignature_When(t *testing.T) {
	sig, err := ParseSignature("x <y> 0 +0000")
	require.NoError(t, err)
	assert.True(t, sig.When.Equal(time.Unix(0, 0)))
}
