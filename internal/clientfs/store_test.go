package clientfs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// mapAuth is a fixed key → name table standing in for the registry.
type mapAuth map[uuid.UUID]string

func (m mapAuth) NameOf(id uuid.UUID) (string, bool) {
	name, ok := m[id]
	return name, ok
}

func newTestStore(t *testing.T) (*Store, uuid.UUID, uuid.UUID) {
	t.Helper()
	aliceKey := uuid.New()
	bobKey := uuid.New()
	store, err := NewStore(t.TempDir(), mapAuth{aliceKey: "alice", bobKey: "bob"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, aliceKey, bobKey
}

func TestNewStoreValidation(t *testing.T) {
	if _, err := NewStore("", mapAuth{}); err == nil {
		t.Fatal("empty root accepted")
	}
	if _, err := NewStore(t.TempDir(), nil); err == nil {
		t.Fatal("nil authorizer accepted")
	}
}

func TestPutOpenDeleteLifecycle(t *testing.T) {
	store, aliceKey, _ := newTestStore(t)

	size, err := store.Put(aliceKey, "alice", "notes/todo.txt", strings.NewReader("buy milk"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if size != int64(len("buy milk")) {
		t.Fatalf("size = %d", size)
	}

	res, err := store.Open(aliceKey, "alice", "notes/todo.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer res.File.Close()
	if res.Name != "todo.txt" || res.Size != size {
		t.Fatalf("result = %+v", res)
	}
	body, err := io.ReadAll(res.File)
	if err != nil || string(body) != "buy milk" {
		t.Fatalf("body = %q, err = %v", body, err)
	}

	// Overwrite truncates.
	if _, err := store.Put(aliceKey, "alice", "notes/todo.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	res2, err := store.Open(aliceKey, "alice", "notes/todo.txt")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	res2.File.Close()
	if res2.Size != 1 {
		t.Fatalf("size after overwrite = %d, want 1", res2.Size)
	}

	if err := store.Delete(aliceKey, "alice", "notes/todo.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Open(aliceKey, "alice", "notes/todo.txt"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("open after delete err = %v, want ErrFileNotFound", err)
	}
	if err := store.Delete(aliceKey, "alice", "notes/todo.txt"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("repeat delete err = %v, want ErrFileNotFound", err)
	}
}

func TestAuthorizationMatrix(t *testing.T) {
	store, aliceKey, bobKey := newTestStore(t)
	if _, err := store.Put(aliceKey, "alice", "doc.txt", strings.NewReader("hi")); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Any registered key may read any tree.
	res, err := store.Open(bobKey, "alice", "doc.txt")
	if err != nil {
		t.Fatalf("cross-owner read: %v", err)
	}
	res.File.Close()

	// Only the owner may write or delete.
	if _, err := store.Put(bobKey, "alice", "doc.txt", strings.NewReader("!")); !errors.Is(err, ErrForbidden) {
		t.Fatalf("cross-owner put err = %v, want ErrForbidden", err)
	}
	if err := store.Delete(bobKey, "alice", "doc.txt"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("cross-owner delete err = %v, want ErrForbidden", err)
	}

	// An unregistered key gets nothing at all.
	ghost := uuid.New()
	if _, err := store.Open(ghost, "alice", "doc.txt"); !errors.Is(err, ErrBadAuthorization) {
		t.Fatalf("ghost open err = %v, want ErrBadAuthorization", err)
	}
	if _, err := store.Put(ghost, "alice", "doc.txt", strings.NewReader("!")); !errors.Is(err, ErrBadAuthorization) {
		t.Fatalf("ghost put err = %v, want ErrBadAuthorization", err)
	}
}

func TestTraversalAndEncodingRejected(t *testing.T) {
	store, aliceKey, _ := newTestStore(t)
	if _, err := store.Put(aliceKey, "alice", "doc.txt", strings.NewReader("hi")); err != nil {
		t.Fatalf("put: %v", err)
	}

	cases := []struct {
		name    string
		owner   string
		subpath string
	}{
		{"empty path", "alice", ""},
		{"dot path", "alice", "."},
		{"owner dotdot", "..", "doc.txt"},
		{"owner with separator", "a/b", "doc.txt"},
		{"invalid utf8 path", "alice", string([]byte{0xff, 0xfe})},
		{"invalid utf8 owner", string([]byte{0xff}), "doc.txt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.Open(aliceKey, tc.owner, tc.subpath); !errors.Is(err, ErrEncoding) {
				t.Fatalf("err = %v, want ErrEncoding", err)
			}
		})
	}

	// A leading slash or redundant separators are cleaned, not rejected.
	res, err := store.Open(aliceKey, "alice", "/./doc.txt")
	if err != nil {
		t.Fatalf("cleaned path: %v", err)
	}
	res.File.Close()
}

// Dotdot segments are clamped at the owner's subtree root, never escaping it.
func TestTraversalIsClampedInsideOwnerTree(t *testing.T) {
	store, aliceKey, bobKey := newTestStore(t)
	if _, err := store.Put(bobKey, "bob", "secret.txt", strings.NewReader("bob only")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(aliceKey, "alice", "doc.txt", strings.NewReader("mine")); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Clamps to alice/bob/secret.txt, which does not exist.
	if _, err := store.Open(aliceKey, "alice", "../bob/secret.txt"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("traversal open err = %v, want ErrFileNotFound", err)
	}

	// Clamps to alice/doc.txt: alice's own file, not an escape.
	res, err := store.Open(aliceKey, "alice", "a/../../doc.txt")
	if err != nil {
		t.Fatalf("clamped open: %v", err)
	}
	defer res.File.Close()
	body, _ := io.ReadAll(res.File)
	if string(body) != "mine" {
		t.Fatalf("body = %q, want alice's own file", body)
	}
}

func TestOpenRequiresRegularFile(t *testing.T) {
	store, aliceKey, _ := newTestStore(t)
	if _, err := store.Put(aliceKey, "alice", "dir/inner.txt", strings.NewReader("hi")); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, err := store.Open(aliceKey, "alice", "dir"); !errors.Is(err, ErrNotAFile) {
		t.Fatalf("open dir err = %v, want ErrNotAFile", err)
	}
	if err := store.Delete(aliceKey, "alice", "dir"); !errors.Is(err, ErrNotAFile) {
		t.Fatalf("delete dir err = %v, want ErrNotAFile", err)
	}
}

func TestPutCreatesParentDirectories(t *testing.T) {
	store, aliceKey, _ := newTestStore(t)
	if _, err := store.Put(aliceKey, "alice", "a/b/c/deep.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "alice", "a", "b", "c", "deep.txt")); err != nil {
		t.Fatalf("file missing on disk: %v", err)
	}
}
