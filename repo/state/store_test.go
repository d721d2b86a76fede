package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hildam/relay-flow-go/entity/conf"
)

// failingStore 读取总是失败的存储
type failingStore struct {
	*MemoryStore
}

func (f failingStore) Load(_ context.Context, key string) (string, error) {
	return "", errors.Join(ErrReadFailed, errors.New("disk on fire"))
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "opportunities_found", want: "opportunities_found.txt"},
		{key: "opportunities_found.txt", want: "opportunities_found.txt"},
		{key: "memory.md", want: "memory.md"},
		{key: "  dancers_found ", want: "dancers_found.txt"},
		{key: "", wantErr: true},
		{key: "..", wantErr: true},
		{key: "../etc/passwd", wantErr: true},
		{key: "nested/key", wantErr: true},
		{key: `win\key`, wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeKey(tt.key)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("NormalizeKey(%q) err = %v, want ErrInvalidKey", tt.key, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeKey(%q) unexpected err: %v", tt.key, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

// runStoreSuite 对任意 Store 实现执行相同的用例
func runStoreSuite(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadMissing", func(t *testing.T) {
		_, err := s.Load(ctx, "never_written")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		ok, err := s.Exists(ctx, "never_written")
		if err != nil || ok {
			t.Fatalf("Exists = %v, %v; want false, nil", ok, err)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		if _, err := s.Save(ctx, "result", "hello"); err != nil {
			t.Fatal(err)
		}
		got, err := s.Load(ctx, "result")
		if err != nil {
			t.Fatal(err)
		}
		if got != "hello" {
			t.Fatalf("expected hello, got %q", got)
		}
	})

	t.Run("ExtensionAddressesSameSlot", func(t *testing.T) {
		if _, err := s.Save(ctx, "same_slot", "v1"); err != nil {
			t.Fatal(err)
		}
		got, err := s.Load(ctx, "same_slot.txt")
		if err != nil {
			t.Fatal(err)
		}
		if got != "v1" {
			t.Fatalf("expected v1, got %q", got)
		}
		ok, err := s.Exists(ctx, "same_slot.txt")
		if err != nil || !ok {
			t.Fatalf("Exists = %v, %v; want true, nil", ok, err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_, _ = s.Save(ctx, "ow", "v1")
		_, _ = s.Save(ctx, "ow.txt", "v2")
		got, err := s.Load(ctx, "ow")
		if err != nil {
			t.Fatal(err)
		}
		if got != "v2" {
			t.Fatalf("expected v2 after overwrite, got %q", got)
		}
	})

	t.Run("InvalidKey", func(t *testing.T) {
		if _, err := s.Save(ctx, "../escape", "x"); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey, got %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	runStoreSuite(t, s)

	loc, err := s.Save(context.Background(), "opportunities_found", "festival list")
	if err != nil {
		t.Fatal(err)
	}
	if loc != filepath.Join(dir, "opportunities_found.txt") {
		t.Fatalf("unexpected location %s", loc)
	}
	data, err := os.ReadFile(loc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "festival list" {
		t.Fatalf("file content = %q", data)
	}
}

func TestFileStoreReadFailure(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	// 与槽位同名的目录无法作为文件读取
	if err := os.Mkdir(filepath.Join(dir, "broken.txt"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err = s.Load(context.Background(), "broken")
	if !errors.Is(err, ErrReadFailed) {
		t.Fatalf("expected ErrReadFailed, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("read failure must not look like a missing slot")
	}
}

func TestCachedStore(t *testing.T) {
	inner := NewMemoryStore()
	s, err := NewCachedStore(inner, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	runStoreSuite(t, s)

	ctx := context.Background()
	_, _ = s.Save(ctx, "cached", "v1")
	if got, _ := s.Load(ctx, "cached"); got != "v1" {
		t.Fatalf("expected v1, got %q", got)
	}
	s.cache.Wait()

	_, _ = s.Save(ctx, "cached", "v2")
	got, err := s.Load(ctx, "cached")
	if err != nil {
		t.Fatal(err)
	}
	if got != "v2" {
		t.Fatalf("expected v2 after save invalidation, got %q", got)
	}
}

func TestSaveStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok := SaveStatus(ctx, s, "opportunities_found", "x")
	if ok != "Saved state to memory://opportunities_found.txt" {
		t.Fatalf("unexpected status %q", ok)
	}

	failed := SaveStatus(ctx, s, "../x", "x")
	if !strings.HasPrefix(failed, "Failed to save state ../x:") {
		t.Fatalf("unexpected status %q", failed)
	}
}

func TestGetContextPlaceholders(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, _ = s.Save(ctx, "b", "second")
	_, _ = s.Save(ctx, "empty", "")

	got := GetContext(ctx, s, []string{"a", "b", "empty"})
	want := "--- a ---\n(No data found)\n" +
		"\n--- b ---\nsecond\n" +
		"\n--- empty ---\n(No data found)\n"
	if got != want {
		t.Fatalf("GetContext mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestGetContextReadFailure(t *testing.T) {
	s := failingStore{NewMemoryStore()}
	got := GetContext(context.Background(), s, []string{"a"})
	if !strings.HasPrefix(got, "--- a ---\n(Read failed: ") {
		t.Fatalf("unexpected context %q", got)
	}
}

func TestLoadOptional(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, _ = s.Save(ctx, "full", "v")
	_, _ = s.Save(ctx, "empty", "")

	if _, ok, err := LoadOptional(ctx, s, "missing"); ok || err != nil {
		t.Fatalf("missing: ok = %v, err = %v", ok, err)
	}
	if _, ok, err := LoadOptional(ctx, s, "empty"); ok || err != nil {
		t.Fatalf("empty: ok = %v, err = %v", ok, err)
	}
	if v, ok, err := LoadOptional(ctx, s, "full"); !ok || err != nil || v != "v" {
		t.Fatalf("full: v = %q, ok = %v, err = %v", v, ok, err)
	}
	if _, _, err := LoadOptional(ctx, failingStore{s}, "full"); !errors.Is(err, ErrReadFailed) {
		t.Fatalf("expected ErrReadFailed, got %v", err)
	}
}

func TestNewBackends(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, conf.StoreConfig{Backend: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("expected *MemoryStore, got %T", s)
	}

	s, err = New(ctx, conf.StoreConfig{Backend: "file", Dir: t.TempDir(), CacheBytes: 1 << 20})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*CachedStore); !ok {
		t.Fatalf("expected *CachedStore, got %T", s)
	}
	_ = Close(s)

	if _, err := New(ctx, conf.StoreConfig{Backend: "tape"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
