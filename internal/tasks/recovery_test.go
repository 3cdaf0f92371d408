package tasks

import (
	"path/filepath"
	"reflect"
	"testing"

	tu "github.com/desertthunder/songdl/internal/testing"
)

func TestRecoveryFile(t *testing.T) {
	t.Run("missing file holds nothing", func(t *testing.T) {
		r := NewRecoveryFile(filepath.Join(t.TempDir(), "songs.txt"))
		urls, err := r.Load()
		if err != nil || len(urls) != 0 {
			t.Errorf("Load() = %v, %v", urls, err)
		}
	})

	t.Run("ensure appends only missing urls", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lists", "songs.txt")
		r := NewRecoveryFile(path)

		if err := r.Ensure([]string{"a", "b"}); err != nil {
			t.Fatal(err)
		}
		if err := r.Ensure([]string{"b", "c", "c"}); err != nil {
			t.Fatal(err)
		}

		urls, err := r.Load()
		if err != nil {
			t.Fatal(err)
		}
		if want := []string{"a", "b", "c"}; !reflect.DeepEqual(urls, want) {
			t.Errorf("Load() = %v, want %v", urls, want)
		}
	})

	t.Run("rewrite replaces contents", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "songs.txt")
		tu.MustWriteFile(t, path, "old\n\n  stale  \n")
		r := NewRecoveryFile(path)

		if err := r.Rewrite([]string{"x", "y"}); err != nil {
			t.Fatal(err)
		}
		if got := tu.MustReadFile(t, path); got != "x\ny" {
			t.Errorf("file = %q", got)
		}
	})

	t.Run("load skips blank lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "songs.txt")
		tu.MustWriteFile(t, path, "\nhttps://a\n\n https://b \n")

		urls, err := NewRecoveryFile(path).Load()
		if err != nil {
			t.Fatal(err)
		}
		if want := []string{"https://a", "https://b"}; !reflect.DeepEqual(urls, want) {
			t.Errorf("Load() = %v, want %v", urls, want)
		}
	})
}

func TestFailedList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.txt")
	f := NewFailedList(path)

	if err := f.Append("https://youtu.be/a", "Artist - Song"); err != nil {
		t.Fatal(err)
	}
	if err := f.Append("https://youtu.be/b", "https://youtu.be/b"); err != nil {
		t.Fatal(err)
	}

	want := "https://youtu.be/a - Artist - Song\nhttps://youtu.be/b - https://youtu.be/b\n"
	if got := tu.MustReadFile(t, path); got != want {
		t.Errorf("file = %q, want %q", got, want)
	}

	entries, err := f.Load()
	if err != nil {
		t.Fatal(err)
	}
	wantEntries := []FailedEntry{
		{URL: "https://youtu.be/a", Display: "Artist - Song"},
		{URL: "https://youtu.be/b", Display: "https://youtu.be/b"},
	}
	if !reflect.DeepEqual(entries, wantEntries) {
		t.Errorf("Load() = %+v", entries)
	}
	if err := f.Clear(); err != nil {
		t.Fatal(err)
	}
	tu.AssertNoFile(t, path)
	if err := f.Clear(); err != nil {
		t.Errorf("clearing a missing list: %v", err)
	}
}
