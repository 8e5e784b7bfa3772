package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/afero"
)

func TestIsTorrent(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.torrent", true},
		{"A.TORRENT", true},
		{"dir/b.torrent", true},
		{".hidden.torrent", false},
		{"a.torrent.part", false},
		{"readme.txt", false},
	}
	for _, tt := range tests {
		if got := IsTorrent(tt.name); got != tt.want {
			t.Errorf("IsTorrent(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestList(t *testing.T) {
	in := afero.NewMemMapFs()
	for _, name := range []string{"/b.torrent", "/a.torrent", "/notes.txt", "/.c.torrent"} {
		afero.WriteFile(in, name, []byte("x"), 0644)
	}
	in.MkdirAll("/sub.torrent", 0755)

	s := New(in, afero.NewMemMapFs())
	nodes, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	if want := []string{"a.torrent", "b.torrent"}; !reflect.DeepEqual(names, want) {
		t.Errorf("List() = %v, want %v", names, want)
	}
}

func TestListFileLimit(t *testing.T) {
	in := afero.NewMemMapFs()
	for _, name := range []string{"/a.torrent", "/b.torrent", "/c.torrent"} {
		afero.WriteFile(in, name, []byte("x"), 0644)
	}
	s := New(in, afero.NewMemMapFs())
	s.FileLimit = 2
	nodes, err := s.List()
	if !errors.Is(err, ErrOverFileLimit) || len(nodes) != 2 {
		t.Errorf("List() = %d nodes, %v, want 2 and ErrOverFileLimit", len(nodes), err)
	}
}

func TestWriteTorrentKeepsInput(t *testing.T) {
	in, out := afero.NewMemMapFs(), afero.NewMemMapFs()
	afero.WriteFile(in, "/a.torrent", []byte("original"), 0644)
	s := New(in, out)

	n, err := s.WriteTorrent("a.torrent", []byte("rewritten"))
	if err != nil || n != len("rewritten") {
		t.Fatalf("WriteTorrent() = %d, %v", n, err)
	}
	got, _ := afero.ReadFile(out, "/a.torrent")
	if string(got) != "rewritten" {
		t.Errorf("output = %q, want %q", got, "rewritten")
	}
	orig, _ := s.ReadTorrent("a.torrent")
	if string(orig) != "original" {
		t.Errorf("input = %q, want it untouched", orig)
	}
}

func TestDiskCreatesOutput(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "New", "nested")
	out, err := NewDisk(DiskConfig{BasePath: outDir})
	if err != nil {
		t.Fatal(err)
	}
	s := New(afero.NewMemMapFs(), out)
	for i := 0; i < 2; i++ {
		if _, err := s.WriteTorrent("x.torrent", []byte("d4:infodee")); err != nil {
			t.Fatalf("WriteTorrent() #%d: %v", i, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "x.torrent")); err != nil {
		t.Errorf("output file missing: %v", err)
	}
}

func TestNewDiskRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	os.WriteFile(f, nil, 0644)
	if _, err := NewDisk(DiskConfig{BasePath: f}); err == nil {
		t.Error("NewDisk() on a regular file should fail")
	}
	if _, err := NewDisk(DiskConfig{}); err == nil {
		t.Error("NewDisk() with empty path should fail")
	}
}

func TestCleanConfinesName(t *testing.T) {
	for in, want := range map[string]string{
		"a.torrent":           "/a.torrent",
		"../../etc/x.torrent": "/x.torrent",
		`dir\y.torrent`:       "/y.torrent",
	} {
		if got := clean(in); got != want {
			t.Errorf("clean(%q) = %q, want %q", in, got, want)
		}
	}
}
