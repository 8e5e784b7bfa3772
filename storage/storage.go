package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

const TorrentExt = ".torrent"

var DefaultFileLimit = 100000

var ErrOverFileLimit = errors.New("over file limit")

// Storage pairs the read-only input area holding the original torrents
// with the output area receiving rewritten copies under the same names.
type Storage struct {
	FileLimit int
	in, out   afero.Fs
}

func New(in, out afero.Fs) *Storage {
	return &Storage{
		FileLimit: DefaultFileLimit,
		in:        in,
		out:       out,
	}
}

type Node struct {
	Name string
	Size int64
}

func IsTorrent(name string) bool {
	return strings.EqualFold(path.Ext(name), TorrentExt) && !strings.HasPrefix(path.Base(name), ".")
}

// List returns the torrent files at the root of the input area, sorted by
// name. Hidden and non-regular files are skipped.
func (s *Storage) List() ([]*Node, error) {
	infos, err := afero.ReadDir(s.in, "/")
	if err != nil {
		return nil, fmt.Errorf("list input: %w", err)
	}
	var nodes []*Node
	for _, info := range infos {
		if !info.Mode().IsRegular() || !IsTorrent(info.Name()) {
			continue
		}
		if len(nodes) >= s.FileLimit {
			return nodes, ErrOverFileLimit
		}
		nodes = append(nodes, newNode(info))
	}
	return nodes, nil
}

// Stat returns the node for a single input file.
func (s *Storage) Stat(name string) (*Node, error) {
	info, err := s.in.Stat(clean(name))
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", name)
	}
	return newNode(info), nil
}

func (s *Storage) ReadTorrent(name string) ([]byte, error) {
	return afero.ReadFile(s.in, clean(name))
}

// WriteTorrent stores data in the output area, creating it when missing,
// and returns the number of bytes written.
func (s *Storage) WriteTorrent(name string, data []byte) (int, error) {
	if err := s.out.MkdirAll("/", os.ModePerm); err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	if err := afero.WriteFile(s.out, clean(name), data, 0644); err != nil {
		return 0, err
	}
	return len(data), nil
}

func newNode(info os.FileInfo) *Node {
	return &Node{
		Name: info.Name(),
		Size: info.Size(),
	}
}

// clean confines name to the root of an area.
func clean(name string) string {
	return "/" + path.Base(strings.ReplaceAll(name, "\\", "/"))
}
