package tracker

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
)

const (
	DefaultDomain   = "dmhy.org"
	DefaultEndpoint = "https://daydream.dmhy.best/announce"
)

var ErrNoInfo = errors.New("missing info dictionary")

// IsTarget reports whether an announce URL belongs to the tracker domain.
// The locator and the rewriter must agree on this rule.
func IsTarget(announce, domain string) bool {
	return domain != "" && strings.Contains(announce, domain)
}

// Matches reports whether any announce tier of mi carries a URL of domain.
// Torrents without announce-list are judged by their single announce URL.
func Matches(mi *metainfo.MetaInfo, domain string) bool {
	for _, tier := range mi.UpvertedAnnounceList() {
		for _, u := range tier {
			if IsTarget(u, domain) {
				return true
			}
		}
	}
	return false
}

func SecureURL(endpoint, key string) string {
	return endpoint + "?secure=" + key
}

// Rewrite replaces every announce URL of domain with the secure endpoint
// URL for key and returns the number of replaced entries.
func Rewrite(mi *metainfo.MetaInfo, domain, endpoint, key string) int {
	secure := SecureURL(endpoint, key)
	n := 0
	for i, tier := range mi.AnnounceList {
		for j, u := range tier {
			if IsTarget(u, domain) {
				mi.AnnounceList[i][j] = secure
				n++
			}
		}
	}
	if IsTarget(mi.Announce, domain) {
		mi.Announce = secure
		n++
	}
	return n
}

// Torrent is a decoded .torrent file. The top-level dictionary is kept raw
// so that encoding it again only touches the announce keys.
type Torrent struct {
	*metainfo.MetaInfo
	raw map[string]bencode.Bytes
}

func Decode(data []byte) (*Torrent, error) {
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode torrent: %w", err)
	}
	if len(mi.InfoBytes) == 0 {
		return nil, ErrNoInfo
	}
	var raw map[string]bencode.Bytes
	if err := bencode.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode torrent: %w", err)
	}
	return &Torrent{MetaInfo: mi, raw: raw}, nil
}

// Encode writes the torrent back with announce and announce-list taken from
// MetaInfo. Every other key, info included, keeps its original bytes.
func (t *Torrent) Encode() ([]byte, error) {
	out := make(map[string]bencode.Bytes, len(t.raw)+2)
	for k, v := range t.raw {
		out[k] = v
	}
	if err := setKey(out, "announce", t.Announce, t.Announce != ""); err != nil {
		return nil, err
	}
	if err := setKey(out, "announce-list", t.AnnounceList, len(t.AnnounceList) > 0); err != nil {
		return nil, err
	}
	data, err := bencode.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode torrent: %w", err)
	}
	return data, nil
}

// setKey replaces key with the encoding of v. Nothing changes unless
// present is set.
func setKey(m map[string]bencode.Bytes, key string, v interface{}, present bool) error {
	if !present {
		return nil
	}
	b, err := bencode.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m[key] = b
	return nil
}

// InfoHash is the lowercase hex SHA-1 of the raw info dictionary, the key
// the lookup service knows torrents by.
func InfoHash(mi *metainfo.MetaInfo) string {
	return mi.HashInfoBytes().HexString()
}
