package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	eglog "github.com/anacrolix/log"
	"github.com/boypt/u2convert/lookup"
	"github.com/boypt/u2convert/storage"
	"github.com/boypt/u2convert/tracker"
	"github.com/dustin/go-humanize"
)

const defaultSettle = 2 * time.Second

// Engine converts the torrents of the input directory, one batch of
// lookups at a time.
type Engine struct {
	config Config
	store  *storage.Storage
	client *lookup.Client

	// watch mode
	settle  time.Duration
	onWatch func()
}

func New(c Config, apiURL string) (*Engine, error) {
	in, err := storage.NewDisk(storage.DiskConfig{BasePath: c.InputDirectory})
	if err != nil {
		return nil, err
	}
	out, err := storage.NewDisk(storage.DiskConfig{BasePath: c.OutputDirectory})
	if err != nil {
		return nil, err
	}
	client := lookup.NewClient(apiURL)
	client.Log = log
	if c.Debug {
		client.Trace = eglog.Default
	}
	return NewWithStorage(c, storage.New(in, out), client), nil
}

func NewWithStorage(c Config, s *storage.Storage, client *lookup.Client) *Engine {
	return &Engine{
		config: c,
		store:  s,
		client: client,
		settle: defaultSettle,
	}
}

// candidates maps the info-hash of every torrent to convert onto its file
// name. order keeps first-seen order, which fixes batch boundaries.
type candidates struct {
	order []string
	paths map[string]string
}

func newCandidates() *candidates {
	return &candidates{paths: map[string]string{}}
}

// add records name under hash. A hash seen before keeps its position but
// now points at name; the replaced name is returned.
func (cs *candidates) add(hash, name string) (prev string, dup bool) {
	prev, dup = cs.paths[hash]
	if !dup {
		cs.order = append(cs.order, hash)
	}
	cs.paths[hash] = name
	return prev, dup
}

// Run converts every torrent of the input directory.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	nodes, err := e.store.List()
	if errors.Is(err, storage.ErrOverFileLimit) {
		log.Warnf("more than %d torrents in %s, only the first ones are converted", len(nodes), e.config.InputDirectory)
	} else if err != nil {
		return nil, err
	}
	return e.Convert(ctx, nodes)
}

// Convert looks up and rewrites the given input files. Batches run strictly
// one after another; a failed batch is skipped, an invalid key or a canceled
// ctx ends the run with an error.
func (e *Engine) Convert(ctx context.Context, nodes []*storage.Node) (*Summary, error) {
	sum := &Summary{started: time.Now()}
	cs := e.scan(nodes, sum)
	batches := lookup.Plan(cs.order)
	sum.Candidates = len(cs.order)
	sum.Batches = len(batches)
	if len(batches) == 0 {
		log.Printf("no torrent announcing to %s, nothing to look up", e.config.TrackerDomain)
		return sum.finish(), nil
	}

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			sum.Aborted = true
			return sum.finish(), err
		}
		state, err := e.client.Execute(ctx, b, func(b lookup.Batch, resps []lookup.Response) {
			e.correlate(cs, b, resps, sum)
		})
		switch state {
		case lookup.Done:
			sum.DoneBatches++
		case lookup.Failed:
			sum.FailedBatches++
			log.Errorf("[batch %d] abandoned, %d torrents left unchanged: %v", b.Index, len(b.Requests), err)
		default:
			sum.Aborted = true
			return sum.finish(), err
		}
	}
	return sum.finish(), nil
}

func (e *Engine) scan(nodes []*storage.Node, sum *Summary) *candidates {
	cs := newCandidates()
	limit := e.config.MaxSize()
	for _, n := range nodes {
		sum.Scanned++
		if limit > 0 && n.Size > limit {
			log.Warnf("skip %s: %s is over MaxTorrentSize %s", n.Name, humanize.IBytes(uint64(n.Size)), e.config.MaxTorrentSize)
			sum.Skipped++
			continue
		}
		mi, err := e.load(n.Name)
		if err != nil {
			log.Warnf("skip %s: %v", n.Name, err)
			sum.FileErrors++
			continue
		}
		if !tracker.Matches(mi.MetaInfo, e.config.TrackerDomain) {
			continue
		}
		hash := tracker.InfoHash(mi.MetaInfo)
		log.Rawf("%s %s", n.Name, hash)
		if prev, dup := cs.add(hash, n.Name); dup {
			log.Warnf("%s and %s share info-hash %s, only %s is converted", prev, n.Name, hash, n.Name)
			sum.Duplicates++
		}
	}
	return cs
}

// correlate matches each response to its request by id, and through the
// request's hash to the file, so a key only ever reaches its own torrent.
func (e *Engine) correlate(cs *candidates, b lookup.Batch, resps []lookup.Response, sum *Summary) {
	byID := b.ByID()
	answered := make(map[int]bool, len(resps))
	for _, r := range resps {
		req, ok := byID[r.ID]
		if !ok {
			log.Errorf("[batch %d] response id %d matches no request", b.Index, r.ID)
			sum.Anomalies++
			continue
		}
		answered[r.ID] = true
		hash := req.Hash()
		name, ok := cs.paths[hash]
		if !ok {
			log.Errorf("[batch %d] file of info-hash %s is not found", b.Index, hash)
			sum.Anomalies++
			continue
		}
		if r.Error != nil {
			log.Printf("%s: %d %s", name, r.Error.Code, r.Error.Message)
			sum.ItemErrors++
			continue
		}
		if r.Result == "" {
			log.Warnf("%s: empty secure key", name)
			sum.ItemErrors++
			continue
		}
		n, err := e.rewrite(name, r.Result)
		if err != nil {
			log.Errorf("%s: %v", name, err)
			sum.FileErrors++
			continue
		}
		sum.Rewritten++
		sum.BytesWritten += int64(n)
	}
	for _, req := range b.Requests {
		if !answered[req.ID] {
			log.Warnf("[batch %d] no answer for %s (id %d)", b.Index, cs.paths[req.Hash()], req.ID)
			sum.Anomalies++
		}
	}
}

func (e *Engine) rewrite(name, key string) (int, error) {
	mi, err := e.load(name)
	if err != nil {
		return 0, err
	}
	if tracker.Rewrite(mi.MetaInfo, e.config.TrackerDomain, e.config.SecureEndpoint, key) == 0 {
		return 0, fmt.Errorf("no %s tracker left to rewrite", e.config.TrackerDomain)
	}
	data, err := mi.Encode()
	if err != nil {
		return 0, err
	}
	n, err := e.store.WriteTorrent(name, data)
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	return n, nil
}

func (e *Engine) load(name string) (*tracker.Torrent, error) {
	data, err := e.store.ReadTorrent(name)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return tracker.Decode(data)
}
