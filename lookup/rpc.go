package lookup

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

const (
	Version     = "2.0"
	MethodQuery = "query"

	// BatchSize is the number of queries the service accepts per call.
	BatchSize = 50
)

// Request is one JSON-RPC query for the secure key of an info-hash.
type Request struct {
	JSONRPC string   `json:"jsonrpc"`
	Method  string   `json:"method"`
	Params  []string `json:"params"`
	ID      int      `json:"id"`
}

func NewQuery(hash string, id int) Request {
	return Request{
		JSONRPC: Version,
		Method:  MethodQuery,
		Params:  []string{hash},
		ID:      id,
	}
}

// Hash returns the info-hash the request asks about.
func (r Request) Hash() string {
	if len(r.Params) == 0 {
		return ""
	}
	return r.Params[0]
}

type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  string `json:"result,omitempty"`
	ID      int    `json:"id"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a per-item failure reported by the service, e.g. a hash it does
// not know. It never fails the whole batch.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

// Batch is a window of up to BatchSize requests. Request ids are 1-based
// and only unique within the batch.
type Batch struct {
	Index    int
	Requests []Request
}

// Plan slices hashes, in order, into batches of BatchSize. No hashes means
// no batches.
func Plan(hashes []string) []Batch {
	chunks := lo.Chunk(hashes, BatchSize)
	batches := make([]Batch, 0, len(chunks))
	for i, chunk := range chunks {
		reqs := make([]Request, len(chunk))
		for j, h := range chunk {
			reqs[j] = NewQuery(h, j+1)
		}
		batches = append(batches, Batch{Index: i, Requests: reqs})
	}
	return batches
}

func (b Batch) Body() ([]byte, error) {
	return json.Marshal(b.Requests)
}

// ByID indexes the batch requests by their id.
func (b Batch) ByID() map[int]Request {
	m := make(map[int]Request, len(b.Requests))
	for _, r := range b.Requests {
		m[r.ID] = r
	}
	return m
}
