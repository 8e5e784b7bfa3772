package lookup

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
)

func hashes(n int) []string {
	hs := make([]string, n)
	for i := range hs {
		hs[i] = fmt.Sprintf("%040x", i)
	}
	return hs
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		sizes []int
	}{
		{"zero", 0, []int{}},
		{"one", 1, []int{1}},
		{"exact", 50, []int{50}},
		{"one over", 51, []int{50, 1}},
		{"many", 120, []int{50, 50, 20}},
		{"two full", 100, []int{50, 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := hashes(tt.n)
			batches := Plan(in)

			sizes := []int{}
			var covered []string
			for i, b := range batches {
				if b.Index != i {
					t.Errorf("batch %d has Index %d", i, b.Index)
				}
				sizes = append(sizes, len(b.Requests))
				for j, r := range b.Requests {
					if r.ID != j+1 {
						t.Errorf("batch %d request %d has id %d, want %d", i, j, r.ID, j+1)
					}
					if r.JSONRPC != Version || r.Method != MethodQuery {
						t.Errorf("request = %+v, want jsonrpc %s method %s", r, Version, MethodQuery)
					}
					covered = append(covered, r.Hash())
				}
			}
			if !reflect.DeepEqual(sizes, tt.sizes) {
				t.Errorf("batch sizes = %v, want %v", sizes, tt.sizes)
			}
			if tt.n > 0 && !reflect.DeepEqual(covered, in) {
				t.Errorf("batches do not cover the input in order")
			}
		})
	}
}

func TestBatchBody(t *testing.T) {
	b := Plan([]string{"aa", "bb"})[0]
	body, err := b.Body()
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"jsonrpc":"2.0","method":"query","params":["aa"],"id":1},{"jsonrpc":"2.0","method":"query","params":["bb"],"id":2}]`
	if string(body) != want {
		t.Errorf("Body() = %s, want %s", body, want)
	}
}

func TestResponseDecode(t *testing.T) {
	raw := `[{"jsonrpc":"2.0","result":"f00","id":1},
		{"jsonrpc":"2.0","result":null,"id":2,"error":{"code":-32001,"message":"torrent not found"}}]`
	var resps []Response
	if err := json.Unmarshal([]byte(raw), &resps); err != nil {
		t.Fatal(err)
	}
	want := []Response{
		{JSONRPC: "2.0", Result: "f00", ID: 1},
		{JSONRPC: "2.0", ID: 2, Error: &Error{Code: -32001, Message: "torrent not found"}},
	}
	if !reflect.DeepEqual(resps, want) {
		t.Errorf("decoded = %+v, want %+v", resps, want)
	}
	if got := resps[1].Error.Error(); got != "-32001 torrent not found" {
		t.Errorf("Error() = %q", got)
	}
}

func TestByID(t *testing.T) {
	b := Plan(hashes(3))[0]
	m := b.ByID()
	for _, r := range b.Requests {
		if m[r.ID].Hash() != r.Hash() {
			t.Errorf("ByID()[%d] = %s, want %s", r.ID, m[r.ID].Hash(), r.Hash())
		}
	}
	if _, ok := m[4]; ok {
		t.Error("ByID() has an id outside the batch")
	}
}
