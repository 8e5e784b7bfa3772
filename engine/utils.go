package engine

import (
	"errors"
	"math"
	"strings"

	"github.com/c2h5oh/datasize"
)

// parseSize reads a human size such as "10MB" or "512 kb". Empty, "0" and
// "unlimited" disable the limit.
func parseSize(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "unlimited", "0", "":
		return 0, nil
	}
	var v datasize.ByteSize
	if err := v.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	if v > math.MaxInt64 {
		return 0, errors.New("size exceeds int64")
	}
	return int64(v), nil
}
