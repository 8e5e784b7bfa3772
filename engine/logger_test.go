package engine

import (
	"bytes"
	"io"
	"reflect"
	"strings"
	"testing"
)

func Test_filteredLogger_filteredArg(t *testing.T) {
	type args struct {
		v []interface{}
	}
	tests := []struct {
		name string
		args args
		want []interface{}
	}{
		{"short", args{v: []interface{}{"123"}}, []interface{}{"123"}},
		{"hash", args{v: []interface{}{"abcdef1234567890abcdef1234567890abcdef12"}}, []interface{}{"[abcdef..]"}},
		{"mixed", args{v: []interface{}{"abcdef1234567890abcdef1234567890abcdef12", "123"}}, []interface{}{"[abcdef..]", "123"}},
		{"41 chars", args{v: []interface{}{"1abcdef1234567890abcdef1234567890abcdef12"}}, []interface{}{"1abcdef1234567890abcdef1234567890abcdef12"}},
		{"not hex", args{v: []interface{}{"episode-01-the-beginning-1080p.torrent.x"}}, []interface{}{"episode-01-the-beginning-1080p.torrent.x"}},
		{"non string", args{v: []interface{}{40, 3.5}}, []interface{}{40, 3.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := log.filteredArg(tt.args.v...); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("filteredLogger.filteredArg() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_filteredLogger_Warnf(t *testing.T) {
	var buf bytes.Buffer
	SetLoggerOutput(&buf)
	defer SetLoggerOutput(io.Discard)

	log.Warnf("skip %s: %s", "a.torrent", "abcdef1234567890abcdef1234567890abcdef12")
	out := buf.String()
	if !strings.Contains(out, "[u2convert] [WARN] skip a.torrent: [abcdef..]") {
		t.Errorf("log output = %q", out)
	}
}
