package engine

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
)

var (
	log *filteredLogger
)

// filteredLogger shortens info-hashes, and any other 40 hex digit
// argument such as a secure key, to their first six characters.
type filteredLogger struct {
	logger *stdlog.Logger
}

func (f *filteredLogger) filteredArg(v ...interface{}) []interface{} {
	for idx, arg := range v {
		if s, ok := arg.(string); ok && isHash(s) {
			v[idx] = fmt.Sprintf("[%s..]", s[:6])
		}
	}
	return v
}

func isHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

func (f *filteredLogger) Println(v ...interface{}) {
	f.logger.Println(f.filteredArg(v...)...)
}

func (f *filteredLogger) Printf(format string, v ...interface{}) {
	f.logger.Printf(format, f.filteredArg(v...)...)
}

// Rawf prints without shortening, for lines meant to be matched against
// the lookup service.
func (f *filteredLogger) Rawf(format string, v ...interface{}) {
	f.logger.Printf(format, v...)
}

func (f *filteredLogger) Warnf(format string, v ...interface{}) {
	f.logger.Printf("[WARN] "+format, f.filteredArg(v...)...)
}

func (f *filteredLogger) Errorf(format string, v ...interface{}) {
	f.logger.Printf("[ERROR] "+format, f.filteredArg(v...)...)
}

func init() {
	log = &filteredLogger{
		logger: stdlog.New(os.Stdout, "[u2convert] ", stdlog.LstdFlags|stdlog.Lmsgprefix),
	}
}

func SetLoggerFlag(flag int) {
	log.logger.SetFlags(flag | stdlog.Lmsgprefix)
}

func SetLoggerOutput(w io.Writer) {
	log.logger.SetOutput(w)
}
