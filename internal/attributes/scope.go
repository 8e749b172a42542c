package attributes

import (
	"os"
	"strings"
)

// Scope is the data an expression is evaluated against.
type Scope struct {
	Environ   map[string]string
	Transport string
	Stage     string
	Window    int
	Avg       int64
}

// declared types every variable for expr.Env at compile time.
var declared = map[string]interface{}{
	"env":       map[string]string{},
	"transport": "",
	"stage":     "",
	"window":    0,
	"avg":       int64(0),
}

func (s *Scope) vars() map[string]interface{} {
	environ := s.Environ
	if environ == nil {
		environ = map[string]string{}
	}
	return map[string]interface{}{
		"env":       environ,
		"transport": s.Transport,
		"stage":     s.Stage,
		"window":    s.Window,
		"avg":       s.Avg,
	}
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}
