package token

import (
	"crypto/md5"
	"encoding/hex"
	"reflect"
	"runtime"
	"strings"
)

// identifierLen is the fixed length of derived identifiers. Short enough to
// leave room for inline arguments under MaxCallbackData, long enough that the
// digest tail keeps same-named handlers in different packages apart.
const identifierLen = 12

// maxNamePrefix bounds the legible part of an identifier.
const maxNamePrefix = 5

// FuncID derives the stable identifier for a function value. The identifier
// starts with a sanitized prefix of the function's bare name followed by a
// digest of its fully qualified name, so it survives process restarts of the
// same build while remaining unique per function.
//
// Anonymous functions are named funcN by the runtime in declaration order;
// their identifiers shift when surrounding code adds or removes closures, so
// handlers that outlive a wire round-trip should be named functions.
func FuncID(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	full := runtime.FuncForPC(v.Pointer()).Name()
	return nameToID(bareName(full), full)
}

// PathID derives an identifier from an explicit dotted path, for handlers
// registered under a tree of names rather than by function value. Equal paths
// always produce equal identifiers.
func PathID(path ...string) string {
	joined := strings.Join(path, ".")
	bare := joined
	if i := strings.LastIndexByte(joined, '.'); i >= 0 {
		bare = joined[i+1:]
	}
	return nameToID(bare, joined)
}

func nameToID(bare, full string) string {
	prefix := sanitizeName(bare)
	if len(prefix) > maxNamePrefix {
		prefix = prefix[:maxNamePrefix]
	}
	return prefix + hashHex(full)[:identifierLen-len(prefix)]
}

// bareName strips the package path and receiver from a runtime function name:
// "recurry/cmd.glob..func1" becomes "glob..func1", then "func1".
func bareName(full string) string {
	name := full
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func sanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func hashHex(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}
