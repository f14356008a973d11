// Package curry turns ordinary Go functions into addressable chat callbacks.
// A registry maps stable identifiers to handler functions; a Callback pairs
// an identifier with bound arguments and renders to a wire token that a
// button press later resolves back into a call.
package curry

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"sync"

	"recurry/pkg/host"
	"recurry/pkg/token"
)

var (
	// ErrUnknownCallback reports a token whose identifier has no registered
	// handler in this process.
	ErrUnknownCallback = errors.New("unknown callback target")

	// ErrDuplicateIdentifier reports two different functions deriving the
	// same identifier.
	ErrDuplicateIdentifier = errors.New("duplicate callback identifier")
)

var (
	hostContextType = reflect.TypeOf((*host.Context)(nil)).Elem()
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
)

type handler struct {
	id   string
	name string
	fn   reflect.Value
	typ  reflect.Type
}

// Registry holds the process-wide set of callback handlers. Registration
// normally happens at startup; lookups are concurrent.
type Registry struct {
	log *slog.Logger

	mu       sync.RWMutex
	handlers map[string]*handler
	byPtr    map[uintptr]string
}

// NewRegistry returns an empty registry logging through log.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:      log.With("component", "curry.registry"),
		handlers: make(map[string]*handler),
		byPtr:    make(map[uintptr]string),
	}
}

// Register derives an identifier for fn and stores it as a callback handler.
// Registering the same function twice is a no-op returning the existing
// identifier. The function's first parameter must be an interface that
// host.Context satisfies; it may return nothing, an error, a value, or a
// value and an error.
func (r *Registry) Register(fn any) (string, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "", fmt.Errorf("register callback: not a function: %T", fn)
	}
	name := runtime.FuncForPC(v.Pointer()).Name()
	if err := validateSignature(v.Type()); err != nil {
		return "", fmt.Errorf("register callback %s: %w", name, err)
	}
	return r.register(token.FuncID(fn), name, v)
}

// MustRegister is Register panicking on error, for package-level handler
// declarations.
func (r *Registry) MustRegister(fn any) string {
	id, err := r.Register(fn)
	if err != nil {
		panic(err)
	}
	return id
}

// Curry registers fn if needed and returns a Callback with args bound. The
// callback serializes to a token carrying the bound arguments, so a button
// built from it re-invokes fn with them after any number of restarts.
func (r *Registry) Curry(fn any, args ...any) (*Callback, error) {
	id, err := r.Register(fn)
	if err != nil {
		return nil, err
	}
	return &Callback{reg: r, id: id, args: cloneArgs(args)}, nil
}

// MustCurry is Curry panicking on error.
func (r *Registry) MustCurry(fn any, args ...any) *Callback {
	cb, err := r.Curry(fn, args...)
	if err != nil {
		panic(err)
	}
	return cb
}

// Tree registers a nested map of handlers under dotted path identifiers.
// Map values are either functions or further map[string]any levels; a
// function under Tree("menu", ...) at key "settings" gets the identifier
// derived from "menu.settings". Path-registered functions keep their path
// identifier when later passed to Curry.
func (r *Registry) Tree(prefix string, nodes map[string]any) error {
	return r.tree([]string{prefix}, nodes)
}

func (r *Registry) tree(path []string, nodes map[string]any) error {
	for key, node := range nodes {
		sub := append(append([]string(nil), path...), key)
		switch n := node.(type) {
		case map[string]any:
			if err := r.tree(sub, n); err != nil {
				return err
			}
		default:
			v := reflect.ValueOf(node)
			if v.Kind() != reflect.Func || v.IsNil() {
				return fmt.Errorf("register tree %v: not a function or subtree: %T", sub, node)
			}
			name := runtime.FuncForPC(v.Pointer()).Name()
			if err := validateSignature(v.Type()); err != nil {
				return fmt.Errorf("register tree %v (%s): %w", sub, name, err)
			}
			if _, err := r.register(token.PathID(sub...), name, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) register(id, name string, v reflect.Value) (string, error) {
	ptr := v.Pointer()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byPtr[ptr]; ok {
		return existing, nil
	}
	if existing, ok := r.handlers[id]; ok {
		return "", fmt.Errorf("%w: %s already names %s", ErrDuplicateIdentifier, id, existing.name)
	}

	r.handlers[id] = &handler{id: id, name: name, fn: v, typ: v.Type()}
	r.byPtr[ptr] = id
	r.log.Debug("callback registered", "id", id, "name", name)
	return id, nil
}

// Lookup returns a bare Callback for an already-registered identifier.
func (r *Registry) Lookup(id string) (*Callback, bool) {
	r.mu.RLock()
	_, ok := r.handlers[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return &Callback{reg: r, id: id}, true
}

// Execute resolves id and calls its handler with the given arguments,
// coercing each to the handler's parameter types. The invoked identifier is
// recorded as the session's last action.
func (r *Registry) Execute(hc host.Context, id string, args ...any) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCallback, id)
	}

	if st := hc.State(); st != nil {
		st.LastAction = id
	}
	return call(h, hc, args)
}

func validateSignature(t reflect.Type) error {
	if t.NumIn() < 1 {
		return errors.New("first parameter must accept the host context")
	}
	first := t.In(0)
	if first.Kind() != reflect.Interface || !hostContextType.Implements(first) {
		return fmt.Errorf("first parameter %s must be an interface satisfied by host.Context", first)
	}
	switch t.NumOut() {
	case 0, 1:
	case 2:
		if t.Out(1) != errorType {
			return fmt.Errorf("second result must be error, got %s", t.Out(1))
		}
	default:
		return fmt.Errorf("too many results: %d", t.NumOut())
	}
	return nil
}

func cloneArgs(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	return append([]any(nil), args...)
}
