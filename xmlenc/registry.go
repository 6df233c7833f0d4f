package xmlenc

import "sync"

// registry maps an algorithm URI to the Klass registered to handle it.
// xmlsec1 keeps one process-wide table of these; we do the same with a
// package-level registry guarded by a mutex, since registration normally
// happens once at program init via RegisterTransform.
type registry struct {
	mu     sync.RWMutex
	klasss map[string]*Klass
}

var defaultRegistry = &registry{klasss: make(map[string]*Klass)}

// RegisterTransform makes k available under k.Href. Re-registering the
// same Href replaces the previous klass, which lets callers override a
// built-in transform (e.g. swap in a hardened XSLT processor) without
// forking this package.
func RegisterTransform(k *Klass) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.klasss[k.Href] = k
}

// LookupTransform returns the klass registered for href, if any.
func LookupTransform(href string) (*Klass, bool) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	k, ok := defaultRegistry.klasss[href]
	return k, ok
}

// NewTransformInstance looks up href and constructs a fresh Instance,
// returning KindInvalidURI if nothing is registered under it.
func NewTransformInstance(href string) (Instance, error) {
	k, ok := LookupTransform(href)
	if !ok {
		return nil, newError(KindInvalidURI, "NewTransformInstance", "no transform registered for "+href)
	}
	return k.New(), nil
}
