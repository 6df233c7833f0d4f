package xmlenc

import "github.com/beevik/etree"

// Context holds an ordered chain of transforms and drives bytes through
// all of them in sequence, the way a <ds:Transforms> list (or a
// CipherReference's own Transforms) is processed: each transform's
// output becomes the next transform's input.
//
// This is distinct from Transform's own per-instance status machine:
// Context owns the chain and the "is this the last push" bookkeeping
// across the whole pipeline, while Transform owns a single stage.
type Context struct {
	chain  []*Transform
	status Status
	uri    string

	// AllowURIFetch gates whether the chain's URI-fetch stage may resolve
	// an external (non same-document) URI at all when the chain is
	// executed (SetURI only records the URI). Defaults to false: callers must
	// opt in, since resolving attacker-controlled CipherReference URIs
	// against the network or filesystem is exactly the kind of thing a
	// security-sensitive library must not do silently.
	AllowURIFetch bool

	// Fetcher resolves external (non same-document) URIs when
	// AllowURIFetch is set. A nil Fetcher falls back to HTTPFetcher.
	Fetcher URIFetcher
}

// NewContext returns an empty transform chain.
func NewContext() *Context {
	return &Context{}
}

// Append adds an already-constructed transform to the end of the chain.
func (c *Context) Append(t *Transform) {
	c.chain = append(c.chain, t)
}

// Prepend adds a transform to the front of the chain, used when a
// caller-supplied pre-processing step (such as a canonicalization
// forced by policy) must run before anything read from the document.
func (c *Context) Prepend(t *Transform) {
	c.chain = append([]*Transform{t}, c.chain...)
}

// CreateAndAppend looks up href in the registry and appends a fresh
// instance wrapped as a Transform.
func (c *Context) CreateAndAppend(href string) (*Transform, error) {
	inst, err := NewTransformInstance(href)
	if err != nil {
		return nil, err
	}
	t := NewTransform(inst)
	c.Append(t)
	return t, nil
}

// CreateAndPrepend is the Prepend counterpart of CreateAndAppend.
func (c *Context) CreateAndPrepend(href string) (*Transform, error) {
	inst, err := NewTransformInstance(href)
	if err != nil {
		return nil, err
	}
	t := NewTransform(inst)
	c.Prepend(t)
	return t, nil
}

// NodeRead constructs a transform from a single <ds:Transform> element:
// it reads the Algorithm attribute, looks up the klass, and if the
// instance implements NodeReader, gives it the element to pull its own
// configuration from (e.g. XSLT's embedded stylesheet, an XPath filter's
// expression).
func (c *Context) NodeRead(node *etree.Element) (*Transform, error) {
	href := node.SelectAttrValue("Algorithm", "")
	if href == "" {
		return nil, newError(KindInvalidNodeContent, "Context.NodeRead", "Transform element missing Algorithm attribute")
	}
	t, err := c.CreateAndAppend(href)
	if err != nil {
		return nil, err
	}
	if reader, ok := t.Instance.(NodeReader); ok {
		if err := reader.ReadNode(node); err != nil {
			return nil, wrapError(KindXMLFailed, "Context.NodeRead", "reading transform node", err)
		}
	}
	return t, nil
}

// NodesListRead walks every <ds:Transform> child of node in document
// order and appends one chain entry per child, mirroring the way a
// CipherReference's Transforms list or a dsig Reference's Transforms
// list is processed: order matters, each transform's output feeds the
// next.
func (c *Context) NodesListRead(node *etree.Element) error {
	for _, child := range node.ChildElements() {
		if child.Tag != "Transform" {
			continue
		}
		if _, err := c.NodeRead(child); err != nil {
			return err
		}
	}
	return nil
}

// SetURI marks the chain's first stage as driven directly from uri
// instead of node content, for URISetter-capable klasses (same-document
// XPointer or an external fetch transform). If no transform is
// registered yet, a bare URI-fetch transform is created to serve as the
// chain's source.
func (c *Context) SetURI(uri string) error {
	c.uri = uri
	if len(c.chain) == 0 {
		if _, err := c.CreateAndAppend(hrefForURI(uri)); err != nil {
			return err
		}
	}
	first := c.chain[0]
	setter, ok := first.Instance.(URISetter)
	if !ok {
		return newError(KindInvalidURI, "Context.SetURI", "first transform in chain cannot be driven by URI")
	}
	return setter.SetURI(uri, c)
}

// hrefForURI picks the klass registered to source data directly from a
// URI: the internal same-document/external fetch transform.
func hrefForURI(uri string) string {
	return uriFetchHref
}

// Prepare readies every transform in the chain for execution. Most
// klasses need no preparation; this exists as the hook NodeRead-style
// construction leaves for klasses (like a cipher transform) that must
// validate configuration (key present, IV size correct) before the
// first byte flows.
func (c *Context) Prepare() error {
	for _, t := range c.chain {
		if prep, ok := t.Instance.(interface{ Prepare() error }); ok {
			if err := prep.Prepare(); err != nil {
				return err
			}
		}
	}
	return nil
}

// BinaryExecute drives in through every transform in the chain in a
// single final push and returns the last transform's output. This is
// the common case for encrypt/decrypt: the whole plaintext or ciphertext
// is already in memory, so there is exactly one call with last=true.
func (c *Context) BinaryExecute(in []byte) (*Buffer, error) {
	if len(c.chain) == 0 {
		return NewBufferFromBytes(in), nil
	}
	cur := in
	for i, t := range c.chain {
		t.PushInput(cur)
		if err := t.Execute(true); err != nil {
			kind := KindFailed
			if k, ok := KindOf(err); ok {
				kind = k
			}
			return nil, wrapError(kind, "Context.BinaryExecute", "transform "+t.Href()+" failed", err)
		}
		cur = t.DrainOutput()
		_ = i
	}
	c.status = StatusFinished
	return NewBufferFromBytes(cur), nil
}

// CreateOutputBuffer runs the chain (if SetURI drove its source) and
// returns the accumulated result, used by URI-sourced CipherReference
// processing where there is no caller-supplied input buffer at all —
// the first transform produces bytes by resolving its URI.
func (c *Context) CreateOutputBuffer() (*Buffer, error) {
	return c.BinaryExecute(nil)
}

// Len reports how many transforms are chained.
func (c *Context) Len() int { return len(c.chain) }
