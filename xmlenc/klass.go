package xmlenc

import "github.com/beevik/etree"

// Usage flags describe where a transform is legal to appear, mirroring
// the usage bitmask xmlsec1 attaches to each registered transform klass.
type Usage int

const (
	UsageDSigTransform Usage = 1 << iota
	UsageEncryptionTransform
	UsageC14NMethod
	UsageDigestMethod
)

// Klass describes one registered transform kind: its identifying URI and
// which roles it may play. Concrete behavior lives on the Instance a
// Klass produces, exposed through the optional capability interfaces
// below rather than a table of nullable function pointers — a Go
// interface already is that table, and a type either implements a method
// or it doesn't.
type Klass struct {
	Name  string // short identifier, e.g. "xslt", "aes-gcm"
	Href  string // algorithm URI this klass is registered under
	Usage Usage
	New   func() Instance
}

// Instance is the minimum any registered transform must implement: a way
// to identify which klass produced it. Everything else it can do is
// discovered via type assertion against the capability interfaces below.
type Instance interface {
	Klass() *Klass
}

// NodeReader is implemented by transforms that need to pull configuration
// out of their own <ds:Transform> element before execution (e.g. XSLT
// reads its stylesheet from child nodes; an XPath filter reads its
// expression).
type NodeReader interface {
	ReadNode(node *etree.Element) error
}

// Pusher is implemented by streaming transforms that consume input
// incrementally via PushBin rather than waiting for a single Execute
// call with the whole buffer. Transform.Execute calls Executor klasses
// directly and uses PushBin only for klasses that are not Executors, so
// most klasses only implement Executor.
type Pusher interface {
	PushBin(data []byte, final bool) error
}

// Popper is the output-side counterpart to Pusher: transforms that
// produce output incrementally implement this so the context can drain
// them without buffering everything in memory.
type Popper interface {
	PopBin() (data []byte, final bool, err error)
}

// Executor is implemented by single-shot transforms: given a fully
// accumulated input buffer and whether this is the final call in the
// chain, produce the output buffer. XSLT and canonicalization are both
// single-shot in this sense — they need the complete document before
// they can do anything.
type Executor interface {
	Execute(in *Buffer, last bool) (out *Buffer, err error)
}

// URISetter is implemented by transforms that can be driven directly
// from a CipherReference/DataReference URI instead of node content (the
// first transform in a reference chain).
type URISetter interface {
	SetURI(uri string, ctx *Context) error
}
