// Package xslt registers the XSLT transform with the xmlenc transform
// registry. It is kept separate from the core xmlenc package, the way a
// database/sql driver is kept separate from database/sql: the XSLT
// algorithm is the one pluggable stream transform most callers won't
// need, and its dependency (libxslt via cgo) shouldn't be forced on
// every consumer of the core package. Import it for side effects where
// XSLT transforms are required:
//
//	import _ "github.com/leifj/xmlenc-engine/xmlenc/xslt"
package xslt

import (
	"github.com/beevik/etree"
	libxslt "github.com/wamuir/go-xslt"

	"github.com/leifj/xmlenc-engine/xmlenc"
)

func init() {
	xmlenc.RegisterTransform(&xmlenc.Klass{
		Name:  "xslt",
		Href:  xmlenc.TransformXSLT,
		Usage: xmlenc.UsageDSigTransform | xmlenc.UsageEncryptionTransform,
		New:   func() xmlenc.Instance { return &transform{} },
	})
}

// transform compiles a stylesheet from the child nodes of its own
// ds:Transform element, then applies it to the accumulated input buffer
// once the chain signals last=true. This mirrors xmlSecXsltReadNode /
// xmlSecXsltExecute: the stylesheet itself isn't a streaming document,
// so there is nothing useful to do with partial input — real work only
// happens once the whole document has arrived.
type transform struct {
	stylesheet []byte
	compiled   *libxslt.Stylesheet
}

func (t *transform) Klass() *xmlenc.Klass {
	k, _ := xmlenc.LookupTransform(xmlenc.TransformXSLT)
	return k
}

// ReadNode serializes the Transform element's children (the embedded
// xsl:stylesheet) back to bytes and keeps them for compilation at first
// Execute, exactly as xmlSecXsltReadNode buffers the subtree before
// calling xsltParseStylesheetDoc.
func (t *transform) ReadNode(node *etree.Element) error {
	doc := etree.NewDocument()
	found := false
	for _, child := range node.ChildElements() {
		doc.AddChild(child.Copy())
		found = true
	}
	if !found {
		return xmlenc.NewXSLTError("no embedded stylesheet found in Transform node")
	}
	b, err := doc.WriteToBytes()
	if err != nil {
		return xmlenc.WrapXSLTError("serializing embedded stylesheet", err)
	}
	t.stylesheet = b
	return nil
}

// Execute runs the compiled stylesheet against the chain's accumulated
// input once last is true, gating real work the same way the original's
// state machine does: nothing happens on intermediate calls, and once the
// transform has finished, Transform.Execute never reaches Execute again
// (it returns nil when no new input is pending and rejects the call
// otherwise).
func (t *transform) Execute(in *xmlenc.Buffer, last bool) (*xmlenc.Buffer, error) {
	if !last {
		return nil, nil
	}
	if t.stylesheet == nil {
		return nil, xmlenc.NewXSLTError("Execute called before a stylesheet was read")
	}
	if t.compiled == nil {
		ss, err := libxslt.NewStylesheet(t.stylesheet)
		if err != nil {
			return nil, xmlenc.WrapXSLTError("compiling stylesheet", err)
		}
		t.compiled = ss
	}
	out, err := t.compiled.Transform(in.Bytes())
	if err != nil {
		return nil, xmlenc.WrapXSLTError("applying stylesheet", err)
	}
	return xmlenc.NewBufferFromBytes(out), nil
}
