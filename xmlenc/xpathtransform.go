package xmlenc

import "github.com/beevik/etree"

const hrefXPathFilter = TransformXPath

func init() {
	RegisterTransform(&Klass{
		Name:  "xpath-filter",
		Href:  hrefXPathFilter,
		Usage: UsageDSigTransform | UsageEncryptionTransform,
		New:   func() Instance { return &xpathTransform{} },
	})
}

// xpathTransform implements a same-document XPath filter transform: it
// parses its input as XML and selects the subtree(s) matching a
// caller-supplied path, serializing the matches back out. etree's Path
// support is a practical subset of full XPath 1.0.
type xpathTransform struct {
	expr string
}

func (t *xpathTransform) Klass() *Klass { k, _ := LookupTransform(hrefXPathFilter); return k }

func (t *xpathTransform) ReadNode(node *etree.Element) error {
	if xp := node.FindElement("./XPath"); xp != nil {
		t.expr = xp.Text()
	}
	if t.expr == "" {
		return newError(KindInvalidNodeContent, "xpathTransform.ReadNode", "Transform has no XPath child")
	}
	return nil
}

func (t *xpathTransform) Execute(in *Buffer, last bool) (*Buffer, error) {
	if !last {
		return nil, nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(in.Bytes()); err != nil {
		return nil, wrapError(KindXMLFailed, "xpathTransform.Execute", "parsing input for XPath filter", err)
	}
	matches := doc.FindElements(t.expr)
	if len(matches) == 0 {
		return nil, newError(KindInvalidData, "xpathTransform.Execute", "XPath expression matched nothing")
	}
	out := etree.NewDocument()
	for _, m := range matches {
		out.AddChild(m.Copy())
	}
	b, err := out.WriteToBytes()
	if err != nil {
		return nil, wrapError(KindXMLFailed, "xpathTransform.Execute", "serializing filtered result", err)
	}
	return NewBufferFromBytes(b), nil
}
