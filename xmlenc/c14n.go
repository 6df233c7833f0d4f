package xmlenc

import (
	"bytes"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

func init() {
	for _, href := range []string{TransformC14N, TransformExclusiveC14N} {
		href := href
		RegisterTransform(&Klass{
			Name:  "c14n",
			Href:  href,
			Usage: UsageC14NMethod | UsageDSigTransform,
			New:   func() Instance { return &c14nTransform{href: href} },
		})
	}
}

// c14nTransform canonicalizes its input using goxmldsig's canonicalizer,
// the same canonicalization engine signedxml relies on for signature
// validation. Content must be well-formed XML; the transform re-parses
// it with etree before handing it to the canonicalizer because
// goxmldsig canonicalizes *etree.Element trees, not raw bytes.
type c14nTransform struct {
	href         string
	prefixList   []string // InclusiveNamespaces PrefixList, exclusive C14N only
	withComments bool
}

func (t *c14nTransform) Klass() *Klass { k, _ := LookupTransform(t.href); return k }

func (t *c14nTransform) ReadNode(node *etree.Element) error {
	if incl := node.FindElement("./InclusiveNamespaces"); incl != nil {
		if pl := incl.SelectAttrValue("PrefixList", ""); pl != "" {
			t.prefixList = splitPrefixList(pl)
		}
	}
	return nil
}

func (t *c14nTransform) canonicalizer() dsig.Canonicalizer {
	switch t.href {
	case TransformExclusiveC14N:
		return dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList(joinPrefixList(t.prefixList))
	default:
		return dsig.MakeC14N10RecCanonicalizer()
	}
}

func (t *c14nTransform) Execute(in *Buffer, last bool) (*Buffer, error) {
	if !last {
		return nil, nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(in.Bytes()); err != nil {
		return nil, wrapError(KindXMLFailed, "c14nTransform.Execute", "parsing input for canonicalization", err)
	}
	if doc.Root() == nil {
		return nil, newError(KindInvalidNode, "c14nTransform.Execute", "nothing to canonicalize")
	}
	out, err := t.canonicalizer().Canonicalize(doc.Root())
	if err != nil {
		return nil, wrapError(KindXMLFailed, "c14nTransform.Execute", "canonicalization failed", err)
	}
	return NewBufferFromBytes(out), nil
}

func splitPrefixList(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func joinPrefixList(prefixes []string) string {
	var buf bytes.Buffer
	for i, p := range prefixes {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(p)
	}
	return buf.String()
}
