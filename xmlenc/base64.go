package xmlenc

import "encoding/base64"

const hrefBase64 = TransformBase64

func init() {
	RegisterTransform(&Klass{
		Name:  "base64",
		Href:  hrefBase64,
		Usage: UsageDSigTransform | UsageEncryptionTransform,
		New:   func() Instance { return &base64Transform{decode: true} },
	})
}

// base64Transform implements the ds:Transform base64 algorithm. The
// algorithm URI alone doesn't say which way to go: an instance created
// from the registry (as a CipherReference's Transforms list does) decodes,
// and NewBase64Transform lets a caller pick either direction. CipherValue
// content is base64-coded by types.go when the XML is read and written,
// not by this transform.
type base64Transform struct {
	decode bool
}

func (t *base64Transform) Klass() *Klass { k, _ := LookupTransform(hrefBase64); return k }

// NewBase64Transform builds a base64 transform instance directly,
// bypassing the registry, since the encode/decode direction must be
// chosen by the caller rather than inferred from the algorithm URI.
func NewBase64Transform(decode bool) *Transform {
	return NewTransform(&base64Transform{decode: decode})
}

func (t *base64Transform) Execute(in *Buffer, last bool) (*Buffer, error) {
	if !last {
		// Single-shot: buffer until the final call.
		return nil, nil
	}
	if t.decode {
		out := make([]byte, base64.StdEncoding.DecodedLen(in.Len()))
		n, err := base64.StdEncoding.Decode(out, in.Bytes())
		if err != nil {
			return nil, wrapError(KindInvalidNodeContent, "base64Transform.Execute", "invalid base64 content", err)
		}
		return NewBufferFromBytes(out[:n]), nil
	}
	return NewBufferFromBytes([]byte(base64.StdEncoding.EncodeToString(in.Bytes()))), nil
}
