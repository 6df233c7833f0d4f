package xmlenc

import (
	"crypto/rand"

	"github.com/beevik/etree"
)

// Mode records which top-level operation an EncryptionContext has been
// (or is being) used for, enforced alongside the single-use precondition
// below.
type Mode int

const (
	ModeNone Mode = iota
	ModeEncrypt
	ModeDecrypt
)

// EncryptionContext is the stateful driver for one encrypt or decrypt
// operation. It owns the resolved key material, the key manager used to
// find it, and the transform chain the operation ends up running; it is
// single-use, mirroring xmlSecEncCtx's own lifecycle — a context that
// has already produced a result refuses to be reused rather than
// silently clobbering it.
type EncryptionContext struct {
	KeyManager    KeyManager
	AllowURIFetch bool
	Fetcher       URIFetcher

	// KeyAgreementWrapper, when set, wraps the content encryption key via
	// key agreement (X25519KeyAgreement) instead of resolving a named
	// key-encryption key through KeyManager. It replaces wrapKeyInto's
	// target wholesale, since a key-agreement EncryptedKey carries its
	// own AgreementMethod KeyInfo rather than one the caller supplies.
	KeyAgreementWrapper KeyWrapper
	// KeyAgreement, when set, unwraps an EncryptedKey whose KeyInfo
	// carries an AgreementMethod (the recipient side of
	// KeyAgreementWrapper). Named-key EncryptedKeys (AES key wrap, RSA
	// key transport) never consult it.
	KeyAgreement KeyUnwrapper

	mode     Mode
	result   *EncryptedData
	document *etree.Document
}

// NewEncryptionContext returns a context backed by the given key
// manager. doc, if non-nil, is consulted for same-document URI
// resolution (CipherReference URIs of the form "#id").
func NewEncryptionContext(mgr KeyManager, doc *etree.Document) *EncryptionContext {
	return &EncryptionContext{KeyManager: mgr, document: doc}
}

func (ec *EncryptionContext) String() string {
	return "EncryptionContext{mode=" + modeName(ec.mode) + "}"
}

func modeName(m Mode) string {
	switch m {
	case ModeEncrypt:
		return "encrypt"
	case ModeDecrypt:
		return "decrypt"
	default:
		return "none"
	}
}

// FindByID implements DocumentContext for same-document CipherReference
// resolution, delegating to the document this context was constructed
// with.
func (ec *EncryptionContext) FindByID(id string) ([]byte, error) {
	elem := FindByID(ec.document, id)
	if elem == nil {
		return nil, newError(KindInvalidURI, "EncryptionContext.FindByID", "no element with Id="+id+" in document")
	}
	b, err := SerializeElement(elem)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (ec *EncryptionContext) enter(mode Mode) error {
	if ec.result != nil {
		return newError(KindInvalidStatus, "EncryptionContext", "context has already produced a result and cannot be reused")
	}
	ec.mode = mode
	return nil
}

// newContentChain builds the single-stage transform chain for the
// content encryption algorithm, wired for the requested direction, and
// copies the context's AllowURIFetch setting onto it. CipherReference
// resolution runs in a separate chain (see cipherDataChain).
func (ec *EncryptionContext) newContentChain(algorithm string, key []byte, dir cipherDirection) (*Context, error) {
	inst, err := NewTransformInstance(algorithm)
	if err != nil {
		return nil, err
	}
	switch v := inst.(type) {
	case *cbcCipherTransform:
		v.Key, v.Dir = key, dir
	case *gcmCipherTransform:
		v.Key, v.Dir = key, dir
	default:
		return nil, newError(KindInvalidData, "EncryptionContext.newContentChain", "algorithm is not a content cipher: "+algorithm)
	}
	chain := NewContext()
	chain.AllowURIFetch = ec.AllowURIFetch
	chain.Append(NewTransform(inst))
	if err := chain.Prepare(); err != nil {
		return nil, err
	}
	return chain, nil
}

// BinaryEncrypt encrypts data under template's EncryptionMethod and
// writes the ciphertext (and, if a KeyWrapper-style KeyInfo is already
// attached, the wrapped key) into template.CipherData.
//
// Per the resolution of the open question on CipherReference during
// encryption: a template whose CipherData already carries a
// CipherReference is rejected with KindInvalidData. Encryption always
// produces a CipherValue; callers who want the ciphertext stored
// out-of-line must do that themselves after BinaryEncrypt returns.
func (ec *EncryptionContext) BinaryEncrypt(data []byte, template *EncryptedData) (*EncryptedData, error) {
	if err := ec.enter(ModeEncrypt); err != nil {
		return nil, err
	}
	if template == nil || template.EncryptionMethod == nil {
		return nil, newError(KindInvalidNode, "EncryptionContext.BinaryEncrypt", "template has no EncryptionMethod")
	}
	if template.CipherData != nil && template.CipherData.CipherReference != nil {
		return nil, newError(KindInvalidData, "EncryptionContext.BinaryEncrypt", "CipherReference is not valid on an encryption template")
	}

	algorithm := template.EncryptionMethod.Algorithm
	keySize := KeySize(algorithm)
	if keySize == 0 {
		return nil, newError(KindInvalidData, "EncryptionContext.BinaryEncrypt", "unsupported content encryption algorithm "+algorithm)
	}

	cek, err := generateKey(keySize)
	if err != nil {
		return nil, err
	}

	chain, err := ec.newContentChain(algorithm, cek, dirEncrypt)
	if err != nil {
		return nil, err
	}
	out, err := chain.BinaryExecute(data)
	if err != nil {
		return nil, err
	}

	if template.KeyInfo != nil && template.KeyInfo.EncryptedKey != nil {
		if err := ec.wrapKeyInto(template.KeyInfo.EncryptedKey, cek); err != nil {
			return nil, err
		}
	}

	template.CipherData = &CipherData{CipherValue: out.Bytes()}
	ec.result = template
	return template, nil
}

// wrapKeyInto fills in target's CipherData with cek wrapped under
// target's own EncryptionMethod and KeyInfo, using the key manager to
// find the key-encryption key. If ec.KeyAgreementWrapper is set, target
// is replaced wholesale with the EncryptedKey the key-agreement wrapper
// builds (its own KeyInfo carries the AgreementMethod), since there is
// no caller-named key-encryption key to look up in that case.
func (ec *EncryptionContext) wrapKeyInto(target *EncryptedKey, cek []byte) error {
	if target.EncryptionMethod == nil {
		return newError(KindInvalidNode, "EncryptionContext.wrapKeyInto", "EncryptedKey template has no EncryptionMethod")
	}
	if ec.KeyAgreementWrapper != nil {
		wrapped, err := ec.KeyAgreementWrapper.WrapKey(cek, target.EncryptionMethod.Algorithm)
		if err != nil {
			return wrapError(KindFailed, "EncryptionContext.wrapKeyInto", "key agreement wrap failed", err)
		}
		*target = *wrapped
		return nil
	}
	wrapAlg := target.EncryptionMethod.Algorithm
	if !IsKeyWrap(wrapAlg) {
		return newError(KindInvalidData, "EncryptionContext.wrapKeyInto", "only AES key wrap is supported for template-driven key wrap")
	}
	kek, err := resolveKey(ec.KeyManager, target.KeyInfo, wrapAlg)
	if err != nil {
		return err
	}
	chain := NewContext()
	chain.Append(NewTransform(&keyWrapTransform{href: wrapAlg, KEK: kek, Dir: dirEncrypt}))
	out, err := chain.BinaryExecute(cek)
	if err != nil {
		return err
	}
	target.CipherData = &CipherData{CipherValue: out.Bytes()}
	return nil
}

// XmlEncrypt encrypts node (as Element or Content, per typ) and splices
// the resulting EncryptedData element into the document: in node's place
// for Element, or in place of node's element children for Content. It
// returns the EncryptedData element.
func (ec *EncryptionContext) XmlEncrypt(node *etree.Element, typ string, template *EncryptedData) (*etree.Element, error) {
	var plaintext []byte
	var err error
	switch typ {
	case TypeElement:
		plaintext, err = SerializeElement(node)
	case TypeContent:
		plaintext, err = SerializeContent(node)
	default:
		return nil, newError(KindInvalidType, "EncryptionContext.XmlEncrypt", "unsupported encryption type "+typ)
	}
	if err != nil {
		return nil, err
	}
	template.Type = typ

	ed, err := ec.BinaryEncrypt(plaintext, template)
	if err != nil {
		return nil, err
	}
	edElem := ed.ToElement()

	switch typ {
	case TypeElement:
		if err := ReplaceElement(node, edElem); err != nil {
			return nil, err
		}
	case TypeContent:
		ReplaceContent(node, []*etree.Element{edElem})
	}
	return edElem, nil
}

// UriEncrypt reads plaintext from uri (a same-document fragment or, if
// AllowURIFetch is set, an external URI) and encrypts it, returning an
// EncryptedData with the ciphertext inline in CipherValue. There is no
// way to ask this context to write the ciphertext back out to uri —
// that is precisely the CipherReference-on-encrypt case BinaryEncrypt
// rejects.
func (ec *EncryptionContext) UriEncrypt(uri string, template *EncryptedData) (*EncryptedData, error) {
	src := NewContext()
	src.AllowURIFetch = ec.AllowURIFetch
	src.Fetcher = ec.Fetcher
	t, err := src.CreateAndAppend(uriFetchHref)
	if err != nil {
		return nil, err
	}
	if sdoc, ok := t.Instance.(*uriFetchTransform); ok {
		sdoc.SetDocumentContext(ec)
	}
	if err := src.SetURI(uri); err != nil {
		return nil, err
	}
	plaintext, err := src.CreateOutputBuffer()
	if err != nil {
		return nil, err
	}
	return ec.BinaryEncrypt(plaintext.Bytes(), template)
}

// generateKey returns n cryptographically random bytes for use as a
// content encryption key.
func generateKey(n int) ([]byte, error) {
	key := make([]byte, n)
	if _, err := rand.Read(key); err != nil {
		return nil, wrapError(KindFailed, "generateKey", "generating random key", err)
	}
	return key, nil
}

// resolveContentKey finds the key to decrypt ed with, following
// xmlSecEncCtxEncDataNodeRead's own lookup: if KeyInfo carries a nested
// EncryptedKey, that key must itself be unwrapped first (by
// resolveEncryptedKey, one level deep: an EncryptedKey nested inside that
// EncryptedKey's own KeyInfo is not unwrapped in turn); otherwise KeyInfo
// names the content key directly.
func (ec *EncryptionContext) resolveContentKey(ki *KeyInfo, algorithm string) ([]byte, error) {
	if ki != nil && ki.EncryptedKey != nil {
		return ec.resolveEncryptedKey(ki.EncryptedKey)
	}
	return resolveKey(ec.KeyManager, ki, algorithm)
}

// resolveEncryptedKey recovers the plaintext key carried by ek. Two
// cases, depending on what the key manager can do with ek's own
// KeyInfo:
//
//   - AES key wrap: the key manager returns the raw key-encryption key
//     (a KeyStore entry), and this method runs the AES key unwrap
//     transform itself over ek.CipherData.CipherValue.
//   - RSA key transport against an HSM-resident private key: the key
//     manager (PKCS11KeyManager) performs the unwrap itself, since the
//     private key cannot leave the token, and returns the already
//     recovered plaintext key directly.
func (ec *EncryptionContext) resolveEncryptedKey(ek *EncryptedKey) ([]byte, error) {
	if ek.EncryptionMethod == nil || ek.CipherData == nil {
		return nil, newError(KindInvalidNode, "EncryptionContext.resolveEncryptedKey", "EncryptedKey missing EncryptionMethod or CipherData")
	}
	if ek.KeyInfo != nil && ek.KeyInfo.AgreementMethod != nil {
		if ec.KeyAgreement == nil {
			return nil, newError(KindKeyNotFound, "EncryptionContext.resolveEncryptedKey", "EncryptedKey uses key agreement but no KeyAgreement unwrapper is configured")
		}
		cek, err := ec.KeyAgreement.UnwrapKey(ek)
		if err != nil {
			return nil, wrapError(KindFailed, "EncryptionContext.resolveEncryptedKey", "key agreement unwrap failed", err)
		}
		return cek, nil
	}
	wrapAlg := ek.EncryptionMethod.Algorithm

	// The KeyManager interface only carries a KeyInfo, but a PKCS#11
	// manager needs the wrapped bytes and digest off ek itself to
	// perform the unwrap token-side. Alias them in via a shallow copy
	// rather than mutating the caller's parsed KeyInfo.
	ki := ek.KeyInfo
	if ki == nil {
		ki = &KeyInfo{}
	}
	if ki.EncryptedKey == nil {
		aliased := *ki
		aliased.EncryptedKey = ek
		ki = &aliased
	}

	key, err := resolveKey(ec.KeyManager, ki, wrapAlg)
	if err != nil {
		return nil, err
	}
	if !IsKeyWrap(wrapAlg) {
		// RSA key transport: the key manager already unwrapped it.
		return key, nil
	}
	if ek.CipherData.CipherValue == nil {
		return nil, newError(KindInvalidData, "EncryptionContext.resolveEncryptedKey", "EncryptedKey has no CipherValue to unwrap")
	}
	chain := NewContext()
	chain.Append(NewTransform(&keyWrapTransform{href: wrapAlg, KEK: key, Dir: dirDecrypt}))
	out, err := chain.BinaryExecute(ek.CipherData.CipherValue)
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// cipherDataChain builds the transform chain that recovers raw
// ciphertext from ed's CipherData: a direct pass-through for CipherValue
// (the base64 decoding already happened when the template was parsed,
// standing in for xmlsec1's auto-inserted base64 decode transform), or
// a URI fetch followed by ed's own declared Transforms for
// CipherReference, where no base64 decode is implicit — a CipherValue's
// text is inherently base64, a CipherReference's fetched bytes are not,
// so any decoding it needs must be spelled out in its Transforms list.
func (ec *EncryptionContext) cipherDataChain(cd *CipherData) (*Context, []byte, error) {
	if cd == nil {
		return nil, nil, newError(KindInvalidNode, "EncryptionContext.cipherDataChain", "EncryptedType has no CipherData")
	}
	if cd.CipherValue != nil {
		return nil, cd.CipherValue, nil
	}
	if cd.CipherReference == nil {
		return nil, nil, newError(KindInvalidData, "EncryptionContext.cipherDataChain", "CipherData has neither CipherValue nor CipherReference")
	}

	chain := NewContext()
	chain.AllowURIFetch = ec.AllowURIFetch
	chain.Fetcher = ec.Fetcher
	t, err := chain.CreateAndAppend(uriFetchHref)
	if err != nil {
		return nil, nil, err
	}
	if sdoc, ok := t.Instance.(*uriFetchTransform); ok {
		sdoc.SetDocumentContext(ec)
	}
	if err := chain.SetURI(cd.CipherReference.URI); err != nil {
		return nil, nil, err
	}
	for _, tr := range cd.CipherReference.Transforms {
		if _, err := chain.CreateAndAppend(tr.Algorithm); err != nil {
			return nil, nil, err
		}
	}
	return chain, nil, nil
}

// DecryptToBuffer recovers and returns the plaintext of ed without
// touching any DOM: the counterpart to BinaryEncrypt.
func (ec *EncryptionContext) DecryptToBuffer(ed *EncryptedData) (*Buffer, error) {
	if err := ec.enter(ModeDecrypt); err != nil {
		return nil, err
	}
	if ed == nil || ed.EncryptionMethod == nil {
		return nil, newError(KindInvalidNode, "EncryptionContext.DecryptToBuffer", "EncryptedData has no EncryptionMethod")
	}
	algorithm := ed.EncryptionMethod.Algorithm

	cek, err := ec.resolveContentKey(ed.KeyInfo, algorithm)
	if err != nil {
		return nil, err
	}

	srcChain, inline, err := ec.cipherDataChain(ed.CipherData)
	if err != nil {
		return nil, err
	}
	var ciphertext []byte
	if srcChain != nil {
		out, err := srcChain.CreateOutputBuffer()
		if err != nil {
			return nil, err
		}
		ciphertext = out.Bytes()
	} else {
		ciphertext = inline
	}

	contentChain, err := ec.newContentChain(algorithm, cek, dirDecrypt)
	if err != nil {
		return nil, err
	}
	out, err := contentChain.BinaryExecute(ciphertext)
	if err != nil {
		return nil, err
	}
	ec.result = ed
	return out, nil
}

// Decrypt recovers ed's plaintext and splices it into the document in
// place of encNode, the element the EncryptedData itself was parsed
// from, but only when Type is Element or Content. The returned element
// is the recovered plaintext root (Type=Element), the first recovered
// sibling (Type=Content), or encNode itself, left untouched, for any
// other Type — the recovered bytes for that case are not necessarily
// XML, so callers needing them should use DecryptToBuffer directly.
func (ec *EncryptionContext) Decrypt(encNode *etree.Element) (*etree.Element, error) {
	ed, err := ParseEncryptedData(encNode)
	if err != nil {
		return nil, err
	}
	plaintext, err := ec.DecryptToBuffer(ed)
	if err != nil {
		return nil, err
	}

	switch ed.Type {
	case TypeContent:
		children, err := ParseFragmentChildren(plaintext.Bytes())
		if err != nil {
			return nil, err
		}
		parent := encNode.Parent()
		if parent == nil {
			return nil, newError(KindInvalidNode, "EncryptionContext.Decrypt", "EncryptedData element has no parent")
		}
		index := childIndex(parent, encNode)
		parent.RemoveChild(encNode)
		for i, c := range children {
			parent.InsertChildAt(index+i, c)
		}
		if len(children) == 0 {
			return nil, nil
		}
		return children[0], nil
	case TypeElement:
		elem, err := ParseFragment(plaintext.Bytes())
		if err != nil {
			return nil, err
		}
		if err := ReplaceElement(encNode, elem); err != nil {
			return nil, err
		}
		return elem, nil
	default:
		// Type is absent or names a MIME type rather than Element or
		// Content: the recovered plaintext is not necessarily XML, so
		// there is nothing to splice into the document. encNode is left
		// untouched; callers that need the recovered bytes directly
		// should call DecryptToBuffer instead.
		return encNode, nil
	}
}
