package xmlenc

func init() {
	for _, href := range []string{AlgorithmAES128CBC, AlgorithmAES192CBC, AlgorithmAES256CBC} {
		href := href
		RegisterTransform(&Klass{
			Name:  "aes-cbc",
			Href:  href,
			Usage: UsageEncryptionTransform,
			New:   func() Instance { return &cbcCipherTransform{href: href} },
		})
	}
	for _, href := range []string{AlgorithmAES128GCM, AlgorithmAES192GCM, AlgorithmAES256GCM} {
		href := href
		RegisterTransform(&Klass{
			Name:  "aes-gcm",
			Href:  href,
			Usage: UsageEncryptionTransform,
			New:   func() Instance { return &gcmCipherTransform{href: href} },
		})
	}
	for _, href := range []string{AlgorithmAES128KW, AlgorithmAES192KW, AlgorithmAES256KW} {
		href := href
		RegisterTransform(&Klass{
			Name:  "aes-kw",
			Href:  href,
			Usage: UsageEncryptionTransform,
			New:   func() Instance { return &keyWrapTransform{href: href} },
		})
	}
}

// cipherDirection chooses whether a cipher transform instance encrypts
// or decrypts; the algorithm URI alone doesn't say which, so
// EncryptionContext sets this explicitly after constructing the
// instance, the same way it must set the key.
type cipherDirection int

const (
	dirEncrypt cipherDirection = iota
	dirDecrypt
)

// cbcCipherTransform wraps the AES-CBC primitives in keywrap.go as a
// registered Executor klass, so the transform chain can drive content
// encryption/decryption the same way it drives any other stage.
type cbcCipherTransform struct {
	href string
	Key  []byte
	Dir  cipherDirection
}

func (t *cbcCipherTransform) Klass() *Klass { k, _ := LookupTransform(t.href); return k }

func (t *cbcCipherTransform) Prepare() error {
	if len(t.Key) != KeySize(t.href) {
		return newError(KindInvalidData, "cbcCipherTransform.Prepare", "key size does not match algorithm")
	}
	return nil
}

func (t *cbcCipherTransform) Execute(in *Buffer, last bool) (*Buffer, error) {
	if !last {
		return nil, nil
	}
	if t.Dir == dirEncrypt {
		ct, err := AESCBCEncrypt(t.Key, in.Bytes())
		if err != nil {
			return nil, wrapError(KindFailed, "cbcCipherTransform.Execute", "AES-CBC encryption failed", err)
		}
		return NewBufferFromBytes(ct), nil
	}
	pt, err := AESCBCDecrypt(t.Key, in.Bytes())
	if err != nil {
		return nil, wrapError(KindFailed, "cbcCipherTransform.Execute", "AES-CBC decryption failed", err)
	}
	return NewBufferFromBytes(pt), nil
}

// gcmCipherTransform is the AES-GCM counterpart of cbcCipherTransform.
type gcmCipherTransform struct {
	href string
	Key  []byte
	Dir  cipherDirection
	AAD  []byte
}

func (t *gcmCipherTransform) Klass() *Klass { k, _ := LookupTransform(t.href); return k }

func (t *gcmCipherTransform) Prepare() error {
	if len(t.Key) != KeySize(t.href) {
		return newError(KindInvalidData, "gcmCipherTransform.Prepare", "key size does not match algorithm")
	}
	return nil
}

func (t *gcmCipherTransform) Execute(in *Buffer, last bool) (*Buffer, error) {
	if !last {
		return nil, nil
	}
	if t.Dir == dirEncrypt {
		ct, err := AESGCMEncrypt(t.Key, in.Bytes(), t.AAD)
		if err != nil {
			return nil, wrapError(KindFailed, "gcmCipherTransform.Execute", "AES-GCM encryption failed", err)
		}
		return NewBufferFromBytes(ct), nil
	}
	pt, err := AESGCMDecrypt(t.Key, in.Bytes(), t.AAD)
	if err != nil {
		return nil, wrapError(KindFailed, "gcmCipherTransform.Execute", "AES-GCM decryption failed", err)
	}
	return NewBufferFromBytes(pt), nil
}

// keyWrapTransform wraps RFC 3394 AES Key Wrap as a registered klass,
// used for the key-transport step of EncryptedKey rather than content
// encryption.
type keyWrapTransform struct {
	href string
	KEK  []byte
	Dir  cipherDirection
}

func (t *keyWrapTransform) Klass() *Klass { k, _ := LookupTransform(t.href); return k }

func (t *keyWrapTransform) Execute(in *Buffer, last bool) (*Buffer, error) {
	if !last {
		return nil, nil
	}
	if t.Dir == dirEncrypt {
		wrapped, err := AESKeyWrap(t.KEK, in.Bytes())
		if err != nil {
			return nil, wrapError(KindFailed, "keyWrapTransform.Execute", "AES key wrap failed", err)
		}
		return NewBufferFromBytes(wrapped), nil
	}
	unwrapped, err := AESKeyUnwrap(t.KEK, in.Bytes())
	if err != nil {
		return nil, wrapError(KindFailed, "keyWrapTransform.Execute", "AES key unwrap failed", err)
	}
	return NewBufferFromBytes(unwrapped), nil
}
