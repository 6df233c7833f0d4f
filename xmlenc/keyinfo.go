package xmlenc

// KeyManager resolves a KeyInfo to the raw key material needed to carry
// out an operation, the "key manager hook" every encrypt/decrypt
// operation consults before it pushes any cipher bytes. Implementations
// range from a static in-memory KeyStore to an HSM-backed
// PKCS11KeyManager (see keymanager.go).
type KeyManager interface {
	// FindKey returns key material matching ki for the given algorithm
	// URI (content or key-transport), or an *Error with KindKeyNotFound
	// if nothing matches. Lookup order follows KeyName first, then
	// X509Data, matching the traversal xmlsec1's keys manager performs.
	FindKey(ki *KeyInfo, algorithm string) ([]byte, error)
}

// KeyReq describes what kind of key an operation needs, used by
// KeyManager implementations that hold more than one kind of credential
// (e.g. distinct encryption vs signing keys under the same name).
type KeyReq struct {
	Algorithm string
	ForWrite  bool // true when resolving a key to encrypt with, not decrypt
}

// resolveKey asks mgr for the key matching ki; the order in which ki's
// children are tried is the manager's own (KeyStore: KeyName, then
// X509Data). It fails with KindKeyNotFound when there is no manager or
// KeyInfo, or when the manager returns no key material. Nested
// EncryptedKeys are unwrapped by EncryptionContext.resolveContentKey, not
// here. This enforces the "no cipher bytes
// pushed before a key match" invariant: callers must obtain key material
// via resolveKey before constructing any cipher transform.
func resolveKey(mgr KeyManager, ki *KeyInfo, algorithm string) ([]byte, error) {
	if mgr == nil {
		return nil, newError(KindKeyNotFound, "resolveKey", "no key manager configured")
	}
	if ki == nil {
		return nil, newError(KindKeyNotFound, "resolveKey", "no KeyInfo to resolve")
	}
	key, err := mgr.FindKey(ki, algorithm)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, newError(KindKeyNotFound, "resolveKey", "key manager returned no key material")
	}
	return key, nil
}
