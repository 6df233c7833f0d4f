package xmlenc

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"sync"

	"github.com/ThalesGroup/crypto11"
)

// KeyStore is a static, in-memory KeyManager keyed by ds:KeyName and by
// X.509 certificate DER bytes, the simplest case: symmetric keys or
// unwrapped private keys the caller already has on hand.
type KeyStore struct {
	mu       sync.RWMutex
	byName   map[string][]byte
	byCertDE map[string][]byte // keyed by DER-encoded certificate bytes
}

// NewKeyStore returns an empty KeyStore.
func NewKeyStore() *KeyStore {
	return &KeyStore{byName: make(map[string][]byte), byCertDE: make(map[string][]byte)}
}

// AddNamedKey registers key material under a ds:KeyName value.
func (s *KeyStore) AddNamedKey(name string, key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byName[name] = key
}

// AddCertificateKey registers key material associated with a
// certificate, looked up by its DER bytes when a KeyInfo carries
// X509Data instead of (or in addition to) a KeyName.
func (s *KeyStore) AddCertificateKey(certDER, key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCertDE[string(certDER)] = key
}

// FindKey implements KeyManager, trying KeyName first and X509Data
// second, matching the lookup order xmlsec1's keys manager performs.
func (s *KeyStore) FindKey(ki *KeyInfo, algorithm string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ki.KeyName != "" {
		if key, ok := s.byName[ki.KeyName]; ok {
			return key, nil
		}
	}
	if ki.X509Data != nil {
		if key, ok := s.byCertDE[string(ki.X509Data.X509Certificate)]; ok {
			return key, nil
		}
	}
	return nil, newError(KindKeyNotFound, "KeyStore.FindKey", "no key matches the supplied KeyInfo")
}

// PKCS11KeyManager resolves ds:KeyName to an HSM-resident private key
// via crypto11 and uses it to perform RSA key-transport unwrap
// operations (rsa-1_5 / rsa-oaep / rsa-oaep-mgf1p) without the private
// key ever leaving the token. It does not support symmetric content
// keys directly — those are unwrapped with the RSA key and handed back
// as plaintext, same as any other decrypt key manager.
type PKCS11KeyManager struct {
	ctx *crypto11.Context
}

// NewPKCS11KeyManager opens a session against a PKCS#11 token using the
// supplied crypto11 configuration (module path, token label, PIN).
func NewPKCS11KeyManager(cfg *crypto11.Config) (*PKCS11KeyManager, error) {
	ctx, err := crypto11.Configure(cfg)
	if err != nil {
		return nil, wrapError(KindFailed, "NewPKCS11KeyManager", "opening PKCS#11 session", err)
	}
	return &PKCS11KeyManager{ctx: ctx}, nil
}

// Close releases the underlying PKCS#11 session.
func (m *PKCS11KeyManager) Close() error {
	return m.ctx.Close()
}

// FindKey resolves ki.KeyName to an HSM-resident RSA private key and
// unwraps the EncryptedKey nested under ki using it; the unwrap happens
// here because the private key cannot leave the token. When ki carries
// no EncryptedKey with a CipherValue, FindKey fails with KindInvalidData.
func (m *PKCS11KeyManager) FindKey(ki *KeyInfo, algorithm string) ([]byte, error) {
	if ki.KeyName == "" {
		return nil, newError(KindKeyNotFound, "PKCS11KeyManager.FindKey", "KeyInfo has no KeyName to resolve against the token")
	}
	signer, err := m.ctx.FindKeyPair(nil, []byte(ki.KeyName))
	if err != nil {
		return nil, wrapError(KindKeyNotFound, "PKCS11KeyManager.FindKey", "looking up key pair on token", err)
	}
	if signer == nil {
		return nil, newError(KindKeyNotFound, "PKCS11KeyManager.FindKey", "no key pair named "+ki.KeyName+" on token")
	}

	decrypter, ok := signer.(crypto.Decrypter)
	if !ok {
		return nil, newError(KindInvalidType, "PKCS11KeyManager.FindKey", "token key does not support decryption")
	}

	wrapped := wrappedKeyBytes(ki)
	if wrapped == nil {
		return nil, newError(KindInvalidData, "PKCS11KeyManager.FindKey", "KeyInfo carries no wrapped key to unwrap")
	}

	switch algorithm {
	case AlgorithmRSAOAEP, AlgorithmRSAOAEP11:
		return decrypter.Decrypt(rand.Reader, wrapped, &rsa.OAEPOptions{Hash: oaepDigest(ki)})
	case AlgorithmRSAv15:
		return decrypter.Decrypt(rand.Reader, wrapped, nil)
	default:
		return nil, newError(KindInvalidData, "PKCS11KeyManager.FindKey", "unsupported key transport algorithm "+algorithm)
	}
}

// wrappedKeyBytes extracts the CipherValue carrying the wrapped key from
// an EncryptedKey nested under ki, if present. resolveEncryptedKey aliases
// ki.EncryptedKey to the EncryptedKey actually being unwrapped before
// calling FindKey, since the KeyManager interface only carries a KeyInfo.
func wrappedKeyBytes(ki *KeyInfo) []byte {
	if ki.EncryptedKey == nil || ki.EncryptedKey.CipherData == nil {
		return nil
	}
	return ki.EncryptedKey.CipherData.CipherValue
}

// oaepDigest reads the digest algorithm declared on the EncryptedKey
// being unwrapped, falling back to SHA-1 for bare rsa-oaep-mgf1p (the
// legacy encoding with no explicit ds:DigestMethod child).
func oaepDigest(ki *KeyInfo) crypto.Hash {
	if ki.EncryptedKey == nil || ki.EncryptedKey.EncryptionMethod == nil {
		return crypto.SHA1
	}
	return digestForAlgorithm(ki.EncryptedKey.EncryptionMethod.DigestMethod)
}

// digestForAlgorithm maps an XML Signature/Encryption digest URI to the
// crypto.Hash used for RSA-OAEP, for oaepDigest above; an unrecognized
// or empty URI maps to SHA-1.
func digestForAlgorithm(uri string) crypto.Hash {
	switch uri {
	case AlgorithmSHA256:
		return crypto.SHA256
	case AlgorithmSHA384:
		return crypto.SHA384
	case AlgorithmSHA512:
		return crypto.SHA512
	default:
		return crypto.SHA1
	}
}
