package xmlenc

import (
	"bytes"
	"testing"
)

func TestCBCCipherTransformRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 16)
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	encChain := NewContext()
	encChain.Append(NewTransform(&cbcCipherTransform{href: AlgorithmAES128CBC, Key: key, Dir: dirEncrypt}))
	if err := encChain.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	ct, err := encChain.BinaryExecute(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	decChain := NewContext()
	decChain.Append(NewTransform(&cbcCipherTransform{href: AlgorithmAES128CBC, Key: key, Dir: dirDecrypt}))
	if err := decChain.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	pt, err := decChain.BinaryExecute(ct.Bytes())
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	if !bytes.Equal(pt.Bytes(), plaintext) {
		t.Errorf("round trip mismatch: got %q, want %q", pt.Bytes(), plaintext)
	}
}

func TestCBCCipherTransformRejectsWrongKeySize(t *testing.T) {
	chain := NewContext()
	chain.Append(NewTransform(&cbcCipherTransform{href: AlgorithmAES128CBC, Key: []byte("tooshort"), Dir: dirEncrypt}))

	err := chain.Prepare()
	if err == nil {
		t.Fatal("expected an error for a mismatched key size")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindInvalidData {
		t.Errorf("Kind = %v, want %v", kind, KindInvalidData)
	}
}

func TestGCMCipherTransformRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x7a}, 32)
	plaintext := []byte("gcm content")

	encChain := NewContext()
	encChain.Append(NewTransform(&gcmCipherTransform{href: AlgorithmAES256GCM, Key: key, Dir: dirEncrypt}))
	ct, err := encChain.BinaryExecute(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	decChain := NewContext()
	decChain.Append(NewTransform(&gcmCipherTransform{href: AlgorithmAES256GCM, Key: key, Dir: dirDecrypt}))
	pt, err := decChain.BinaryExecute(ct.Bytes())
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(pt.Bytes(), plaintext) {
		t.Errorf("round trip mismatch: got %q, want %q", pt.Bytes(), plaintext)
	}
}

func TestKeyWrapTransformRoundTrip(t *testing.T) {
	kek := bytes.Repeat([]byte{0x01}, 16)
	cek := bytes.Repeat([]byte{0x02}, 16)

	encChain := NewContext()
	encChain.Append(NewTransform(&keyWrapTransform{href: AlgorithmAES128KW, KEK: kek, Dir: dirEncrypt}))
	wrapped, err := encChain.BinaryExecute(cek)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}

	decChain := NewContext()
	decChain.Append(NewTransform(&keyWrapTransform{href: AlgorithmAES128KW, KEK: kek, Dir: dirDecrypt}))
	unwrapped, err := decChain.BinaryExecute(wrapped.Bytes())
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if !bytes.Equal(unwrapped.Bytes(), cek) {
		t.Errorf("unwrap mismatch: got %x, want %x", unwrapped.Bytes(), cek)
	}
}
