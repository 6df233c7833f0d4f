package xmlenc

import (
	"testing"

	"github.com/beevik/etree"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEncryptionContextLifecycle(t *testing.T) {
	Convey("Given an EncryptionContext backed by a KeyStore", t, func() {
		store := NewKeyStore()
		store.AddNamedKey("kek", make([]byte, 16))

		template := func() *EncryptedData {
			return &EncryptedData{
				EncryptedType: EncryptedType{
					EncryptionMethod: &EncryptionMethod{Algorithm: AlgorithmAES128CBC},
					KeyInfo: &KeyInfo{
						EncryptedKey: &EncryptedKey{
							EncryptedType: EncryptedType{
								EncryptionMethod: &EncryptionMethod{Algorithm: AlgorithmAES128KW},
								KeyInfo:          &KeyInfo{KeyName: "kek"},
							},
						},
					},
				},
			}
		}

		Convey("BinaryEncrypt produces ciphertext and wraps the CEK", func() {
			ec := NewEncryptionContext(store, nil)
			ed, err := ec.BinaryEncrypt([]byte("hello world"), template())

			So(err, ShouldBeNil)
			So(ed.CipherData.CipherValue, ShouldNotBeNil)
			So(ed.KeyInfo.EncryptedKey.CipherData.CipherValue, ShouldNotBeNil)

			Convey("and the same context refuses a second use", func() {
				_, err := ec.BinaryEncrypt([]byte("again"), template())
				So(err, ShouldNotBeNil)
				kind, ok := KindOf(err)
				So(ok, ShouldBeTrue)
				So(kind, ShouldEqual, KindInvalidStatus)
			})

			Convey("and a fresh context can decrypt the result back to the original plaintext", func() {
				dc := NewEncryptionContext(store, nil)
				out, err := dc.DecryptToBuffer(ed)
				So(err, ShouldBeNil)
				So(string(out.Bytes()), ShouldEqual, "hello world")
			})
		})

		Convey("BinaryEncrypt rejects a template carrying a CipherReference", func() {
			ec := NewEncryptionContext(store, nil)
			tmpl := template()
			tmpl.CipherData = &CipherData{CipherReference: &CipherReference{URI: "#out-of-line"}}

			_, err := ec.BinaryEncrypt([]byte("hello"), tmpl)
			So(err, ShouldNotBeNil)
			kind, ok := KindOf(err)
			So(ok, ShouldBeTrue)
			So(kind, ShouldEqual, KindInvalidData)
		})

		Convey("DecryptToBuffer fails with KeyNotFound when the key name is unknown", func() {
			ec := NewEncryptionContext(store, nil)
			ed := template()
			ed.KeyInfo.EncryptedKey.KeyInfo.KeyName = "missing"
			ed.KeyInfo.EncryptedKey.CipherData = &CipherData{CipherValue: make([]byte, 24)}
			ed.CipherData = &CipherData{CipherValue: []byte("not actually valid ciphertext!!")}

			_, err := ec.DecryptToBuffer(ed)
			So(err, ShouldNotBeNil)
			kind, ok := KindOf(err)
			So(ok, ShouldBeTrue)
			So(kind, ShouldEqual, KindKeyNotFound)
		})
	})
}

// TestEncryptionContextXmlEncryptDecryptRoundTrip covers the DOM-splicing
// operations of spec.md §8 scenarios 2 (Element) and 3 (Content): after
// XmlEncrypt the source document holds an EncryptedData in the target's
// place, and Decrypt splices the recovered plaintext back in, restoring
// the original document.
func TestEncryptionContextXmlEncryptDecryptRoundTrip(t *testing.T) {
	Convey("Given an EncryptionContext backed by a KeyStore", t, func() {
		store := NewKeyStore()
		store.AddNamedKey("kek", make([]byte, 16))

		template := func() *EncryptedData {
			return &EncryptedData{
				EncryptedType: EncryptedType{
					EncryptionMethod: &EncryptionMethod{Algorithm: AlgorithmAES128CBC},
					KeyInfo: &KeyInfo{
						EncryptedKey: &EncryptedKey{
							EncryptedType: EncryptedType{
								EncryptionMethod: &EncryptionMethod{Algorithm: AlgorithmAES128KW},
								KeyInfo:          &KeyInfo{KeyName: "kek"},
							},
						},
					},
				},
			}
		}

		newDoc := func() *etree.Document {
			doc := etree.NewDocument()
			So(doc.ReadFromString(`<root><secret>42</secret></root>`), ShouldBeNil)
			return doc
		}

		Convey("XmlEncrypt(Element) on the <secret> node round-trips through Decrypt", func() {
			doc := newDoc()
			target := doc.Root().SelectElement("secret")
			So(target, ShouldNotBeNil)

			ec := NewEncryptionContext(store, doc)
			edElem, err := ec.XmlEncrypt(target, TypeElement, template())
			So(err, ShouldBeNil)
			So(edElem.Tag, ShouldEqual, "EncryptedData")
			So(doc.Root().SelectElement("secret"), ShouldBeNil)

			dc := NewEncryptionContext(store, doc)
			recovered, err := dc.Decrypt(edElem)
			So(err, ShouldBeNil)
			So(recovered.Tag, ShouldEqual, "secret")

			out, err := doc.WriteToString()
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "<secret>42</secret>")
		})

		Convey("XmlEncrypt(Content) on <root> round-trips through Decrypt", func() {
			doc := newDoc()
			root := doc.Root()

			ec := NewEncryptionContext(store, doc)
			edElem, err := ec.XmlEncrypt(root, TypeContent, template())
			So(err, ShouldBeNil)
			So(root.ChildElements(), ShouldHaveLength, 1)
			So(root.ChildElements()[0].Tag, ShouldEqual, "EncryptedData")

			dc := NewEncryptionContext(store, doc)
			_, err = dc.Decrypt(edElem)
			So(err, ShouldBeNil)
			So(root.ChildElements(), ShouldHaveLength, 1)
			So(root.ChildElements()[0].Tag, ShouldEqual, "secret")

			out, err := doc.WriteToString()
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "<secret>42</secret>")
		})

		Convey("Decrypt leaves the DOM untouched for a MIME-type EncryptedData", func() {
			ec := NewEncryptionContext(store, nil)
			tmpl := template()
			tmpl.Type = "text/plain"
			ed, err := ec.BinaryEncrypt([]byte("raw bytes, not XML"), tmpl)
			So(err, ShouldBeNil)

			doc := etree.NewDocument()
			doc.SetRoot(etree.NewElement("root"))
			encElem := ed.ToElement()
			doc.Root().AddChild(encElem)

			dc := NewEncryptionContext(store, doc)
			node, err := dc.Decrypt(encElem)
			So(err, ShouldBeNil)
			So(node, ShouldEqual, encElem)
			So(doc.Root().ChildElements(), ShouldHaveLength, 1)
			So(doc.Root().ChildElements()[0].Tag, ShouldEqual, "EncryptedData")
		})
	})
}

// TestEncryptionContextUriEncrypt covers UriEncrypt resolving plaintext from
// a same-document fragment before encrypting it.
func TestEncryptionContextUriEncrypt(t *testing.T) {
	Convey("Given a document with an Id-addressable element", t, func() {
		store := NewKeyStore()
		store.AddNamedKey("kek", make([]byte, 16))

		doc := etree.NewDocument()
		So(doc.ReadFromString(`<root><secret Id="target">42</secret></root>`), ShouldBeNil)

		template := &EncryptedData{
			EncryptedType: EncryptedType{
				EncryptionMethod: &EncryptionMethod{Algorithm: AlgorithmAES128CBC},
				KeyInfo: &KeyInfo{
					EncryptedKey: &EncryptedKey{
						EncryptedType: EncryptedType{
							EncryptionMethod: &EncryptionMethod{Algorithm: AlgorithmAES128KW},
							KeyInfo:          &KeyInfo{KeyName: "kek"},
						},
					},
				},
			},
		}

		Convey("UriEncrypt encrypts the serialized fragment referenced by #target", func() {
			ec := NewEncryptionContext(store, doc)
			ed, err := ec.UriEncrypt("#target", template)
			So(err, ShouldBeNil)
			So(ed.CipherData.CipherValue, ShouldNotBeNil)

			dc := NewEncryptionContext(store, nil)
			out, err := dc.DecryptToBuffer(ed)
			So(err, ShouldBeNil)
			So(string(out.Bytes()), ShouldContainSubstring, "42")
		})
	})
}

// TestEncryptionContextKeyAgreementWiring confirms the X25519 key-agreement
// path in keyagreement.go is reachable from EncryptionContext itself, not
// only from the standalone Encryptor/Decryptor facade.
func TestEncryptionContextKeyAgreementWiring(t *testing.T) {
	Convey("Given a recipient X25519 key pair", t, func() {
		recipientPrivate, err := GenerateX25519KeyPair()
		So(err, ShouldBeNil)
		recipientPublic := recipientPrivate.PublicKey()

		hkdfParams := DefaultHKDFParams([]byte("EncryptionContext key agreement"))
		senderKA, err := NewX25519KeyAgreement(recipientPublic, hkdfParams)
		So(err, ShouldBeNil)

		template := &EncryptedData{
			EncryptedType: EncryptedType{
				EncryptionMethod: &EncryptionMethod{Algorithm: AlgorithmAES128GCM},
				KeyInfo: &KeyInfo{
					EncryptedKey: &EncryptedKey{
						EncryptedType: EncryptedType{
							EncryptionMethod: &EncryptionMethod{Algorithm: AlgorithmAES128KW},
						},
					},
				},
			},
		}

		Convey("BinaryEncrypt with KeyAgreementWrapper set produces an AgreementMethod EncryptedKey", func() {
			ec := NewEncryptionContext(nil, nil)
			ec.KeyAgreementWrapper = senderKA

			ed, err := ec.BinaryEncrypt([]byte("secret payload"), template)
			So(err, ShouldBeNil)
			So(ed.KeyInfo.EncryptedKey.KeyInfo.AgreementMethod, ShouldNotBeNil)
			So(ed.KeyInfo.EncryptedKey.KeyInfo.AgreementMethod.Algorithm, ShouldEqual, AlgorithmX25519)

			Convey("and a context with the matching KeyAgreement unwrapper recovers the plaintext", func() {
				ephemeralPubBytes := ed.KeyInfo.EncryptedKey.KeyInfo.AgreementMethod.OriginatorKeyInfo.KeyValue.ECKeyValue.PublicKey
				ephemeralPublic, err := ParseX25519PublicKey(ephemeralPubBytes)
				So(err, ShouldBeNil)
				recipientKA := NewX25519KeyAgreementForDecrypt(recipientPrivate, ephemeralPublic, hkdfParams)

				dc := NewEncryptionContext(nil, nil)
				dc.KeyAgreement = recipientKA

				out, err := dc.DecryptToBuffer(ed)
				So(err, ShouldBeNil)
				So(string(out.Bytes()), ShouldEqual, "secret payload")
			})

			Convey("and a context with no KeyAgreement configured reports KeyNotFound", func() {
				dc := NewEncryptionContext(nil, nil)
				_, err := dc.DecryptToBuffer(ed)
				So(err, ShouldNotBeNil)
				kind, ok := KindOf(err)
				So(ok, ShouldBeTrue)
				So(kind, ShouldEqual, KindKeyNotFound)
			})
		})
	})
}
