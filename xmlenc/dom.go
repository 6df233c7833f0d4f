package xmlenc

import "github.com/beevik/etree"

// FindByID searches doc for an element whose Id attribute equals id,
// mirroring xmlsec1's registration of "Id" as an ID-typed attribute
// before template parsing so that #fragment URIs resolve without a full
// DTD/schema. Only a bare attribute named "Id" is recognized; callers
// with a different ID-attribute convention should resolve the fragment
// themselves and feed bytes in directly.
func FindByID(doc *etree.Document, id string) *etree.Element {
	if doc == nil || doc.Root() == nil {
		return nil
	}
	return findByID(doc.Root(), id)
}

func findByID(e *etree.Element, id string) *etree.Element {
	if e.SelectAttrValue("Id", "") == id {
		return e
	}
	for _, child := range e.ChildElements() {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

// ReplaceElement swaps old for replacement in old's parent, preserving
// position. Used by both EncryptElementInPlace (plaintext -> EncryptedData)
// and DecryptElementInPlace (EncryptedData -> recovered plaintext).
func ReplaceElement(old, replacement *etree.Element) error {
	parent := old.Parent()
	if parent == nil {
		return newError(KindInvalidNode, "ReplaceElement", "element has no parent")
	}
	index := childIndex(parent, old)
	if index < 0 {
		return newError(KindInvalidNode, "ReplaceElement", "element not found among parent's children")
	}
	parent.RemoveChild(old)
	parent.InsertChildAt(index, replacement)
	return nil
}

// ReplaceContent removes all of parent's element children and appends
// replacements in their place, used for Type=Content decryption where
// the recovered plaintext is itself a fragment of sibling nodes rather
// than a single element.
func ReplaceContent(parent *etree.Element, replacements []*etree.Element) {
	for _, child := range parent.ChildElements() {
		parent.RemoveChild(child)
	}
	for _, r := range replacements {
		parent.AddChild(r)
	}
}

func childIndex(parent, target *etree.Element) int {
	for i, tok := range parent.Child {
		if child, ok := tok.(*etree.Element); ok && child == target {
			return i
		}
	}
	return -1
}

// SerializeElement renders elem (and its subtree) to bytes the way an
// Element-type encryption target is turned into plaintext.
func SerializeElement(elem *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.SetRoot(elem.Copy())
	b, err := doc.WriteToBytes()
	if err != nil {
		return nil, wrapError(KindXMLFailed, "SerializeElement", "serializing element", err)
	}
	return b, nil
}

// SerializeContent renders elem's children (not elem itself) to bytes,
// the way a Content-type encryption target is turned into plaintext.
func SerializeContent(elem *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	for _, child := range elem.ChildElements() {
		doc.AddChild(child.Copy())
	}
	b, err := doc.WriteToBytes()
	if err != nil {
		return nil, wrapError(KindXMLFailed, "SerializeContent", "serializing content", err)
	}
	return b, nil
}

// ParseFragment parses data as a standalone XML fragment and returns its
// root element, used when recovered plaintext must become a live DOM
// node again (Type=Element decryption).
func ParseFragment(data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, wrapError(KindXMLFailed, "ParseFragment", "parsing recovered plaintext", err)
	}
	if doc.Root() == nil {
		return nil, newError(KindXMLFailed, "ParseFragment", "recovered plaintext has no root element")
	}
	return doc.Root(), nil
}

// ParseFragmentChildren parses data as a standalone XML fragment and
// returns its top-level element children, used for Type=Content
// decryption where more than one sibling may have been encrypted
// together.
func ParseFragmentChildren(data []byte) ([]*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, wrapError(KindXMLFailed, "ParseFragmentChildren", "parsing recovered plaintext", err)
	}
	return doc.ChildElements(), nil
}
