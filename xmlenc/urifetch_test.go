package xmlenc

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubDocumentContext struct {
	data map[string][]byte
}

func (s *stubDocumentContext) FindByID(id string) ([]byte, error) {
	b, ok := s.data[id]
	if !ok {
		return nil, newError(KindInvalidURI, "stubDocumentContext.FindByID", "no element with that id")
	}
	return b, nil
}

func TestUriFetchTransformSameDocument(t *testing.T) {
	doc := &stubDocumentContext{data: map[string][]byte{"payload": []byte("same-document bytes")}}

	chain := NewContext()
	tr, err := chain.CreateAndAppend(uriFetchHref)
	if err != nil {
		t.Fatalf("CreateAndAppend: %v", err)
	}
	tr.Instance.(*uriFetchTransform).SetDocumentContext(doc)

	if err := chain.SetURI("#payload"); err != nil {
		t.Fatalf("SetURI: %v", err)
	}
	out, err := chain.CreateOutputBuffer()
	if err != nil {
		t.Fatalf("CreateOutputBuffer: %v", err)
	}
	if got := string(out.Bytes()); got != "same-document bytes" {
		t.Errorf("got %q, want %q", got, "same-document bytes")
	}
}

func TestUriFetchTransformExternalRequiresOptIn(t *testing.T) {
	chain := NewContext()
	if err := chain.SetURI("http://example.invalid/resource"); err != nil {
		t.Fatalf("SetURI: %v", err)
	}
	_, err := chain.CreateOutputBuffer()
	if err == nil {
		t.Fatal("expected an error fetching an external URI without AllowURIFetch")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindInvalidURI {
		t.Errorf("Kind = %v, want %v", kind, KindInvalidURI)
	}
}

func TestUriFetchTransformExternalFetchesWhenAllowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fetched bytes"))
	}))
	defer srv.Close()

	chain := NewContext()
	chain.AllowURIFetch = true
	if err := chain.SetURI(srv.URL); err != nil {
		t.Fatalf("SetURI: %v", err)
	}
	out, err := chain.CreateOutputBuffer()
	if err != nil {
		t.Fatalf("CreateOutputBuffer: %v", err)
	}
	if got := string(out.Bytes()); got != "fetched bytes" {
		t.Errorf("got %q, want %q", got, "fetched bytes")
	}
}

func TestHTTPFetcherRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := &HTTPFetcher{}
	_, err := f.Fetch(srv.URL)
	if err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindInvalidURI {
		t.Errorf("Kind = %v, want %v", kind, KindInvalidURI)
	}
}
