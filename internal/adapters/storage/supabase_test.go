package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSupabaseUpload(t *testing.T) {
	var gotPath, gotAuth, gotUpsert, gotCT string
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotUpsert = r.Header.Get("x-upsert")
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	store := NewSupabaseStore(ts.URL, "service-key", "invoices", zap.NewNop())
	err := store.Upload(context.Background(), "invoice_1.pdf", []byte("%PDF-1.4"), "application/pdf")
	if err != nil {
		t.Fatal(err)
	}

	if gotPath != "/storage/v1/object/invoices/invoice_1.pdf" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer service-key" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotUpsert != "true" {
		t.Errorf("x-upsert = %q", gotUpsert)
	}
	if gotCT != "application/pdf" {
		t.Errorf("content type = %q", gotCT)
	}
	if string(gotBody) != "%PDF-1.4" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestSupabaseUploadFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Payload too large"}`, http.StatusRequestEntityTooLarge)
	}))
	defer ts.Close()

	store := NewSupabaseStore(ts.URL, "k", "invoices", zap.NewNop())
	err := store.Upload(context.Background(), "a.pdf", []byte("x"), "application/pdf")
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestSupabaseSignedURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/object/sign/invoices/a.pdf" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]int
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode sign body: %v", err)
		}
		if body["expiresIn"] != 3600 {
			t.Errorf("expiresIn = %d", body["expiresIn"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"signedURL": "/object/sign/invoices/a.pdf?token=tok123",
		})
	}))
	defer ts.Close()

	store := NewSupabaseStore(ts.URL, "k", "invoices", zap.NewNop())
	url, err := store.SignedURL(context.Background(), "a.pdf", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	want := ts.URL + "/storage/v1/object/sign/invoices/a.pdf?token=tok123"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}
}

func TestSupabaseSignedURLMissingField(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer ts.Close()

	store := NewSupabaseStore(ts.URL, "k", "invoices", zap.NewNop())
	if _, err := store.SignedURL(context.Background(), "a.pdf", time.Hour); err == nil {
		t.Fatal("expected error when signedURL is absent")
	}
}

func TestSupabaseFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte("object bytes"))
	}))
	defer ts.Close()

	store := NewSupabaseStore(ts.URL, "k", "invoices", zap.NewNop())
	content, err := store.Fetch(context.Background(), ts.URL+"/storage/v1/object/public/invoices/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "object bytes" {
		t.Errorf("content = %q", content)
	}
}

func TestSupabaseRemove(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	store := NewSupabaseStore(ts.URL, "k", "invoices", zap.NewNop())
	if err := store.Remove(context.Background(), "a.pdf"); err != nil {
		t.Fatal(err)
	}

	if gotMethod != http.MethodDelete {
		t.Errorf("method = %q", gotMethod)
	}
	if gotPath != "/storage/v1/object/invoices" {
		t.Errorf("path = %q", gotPath)
	}
	var body map[string][]string
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatal(err)
	}
	if len(body["prefixes"]) != 1 || body["prefixes"][0] != "a.pdf" {
		t.Errorf("prefixes = %v", body["prefixes"])
	}
}

func TestSupabasePublicURL(t *testing.T) {
	store := NewSupabaseStore("https://proj.supabase.co/", "k", "invoices", zap.NewNop())
	want := "https://proj.supabase.co/storage/v1/object/public/invoices/a.pdf"
	if got := store.PublicURL("a.pdf"); got != want {
		t.Errorf("url = %q, want %q", got, want)
	}
}
