package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRemoteClientParse(t *testing.T) {
	var received ParseRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"title":"Post","guid":"g-1","link":"https://example.com/p","pubDate":""}]}`))
	}))
	defer server.Close()

	summary := false
	client := NewRemoteClient(http.DefaultClient, server.URL, "secret")
	resp, err := client.Parse(context.Background(), ParseRequest{URL: "https://example.com/feed", SourceID: "src-1", DisplaySummary: &summary})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if received.URL != "https://example.com/feed" || received.SourceID != "src-1" {
		t.Errorf("Unexpected request body: %+v", received)
	}
	if received.DisplaySummary == nil || *received.DisplaySummary {
		t.Error("Expected displaySummary=false to be forwarded")
	}
	if auth != "Bearer secret" {
		t.Errorf("Expected bearer token, got '%s'", auth)
	}
	if len(resp.Items) != 1 || resp.Items[0].GUID != "g-1" {
		t.Errorf("Unexpected items: %+v", resp.Items)
	}
}

func TestRemoteClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		w.Write([]byte(`{"error":"Feed too large (max 500KB)"}`))
	}))
	defer server.Close()

	_, err := NewRemoteClient(http.DefaultClient, server.URL, "").Parse(context.Background(), ParseRequest{URL: "https://example.com/feed"})

	feedErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("Expected *Error, got: %v", err)
	}
	if feedErr.Kind != ErrFeedTooLarge {
		t.Errorf("Expected kind %s, got %s", ErrFeedTooLarge, feedErr.Kind)
	}
	if feedErr.Message != "Feed too large (max 500KB)" {
		t.Errorf("Expected remote message, got '%s'", feedErr.Message)
	}
}

func TestRemoteClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewRemoteClient(http.DefaultClient, url, "").Parse(context.Background(), ParseRequest{URL: "https://example.com/feed"})
	if KindOf(err) != ErrFetchFailed {
		t.Errorf("Expected kind %s, got: %v", ErrFetchFailed, err)
	}
}
