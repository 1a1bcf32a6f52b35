package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbed(t *testing.T) {
	var gotModel, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		gotModel, gotPrompt = req["model"], req["prompt"]
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "all-minilm")
	vals, err := c.Embed(context.Background(), "login page")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vals) != 3 || vals[0] != 0.1 {
		t.Fatalf("vals = %v", vals)
	}
	if gotModel != "all-minilm" || gotPrompt != "login page" {
		t.Fatalf("request = (%s, %s)", gotModel, gotPrompt)
	}
}

func TestEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "")
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestEmbedBatchOrderAndFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{float64(calls)}})
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "")
	got, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if got[0][0] != 1 || got[1][0] != 2 {
		t.Fatalf("got %v", got)
	}

	if _, err := c.EmbedBatch(context.Background(), []string{"c"}); err == nil {
		t.Fatal("expected error on failing batch element")
	}
}

func TestNewEmbedClientDefaultsModel(t *testing.T) {
	c := NewEmbedClient("http://localhost:11434", "")
	if c.model != DefaultModel {
		t.Fatalf("model = %s", c.model)
	}
}
