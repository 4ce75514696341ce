package fabric

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xidis/fabdeploy/pkg/engine"
)

func TestNQN(t *testing.T) {
	got := NQN("node-a", "vol0")
	want := "nqn.2025-01.io.xidis:node-a.vol0"
	if got != want {
		t.Errorf("NQN = %q, want %q", got, want)
	}
}

func TestAggregatorClientRoundTrip(t *testing.T) {
	t.Setenv("AGG_TOKEN", "secret")

	var gotAuth string
	var gotBody connectRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "POST" && r.URL.Path == "/v1/connections":
			gotAuth = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
				t.Errorf("decode body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
		case r.Method == "GET" && strings.HasPrefix(r.URL.Path, "/v1/connections/"):
			json.NewEncoder(w).Encode(Connection{NQN: "nqn-x", State: "connected"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewHTTPAggregatorClient(srv.URL, "AGG_TOKEN")
	ctx := context.Background()

	err := client.Connect(ctx, Export{NQN: "nqn-x", Address: "10.0.0.1:4420"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.NQN != "nqn-x" || gotBody.Address != "10.0.0.1:4420" {
		t.Errorf("body = %+v", gotBody)
	}

	conn, found, err := client.ConnectionStatus(ctx, "nqn-x")
	if err != nil || !found {
		t.Fatalf("ConnectionStatus: found=%v err=%v", found, err)
	}
	if conn.State != "connected" {
		t.Errorf("conn = %+v", conn)
	}

	// 404 reads as absence, not as an error.
	_, found, err = client.ReexportStatus(ctx, "fsclient0")
	if err != nil || found {
		t.Errorf("ReexportStatus on 404: found=%v err=%v", found, err)
	}
}

func TestOpusClientErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "member not connected", http.StatusConflict)
	}))
	defer srv.Close()

	client := NewHTTPOpusClient(srv.URL, "")
	err := client.CreateAggregate(context.Background(), AggregateSpec{ID: "agg0", Level: "mirror"})
	if err == nil {
		t.Fatal("conflict accepted")
	}
	if !strings.Contains(err.Error(), "member not connected") {
		t.Errorf("error lacks server detail: %v", err)
	}
}

func TestHTTPTimeoutIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewHTTPOpusClient(srv.URL, "")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := client.AggregateStatus(ctx, "agg0")
	if err == nil {
		t.Fatal("expected timeout")
	}
	if !engine.IsRetryable(err) {
		t.Errorf("timeout not classified as retryable: %v", err)
	}
}

func TestBaseURLNormalization(t *testing.T) {
	api := newHTTPAPI("10.0.0.10:8080", "")
	if api.baseURL != "http://10.0.0.10:8080" {
		t.Errorf("baseURL = %q", api.baseURL)
	}
	api = newHTTPAPI("https://agg.example.com/", "")
	if api.baseURL != "https://agg.example.com" {
		t.Errorf("baseURL = %q", api.baseURL)
	}
}
