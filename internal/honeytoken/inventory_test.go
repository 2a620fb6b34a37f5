// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package honeytoken

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
)

// fakeInventoryServer mimics the inventory HTTP API.
type fakeInventoryServer struct {
	mu          sync.Mutex
	docs        map[string]InventoryRecord
	createCalls atomic.Int32
	failCreates int32 // respond 503 to this many creates first
	createCode  int   // fixed status for create when non-zero
	deleteCode  int   // fixed status for delete when non-zero
}

func newFakeInventoryServer(t *testing.T, f *fakeInventoryServer) *httptest.Server {
	t.Helper()
	if f.docs == nil {
		f.docs = make(map[string]InventoryRecord)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/documents/create", func(w http.ResponseWriter, r *http.Request) {
		n := f.createCalls.Add(1)
		if n <= f.failCreates {
			http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
			return
		}
		if f.createCode != 0 {
			w.WriteHeader(f.createCode)
			return
		}
		var records []InventoryRecord
		if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		for _, rec := range records {
			f.docs[rec.UUID] = rec
		}
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("DELETE /api/documents/{uuid}", func(w http.ResponseWriter, r *http.Request) {
		if f.deleteCode != 0 {
			w.WriteHeader(f.deleteCode)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.docs[r.PathValue("uuid")]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.docs, r.PathValue("uuid"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/documents/{uuid}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.docs[r.PathValue("uuid")]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeInventoryServer) record(token string) (InventoryRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.docs[token]
	return rec, ok
}

func TestInventoryClient_RegisterAndVerify(t *testing.T) {
	t.Parallel()

	fake := &fakeInventoryServer{}
	srv := newFakeInventoryServer(t, fake)
	client := NewInventoryClient(srv.URL, fastPolicy())
	ctx := context.Background()

	rec := InventoryRecord{UUID: testToken, FilePath: "1.json", DocumentName: "Q3 Forecast", CreatedAt: "2026-03-01T12:00:00Z"}
	if err := client.Register(ctx, []InventoryRecord{rec}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, ok := fake.record(testToken)
	if !ok || got.DocumentName != "Q3 Forecast" || got.FilePath != "1.json" {
		t.Errorf("server record = %+v, %v", got, ok)
	}

	found, err := client.Verify(ctx, testToken)
	if err != nil || !found {
		t.Errorf("Verify() = %v, %v, want true", found, err)
	}
	found, err = client.Verify(ctx, "unknown-token")
	if err != nil || found {
		t.Errorf("Verify(unknown) = %v, %v, want false", found, err)
	}
}

func TestInventoryClient_RegisterRetriesTransient(t *testing.T) {
	t.Parallel()

	fake := &fakeInventoryServer{failCreates: 2}
	srv := newFakeInventoryServer(t, fake)
	client := NewInventoryClient(srv.URL, fastPolicy())

	if err := client.Register(context.Background(), []InventoryRecord{{UUID: testToken}}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got := fake.createCalls.Load(); got != 3 {
		t.Errorf("create calls = %d, want 3", got)
	}
}

func TestInventoryClient_RegisterExhausted(t *testing.T) {
	t.Parallel()

	fake := &fakeInventoryServer{failCreates: 10}
	srv := newFakeInventoryServer(t, fake)
	client := NewInventoryClient(srv.URL, fastPolicy())

	err := client.Register(context.Background(), []InventoryRecord{{UUID: testToken}})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Register() error = %v, want 503 StatusError", err)
	}
	if got := fake.createCalls.Load(); got != 3 {
		t.Errorf("create calls = %d, want 3", got)
	}
}

func TestInventoryClient_RegisterClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	fake := &fakeInventoryServer{createCode: http.StatusBadRequest}
	srv := newFakeInventoryServer(t, fake)
	client := NewInventoryClient(srv.URL, fastPolicy())

	if err := client.Register(context.Background(), []InventoryRecord{{UUID: testToken}}); err == nil {
		t.Fatal("expected error for 400")
	}
	if got := fake.createCalls.Load(); got != 1 {
		t.Errorf("create calls = %d, want 1", got)
	}
}

func TestInventoryClient_Deregister(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		deleteCode  int
		unsupported bool
		wantErr     bool
	}{
		{"deleted", 0, false, false},
		{"already gone", http.StatusNotFound, false, false},
		{"method not allowed", http.StatusMethodNotAllowed, true, true},
		{"not implemented", http.StatusNotImplemented, true, true},
		{"forbidden", http.StatusForbidden, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := &fakeInventoryServer{deleteCode: tt.deleteCode}
			fake.docs = map[string]InventoryRecord{testToken: {UUID: testToken}}
			srv := newFakeInventoryServer(t, fake)
			client := NewInventoryClient(srv.URL, fastPolicy())

			err := client.Deregister(context.Background(), testToken)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Deregister() error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrRemoteUnsupported) != tt.unsupported {
				t.Errorf("errors.Is(ErrRemoteUnsupported) = %v, want %v", !tt.unsupported, tt.unsupported)
			}
		})
	}
}

func TestInventoryClient_MarkDeleted(t *testing.T) {
	t.Parallel()

	fake := &fakeInventoryServer{}
	srv := newFakeInventoryServer(t, fake)
	client := NewInventoryClient(srv.URL, fastPolicy())

	err := client.MarkDeleted(context.Background(), InventoryRecord{UUID: testToken, FilePath: "1.json", DocumentName: "x"})
	if err != nil {
		t.Fatalf("MarkDeleted() error = %v", err)
	}
	rec, ok := fake.record(testToken)
	if !ok {
		t.Fatal("record not upserted")
	}
	if rec.FilePath != "" || rec.Metadata["deleted"] != true {
		t.Errorf("record = %+v, want deleted marker and cleared path", rec)
	}
}

func TestInventoryClient_NetworkErrorRetried(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewInventoryClient(url, fastPolicy())
	err := client.Register(context.Background(), []InventoryRecord{{UUID: testToken}})
	if err == nil {
		t.Fatal("expected error against closed server")
	}
	if !IsTransient(errors.Unwrap(err)) && !IsTransient(err) {
		t.Errorf("network error should be classified transient: %v", err)
	}
}
