// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/tomtom215/decoyshield/internal/decoy"
	"github.com/tomtom215/decoyshield/internal/honeytoken"
	"github.com/tomtom215/decoyshield/internal/models"
)

func createDocument(t *testing.T, env *testEnv, title string) *honeytoken.HoneyDocument {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/decoydocs", `{"title":"`+title+`"}`, env.adminToken(t))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d; body=%s", rec.Code, rec.Body.String())
	}
	doc := decodeEnvelope[*honeytoken.HoneyDocument](t, rec).Data
	if doc == nil || doc.ID == "" {
		t.Fatalf("created document = %+v", doc)
	}
	return doc
}

func TestDecoyDocs_AdminLifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	doc := createDocument(t, env, "Executive Compensation 2026")
	if doc.Status != honeytoken.StatusGenerated || doc.HoneyToken == "" {
		t.Errorf("created = %+v", doc)
	}

	rec := env.do(http.MethodGet, "/api/decoydocs", "", env.adminToken(t))
	list := decodeEnvelope[[]honeytoken.DocumentSummary](t, rec).Data
	if len(list) != 1 || list[0].ID != doc.ID {
		t.Fatalf("list = %+v", list)
	}

	rec = env.do(http.MethodGet, "/api/decoydocs/"+doc.ID, "", env.adminToken(t))
	got := decodeEnvelope[honeytoken.HoneyDocument](t, rec).Data
	if got.AccessCount != 1 {
		t.Errorf("access_count = %d, want 1", got.AccessCount)
	}

	rec = env.do(http.MethodPut, "/api/decoydocs/"+doc.ID, `{"title":"Board Minutes","status":"deployed"}`, env.adminToken(t))
	updated := decodeEnvelope[honeytoken.HoneyDocument](t, rec).Data
	if rec.Code != http.StatusOK || updated.Title != "Board Minutes" || updated.Status != honeytoken.StatusDeployed {
		t.Errorf("update: status = %d, doc = %+v", rec.Code, updated)
	}

	rec = env.do(http.MethodPost, "/api/decoydocs/"+doc.ID+"/verify", "", env.adminToken(t))
	if rec.Code != http.StatusOK {
		t.Errorf("verify status = %d", rec.Code)
	}
	if verified := decodeEnvelope[honeytoken.HoneyDocument](t, rec).Data; verified.RemoteRegistered {
		t.Error("document registered without an inventory")
	}

	rec = env.do(http.MethodGet, "/api/decoydocs/"+doc.ID+"/download", "", env.adminToken(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(rec.Body.String(), doc.HoneyToken) {
		t.Error("artifact does not embed the honeytoken")
	}

	rec = env.do(http.MethodDelete, "/api/decoydocs/"+doc.ID, "", env.adminToken(t))
	if res := decodeEnvelope[decoy.DeleteResult](t, rec).Data; !res.Deleted || res.ID != doc.ID {
		t.Errorf("delete = %+v", res)
	}
	rec = env.do(http.MethodGet, "/api/decoydocs/"+doc.ID, "", env.adminToken(t))
	assertErrorCode(t, rec, http.StatusNotFound, models.CodeNotFound)
}

func TestDecoyDocs_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	doc := createDocument(t, env, "Payroll Q3")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"blank title", http.MethodPost, "/api/decoydocs", `{"title":"   "}`, http.StatusBadRequest, models.CodeValidation},
		{"unknown template", http.MethodPost, "/api/decoydocs", `{"title":"x","template":"nope"}`, http.StatusBadRequest, models.CodeValidation},
		{"deleted status not settable", http.MethodPut, "/api/decoydocs/" + doc.ID, `{"status":"deleted"}`, http.StatusBadRequest, models.CodeValidation},
		{"update unknown", http.MethodPut, "/api/decoydocs/404", `{"title":"x"}`, http.StatusNotFound, models.CodeNotFound},
		{"verify unknown", http.MethodPost, "/api/decoydocs/404/verify", "", http.StatusNotFound, models.CodeNotFound},
		{"download unknown", http.MethodGet, "/api/decoydocs/404/download", "", http.StatusNotFound, models.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.body, env.adminToken(t))
			assertErrorCode(t, rec, tt.status, tt.code)
		})
	}

	t.Run("delete unknown succeeds", func(t *testing.T) {
		rec := env.do(http.MethodDelete, "/api/decoydocs/404", "", env.adminToken(t))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestDecoyDocs_FlaggedCallersGetDecoys(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	doc := createDocument(t, env, "Merger Plan")
	env.suspicion.MarkSuspicious("mallory", 0)
	mallory := env.token(t, "mallory", "user")

	t.Run("list mirrors catalogue", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/decoydocs", "", mallory)
		if rec.Header().Get(decoy.MarkerHeader) != "1" {
			t.Fatal("missing X-Decoy")
		}
		list := decodeEnvelope[[]honeytoken.DocumentSummary](t, rec).Data
		if len(list) != 1 || list[0].HoneyToken != doc.HoneyToken {
			t.Errorf("decoy list = %+v", list)
		}
	})

	t.Run("create changes nothing", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/decoydocs", `{"title":"Exfil"}`, mallory)
		if rec.Code != http.StatusCreated || rec.Header().Get(decoy.MarkerHeader) != "1" {
			t.Fatalf("status = %d", rec.Code)
		}
		list, err := env.docs.List(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 {
			t.Errorf("catalogue has %d documents, want 1", len(list))
		}
	})

	t.Run("delete changes nothing", func(t *testing.T) {
		rec := env.do(http.MethodDelete, "/api/decoydocs/"+doc.ID, "", mallory)
		if rec.Header().Get(decoy.MarkerHeader) != "1" {
			t.Fatal("missing X-Decoy")
		}
		if _, err := env.docs.Get(t.Context(), doc.ID); err != nil {
			t.Errorf("document removed by decoy delete: %v", err)
		}
	})

	t.Run("download serves the honey artifact", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/decoydocs/"+doc.ID+"/download", "", mallory)
		if rec.Header().Get(decoy.MarkerHeader) != "1" {
			t.Fatal("missing X-Decoy")
		}
		if !strings.Contains(rec.Body.String(), doc.HoneyToken) {
			t.Error("decoy download lacks the beaconed artifact")
		}
	})

	t.Run("plain user denied", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/decoydocs", "", env.userToken(t))
		assertErrorCode(t, rec, http.StatusForbidden, models.CodeForbidden)
	})
}
