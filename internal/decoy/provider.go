// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package decoy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/decoyshield/internal/detection"
	"github.com/tomtom215/decoyshield/internal/honeytoken"
	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/models"
	"github.com/tomtom215/decoyshield/internal/validation"
)

const maxDecoyBody = 64 << 10

// DocumentSource is the honeytoken catalogue. honeytoken.Registry
// satisfies it.
type DocumentSource interface {
	List(ctx context.Context) ([]honeytoken.DocumentSummary, error)
	Get(ctx context.Context, id string) (*honeytoken.HoneyDocument, error)
	Open(ctx context.Context, id string) (io.ReadCloser, *honeytoken.HoneyDocument, error)
}

// GenericPayload is served for resources without a dedicated decoy.
type GenericPayload struct {
	Message string `json:"message"`
	Decoy   bool   `json:"decoy"`
}

// DeleteResult is the body of a document delete, real or decoy.
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Provider synthesizes decoy responses.
type Provider struct {
	docs         DocumentSource
	beaconDomain string
	now          func() time.Time
}

// NewProvider returns a Provider backed by docs. beaconDomain is used for
// the beacons of fabricated documents.
func NewProvider(docs DocumentSource, beaconDomain string) *Provider {
	if beaconDomain == "" {
		beaconDomain = honeytoken.DefaultBeaconDomain
	}
	return &Provider{docs: docs, beaconDomain: beaconDomain, now: time.Now}
}

// Serve writes the decoy response for resource. It never reports an
// internal error to the caller.
func (p *Provider) Serve(w http.ResponseWriter, r *http.Request, resource Resource) {
	switch resource {
	case ResourceDocuments:
		if r.Method == http.MethodPost {
			models.WriteJSON(w, http.StatusCreated, models.Success(p.fabricateCreated(r)))
			return
		}
		models.WriteJSON(w, http.StatusOK, models.Success(p.Documents(r.Context())))
	case ResourceDocument:
		p.serveDocument(w, r)
	case ResourceDownload:
		p.serveDownload(w, r)
	case ResourceAlerts:
		p.serveAlerts(w, r)
	default:
		models.WriteJSON(w, http.StatusOK, models.Success(Generic()))
	}
}

// Generic returns the fallback decoy body.
func Generic() GenericPayload {
	return GenericPayload{Message: "Resource not found", Decoy: true}
}

// Documents returns the honeytoken catalogue. A catalogue failure yields an
// empty list.
func (p *Provider) Documents(ctx context.Context) []honeytoken.DocumentSummary {
	docs, err := p.docs.List(ctx)
	if err != nil {
		logging.CtxWarn(ctx).Err(err).Msg("Decoy catalogue unavailable; serving empty list")
		return []honeytoken.DocumentSummary{}
	}
	return docs
}

// Document returns the catalogue record for id, or a fabricated summary
// when id is unknown.
func (p *Provider) Document(ctx context.Context, id string) interface{} {
	doc, err := p.docs.Get(ctx, id)
	if err == nil {
		return doc
	}
	if !errors.Is(err, honeytoken.ErrDocumentNotFound) {
		logging.CtxWarn(ctx).Err(err).Str("doc_id", id).Msg("Decoy document lookup failed")
	}
	return honeytoken.DocumentSummary{
		ID:        id,
		Title:     "Quarterly Financial Summary",
		CreatedAt: p.now().UTC().Add(-72 * time.Hour),
		Status:    honeytoken.StatusDeployed,
		FilePath:  id + ".json",
	}
}

// Alerts returns a fabricated alert list in the real alert shape.
func (p *Provider) Alerts() []detection.Alert {
	now := p.now().UTC()
	return []detection.Alert{
		{
			ID:           2,
			Identity:     "contract_admin",
			AnomalyScore: 0.65,
			Threshold:    detection.AlertThreshold,
			SessionID:    "c7f1e2a4",
			Status:       detection.StatusInvestigating,
			CreatedAt:    now.Add(-47 * time.Minute),
		},
		{
			ID:           1,
			Identity:     "finance_user",
			AnomalyScore: 0.72,
			Threshold:    detection.AlertThreshold,
			SessionID:    "9b3d0c58",
			Status:       detection.StatusDetected,
			CreatedAt:    now.Add(-3 * time.Hour),
		},
	}
}

func (p *Provider) serveDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	switch r.Method {
	case http.MethodDelete:
		models.WriteJSON(w, http.StatusOK, models.Success(DeleteResult{ID: id, Deleted: true}))
	case http.MethodPut:
		doc := p.Document(r.Context(), id)
		var body struct {
			Title string `json:"title"`
		}
		if decodeBody(r, &body) && strings.TrimSpace(body.Title) != "" {
			switch d := doc.(type) {
			case *honeytoken.HoneyDocument:
				copied := *d
				copied.Title = strings.TrimSpace(body.Title)
				copied.UpdatedAt = p.now().UTC()
				doc = &copied
			case honeytoken.DocumentSummary:
				d.Title = strings.TrimSpace(body.Title)
				doc = d
			}
		}
		models.WriteJSON(w, http.StatusOK, models.Success(doc))
	default:
		models.WriteJSON(w, http.StatusOK, models.Success(p.Document(r.Context(), id)))
	}
}

// serveDownload streams the stored honey document. Its beacons fire when
// the copy is opened elsewhere.
func (p *Provider) serveDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rc, doc, err := p.docs.Open(r.Context(), id)
	if err != nil {
		models.WriteJSON(w, http.StatusOK, models.Success(Generic()))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+honeytoken.DownloadName(doc)+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		logging.CtxDebug(r.Context()).Err(err).Str("doc_id", id).Msg("Decoy download interrupted")
	}
}

func (p *Provider) serveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := p.Alerts()

	if r.Method == http.MethodPatch {
		alert := alerts[len(alerts)-1]
		if id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64); err == nil {
			alert.ID = id
		}
		var body struct {
			Status string `json:"status"`
		}
		if decodeBody(r, &body) {
			if status, err := detection.ParseStatus(body.Status); err == nil {
				alert.Status = status
			}
		}
		models.WriteJSON(w, http.StatusOK, models.Success(alert))
		return
	}

	start := time.Now()
	req, err := models.ParseAlertListQuery(r.URL.Query())
	if err != nil {
		models.WriteError(w, http.StatusBadRequest, models.CodeValidation, err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		resp := models.Failure(apiErr.Code, apiErr.Message)
		resp.Error.Details = apiErr.Details
		models.WriteJSON(w, http.StatusBadRequest, resp)
		return
	}

	matched := make([]detection.Alert, 0, len(alerts))
	for _, a := range alerts {
		if req.Status == "" || string(a.Status) == req.Status {
			matched = append(matched, a)
		}
	}
	page := matched[min(req.Offset, len(matched)):]
	page = page[:min(req.Limit, len(page))]

	resp := models.Success(page)
	resp.Metadata.QueryTimeMS = time.Since(start).Milliseconds()
	resp.Metadata.Pagination = &models.PaginationInfo{
		Limit:  req.Limit,
		Offset: req.Offset,
		Total:  len(matched),
	}
	models.WriteJSON(w, http.StatusOK, resp)
}

// fabricateCreated echoes a create request as if it had succeeded.
func (p *Provider) fabricateCreated(r *http.Request) *honeytoken.HoneyDocument {
	var body struct {
		Title    string `json:"title"`
		Template string `json:"template"`
	}
	decodeBody(r, &body)

	title := strings.TrimSpace(body.Title)
	if title == "" {
		title = "Untitled Document"
	}
	template := body.Template
	if template == "" {
		template = honeytoken.DefaultTemplate
	}

	now := p.now().UTC()
	id := strconv.FormatInt(now.UnixMilli(), 10)
	token := uuid.New().String()
	beacons, err := honeytoken.NewBeaconSet(p.beaconDomain, token)
	if err != nil {
		beacons = honeytoken.BeaconSet{Token: token}
	}

	return &honeytoken.HoneyDocument{
		ID:          id,
		HoneyToken:  token,
		Title:       title,
		Template:    template,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      honeytoken.StatusGenerated,
		Paths:       honeytoken.StoragePaths{Metadata: id + ".json", Content: id + "_document.html"},
		ContentType: "text/html; charset=utf-8",
		Beacons:     beacons,
	}
}

func decodeBody(r *http.Request, v interface{}) bool {
	if r.Body == nil {
		return false
	}
	return json.NewDecoder(io.LimitReader(r.Body, maxDecoyBody)).Decode(v) == nil
}
