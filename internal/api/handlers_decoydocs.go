// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/decoyshield/internal/decoy"
	"github.com/tomtom215/decoyshield/internal/honeytoken"
	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/models"
)

// ListDocuments returns the honey document catalogue.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documents.List(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.CodeInternal, "Failed to list documents", err)
		return
	}
	respondJSON(w, http.StatusOK, docs)
}

// CreateDocument generates a new honey document.
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDocumentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	doc, err := h.documents.Create(r.Context(), req.Title, req.Template)
	if err != nil {
		h.respondDocumentError(w, r, err, "Failed to create document")
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

// GetDocument returns one document and counts the access.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondDocumentError(w, r, err, "Failed to get document")
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// UpdateDocument changes a document's title or status.
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateDocumentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	upd := honeytoken.DocumentUpdate{Title: req.Title}
	if req.Status != nil {
		status := honeytoken.Status(*req.Status)
		upd.Status = &status
	}

	doc, err := h.documents.Update(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		h.respondDocumentError(w, r, err, "Failed to update document")
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// DeleteDocument removes a document. Unknown ids succeed.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.documents.Delete(r.Context(), id); err != nil {
		h.respondDocumentError(w, r, err, "Failed to delete document")
		return
	}
	respondJSON(w, http.StatusOK, decoy.DeleteResult{ID: id, Deleted: true})
}

// VerifyDocument asks the inventory whether the document's token is
// registered and returns the refreshed record. Without an inventory the
// stored flag is returned unchanged.
func (h *Handler) VerifyDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documents.Verify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondDocumentError(w, r, err, "Failed to verify document")
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// DownloadDocument streams the stored artifact as an attachment.
func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	content, doc, err := h.documents.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondDocumentError(w, r, err, "Failed to open document")
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", honeytoken.DownloadName(doc)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		logging.CtxDebug(r.Context()).Err(err).Str("doc_id", doc.ID).Msg("Document download interrupted")
	}
}

func (h *Handler) respondDocumentError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, honeytoken.ErrDocumentNotFound):
		respondError(w, r, http.StatusNotFound, models.CodeNotFound, "Document not found", nil)
	case errors.Is(err, honeytoken.ErrTitleRequired):
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "title is required", nil)
	case errors.Is(err, honeytoken.ErrInvalidStatus):
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "Invalid document status", nil)
	default:
		respondError(w, r, http.StatusInternalServerError, models.CodeInternal, message, err)
	}
}
