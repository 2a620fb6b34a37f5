// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package honeytoken

import (
	"errors"
	"time"
)

// Sentinel errors.
var (
	// ErrTitleRequired is returned when Create is called with an empty title.
	ErrTitleRequired = errors.New("honeytoken: title is required")

	// ErrDocumentNotFound is returned for unknown or deleted document IDs.
	ErrDocumentNotFound = errors.New("honeytoken: document not found")

	// ErrRemoteUnsupported is returned when the inventory refuses an
	// operation it does not implement (HTTP 405 or 501).
	ErrRemoteUnsupported = errors.New("honeytoken: operation not supported by inventory")

	// ErrPermanent marks failures that retrying cannot fix.
	ErrPermanent = errors.New("honeytoken: permanent failure")

	// ErrInvalidStatus is returned by Update for an unknown status.
	ErrInvalidStatus = errors.New("honeytoken: invalid document status")
)

// DefaultTemplate is used when Create receives no template.
const DefaultTemplate = "generic_report"

// Status is the lifecycle state of a honey document.
type Status string

const (
	StatusGenerated Status = "generated"
	StatusDeployed  Status = "deployed"
	StatusArchived  Status = "archived"

	// StatusDeleted marks a tombstone kept because the inventory could not
	// hard-delete the token.
	StatusDeleted Status = "deleted"
)

// Updatable reports whether s may be set through Update.
func (s Status) Updatable() bool {
	switch s {
	case StatusGenerated, StatusDeployed, StatusArchived:
		return true
	}
	return false
}

// StoragePaths are file names relative to the storage directory.
type StoragePaths struct {
	Metadata string `json:"metadata"`
	Content  string `json:"content"`
}

// HoneyDocument is a catalogue record.
type HoneyDocument struct {
	ID               string       `json:"id"`
	HoneyToken       string       `json:"uuid"`
	Title            string       `json:"title"`
	Template         string       `json:"template"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	Status           Status       `json:"status"`
	Paths            StoragePaths `json:"storage"`
	ContentType      string       `json:"content_type"`
	Beacons          BeaconSet    `json:"beacons"`
	AccessCount      int64        `json:"access_count"`
	RemoteRegistered bool         `json:"remote_registered"`
}

// DocumentSummary is the list-view row. The same shape is served to real
// and decoy callers.
type DocumentSummary struct {
	ID         string            `json:"id"`
	HoneyToken string            `json:"uuid"`
	Title      string            `json:"title"`
	CreatedAt  time.Time         `json:"created_at"`
	Status     Status            `json:"status"`
	FilePath   string            `json:"file_path"`
	Beacon     string            `json:"beacon,omitempty"`
	BeaconURLs map[string]string `json:"beacon_urls,omitempty"`
}

// Summary returns the list-view row for d.
func (d *HoneyDocument) Summary() DocumentSummary {
	return DocumentSummary{
		ID:         d.ID,
		HoneyToken: d.HoneyToken,
		Title:      d.Title,
		CreatedAt:  d.CreatedAt,
		Status:     d.Status,
		FilePath:   d.Paths.Metadata,
		Beacon:     d.Beacons.Primary(),
		BeaconURLs: d.Beacons.URLs(),
	}
}

// DocumentUpdate carries optional metadata changes. Nil fields are left as is.
type DocumentUpdate struct {
	Title  *string
	Status *Status
}
