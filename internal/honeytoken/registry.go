// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package honeytoken

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/metrics"
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	BeaconDomain     string
	StorageDir       string
	GeneratorTimeout time.Duration
}

// Registry creates honey documents and keeps the catalogue, the storage
// directory and the remote inventory in step.
//
// Catalogue read-modify-write sequences are serialized by mu. Slow work
// (generation, inventory calls) runs outside the lock.
type Registry struct {
	catalog   Catalog
	generator Generator
	inventory Inventory
	cfg       RegistryConfig
	now       func() time.Time

	mu     sync.Mutex
	lastID int64
}

// NewRegistry creates the storage directory and returns a Registry.
// inventory may be nil to disable remote registration.
func NewRegistry(catalog Catalog, generator Generator, inventory Inventory, cfg RegistryConfig) (*Registry, error) {
	if cfg.StorageDir == "" {
		return nil, errors.New("honeytoken storage dir is required")
	}
	if cfg.BeaconDomain == "" {
		cfg.BeaconDomain = DefaultBeaconDomain
	}
	if cfg.GeneratorTimeout <= 0 {
		cfg.GeneratorTimeout = 60 * time.Second
	}
	if generator == nil {
		generator = NewTemplateGenerator()
	}
	if err := os.MkdirAll(cfg.StorageDir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	return &Registry{
		catalog:   catalog,
		generator: generator,
		inventory: inventory,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

// InventoryEnabled reports whether remote registration is configured.
func (r *Registry) InventoryEnabled() bool {
	return r.inventory != nil
}

// Create generates a honey document for title, stores it and registers its
// token remotely. Remote registration failure does not fail Create.
func (r *Registry) Create(ctx context.Context, title, templateName string) (*HoneyDocument, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if templateName == "" {
		templateName = DefaultTemplate
	}

	token := uuid.New().String()
	beacons, err := NewBeaconSet(r.cfg.BeaconDomain, token)
	if err != nil {
		return nil, fmt.Errorf("%w: build beacons: %v", ErrPermanent, err)
	}

	id := r.nextID()
	content, err := r.generate(ctx, id, title, templateName, beacons)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	doc := &HoneyDocument{
		ID:          id,
		HoneyToken:  token,
		Title:       title,
		Template:    templateName,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      StatusGenerated,
		Paths:       StoragePaths{Metadata: id + ".json", Content: content},
		ContentType: contentTypeFor(content),
		Beacons:     beacons,
	}

	r.mu.Lock()
	err = r.persist(ctx, doc)
	r.mu.Unlock()
	if err != nil {
		_ = os.Remove(filepath.Join(r.cfg.StorageDir, content))
		return nil, err
	}
	metrics.RecordHoneyDocument("created")

	logging.CtxInfo(ctx).
		Str("doc_id", id).
		Str("honey_token", token).
		Str("template", templateName).
		Msg("Honey document created")

	if r.inventory != nil {
		r.register(ctx, doc)
	}
	return doc, nil
}

// generate runs the generator in a temporary workspace and moves the
// artifact into storage as <id>_document.<ext>. The workspace is always
// removed.
func (r *Registry) generate(ctx context.Context, id, title, templateName string, beacons BeaconSet) (string, error) {
	workspace, err := os.MkdirTemp("", "honeydoc-*")
	if err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			logging.Warn().Err(err).Str("workspace", workspace).Msg("Failed to remove generator workspace")
		}
	}()

	genCtx, cancel := context.WithTimeout(ctx, r.cfg.GeneratorTimeout)
	defer cancel()

	artifact, err := r.generator.Generate(genCtx, title, templateName, workspace)
	if err != nil {
		return "", fmt.Errorf("%w: generate document: %w", ErrPermanent, err)
	}

	urls, err := json.Marshal(beacons.URLs())
	if err != nil {
		return "", fmt.Errorf("%w: encode beacon urls: %v", ErrPermanent, err)
	}
	fields := map[string]string{
		FieldHoneyUUID:  beacons.Token,
		FieldBeaconURL:  beacons.Primary(),
		FieldBeaconURLs: string(urls),
	}
	if err := r.generator.Embed(genCtx, artifact, fields); err != nil {
		return "", fmt.Errorf("%w: embed metadata: %w", ErrPermanent, err)
	}

	name := id + "_document" + filepath.Ext(artifact)
	if err := moveFile(artifact, filepath.Join(r.cfg.StorageDir, name)); err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	return name, nil
}

// register pushes doc to the inventory and records the outcome.
func (r *Registry) register(ctx context.Context, doc *HoneyDocument) {
	record := InventoryRecord{
		UUID:         doc.HoneyToken,
		FilePath:     doc.Paths.Metadata,
		DocumentName: doc.Title,
		CreatedAt:    doc.CreatedAt.Format(time.RFC3339),
	}

	if err := r.inventory.Register(ctx, []InventoryRecord{record}); err != nil {
		logging.CtxWarn(ctx).Err(err).
			Str("doc_id", doc.ID).
			Str("honey_token", doc.HoneyToken).
			Msg("Inventory registration failed; document kept unregistered")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.catalog.Get(ctx, doc.ID)
	if err != nil {
		return
	}
	current.RemoteRegistered = true
	if err := r.persist(ctx, current); err != nil {
		logging.CtxWarn(ctx).Err(err).Str("doc_id", doc.ID).Msg("Failed to record inventory registration")
		return
	}
	doc.RemoteRegistered = true
}

// Verify asks the inventory whether the document's token is registered
// and stores the answer.
func (r *Registry) Verify(ctx context.Context, id string) (*HoneyDocument, error) {
	doc, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.inventory == nil {
		return doc, nil
	}

	registered, err := r.inventory.Verify(ctx, doc.HoneyToken)
	if err != nil {
		return nil, fmt.Errorf("verify inventory registration: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.RemoteRegistered != registered {
		current.RemoteRegistered = registered
		current.UpdatedAt = r.now().UTC()
		if err := r.persist(ctx, current); err != nil {
			return nil, err
		}
	}
	return current, nil
}

// List returns catalogue summaries newest first, without tombstones.
func (r *Registry) List(ctx context.Context) ([]DocumentSummary, error) {
	docs, err := r.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	live := make([]*HoneyDocument, 0, len(docs))
	for _, d := range docs {
		if d.Status != StatusDeleted {
			live = append(live, d)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.After(live[j].CreatedAt)
		}
		return idLess(live[j].ID, live[i].ID)
	})

	out := make([]DocumentSummary, 0, len(live))
	for _, d := range live {
		out = append(out, d.Summary())
	}
	return out, nil
}

// Get returns the full record and counts the access.
func (r *Registry) Get(ctx context.Context, id string) (*HoneyDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.AccessCount++
	if err := r.catalog.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("record access: %w", err)
	}
	return doc, nil
}

// Update changes title and/or status.
func (r *Registry) Update(ctx context.Context, id string, upd DocumentUpdate) (*HoneyDocument, error) {
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return nil, ErrTitleRequired
	}
	if upd.Status != nil && !upd.Status.Updatable() {
		return nil, ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Title != nil {
		doc.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Status != nil {
		doc.Status = *upd.Status
	}
	doc.UpdatedAt = r.now().UTC()

	if err := r.persist(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes a document. It is idempotent: unknown or already
// tombstoned ids return nil. When the inventory cannot hard-delete, the
// token is re-registered as deleted and the record is kept as a tombstone.
func (r *Registry) Delete(ctx context.Context, id string) error {
	doc, err := r.catalog.Get(ctx, id)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if doc.Status == StatusDeleted {
		return nil
	}

	tombstone := false
	if r.inventory != nil {
		tombstone = r.deregister(ctx, doc)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-read: the inventory call ran unlocked and the record may have
	// been updated, accessed or deleted meanwhile.
	doc, err = r.catalog.Get(ctx, id)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if doc.Status == StatusDeleted {
		return nil
	}

	r.removeFile(doc.Paths.Content)

	if tombstone {
		doc.Status = StatusDeleted
		doc.UpdatedAt = r.now().UTC()
		doc.Paths.Content = ""
		if err := r.persist(ctx, doc); err != nil {
			return err
		}
		metrics.RecordHoneyDocument("tombstoned")
		logging.CtxInfo(ctx).Str("doc_id", id).Msg("Honey document kept as tombstone")
		return nil
	}

	r.removeFile(doc.Paths.Metadata)
	if err := r.catalog.Delete(ctx, id); err != nil {
		return err
	}
	metrics.RecordHoneyDocument("deleted")
	logging.CtxInfo(ctx).Str("doc_id", id).Msg("Honey document deleted")
	return nil
}

// deregister removes the token remotely and reports whether the local
// record must be kept as a tombstone.
func (r *Registry) deregister(ctx context.Context, doc *HoneyDocument) bool {
	err := r.inventory.Deregister(ctx, doc.HoneyToken)
	if err == nil {
		return false
	}
	if !errors.Is(err, ErrRemoteUnsupported) {
		logging.CtxWarn(ctx).Err(err).Str("doc_id", doc.ID).Msg("Inventory deregistration failed")
		return false
	}

	record := InventoryRecord{
		UUID:         doc.HoneyToken,
		DocumentName: doc.Title,
		CreatedAt:    doc.CreatedAt.Format(time.RFC3339),
	}
	if err := r.inventory.MarkDeleted(ctx, record); err != nil {
		logging.CtxWarn(ctx).Err(err).Str("doc_id", doc.ID).Msg("Inventory mark-deleted fallback failed")
	}
	return true
}

// Open returns the stored artifact for download. The caller closes it.
func (r *Registry) Open(ctx context.Context, id string) (io.ReadCloser, *HoneyDocument, error) {
	doc, err := r.lookup(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if doc.Paths.Content == "" {
		return nil, nil, ErrDocumentNotFound
	}
	f, err := os.Open(filepath.Join(r.cfg.StorageDir, doc.Paths.Content))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open document: %w", err)
	}
	return f, doc, nil
}

// DownloadName returns an attachment file name derived from the title.
func DownloadName(doc *HoneyDocument) string {
	name := unsafeFileChars.ReplaceAllString(doc.Title, "_")
	if name == "" {
		name = doc.ID
	}
	return name + filepath.Ext(doc.Paths.Content)
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// lookup reads a live record. Tombstones are reported as not found.
func (r *Registry) lookup(ctx context.Context, id string) (*HoneyDocument, error) {
	doc, err := r.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == StatusDeleted {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// persist writes doc to the catalogue and its metadata sidecar. Callers
// hold mu.
func (r *Registry) persist(ctx context.Context, doc *HoneyDocument) error {
	if err := r.catalog.Put(ctx, doc); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.cfg.StorageDir, doc.Paths.Metadata), data, 0o600); err != nil {
		logging.Warn().Err(err).Str("doc_id", doc.ID).Msg("Failed to write metadata sidecar")
	}
	return nil
}

func (r *Registry) removeFile(name string) {
	if name == "" {
		return
	}
	err := os.Remove(filepath.Join(r.cfg.StorageDir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn().Err(err).Str("file", name).Msg("Failed to remove honey document file")
	}
}

// nextID returns a unix-millisecond ID, strictly increasing within this
// process.
func (r *Registry) nextID() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return strconv.FormatInt(id, 10)
}

func idLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
