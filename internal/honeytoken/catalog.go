// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package honeytoken

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/decoyshield/internal/logging"
)

const catalogPrefix = "honeydoc:"

// Catalog stores honey document records.
type Catalog interface {
	Put(ctx context.Context, doc *HoneyDocument) error

	// Get returns ErrDocumentNotFound for an unknown id.
	Get(ctx context.Context, id string) (*HoneyDocument, error)

	// Delete removes id. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every record, tombstones included, in key order.
	List(ctx context.Context) ([]*HoneyDocument, error)
}

// BadgerCatalog implements Catalog on BadgerDB.
type BadgerCatalog struct {
	db *badger.DB
}

// OpenBadgerCatalog opens the catalogue at path. An empty path keeps the
// catalogue in memory.
func OpenBadgerCatalog(path string) (*BadgerCatalog, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", path).
		Bool("in_memory", path == "").
		Msg("Honey document catalogue opened")
	return &BadgerCatalog{db: db}, nil
}

// Close closes the database.
func (c *BadgerCatalog) Close() error {
	return c.db.Close()
}

func catalogKey(id string) []byte {
	return []byte(catalogPrefix + id)
}

// Put implements Catalog.
func (c *BadgerCatalog) Put(_ context.Context, doc *HoneyDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(catalogKey(doc.ID), data))
	})
	if err != nil {
		return fmt.Errorf("write catalogue entry: %w", err)
	}
	return nil
}

// Get implements Catalog.
func (c *BadgerCatalog) Get(_ context.Context, id string) (*HoneyDocument, error) {
	var doc HoneyDocument
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(catalogKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read catalogue entry: %w", err)
	}
	return &doc, nil
}

// Delete implements Catalog.
func (c *BadgerCatalog) Delete(_ context.Context, id string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(catalogKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete catalogue entry: %w", err)
	}
	return nil
}

// List implements Catalog.
func (c *BadgerCatalog) List(ctx context.Context) ([]*HoneyDocument, error) {
	docs := make([]*HoneyDocument, 0)

	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(catalogPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			var doc HoneyDocument
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping unreadable catalogue entry")
				continue
			}
			docs = append(docs, &doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate catalogue: %w", err)
	}
	return docs, nil
}
