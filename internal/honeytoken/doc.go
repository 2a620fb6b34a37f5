// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

// Package honeytoken creates and tracks honey documents: generated decoy
// files that carry a unique honeytoken and a set of camouflaged beacon URLs.
//
// Lifecycle:
//
//	Create -> Generator (temp workspace) -> Embed fields -> storage dir
//	       -> BadgerCatalog -> Inventory.Register (best effort, retried)
//
// The catalogue is the source of truth. Remote inventory registration is
// best effort: a document whose registration failed is still served, with
// RemoteRegistered=false, and can be reconciled later with Verify.
//
// Beacon URLs are spread across several path shapes (image asset, web font,
// API call) so that a single blocklist rule does not neutralize them. Each
// URL carries the token and a per-URL nonce.
package honeytoken
