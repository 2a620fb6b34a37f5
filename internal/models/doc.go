// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

// Package models defines the JSON envelope and request bodies shared by the
// HTTP layer.
//
// Every real response is an APIResponse. Decoy responses use the same
// envelope so a caller cannot tell the branches apart by shape.
package models
