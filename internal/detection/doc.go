// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

// Package detection scores pointer-input streams for robotic timing and
// tracks which identities are currently suspicious.
//
// Detection Architecture:
//
//	Collector -> WebSocket -> SessionHandler -> Scorer
//	                              |
//	                              +-> AlertSink (DuckDB)
//	                              +-> Registry.MarkSuspicious
//	                              +-> Pusher (force-decoy)
//	                              +-> AlertPublisher (admin fan-out)
//
// The Registry is consulted by the decoy middleware on every protected
// request. Entries expire lazily on read; there is no background sweep.
//
// Scoring Rule:
// A batch of at least MinBatch events is anomalous when the inter-event
// timing is too regular: the population standard deviation of consecutive
// epoch deltas is below MaxStddevMs and their mean lies inside
// [MinMeanMs, MaxMeanMs]. Human input is bursty; scripted input is not.
package detection
