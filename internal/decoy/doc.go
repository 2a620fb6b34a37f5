// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

/*
Package decoy chooses, per request, between the real resource, a decoy and a
plain denial, and produces the decoy payloads.

Decision order:

 1. A privileged role sees the real resource.
 2. Otherwise the caller is flagged when the identity is suspicious, the
    request carries X-Force-Decoy: 1, or the credential was missing or
    invalid.
 3. A flagged caller gets the decoy, tagged with X-Decoy: 1. Anyone else
    gets 403.

Decoy payloads use the same JSON envelope as real responses. The document
list is the live honeytoken catalogue, so the decoy view is the honeypot.
Mutating routes answer with a believable success and change nothing.
*/
package decoy
