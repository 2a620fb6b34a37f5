// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package honeytoken

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultBeaconDomain hosts beacon URLs when none is configured.
const DefaultBeaconDomain = "cdn-docs-local.test"

// nonceBytes is the random length of a beacon nonce before hex encoding.
const nonceBytes = 8

// Disguise names the path shape a beacon hides behind.
type Disguise string

const (
	DisguiseAsset Disguise = "asset"
	DisguiseFont  Disguise = "font"
	DisguiseAPI   Disguise = "api"
)

// Beacon is one callback URL embedded in a honey document.
type Beacon struct {
	Disguise Disguise `json:"disguise"`
	URL      string   `json:"url"`
	Nonce    string   `json:"nonce"`
}

// BeaconSet groups the beacons issued for one token.
type BeaconSet struct {
	Token   string   `json:"token"`
	Beacons []Beacon `json:"beacons"`
}

// NewBeaconSet builds asset, font and API beacons for token under domain.
// domain may be a bare host or a URL with scheme.
func NewBeaconSet(domain, token string) (BeaconSet, error) {
	if token == "" {
		return BeaconSet{}, errors.New("beacon token is empty")
	}
	base, err := beaconBase(domain)
	if err != nil {
		return BeaconSet{}, err
	}

	set := BeaconSet{Token: token, Beacons: make([]Beacon, 0, 3)}
	for _, d := range []Disguise{DisguiseAsset, DisguiseFont, DisguiseAPI} {
		nonce, err := newNonce()
		if err != nil {
			return BeaconSet{}, err
		}
		set.Beacons = append(set.Beacons, Beacon{
			Disguise: d,
			URL:      beaconURL(base, d, token, nonce),
			Nonce:    nonce,
		})
	}
	return set, nil
}

// Primary returns the asset beacon, embedded as the document's BeaconURL.
func (s BeaconSet) Primary() string {
	for _, b := range s.Beacons {
		if b.Disguise == DisguiseAsset {
			return b.URL
		}
	}
	if len(s.Beacons) > 0 {
		return s.Beacons[0].URL
	}
	return ""
}

// URLs returns beacon URLs keyed by disguise.
func (s BeaconSet) URLs() map[string]string {
	if len(s.Beacons) == 0 {
		return nil
	}
	out := make(map[string]string, len(s.Beacons))
	for _, b := range s.Beacons {
		out[string(b.Disguise)] = b.URL
	}
	return out
}

// ExtractToken returns the honeytoken carried by a beacon URL, read from
// the id or resource_id query parameter.
func ExtractToken(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse beacon url: %w", err)
	}
	q := u.Query()
	for _, key := range []string{"id", "resource_id"} {
		if v := q.Get(key); v != "" {
			return v, nil
		}
	}
	return "", errors.New("beacon url carries no token")
}

func beaconBase(domain string) (*url.URL, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		domain = DefaultBeaconDomain
	}
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	u, err := url.Parse(domain)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid beacon domain %q", domain)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}

func beaconURL(base *url.URL, d Disguise, token, nonce string) string {
	u := *base
	q := url.Values{}

	switch d {
	case DisguiseFont:
		u.Path += "/fonts/" + nonce + ".woff2"
		q.Set("id", token)
	case DisguiseAPI:
		u.Path += "/api/beacon"
		q.Set("resource_id", token)
	default:
		u.Path += "/assets/img/" + nonce + ".png"
		q.Set("id", token)
	}
	q.Set("n", nonce)
	u.RawQuery = q.Encode()
	return u.String()
}

func newNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
