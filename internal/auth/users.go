// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package auth

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/decoyshield/internal/config"
)

const bcryptCost = 12

// User is a directory entry without its secret.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type userRecord struct {
	role string
	hash []byte
}

// UserDirectory is a static set of users loaded from configuration.
// Plaintext passwords are hashed once at load time.
type UserDirectory struct {
	users map[string]userRecord
	dummy []byte
}

// NewUserDirectory builds the directory from AdminUsername/AdminPassword
// and the Users list ("name:password:role"). A password starting with "$2"
// is taken as an existing bcrypt hash.
func NewUserDirectory(cfg *config.SecurityConfig) (*UserDirectory, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("decoyshield-timing-pad"), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	d := &UserDirectory{users: make(map[string]userRecord), dummy: dummy}

	if cfg.AdminUsername != "" {
		if err := d.add(cfg.AdminUsername, cfg.AdminPassword, RoleAdmin); err != nil {
			return nil, err
		}
	}
	for _, entry := range cfg.Users {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid user entry for %q", strings.SplitN(entry, ":", 2)[0])
		}
		if err := d.add(parts[0], parts[1], parts[2]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *UserDirectory) add(username, password, role string) error {
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}
	hash := []byte(password)
	if !strings.HasPrefix(password, "$2") {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", username, err)
		}
	}
	d.users[username] = userRecord{role: role, hash: hash}
	return nil
}

// Authenticate checks the password and returns the user. Unknown users are
// compared against a padding hash so both failures take the same time.
func (d *UserDirectory) Authenticate(username, password string) (User, error) {
	rec, ok := d.users[username]
	hash := rec.hash
	if !ok {
		hash = d.dummy
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !ok {
		return User{}, ErrInvalidCredentials
	}
	return User{Username: username, Role: rec.role}, nil
}

// Lookup returns the user without checking a password.
func (d *UserDirectory) Lookup(username string) (User, bool) {
	rec, ok := d.users[username]
	if !ok {
		return User{}, false
	}
	return User{Username: username, Role: rec.role}, true
}

// Users lists the directory sorted by name.
func (d *UserDirectory) Users() []User {
	out := make([]User, 0, len(d.users))
	for name, rec := range d.users {
		out = append(out, User{Username: name, Role: rec.role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
