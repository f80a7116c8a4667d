/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "GoCutscene"
	defaultUser    = "library"
)

// SecretStore abstracts the OS keyring so tests can swap it.
type SecretStore interface {
	Get(service, user string) (string, error)
	Set(service, user, password string) error
	Delete(service, user string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, user string) (string, error) { return keyring.Get(service, user) }
func (osKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}
func (osKeyring) Delete(service, user string) error { return keyring.Delete(service, user) }

var secrets SecretStore = osKeyring{}

// SetSecretStore replaces the keyring backend and returns the previous one.
func SetSecretStore(s SecretStore) SecretStore {
	prev := secrets
	secrets = s
	return prev
}

func keyringUser(user string) string {
	if user == "" {
		return defaultUser
	}
	return user
}

// LibraryPassword returns the stored library password for user. A missing entry is not an error.
func LibraryPassword(user string) (string, error) {
	pw, err := secrets.Get(keyringService, keyringUser(user))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return pw, err
}

// SetLibraryPassword stores the library password; an empty password deletes the entry.
func SetLibraryPassword(user, password string) error {
	if password == "" {
		err := secrets.Delete(keyringService, keyringUser(user))
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return secrets.Set(keyringService, keyringUser(user), password)
}
