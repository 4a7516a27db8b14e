// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package credential

import (
	"crypto/rand"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/tsurugidb/tsurugi-go/tgerr"
)

// ErrNoStoredToken is returned by FileStore.Load when nothing has
// been Saved yet at the store's path.
var ErrNoStoredToken = tgerr.Client("credential file store: no stored token")

// FileStore persists a single auth token at rest under the `file`
// credential kind, encrypted with ChaCha20-Poly1305 under a key kept
// alongside it. Session does not read from a FileStore: its handshake
// request carries no credential.
type FileStore struct {
	path    string // ciphertext
	keyPath string // AEAD key, 0600
}

// NewFileStore returns a FileStore keeping its ciphertext and key
// files in dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		path:    filepath.Join(dir, "token.enc"),
		keyPath: filepath.Join(dir, "token.key"),
	}
}

func (s *FileStore) loadOrCreateKey() ([]byte, error) {
	key, err := os.ReadFile(s.keyPath)
	if err == nil && len(key) == chacha20poly1305.KeySize {
		return key, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, tgerr.IO(err, "credential file store: read key")
	}
	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, tgerr.IO(err, "credential file store: generate key")
	}
	if err := os.MkdirAll(filepath.Dir(s.keyPath), 0o700); err != nil {
		return nil, tgerr.IO(err, "credential file store: create directory")
	}
	if err := os.WriteFile(s.keyPath, key, 0o600); err != nil {
		return nil, tgerr.IO(err, "credential file store: write key")
	}
	return key, nil
}

// Save encrypts token and writes it to the store's path.
func (s *FileStore) Save(token string) error {
	key, err := s.loadOrCreateKey()
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return tgerr.ClientWrap(err, "credential file store: init cipher")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return tgerr.IO(err, "credential file store: generate nonce")
	}
	ciphertext := aead.Seal(nonce, nonce, []byte(token), nil)
	if err := os.WriteFile(s.path, ciphertext, 0o600); err != nil {
		return tgerr.IO(err, "credential file store: write token")
	}
	return nil
}

// Load decrypts and returns the token previously written by Save.
func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoStoredToken
		}
		return "", tgerr.IO(err, "credential file store: read token")
	}
	key, err := s.loadOrCreateKey()
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", tgerr.ClientWrap(err, "credential file store: init cipher")
	}
	if len(data) < aead.NonceSize() {
		return "", tgerr.ErrBrokenEncoding
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", tgerr.ClientWrap(err, "credential file store: decrypt token")
	}
	return string(plain), nil
}
