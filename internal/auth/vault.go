package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrNoCredential means no token has been stored.
var ErrNoCredential = errors.New("no stored credential")

// errSealed is returned when a sealed value cannot be opened, usually
// because the key changed.
var errSealed = errors.New("stored credential could not be decrypted")

const (
	credentialName = "storage_token"
	nonceSize      = 24
)

// Credential is a stored sealed value.
type Credential struct {
	Value     []byte
	UpdatedAt time.Time
}

// CredentialStore persists opaque sealed values by name. GetCredential
// returns nil and no error when the name is unknown.
type CredentialStore interface {
	GetCredential(ctx context.Context, name string) (*Credential, error)
	SetCredential(ctx context.Context, name string, value []byte) error
	DeleteCredential(ctx context.Context, name string) error
}

// Vault seals tokens before handing them to a CredentialStore.
type Vault struct {
	store CredentialStore
	key   [32]byte
}

// NewVault derives the sealing key from passphrase.
func NewVault(store CredentialStore, passphrase string) *Vault {
	return &Vault{store: store, key: sha256.Sum256([]byte(passphrase))}
}

// Save seals and stores token.
func (v *Vault) Save(ctx context.Context, token string) error {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(token), &nonce, &v.key)
	return v.store.SetCredential(ctx, credentialName, sealed)
}

// Load returns the stored token and when it was saved.
func (v *Vault) Load(ctx context.Context) (string, time.Time, error) {
	cred, err := v.store.GetCredential(ctx, credentialName)
	if err != nil {
		return "", time.Time{}, err
	}
	if cred == nil {
		return "", time.Time{}, ErrNoCredential
	}
	sealed := cred.Value
	if len(sealed) < nonceSize {
		return "", time.Time{}, errSealed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &v.key)
	if !ok {
		return "", time.Time{}, errSealed
	}
	return string(plain), cred.UpdatedAt, nil
}

// Clear removes the stored token.
func (v *Vault) Clear(ctx context.Context) error {
	return v.store.DeleteCredential(ctx, credentialName)
}
