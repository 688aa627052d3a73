package keystore

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// Namespace is the conventional namespace a KeyStore's store is opened on.
const Namespace = "keystore"

const keyPrefix = "private_"

var (
	ErrKeyExists   = errors.New("keystore: key already exists for this ID")
	ErrKeyNotFound = errors.New("keystore: key not found")
)

// Store is the part of a namespaced key-value store the KeyStore uses.
// *kvstore.NamespacedStore satisfies it.
type Store interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	ListLogical(ctx context.Context, prefix string) ([]string, error)
	Clear(ctx context.Context) error
}

type storedKey struct {
	DER []byte `json:"der"`
}

// KeyStore provides a key management system backed by a namespaced store.
type KeyStore struct {
	store Store
	// mu makes the exists check and the write of CreateKey/AddKey atomic
	// within this process.
	mu sync.Mutex
}

// NewKeyStore initializes a new KeyStore on store, which should already be open.
func NewKeyStore(store Store) *KeyStore {
	return &KeyStore{store: store}
}

// CreateKey generates a new ECDSA key pair and stores it under the given ID.
func (ks *KeyStore) CreateKey(ctx context.Context, id string) (*ecdsa.PrivateKey, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	if err := ks.AddKey(ctx, id, privateKey); err != nil {
		return nil, err
	}
	return privateKey, nil
}

// AddKey adds a private key to the keystore (e.g., for imported keys).
func (ks *KeyStore) AddKey(ctx context.Context, id string, privateKey *ecdsa.PrivateKey) error {
	if id == "" {
		return errors.New("keystore: id cannot be empty")
	}
	der, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to serialize private key: %w", err)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	exists, err := ks.HasKey(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return ErrKeyExists
	}
	return ks.store.Set(ctx, keyPrefix+id, storedKey{DER: der})
}

// HasKey checks if a key exists for a given ID.
func (ks *KeyStore) HasKey(ctx context.Context, id string) (bool, error) {
	return ks.store.Get(ctx, keyPrefix+id, nil)
}

// GetKey retrieves a private key by ID from storage.
func (ks *KeyStore) GetKey(ctx context.Context, id string) (*ecdsa.PrivateKey, error) {
	var stored storedKey
	found, err := ks.store.Get(ctx, keyPrefix+id, &stored)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrKeyNotFound
	}
	privateKey, err := x509.ParseECPrivateKey(stored.DER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %q: %w", id, err)
	}
	return privateKey, nil
}

// DeleteKey removes the key stored under id.
func (ks *KeyStore) DeleteKey(ctx context.Context, id string) error {
	return ks.store.Delete(ctx, keyPrefix+id)
}

// ListKeys returns the IDs of all stored keys in ascending order.
func (ks *KeyStore) ListKeys(ctx context.Context) ([]string, error) {
	keys, err := ks.store.ListLogical(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, keyPrefix)
	}
	return ids, nil
}

// Clear removes all keys from the KeyStore.
func (ks *KeyStore) Clear(ctx context.Context) error {
	return ks.store.Clear(ctx)
}

// SignMessage signs data using the private key associated with the given ID.
// The signature is the hex encoding of r and s, each left-padded to 32 bytes.
func (ks *KeyStore) SignMessage(ctx context.Context, id string, data []byte) (string, error) {
	privateKey, err := ks.GetKey(ctx, id)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	r, s, err := ecdsa.Sign(rand.Reader, privateKey, hash[:])
	if err != nil {
		return "", err
	}

	signature := make([]byte, 64)
	r.FillBytes(signature[:32])
	s.FillBytes(signature[32:])
	return hex.EncodeToString(signature), nil
}

// VerifyMessage verifies the signature against the data using the public key.
func VerifyMessage(publicKey ecdsa.PublicKey, data []byte, signature string) (bool, error) {
	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sigBytes) != 64 {
		return false, fmt.Errorf("invalid signature length %d", len(sigBytes))
	}

	r := new(big.Int).SetBytes(sigBytes[:32])
	s := new(big.Int).SetBytes(sigBytes[32:])

	hash := sha256.Sum256(data)
	return ecdsa.Verify(&publicKey, hash[:], r, s), nil
}
