package oauth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultStateTTL bounds the provider round trip.
const DefaultStateTTL = 10 * time.Minute

// StateManager encodes the state parameter for the provider round trip
// and verifies it on the way back.
type StateManager interface {
	Encode(state *State) (string, error)
	Decode(token string) (*State, error)
}

// State is the data carried through the provider round trip. The code
// verifier must stay confidential, which is why the whole state is
// encrypted rather than merely signed.
type State struct {
	Nonce        string `json:"n"`
	Provider     string `json:"p"`
	CodeVerifier string `json:"cv,omitempty"`
	RedirectURL  string `json:"r,omitempty"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
}

// EncryptedStateManager seals the state with AES-GCM and appends an
// HMAC-SHA256 tag over the ciphertext. Tampering with either part
// fails closed as ErrInvalidState.
type EncryptedStateManager struct {
	encryptionKey []byte
	hmacKey       []byte
	ttl           time.Duration
}

// NewEncryptedStateManager creates a state manager. The encryption key
// must be a valid AES key length (16, 24, or 32 bytes).
func NewEncryptedStateManager(encryptionKey, hmacKey []byte, ttl time.Duration) *EncryptedStateManager {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &EncryptedStateManager{
		encryptionKey: encryptionKey,
		hmacKey:       hmacKey,
		ttl:           ttl,
	}
}

// Encode stamps missing nonce and lifetime fields, then seals and
// signs the state.
func (sm *EncryptedStateManager) Encode(state *State) (string, error) {
	if state == nil {
		return "", ErrInvalidState
	}

	now := time.Now()
	if state.Nonce == "" {
		state.Nonce = generateNonce()
	}
	if state.IssuedAt == 0 {
		state.IssuedAt = now.Unix()
	}
	if state.ExpiresAt == 0 {
		state.ExpiresAt = now.Add(sm.ttl).Unix()
	}

	plaintext, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("state marshal: %w", err)
	}

	sealed, err := sm.seal(plaintext)
	if err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(append(sealed, sm.sign(sealed)...)), nil
}

// Decode checks the signature, decrypts, and enforces expiry.
func (sm *EncryptedStateManager) Decode(token string) (*State, error) {
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("state decode: %w", err)
	}

	cut := len(data) - sha256.Size
	if cut <= 0 {
		return nil, ErrInvalidState
	}
	sealed, tag := data[:cut], data[cut:]

	if !hmac.Equal(tag, sm.sign(sealed)) {
		return nil, ErrInvalidState
	}

	plaintext, err := sm.open(sealed)
	if err != nil {
		return nil, ErrInvalidState
	}

	state := new(State)
	if err := json.Unmarshal(plaintext, state); err != nil {
		return nil, fmt.Errorf("state unmarshal: %w", err)
	}

	if time.Now().Unix() > state.ExpiresAt {
		return nil, ErrStateExpired
	}

	return state, nil
}

func (sm *EncryptedStateManager) sign(data []byte) []byte {
	mac := hmac.New(sha256.New, sm.hmacKey)
	mac.Write(data)
	return mac.Sum(nil)
}

func (sm *EncryptedStateManager) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(sm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("state cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// seal encrypts the plaintext, prefixing the GCM nonce.
func (sm *EncryptedStateManager) seal(plaintext []byte) ([]byte, error) {
	gcm, err := sm.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("state nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (sm *EncryptedStateManager) open(sealed []byte) ([]byte, error) {
	gcm, err := sm.aead()
	if err != nil {
		return nil, err
	}

	size := gcm.NonceSize()
	if len(sealed) < size {
		return nil, ErrInvalidState
	}

	return gcm.Open(nil, sealed[:size], sealed[size:], nil)
}

func generateNonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

func generateCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func computeCodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
