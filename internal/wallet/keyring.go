package wallet

import (
	"fmt"
	"os"
	"strings"

	solanago "github.com/gagliardetto/solana-go"

	"solana-copy-trader/internal/domain"
)

// Keyring holds signing keys by wallet address.
type Keyring struct {
	keys map[string]solanago.PrivateKey
}

// NewKeyring creates an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string]solanago.PrivateKey)}
}

// Add registers key and returns its address.
func (k *Keyring) Add(key solanago.PrivateKey) string {
	addr := key.PublicKey().String()
	k.keys[addr] = key
	return addr
}

// Key returns the private key for address.
func (k *Keyring) Key(address string) (solanago.PrivateKey, bool) {
	key, ok := k.keys[address]
	return key, ok
}

// Len returns the number of keys.
func (k *Keyring) Len() int {
	return len(k.keys)
}

// LoadKeyring reads each enabled wallet's base58 secret from the env var
// named by KeyEnv. A missing or mismatched key is a configuration error.
func LoadKeyring(wallets []domain.TrackedWallet, lookup func(string) (string, bool)) (*Keyring, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	kr := NewKeyring()
	for i, w := range wallets {
		if !w.Enabled {
			continue
		}
		field := fmt.Sprintf("wallets[%d].key_env", i)
		if w.KeyEnv == "" {
			return nil, &domain.ConfigError{Field: field, Msg: "required for enabled wallet " + w.Name}
		}
		secret, ok := lookup(w.KeyEnv)
		if !ok || strings.TrimSpace(secret) == "" {
			return nil, &domain.ConfigError{Field: field, Msg: "env " + w.KeyEnv + " is not set"}
		}
		key, err := solanago.PrivateKeyFromBase58(strings.TrimSpace(secret))
		if err != nil {
			return nil, &domain.ConfigError{Field: field, Msg: "invalid base58 secret key"}
		}
		if addr := kr.Add(key); addr != w.Address {
			return nil, &domain.ConfigError{Field: field, Msg: fmt.Sprintf("key is for %s, want %s", addr, w.Address)}
		}
	}
	return kr, nil
}
