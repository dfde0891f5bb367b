package stub

import (
	"context"
	"errors"
	"sync"

	"solana-copy-trader/internal/solana"
)

// ErrNotFound is returned when a transaction is not found.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient and solana.Sender for testing.
// Maps may be populated directly before use; mutate through methods after.
type RPCClient struct {
	mu sync.Mutex

	Transactions map[string]*solana.Transaction
	Accounts     map[string]*solana.AccountInfo
	Balances     map[string]uint64
	Statuses     map[string]*solana.SignatureStatus
	Blockhash    solana.Blockhash

	// SendFunc overrides SendTransaction when set.
	SendFunc func(encoded string) (string, error)
	// Sent records every encoded transaction passed to SendTransaction.
	Sent []string

	BalanceErr error
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*solana.Transaction),
		Accounts:     make(map[string]*solana.AccountInfo),
		Balances:     make(map[string]uint64),
		Statuses:     make(map[string]*solana.SignatureStatus),
		Blockhash:    solana.Blockhash{Hash: "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N", LastValidBlockHeight: 1000},
	}
}

// GetTransaction retrieves a transaction by signature from the stub store.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, ok := c.Transactions[signature]
	if !ok {
		return nil, ErrNotFound
	}
	return tx, nil
}

// GetAccountInfo returns a stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Accounts[pubkey], nil
}

// GetBalance returns the stored balance, zero when unknown.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BalanceErr != nil {
		return 0, c.BalanceErr
	}
	return c.Balances[pubkey], nil
}

// SetBalance updates a balance.
func (c *RPCClient) SetBalance(pubkey string, lamports uint64) {
	c.mu.Lock()
	c.Balances[pubkey] = lamports
	c.mu.Unlock()
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(context.Context) (*solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bh := c.Blockhash
	return &bh, nil
}

// GetSignatureStatuses looks up each signature in Statuses.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		out[i] = c.Statuses[sig]
	}
	return out, nil
}

// SetStatus records a signature status.
func (c *RPCClient) SetStatus(signature string, status *solana.SignatureStatus) {
	c.mu.Lock()
	c.Statuses[signature] = status
	c.mu.Unlock()
}

// SendTransaction records the payload and delegates to SendFunc.
func (c *RPCClient) SendTransaction(_ context.Context, encoded string, _ solana.SendOpts) (string, error) {
	c.mu.Lock()
	c.Sent = append(c.Sent, encoded)
	fn := c.SendFunc
	c.mu.Unlock()
	if fn != nil {
		return fn(encoded)
	}
	return "", errors.New("send not configured")
}
