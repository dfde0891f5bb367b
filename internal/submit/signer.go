// Package submit signs build plans and races them across delivery channels.
package submit

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// ErrUnknownWallet is returned when no key is loaded for the fee payer.
var ErrUnknownWallet = errors.New("no signing key for wallet")

// KeySource looks up signing keys. Satisfied by *wallet.Keyring.
type KeySource interface {
	Key(address string) (solanago.PrivateKey, bool)
}

// BlockhashProvider returns a recent blockhash. Satisfied by *solana.BlockhashCache.
type BlockhashProvider interface {
	Get(ctx context.Context) (solana.Blockhash, error)
}

// SignedTx is a serialized, signed transaction.
type SignedTx struct {
	Signature string
	Encoded   string // base64 wire format
	Blockhash string
	Payer     string
}

// TxSigner signs plans.
type TxSigner interface {
	SignPlan(ctx context.Context, plan *domain.BuildPlan) (*SignedTx, error)
	SignInstructions(ctx context.Context, payer string, ixs []domain.Instruction, blockhash string) (*SignedTx, error)
}

// Signer compiles instructions into legacy transactions and signs them with
// the payer's key.
type Signer struct {
	keys      KeySource
	blockhash BlockhashProvider
}

// NewSigner creates a signer.
func NewSigner(keys KeySource, blockhash BlockhashProvider) *Signer {
	return &Signer{keys: keys, blockhash: blockhash}
}

// SignPlan signs plan's instructions with a cached blockhash, paid by plan.Wallet.
func (s *Signer) SignPlan(ctx context.Context, plan *domain.BuildPlan) (*SignedTx, error) {
	bh, err := s.blockhash.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.SignInstructions(ctx, plan.Wallet, plan.Instructions, bh.Hash)
}

// SignInstructions signs ixs paid by payer using blockhash, or a cached
// blockhash when empty.
func (s *Signer) SignInstructions(ctx context.Context, payer string, ixs []domain.Instruction, blockhash string) (*SignedTx, error) {
	key, ok := s.keys.Key(payer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWallet, payer)
	}
	if blockhash == "" {
		bh, err := s.blockhash.Get(ctx)
		if err != nil {
			return nil, err
		}
		blockhash = bh.Hash
	}

	hash, err := solanago.HashFromBase58(blockhash)
	if err != nil {
		return nil, fmt.Errorf("decode blockhash: %w", err)
	}
	payerKey := key.PublicKey()

	compiled := make([]solanago.Instruction, 0, len(ixs))
	for i, ix := range ixs {
		gi, err := toInstruction(ix)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		compiled = append(compiled, gi)
	}

	tx, err := solanago.NewTransaction(compiled, hash, solanago.TransactionPayer(payerKey))
	if err != nil {
		return nil, fmt.Errorf("compile transaction: %w", err)
	}
	if _, err := tx.Sign(func(pk solanago.PublicKey) *solanago.PrivateKey {
		if pk.Equals(payerKey) {
			return &key
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}
	return &SignedTx{
		Signature: tx.Signatures[0].String(),
		Encoded:   base64.StdEncoding.EncodeToString(raw),
		Blockhash: blockhash,
		Payer:     payer,
	}, nil
}

func toInstruction(ix domain.Instruction) (solanago.Instruction, error) {
	program, err := solanago.PublicKeyFromBase58(ix.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", ix.ProgramID, err)
	}
	metas := make(solanago.AccountMetaSlice, 0, len(ix.Accounts))
	for _, a := range ix.Accounts {
		pk, err := solanago.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", a.Pubkey, err)
		}
		metas = append(metas, solanago.NewAccountMeta(pk, a.Writable, a.Signer))
	}
	return solanago.NewInstruction(program, metas, ix.Data), nil
}
