package submit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"solana-copy-trader/internal/builder"
	"solana-copy-trader/internal/domain"
)

// MinTipLamports is the smallest tip the block engine accepts.
const MinTipLamports = 1000

// TipAccounts receive bundle tips; one is picked per bundle.
var TipAccounts = []string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
}

// BundleCaller issues block engine JSON-RPC calls. Satisfied by *solana.HTTPClient.
type BundleCaller interface {
	Call(ctx context.Context, method string, params []interface{}, result interface{}) error
}

// BundleConfig configures a BundleChannel.
type BundleConfig struct {
	BuyTip  uint64 // lamports
	SellTip uint64 // lamports
	// Timeout bounds the bundle attempt independently of the plan deadline.
	Timeout time.Duration
}

// BundleChannel submits [trade tx, tip tx] as an all-or-nothing bundle.
type BundleChannel struct {
	engine    BundleCaller
	signer    TxSigner
	confirmer *Confirmer
	cfg       BundleConfig
	next      atomic.Uint32
}

// NewBundleChannel creates a bundle channel.
func NewBundleChannel(engine BundleCaller, signer TxSigner, confirmer *Confirmer, cfg BundleConfig) *BundleChannel {
	return &BundleChannel{
		engine:    engine,
		signer:    signer,
		confirmer: confirmer,
		cfg:       cfg,
	}
}

// Name implements Channel.
func (b *BundleChannel) Name() string { return ChannelBundle }

// Tip returns the fixed tip for direction, floored at MinTipLamports.
func (b *BundleChannel) Tip(d domain.Direction) uint64 {
	tip := b.cfg.BuyTip
	if d == domain.Sell {
		tip = b.cfg.SellTip
	}
	if tip < MinTipLamports {
		tip = MinTipLamports
	}
	return tip
}

// tipAccount rotates through TipAccounts.
func (b *BundleChannel) tipAccount() string {
	i := b.next.Add(1) - 1
	return TipAccounts[int(i)%len(TipAccounts)]
}

// Submit implements Channel.
func (b *BundleChannel) Submit(ctx context.Context, plan *domain.BuildPlan, tx *SignedTx) (Landing, error) {
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	tipIx := builder.SystemTransfer(plan.Wallet, b.tipAccount(), b.Tip(plan.Direction))
	tipTx, err := b.signer.SignInstructions(ctx, plan.Wallet, []domain.Instruction{tipIx}, tx.Blockhash)
	if err != nil {
		return Landing{Signature: tx.Signature}, fmt.Errorf("sign tip: %w", err)
	}

	params := []interface{}{
		[]string{tx.Encoded, tipTx.Encoded},
		map[string]string{"encoding": "base64"},
	}
	var bundleID string
	if err := b.engine.Call(ctx, "sendBundle", params, &bundleID); err != nil {
		return Landing{Signature: tx.Signature}, fmt.Errorf("send bundle: %w", err)
	}

	slot, err := b.confirmer.Wait(ctx, tx.Signature)
	if err != nil {
		return Landing{Signature: tx.Signature}, err
	}
	return Landing{Signature: tx.Signature, Slot: slot}, nil
}
