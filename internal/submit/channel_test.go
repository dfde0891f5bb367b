package submit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/solana/stub"
)

func TestConfirmer_Landed(t *testing.T) {
	rpc := stub.NewRPCClient()
	c := NewConfirmer(rpc, 5*time.Millisecond)

	go func() {
		time.Sleep(20 * time.Millisecond)
		rpc.SetStatus("sig1", &solana.SignatureStatus{Slot: 100, ConfirmationStatus: "processed"})
		time.Sleep(20 * time.Millisecond)
		rpc.SetStatus("sig1", &solana.SignatureStatus{Slot: 100, ConfirmationStatus: "confirmed"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	slot, err := c.Wait(ctx, "sig1")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), slot)
}

func TestConfirmer_FailedAndTimeout(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetStatus("bad", &solana.SignatureStatus{Slot: 5, Err: map[string]interface{}{"InstructionError": []interface{}{2, "Custom"}}})
	c := NewConfirmer(rpc, 5*time.Millisecond)

	_, err := c.Wait(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrTransactionFailed)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = c.Wait(ctx, "missing")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRelayChannel_Submit(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SendFunc = func(encoded string) (string, error) {
		assert.Equal(t, "AQID", encoded)
		rpc.SetStatus("sigR", &solana.SignatureStatus{Slot: 101, ConfirmationStatus: "confirmed"})
		return "sigR", nil
	}
	relay := NewRelayChannel(rpc, NewConfirmer(rpc, 5*time.Millisecond))

	landing, err := relay.Submit(context.Background(), &domain.BuildPlan{}, &SignedTx{Signature: "sigR", Encoded: "AQID"})
	require.NoError(t, err)
	assert.Equal(t, Landing{Signature: "sigR", Slot: 101}, landing)
	assert.Equal(t, ChannelRelay, relay.Name())
}

type recordingSender struct {
	opts solana.SendOpts
}

func (r *recordingSender) SendTransaction(_ context.Context, _ string, opts solana.SendOpts) (string, error) {
	r.opts = opts
	return "", errors.New("relay rejected")
}

func TestRelayChannel_SendOptions(t *testing.T) {
	sender := &recordingSender{}
	relay := NewRelayChannel(sender, NewConfirmer(stub.NewRPCClient(), time.Millisecond))

	_, err := relay.Submit(context.Background(), &domain.BuildPlan{}, &SignedTx{Signature: "s"})
	require.Error(t, err)
	assert.True(t, sender.opts.SkipPreflight)
	require.NotNil(t, sender.opts.MaxRetries)
	assert.Equal(t, uint(0), *sender.opts.MaxRetries)
}

type fakeEngine struct {
	mu     sync.Mutex
	method string
	txs    []string
	err    error
	onCall func()
}

func (f *fakeEngine) Call(_ context.Context, method string, params []interface{}, result interface{}) error {
	f.mu.Lock()
	f.method = method
	f.txs = params[0].([]string)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.onCall != nil {
		f.onCall()
	}
	*(result.(*string)) = "bundle-1"
	return nil
}

type fakeSigner struct {
	mu       sync.Mutex
	tipCalls []domain.Instruction
	err      error
}

func (f *fakeSigner) SignPlan(_ context.Context, plan *domain.BuildPlan) (*SignedTx, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &SignedTx{Signature: "sig-" + plan.ID, Encoded: "main-" + plan.ID, Blockhash: "bh", Payer: plan.Wallet}, nil
}

func (f *fakeSigner) SignInstructions(_ context.Context, payer string, ixs []domain.Instruction, blockhash string) (*SignedTx, error) {
	f.mu.Lock()
	f.tipCalls = append(f.tipCalls, ixs...)
	f.mu.Unlock()
	return &SignedTx{Signature: "tip", Encoded: "tip-tx", Blockhash: blockhash, Payer: payer}, nil
}

func TestBundleChannel_Submit(t *testing.T) {
	rpc := stub.NewRPCClient()
	engine := &fakeEngine{onCall: func() {
		rpc.SetStatus("sig-p1", &solana.SignatureStatus{Slot: 99, ConfirmationStatus: "finalized"})
	}}
	signer := &fakeSigner{}
	b := NewBundleChannel(engine, signer, NewConfirmer(rpc, 5*time.Millisecond), BundleConfig{BuyTip: 200_000, SellTip: 10})

	plan := &domain.BuildPlan{ID: "p1", Wallet: "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", Direction: domain.Buy}
	landing, err := b.Submit(context.Background(), plan, &SignedTx{Signature: "sig-p1", Encoded: "main-p1", Blockhash: "bh"})
	require.NoError(t, err)
	assert.Equal(t, uint64(99), landing.Slot)

	assert.Equal(t, "sendBundle", engine.method)
	assert.Equal(t, []string{"main-p1", "tip-tx"}, engine.txs, "bundle is [main, tip]")

	require.Len(t, signer.tipCalls, 1)
	tip := signer.tipCalls[0]
	assert.Equal(t, solana.SystemProgram, tip.ProgramID)
	assert.Equal(t, TipAccounts[0], tip.Accounts[1].Pubkey)
}

func TestBundleChannel_TipFloorAndRotation(t *testing.T) {
	b := NewBundleChannel(nil, nil, nil, BundleConfig{BuyTip: 5000, SellTip: 10})
	assert.Equal(t, uint64(5000), b.Tip(domain.Buy))
	assert.Equal(t, uint64(MinTipLamports), b.Tip(domain.Sell))

	seen := make(map[string]bool)
	for range TipAccounts {
		seen[b.tipAccount()] = true
	}
	assert.Len(t, seen, len(TipAccounts))
	assert.Equal(t, TipAccounts[0], b.tipAccount(), "rotation wraps")
}

func TestBundleChannel_Timeout(t *testing.T) {
	rpc := stub.NewRPCClient()
	b := NewBundleChannel(&fakeEngine{}, &fakeSigner{}, NewConfirmer(rpc, 5*time.Millisecond), BundleConfig{Timeout: 30 * time.Millisecond})

	_, err := b.Submit(context.Background(), &domain.BuildPlan{ID: "p1"}, &SignedTx{Signature: "never"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.AttemptTimedOut, attemptStatus(err))
}
