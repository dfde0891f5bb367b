package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

const (
	maxRetries     = 3
	baseRetryDelay = 200 * time.Millisecond
)

// TransactionFetcher loads full transactions. Satisfied by solana.RPCClient.
type TransactionFetcher interface {
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// retryGetTransaction fetches a transaction with exponential backoff retry.
// A confirmed notification can precede the node's transaction index, so
// not-found results are retried too.
func retryGetTransaction(ctx context.Context, rpc TransactionFetcher, signature string, log zerolog.Logger) (*solana.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		tx, err := rpc.GetTransaction(ctx, signature)
		if err == nil && tx != nil {
			return tx, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		delay := baseRetryDelay * time.Duration(1<<attempt)
		log.Debug().Err(err).Int("attempt", attempt+1).Str("signature", signature).Dur("delay", delay).Msg("retry getTransaction")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// WSSource follows source wallets through logsSubscribe and normalizes
// each of their transactions.
type WSSource struct {
	ws      solana.WSClient
	rpc     TransactionFetcher
	wallets []string
	log     zerolog.Logger
}

// NewWSSource creates a source watching wallets.
func NewWSSource(ws solana.WSClient, rpc TransactionFetcher, wallets []string, logger zerolog.Logger) *WSSource {
	return &WSSource{
		ws:      ws,
		rpc:     rpc,
		wallets: wallets,
		log:     logger.With().Str("component", "ws_source").Logger(),
	}
}

// Name implements Source.
func (s *WSSource) Name() string { return "ws" }

type walletNotification struct {
	wallet string
	notif  solana.LogNotification
}

// Subscribe implements Source. One subscription is opened per wallet since
// providers accept a single mentioned address per subscription.
func (s *WSSource) Subscribe(ctx context.Context) (<-chan domain.Observation, error) {
	merged := make(chan walletNotification, 1000)
	for _, w := range s.wallets {
		logsCh, err := s.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{w}})
		if err != nil {
			return nil, err
		}
		s.log.Info().Str("wallet", w).Msg("subscribed")

		go func(wallet string, logsCh <-chan solana.LogNotification) {
			for n := range logsCh {
				select {
				case merged <- walletNotification{wallet: wallet, notif: n}:
				case <-ctx.Done():
					return
				}
			}
		}(w, logsCh)
	}

	out := make(chan domain.Observation, 100)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case wn := <-merged:
				if wn.notif.Err != nil {
					continue
				}
				s.process(ctx, out, wn)
			}
		}
	}()
	return out, nil
}

func (s *WSSource) process(ctx context.Context, out chan<- domain.Observation, wn walletNotification) {
	tx, err := retryGetTransaction(ctx, s.rpc, wn.notif.Signature, s.log)
	if err != nil || tx == nil {
		if ctx.Err() == nil {
			s.log.Warn().Err(err).Str("signature", wn.notif.Signature).Msg("transaction unavailable, dropped")
		}
		return
	}
	if tx.Signature == "" {
		tx.Signature = wn.notif.Signature
	}
	if tx.Meta != nil && len(tx.Meta.LogMessages) == 0 {
		tx.Meta.LogMessages = wn.notif.Logs
	}

	for _, obs := range Normalize(tx, wn.wallet) {
		select {
		case out <- obs:
		case <-ctx.Done():
			return
		}
	}
}
