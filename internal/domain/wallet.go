package domain

// TrackedWallet is one of the operator's execution wallets.
// Loaded once at startup; balances are tracked separately.
type TrackedWallet struct {
	Name       string
	Address    string
	Enabled    bool
	MinBalance uint64 // lamports
	TradeSize  uint64 // lamports spent per copied buy
	KeyEnv     string // env var holding the base58 secret key
}

// SourceWallet is a counterparty whose trades are replicated.
type SourceWallet struct {
	Label    string
	Address  string
	Enabled  bool
	MinTrade uint64 // lamports; smaller observed buys are ignored
}
