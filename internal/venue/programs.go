package venue

import "solana-copy-trader/internal/domain"

// On-chain program IDs of supported venues.
const (
	PumpFunProgram          = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	PumpSwapProgram         = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"
	MoonshotProgram         = "MoonCVVNZFSYkqNXP6bxHLPL6QQJiMagDL3qcqUQTrG"
	RaydiumLaunchpadProgram = "LanMV9sAd7wArD4vJFi2qDdfnVhFxYSUg6eADduJ3uj"
	RaydiumCPMMProgram      = "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C"
	MeteoraDynamicProgram   = "Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB"
	MeteoraDLMMProgram      = "LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo"
	MeteoraVaultProgram     = "24Uqj9JCLxUeoC3hGfh5W3s9FM9uCHDS2SG3LYwBpyTi"
)

// Programs maps each venue to the program IDs that identify it.
var Programs = map[domain.Venue][]string{
	domain.VenuePumpFun:          {PumpFunProgram},
	domain.VenuePumpSwap:         {PumpSwapProgram},
	domain.VenueMoonshot:         {MoonshotProgram},
	domain.VenueRaydiumLaunchpad: {RaydiumLaunchpadProgram},
	domain.VenueRaydiumCPMM:      {RaydiumCPMMProgram},
	domain.VenueMeteora:          {MeteoraDynamicProgram, MeteoraDLMMProgram},
}

// IsCurveVenue reports whether the venue trades against a bonding curve.
func IsCurveVenue(v domain.Venue) bool {
	switch v {
	case domain.VenuePumpFun, domain.VenueMoonshot, domain.VenueRaydiumLaunchpad:
		return true
	}
	return false
}
