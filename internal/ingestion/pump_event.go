package ingestion

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/venue"
)

const programDataPrefix = "Program data: "

// tradeEventDisc is the anchor event discriminator of the PumpFun TradeEvent.
var tradeEventDisc = anchorEventDiscriminator("TradeEvent")

func anchorEventDiscriminator(name string) [8]byte {
	h := sha256.Sum256([]byte("event:" + name))
	var d [8]byte
	copy(d[:], h[:8])
	return d
}

// TradeEvent field offsets after the discriminator.
const (
	teMint         = 0
	teSolAmount    = 32
	teTokenAmount  = 40
	teIsBuy        = 48
	teUser         = 49
	teTimestamp    = 81
	teVirtualSol   = 89
	teVirtualToken = 97
	teRealSol      = 105
	teRealToken    = 113
	teCreator      = 169
	teMinLen       = 105
)

var errNotTradeEvent = errors.New("not a trade event")

// PumpTradeEvent is the decoded PumpFun TradeEvent.
type PumpTradeEvent struct {
	Mint                 string
	SolAmount            uint64
	TokenAmount          uint64
	IsBuy                bool
	User                 string
	Timestamp            int64
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64
	Creator              string
}

// Curve returns the post-trade curve state carried by the event.
func (e PumpTradeEvent) Curve() domain.CurveParams {
	return domain.CurveParams{
		VirtualSolReserves:   e.VirtualSolReserves,
		VirtualTokenReserves: e.VirtualTokenReserves,
		RealSolReserves:      e.RealSolReserves,
		RealTokenReserves:    e.RealTokenReserves,
	}
}

// DecodePumpTradeEvent decodes the payload of a "Program data:" log line.
// Older events without real reserves or creator leave those fields zero.
func DecodePumpTradeEvent(payload string) (PumpTradeEvent, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return PumpTradeEvent{}, err
	}
	if len(raw) < 8 || [8]byte(raw[:8]) != tradeEventDisc {
		return PumpTradeEvent{}, errNotTradeEvent
	}
	d := raw[8:]
	if len(d) < teMinLen {
		return PumpTradeEvent{}, errNotTradeEvent
	}
	le := binary.LittleEndian
	ev := PumpTradeEvent{
		Mint:                 solana.EncodeAddress(d[teMint : teMint+32]),
		SolAmount:            le.Uint64(d[teSolAmount:]),
		TokenAmount:          le.Uint64(d[teTokenAmount:]),
		IsBuy:                d[teIsBuy] != 0,
		User:                 solana.EncodeAddress(d[teUser : teUser+32]),
		Timestamp:            int64(le.Uint64(d[teTimestamp:])),
		VirtualSolReserves:   le.Uint64(d[teVirtualSol:]),
		VirtualTokenReserves: le.Uint64(d[teVirtualToken:]),
	}
	if len(d) >= teRealToken+8 {
		ev.RealSolReserves = le.Uint64(d[teRealSol:])
		ev.RealTokenReserves = le.Uint64(d[teRealToken:])
	}
	if len(d) >= teCreator+32 {
		ev.Creator = solana.EncodeAddress(d[teCreator : teCreator+32])
	}
	return ev, nil
}

// logScan is what the log walk extracts from one transaction.
type logScan struct {
	programs    []string // every invoked program, first-seen order
	pumpEvents  []PumpTradeEvent
	mintCreated bool
	migratedTo  domain.Venue
}

// scanLogs walks the invoke stack so "Program data:" lines are attributed
// to the program that emitted them.
func scanLogs(logs []string) logScan {
	var (
		out   logScan
		stack []string
		seen  = make(map[string]struct{})
	)
	top := func() string {
		if len(stack) == 0 {
			return ""
		}
		return stack[len(stack)-1]
	}

	for _, line := range logs {
		switch {
		case strings.HasPrefix(line, "Program ") && strings.Contains(line, " invoke ["):
			id := strings.Fields(line)[1]
			stack = append(stack, id)
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out.programs = append(out.programs, id)
			}

		case strings.HasPrefix(line, "Program ") && (strings.HasSuffix(line, " success") || strings.Contains(line, " failed")):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}

		case strings.HasPrefix(line, programDataPrefix):
			if top() != venue.PumpFunProgram {
				continue
			}
			if ev, err := DecodePumpTradeEvent(strings.TrimPrefix(line, programDataPrefix)); err == nil {
				out.pumpEvents = append(out.pumpEvents, ev)
			}

		case line == "Program log: Instruction: InitializeMint2",
			line == "Program log: Instruction: Create" && top() == venue.PumpFunProgram:
			out.mintCreated = true

		case line == "Program log: Instruction: Migrate" && top() == venue.PumpFunProgram:
			out.migratedTo = domain.VenuePumpSwap

		case line == "Program log: Instruction: MigrateToCpswap" && top() == venue.RaydiumLaunchpadProgram:
			out.migratedTo = domain.VenueRaydiumCPMM
		}
	}
	return out
}
