package venue

import (
	"encoding/binary"
	"errors"
	"fmt"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// pump bonding-curve account layout.
const (
	curveAccountMinLen = 81
	curveCompleteOff   = 48
	curveCreatorOff    = 49
)

// ErrShortAccount is returned for account data smaller than its layout.
var ErrShortAccount = errors.New("account data too short")

// BondingCurveAddress returns the PumpFun bonding-curve PDA for mint.
func BondingCurveAddress(mint string) (string, error) {
	m, err := solana.DecodeAddress(mint)
	if err != nil {
		return "", err
	}
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("bonding-curve"), m}, PumpFunProgram)
	return addr, err
}

// DecodeBondingCurve parses a PumpFun bonding-curve account into reserves
// and the coin creator. Older accounts without a creator yield "".
func DecodeBondingCurve(data []byte) (domain.CurveParams, string, error) {
	if len(data) < curveCompleteOff+1 {
		return domain.CurveParams{}, "", fmt.Errorf("bonding curve: %w (%d bytes)", ErrShortAccount, len(data))
	}
	le := binary.LittleEndian
	p := domain.CurveParams{
		VirtualTokenReserves: le.Uint64(data[8:16]),
		VirtualSolReserves:   le.Uint64(data[16:24]),
		RealTokenReserves:    le.Uint64(data[24:32]),
		RealSolReserves:      le.Uint64(data[32:40]),
		Complete:             data[curveCompleteOff] != 0,
	}
	creator := ""
	if len(data) >= curveAccountMinLen {
		raw := data[curveCreatorOff:curveAccountMinLen]
		if !allZero(raw) {
			creator = solana.EncodeAddress(raw)
		}
	}
	return p, creator, nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
