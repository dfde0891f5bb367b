package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known program and account addresses.
const (
	SystemProgram          = "11111111111111111111111111111111"
	TokenProgram           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgram = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	ComputeBudgetProgram   = "ComputeBudget111111111111111111111111111111"
	WrappedSOLMint         = "So11111111111111111111111111111111111111112"
	RentSysvar             = "SysvarRent111111111111111111111111111111111"
)

const pdaMarker = "ProgramDerivedAddress"

// ErrNoViableBump is returned when no bump seed yields an off-curve address.
var ErrNoViableBump = errors.New("unable to find a viable program address bump seed")

// DecodeAddress decodes a base58 public key and checks its length.
func DecodeAddress(addr string) ([]byte, error) {
	b, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", addr, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("decode address %q: length %d", addr, len(b))
	}
	return b, nil
}

// EncodeAddress encodes raw public key bytes as base58.
func EncodeAddress(b []byte) string {
	return base58.Encode(b)
}

// FindProgramAddress derives a PDA for the given seeds and program,
// searching bump seeds from 255 down.
func FindProgramAddress(seeds [][]byte, programID string) (string, uint8, error) {
	program, err := DecodeAddress(programID)
	if err != nil {
		return "", 0, err
	}
	for _, s := range seeds {
		if len(s) > 32 {
			return "", 0, fmt.Errorf("seed length %d exceeds 32", len(s))
		}
	}

	for bump := 255; bump > 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{byte(bump)})
		h.Write(program)
		h.Write([]byte(pdaMarker))
		sum := h.Sum(nil)

		if !IsOnCurve(sum) {
			return base58.Encode(sum), uint8(bump), nil
		}
	}
	return "", 0, ErrNoViableBump
}

// MustFindProgramAddress is FindProgramAddress for constant inputs.
func MustFindProgramAddress(seeds [][]byte, programID string) string {
	addr, _, err := FindProgramAddress(seeds, programID)
	if err != nil {
		panic(err)
	}
	return addr
}

// FindAssociatedTokenAddress derives the ATA of wallet for mint under the
// classic token program.
func FindAssociatedTokenAddress(wallet, mint string) (string, error) {
	w, err := DecodeAddress(wallet)
	if err != nil {
		return "", err
	}
	m, err := DecodeAddress(mint)
	if err != nil {
		return "", err
	}
	tp, _ := DecodeAddress(TokenProgram)
	addr, _, err := FindProgramAddress([][]byte{w, tp, m}, AssociatedTokenProgram)
	return addr, err
}

// IsOnCurve reports whether b is a valid ed25519 point encoding.
func IsOnCurve(b []byte) bool {
	if len(b) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
