package builder

import (
	"bytes"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// deriver derives addresses and remembers the first failure, so account
// lists can be written as one expression and checked once.
type deriver struct {
	err error
}

func (d *deriver) key(addr string) []byte {
	if d.err != nil {
		return nil
	}
	b, err := solana.DecodeAddress(addr)
	if err != nil {
		d.err = err
	}
	return b
}

func (d *deriver) pda(program string, seeds ...[]byte) string {
	if d.err != nil {
		return ""
	}
	addr, _, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		d.err = err
	}
	return addr
}

func (d *deriver) ata(owner, mint string) string {
	if d.err != nil {
		return ""
	}
	addr, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		d.err = err
	}
	return addr
}

// sortMints orders two mints by raw key bytes.
func (d *deriver) sortMints(a, b string) (string, string) {
	ka, kb := d.key(a), d.key(b)
	if d.err != nil {
		return a, b
	}
	if bytes.Compare(ka, kb) < 0 {
		return a, b
	}
	return b, a
}

func ro(pk string) domain.AccountMeta {
	return domain.AccountMeta{Pubkey: pk}
}

func rw(pk string) domain.AccountMeta {
	return domain.AccountMeta{Pubkey: pk, Writable: true}
}

func payer(pk string) domain.AccountMeta {
	return domain.AccountMeta{Pubkey: pk, Signer: true, Writable: true}
}

func signerRO(pk string) domain.AccountMeta {
	return domain.AccountMeta{Pubkey: pk, Signer: true}
}
