package builder

import (
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// ComputeUnitPrice converts a lamport priority fee into a micro-lamport
// per-CU price for the given limit.
func ComputeUnitPrice(feeLamports uint64, limit uint32) uint64 {
	if limit == 0 || feeLamports == 0 {
		return 0
	}
	return mulDiv(feeLamports, 1_000_000, uint64(limit))
}

func setComputeUnitLimit(units uint32) domain.Instruction {
	return domain.Instruction{
		ProgramID: solana.ComputeBudgetProgram,
		Data:      newData([]byte{2}).u32(units).bytes(),
	}
}

func setComputeUnitPrice(microLamports uint64) domain.Instruction {
	return domain.Instruction{
		ProgramID: solana.ComputeBudgetProgram,
		Data:      newData([]byte{3}).u64(microLamports).bytes(),
	}
}

// createATAIdempotent creates owner's token account for mint if missing.
func createATAIdempotent(payerKey, ata, owner, mint string) domain.Instruction {
	return domain.Instruction{
		ProgramID: solana.AssociatedTokenProgram,
		Accounts: []domain.AccountMeta{
			payer(payerKey),
			rw(ata),
			ro(owner),
			ro(mint),
			ro(solana.SystemProgram),
			ro(solana.TokenProgram),
		},
		Data: []byte{1},
	}
}

// SystemTransfer moves lamports between system accounts.
func SystemTransfer(from, to string, lamports uint64) domain.Instruction {
	return domain.Instruction{
		ProgramID: solana.SystemProgram,
		Accounts:  []domain.AccountMeta{payer(from), rw(to)},
		Data:      newData([]byte{2, 0, 0, 0}).u64(lamports).bytes(),
	}
}

func syncNative(account string) domain.Instruction {
	return domain.Instruction{
		ProgramID: solana.TokenProgram,
		Accounts:  []domain.AccountMeta{rw(account)},
		Data:      []byte{17},
	}
}

func closeAccount(account, dest, owner string) domain.Instruction {
	return domain.Instruction{
		ProgramID: solana.TokenProgram,
		Accounts:  []domain.AccountMeta{rw(account), rw(dest), signerRO(owner)},
		Data:      []byte{9},
	}
}

// wrapSOL funds the wallet's WSOL account with lamports.
func wrapSOL(wallet, wsolATA string, lamports uint64) []domain.Instruction {
	return []domain.Instruction{
		createATAIdempotent(wallet, wsolATA, wallet, solana.WrappedSOLMint),
		SystemTransfer(wallet, wsolATA, lamports),
		syncNative(wsolATA),
	}
}
