package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkopo/loanbook/internal/application/dto"
	"github.com/mkopo/loanbook/internal/domain/port"
)

// GetWalletUseCase returns a client's wallet balance and ledger.
type GetWalletUseCase struct {
	wallets port.WalletRepository
}

// NewGetWalletUseCase wires dependencies.
func NewGetWalletUseCase(wallets port.WalletRepository) *GetWalletUseCase {
	return &GetWalletUseCase{wallets: wallets}
}

func (uc *GetWalletUseCase) Execute(ctx context.Context, clientID uuid.UUID) (dto.WalletResponse, error) {
	wallet, err := uc.wallets.Get(ctx, clientID)
	if err != nil {
		return dto.WalletResponse{}, fmt.Errorf("get wallet: %w", err)
	}
	entries, err := uc.wallets.ListEntries(ctx, clientID)
	if err != nil {
		return dto.WalletResponse{}, fmt.Errorf("list wallet entries: %w", err)
	}

	resp := dto.WalletResponse{
		ClientID: wallet.ClientID,
		Balance:  wallet.Balance.Amount(),
		Currency: wallet.Balance.Currency().Code(),
		Entries:  make([]dto.WalletEntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, dto.WalletEntryResponse{
			ID:            e.ID,
			LoanID:        e.LoanID,
			TransactionID: e.TransactionID,
			Type:          string(e.Type),
			Amount:        e.Amount.Amount(),
			CreatedAt:     e.CreatedAt,
		})
	}
	return resp, nil
}
