package banking

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketbank/pocketbank/internal/ledger"
)

// MovementRequest is the body of deposit and withdrawal calls.
type MovementRequest struct {
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
}

// TransferRequest is the body of a transfer call.
type TransferRequest struct {
	AccountNumber       string          `json:"accountNumber"`
	TargetAccountNumber string          `json:"targetAccountNumber"`
	Amount              decimal.Decimal `json:"amount"`
}

// AccountResponse renders one account.
type AccountResponse struct {
	AccountNumber string    `json:"account_number"`
	UserID        string    `json:"user_id"`
	Balance       string    `json:"balance"`
	CreatedAt     time.Time `json:"created_at"`
}

// TransactionResponse renders one ledger row. Transfer rows also carry the
// counterparty under a direction specific name.
type TransactionResponse struct {
	TransactionID             int64     `json:"transaction_id"`
	AccountNumber             string    `json:"account_number"`
	Type                      string    `json:"type"`
	Amount                    string    `json:"amount"`
	CounterpartyAccountNumber *string   `json:"counterparty_account_number"`
	TargetAccountNumber       string    `json:"target_account_number,omitempty"`
	SourceAccountNumber       string    `json:"source_account_number,omitempty"`
	CreatedAt                 time.Time `json:"created_at"`
}

func toAccountResponse(a ledger.Account) AccountResponse {
	return AccountResponse{
		AccountNumber: a.Number,
		UserID:        a.OwnerID,
		Balance:       a.Balance.StringFixed(2),
		CreatedAt:     a.CreatedAt,
	}
}

func toTransactionResponse(t ledger.Transaction) TransactionResponse {
	resp := TransactionResponse{
		TransactionID: t.ID,
		AccountNumber: t.AccountNumber,
		Type:          string(t.Kind),
		Amount:        t.Amount.StringFixed(2),
		CreatedAt:     t.CreatedAt,
	}
	if t.Counterparty != "" {
		counterparty := t.Counterparty
		resp.CounterpartyAccountNumber = &counterparty
	}
	switch t.Kind {
	case ledger.KindTransferOut:
		resp.TargetAccountNumber = t.Counterparty
	case ledger.KindTransferIn:
		resp.SourceAccountNumber = t.Counterparty
	}
	return resp
}
