package amqp

import (
	"encoding/json"
	"time"

	"tally/internal/core"
)

// LedgerUpdatedMessage announces new or changed transactions for one
// account. The payload carries the full transactions so the worker never
// races the producer's database state.
type LedgerUpdatedMessage struct {
	AccountID    string               `json:"account_id"`
	Transactions []TransactionPayload `json:"transactions"`
	Timestamp    time.Time            `json:"timestamp"`
}

// TransactionPayload is the wire form of a ledger transaction.
type TransactionPayload struct {
	ID           string         `json:"id"`
	AccountID    string         `json:"account_id"`
	Amount       float64        `json:"amount"`
	TransactedAt time.Time      `json:"transacted_at"`
	PayeeID      int            `json:"payee_id"`
	Description  string         `json:"description"`
	Splits       []SplitPayload `json:"splits"`
}

// SplitPayload is the wire form of a split.
type SplitPayload struct {
	CategoryID int     `json:"category_id"`
	Amount     float64 `json:"amount"`
}

// NewLedgerUpdatedMessage builds a message from domain transactions.
func NewLedgerUpdatedMessage(accountID string, transactions []core.Transaction) *LedgerUpdatedMessage {
	payloads := make([]TransactionPayload, len(transactions))
	for i, t := range transactions {
		splits := make([]SplitPayload, len(t.Splits))
		for j, s := range t.Splits {
			splits[j] = SplitPayload{CategoryID: s.CategoryID, Amount: s.Amount}
		}
		payloads[i] = TransactionPayload{
			ID:           t.ID,
			AccountID:    t.AccountID,
			Amount:       t.Amount,
			TransactedAt: t.TransactedAt,
			PayeeID:      t.PayeeID,
			Description:  t.Description,
			Splits:       splits,
		}
	}
	return &LedgerUpdatedMessage{
		AccountID:    accountID,
		Transactions: payloads,
		Timestamp:    time.Now(),
	}
}

// CoreTransactions converts the payload back to domain transactions.
func (m *LedgerUpdatedMessage) CoreTransactions() []core.Transaction {
	out := make([]core.Transaction, len(m.Transactions))
	for i, p := range m.Transactions {
		splits := make([]core.Split, len(p.Splits))
		for j, s := range p.Splits {
			splits[j] = core.Split{CategoryID: s.CategoryID, Amount: s.Amount}
		}
		out[i] = core.Transaction{
			ID:           p.ID,
			AccountID:    p.AccountID,
			Amount:       p.Amount,
			TransactedAt: p.TransactedAt,
			PayeeID:      p.PayeeID,
			Description:  p.Description,
			Splits:       splits,
		}
	}
	return out
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerUpdatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerUpdatedMessageFromJSON parses a message from JSON bytes.
func LedgerUpdatedMessageFromJSON(data []byte) (*LedgerUpdatedMessage, error) {
	var msg LedgerUpdatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
