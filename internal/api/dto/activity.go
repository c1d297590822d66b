package dto

import "github.com/invoicely/invoicely/internal/types"

// ActivityResponse lists the most recent ledger events, newest first
type ActivityResponse struct {
	Items []*types.LedgerEvent `json:"items"`
}
