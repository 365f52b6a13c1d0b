package domain

// PayoutItem is one recipient/amount pair inside a batch payout. Amounts are
// integer token units (7 decimals upstream); the engine never fractions them.
type PayoutItem struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}
