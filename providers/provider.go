package providers

import "context"

// PaymentProvider is the remote card processor. Every method performs exactly
// one round trip and returns a classified *errors.Error on failure; nothing
// is retried here.
type PaymentProvider interface {
	// CreateCharge authorizes (and, when Capture is set, captures) a charge.
	CreateCharge(ctx context.Context, req CreateChargeRequest) (*Charge, error)

	RetrieveCharge(ctx context.Context, chargeID string) (*Charge, error)

	// CaptureCharge captures an authorized charge for amount minor units.
	CaptureCharge(ctx context.Context, chargeID string, amount int64) (*Charge, error)

	// ReleaseCharge cancels an uncaptured authorization so the hold on the
	// customer's funds is dropped.
	ReleaseCharge(ctx context.Context, chargeID string) (*Refund, error)

	CreateRefund(ctx context.Context, chargeID string, amount int64) (*Refund, error)

	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error)

	// RetrieveCustomer returns the customer with its default card expanded.
	RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error)

	CreateCardForCustomer(ctx context.Context, customerID, token string) (*Card, error)

	DeleteCard(ctx context.Context, customerID, cardID string) error
}

// CreateChargeRequest describes a new charge. Amount is in minor units.
type CreateChargeRequest struct {
	Amount     int64
	Currency   string
	CustomerID string
	SourceID   string
	Capture    bool
	Metadata   map[string]string
}

// CreateCustomerRequest creates a customer with Token as its first card.
type CreateCustomerRequest struct {
	Email       string
	Description string
	Token       string
}

// Charge is the normalized charge record.
type Charge struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Currency       string `json:"currency"`
	Captured       bool   `json:"captured"`
	CustomerID     string `json:"customer_id,omitempty"`
}

// Refund is the normalized refund record.
type Refund struct {
	ID       string `json:"id"`
	ChargeID string `json:"charge_id"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
}

// Card is the normalized card descriptor. Brand is the provider's own
// spelling and still has to be mapped to a models.CardBrand.
type Card struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id,omitempty"`
	Brand      string `json:"brand"`
	Last4      string `json:"last4"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
}

// Customer is the normalized customer record.
type Customer struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DefaultCard *Card  `json:"default_card,omitempty"`
}

type idempotencyKeyCtx struct{}

// WithIdempotencyKey attaches a caller-supplied key that is forwarded with
// every mutating request made under ctx.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// IdempotencyKey returns the key attached by WithIdempotencyKey, if any.
func IdempotencyKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKeyCtx{}).(string)
	return key, ok && key != ""
}
