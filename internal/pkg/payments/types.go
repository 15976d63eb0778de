package payments

// CheckoutParams is the provider-agnostic input for creating a hosted
// checkout session.
type CheckoutParams struct {
	ContractID  uint
	CompanyID   uint
	Kind        string
	AmountCents int64
	Currency    string
	ClientEmail string
	Description string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is what the gateway hands back: the session identifier
// that keys the payment ledger, and where to send the client.
type CheckoutSession struct {
	SessionID   string
	RedirectURL string
}

// WebhookNotice is the single internal shape every gateway notification
// is normalized into before core logic runs. Contract and company IDs
// come from the gateway's own session metadata, never from caller input.
type WebhookNotice struct {
	EventID     string
	SessionID   string
	Paid        bool
	AmountCents int64
	Currency    string
	ContractID  uint
	CompanyID   uint
	Kind        string
}
