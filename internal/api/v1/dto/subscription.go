package dto

// SubscriptionCheckoutRequest is the body of POST /subscriptions/checkout.
type SubscriptionCheckoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=monthly annual"`
}

// URLResponse carries a redirect target.
type URLResponse struct {
	URL string `json:"url"`
}
