package config

type BillingConfig interface {
	GetBillingBaseURL() string
	GetBillingAPIKey() string
}

type Billing struct{}

var _ BillingConfig = Billing{}

func (Billing) GetBillingBaseURL() string {
	return GetEnv("BILLING_BASE_URL", "https://api.revenuecat.com")
}

// GetBillingAPIKey returns an empty string when billing alignment is disabled.
func (Billing) GetBillingAPIKey() string {
	return GetEnv("BILLING_API_KEY", "")
}
