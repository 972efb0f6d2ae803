package models

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing"`
}

type ConfirmationResponse struct {
	Success        bool   `json:"success"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	Status         string `json:"status,omitempty"`
	PaymentMethod  string `json:"paymentMethod,omitempty"`
	CardBrand      string `json:"cardBrand,omitempty"`
	CardLast4      string `json:"cardLast4,omitempty"`
}
