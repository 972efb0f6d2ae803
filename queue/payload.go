package queue

// SubscriptionPayload is the data carried by every checkout job type.
type SubscriptionPayload struct {
	SubscriptionID string
	CustomerID     string
	SessionID      string
	PlanID         string
	PlanName       string
	Period         string
	Price          string
	Email          string
	Name           string
	LicensePlate   string
	Status         string
}

func (p SubscriptionPayload) Data() map[string]interface{} {
	return map[string]interface{}{
		"subscription_id": p.SubscriptionID,
		"customer_id":     p.CustomerID,
		"session_id":      p.SessionID,
		"plan_id":         p.PlanID,
		"plan_name":       p.PlanName,
		"period":          p.Period,
		"price":           p.Price,
		"email":           p.Email,
		"name":            p.Name,
		"license_plate":   p.LicensePlate,
		"status":          p.Status,
	}
}

func PayloadFromJob(job *Job) SubscriptionPayload {
	return SubscriptionPayload{
		SubscriptionID: job.String("subscription_id"),
		CustomerID:     job.String("customer_id"),
		SessionID:      job.String("session_id"),
		PlanID:         job.String("plan_id"),
		PlanName:       job.String("plan_name"),
		Period:         job.String("period"),
		Price:          job.String("price"),
		Email:          job.String("email"),
		Name:           job.String("name"),
		LicensePlate:   job.String("license_plate"),
		Status:         job.String("status"),
	}
}
