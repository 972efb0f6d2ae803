package database

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// SubscriptionRecord is the local trace of a subscription created at checkout.
type SubscriptionRecord struct {
	SubscriptionID string
	CustomerID     string
	SessionID      string
	PlanID         string
	Period         string
	Price          decimal.Decimal
	Email          string
	LicensePlate   string
	Status         string
}

// RecordSubscription inserts the record, or refreshes it when the same
// subscription was already recorded.
func (c *Connection) RecordSubscription(ctx context.Context, rec SubscriptionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	status := rec.Status
	if status == "" {
		status = "incomplete"
	}
	now := time.Now().UTC()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO checkout_subscriptions (
			subscription_id, customer_id, session_id, plan_id, period,
			price, email, license_plate, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), updated_at = VALUES(updated_at)
	`, rec.SubscriptionID, rec.CustomerID, rec.SessionID, rec.PlanID, rec.Period,
		rec.Price.StringFixed(2), rec.Email, rec.LicensePlate, status, now, now)
	if err != nil {
		log.WithError(err).WithField("subscription", rec.SubscriptionID).Error("Error recording subscription")
		return fmt.Errorf("error recording subscription: %w", err)
	}
	return nil
}

// UpdateSubscriptionStatus marks a recorded subscription, e.g. active after confirmation.
func (c *Connection) UpdateSubscriptionStatus(ctx context.Context, subscriptionID, status string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := c.db.ExecContext(ctx,
		`UPDATE checkout_subscriptions SET status = ?, updated_at = ? WHERE subscription_id = ?`,
		status, time.Now().UTC(), subscriptionID)
	if err != nil {
		return fmt.Errorf("error updating subscription status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no subscription recorded with id %s", subscriptionID)
	}
	return nil
}
