package store

import "time"

// WebhookDelivery is one queued webhook attempt. Status moves
// pending -> retry -> delivered | failed.
type WebhookDelivery struct {
	ID             string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
	NextAttemptAt  time.Time
	LastError      string
	ResponseCode   int
	LatencyMs      int
}
