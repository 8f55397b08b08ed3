package escalation

import (
	"context"
	"log"
)

// LogNotifier is the no-gateway delivery adapter: it records the attempt and
// reports success. Real deployments swap in an SMS or voice gateway behind the
// same interface.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, contact Contact, payload Payload) error {
	log.Printf("escalation notify: contact=%s phone=%s session=%s reason=%s",
		contact.Name, contact.PhoneNumber, payload.SessionID, payload.Reason)
	return nil
}
