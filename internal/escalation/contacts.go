package escalation

import (
	"context"
	"errors"

	"backend-motorev/internal/db"

	"github.com/google/uuid"
)

var ErrContactNotFound = errors.New("emergency contact not found")

// ContactService persists a rider's ordered emergency-contact list. The
// primary-contact invariant (at most one primary; a non-empty list always has
// one) is enforced here before anything reaches the database.
type ContactService struct {
	db db.Querier
}

func NewContactService(db db.Querier) *ContactService {
	return &ContactService{db: db}
}

func (s *ContactService) Add(ctx context.Context, input Contact) (Contact, error) {
	input.ID = uuid.NewString()

	existing, err := s.List(ctx, input.RiderID)
	if err != nil {
		return Contact{}, err
	}
	if len(existing) == 0 {
		// First contact added is the primary whether or not the caller said so.
		input.IsPrimary = true
	} else if input.IsPrimary {
		if err := s.demotePrimary(ctx, input.RiderID); err != nil {
			return Contact{}, err
		}
	}
	input.Position = len(existing)

	row := s.db.QueryRow(ctx, `
		INSERT INTO emergency_contacts (id, rider_id, name, phone_number, relationship, is_primary, position)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, input.ID, input.RiderID, input.Name, input.PhoneNumber, input.Relationship, input.IsPrimary, input.Position)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Contact{}, err
	}
	return input, nil
}

func (s *ContactService) Update(ctx context.Context, id string, patch Contact) (Contact, error) {
	contact, err := s.Get(ctx, id)
	if err != nil {
		return Contact{}, err
	}
	if patch.Name != "" {
		contact.Name = patch.Name
	}
	if patch.PhoneNumber != "" {
		contact.PhoneNumber = patch.PhoneNumber
	}
	if patch.Relationship != "" {
		contact.Relationship = patch.Relationship
	}
	if patch.IsPrimary && !contact.IsPrimary {
		if err := s.demotePrimary(ctx, contact.RiderID); err != nil {
			return Contact{}, err
		}
		contact.IsPrimary = true
	}

	_, err = s.db.Exec(ctx, `
		UPDATE emergency_contacts
		SET name=$2, phone_number=$3, relationship=$4, is_primary=$5
		WHERE id=$1
	`, contact.ID, contact.Name, contact.PhoneNumber, contact.Relationship, contact.IsPrimary)
	if err != nil {
		return Contact{}, err
	}
	return contact, nil
}

func (s *ContactService) Remove(ctx context.Context, id string) error {
	contact, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM emergency_contacts WHERE id=$1`, id); err != nil {
		return err
	}
	if !contact.IsPrimary {
		return nil
	}
	// The list must not be left without a primary: promote the first remaining.
	_, err = s.db.Exec(ctx, `
		UPDATE emergency_contacts SET is_primary=true
		WHERE id = (
			SELECT id FROM emergency_contacts
			WHERE rider_id=$1
			ORDER BY position, created_at
			LIMIT 1
		)
	`, contact.RiderID)
	return err
}

func (s *ContactService) Get(ctx context.Context, id string) (Contact, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, rider_id, name, phone_number, relationship, is_primary, position, created_at
		FROM emergency_contacts WHERE id=$1
	`, id)
	var c Contact
	if err := row.Scan(&c.ID, &c.RiderID, &c.Name, &c.PhoneNumber, &c.Relationship, &c.IsPrimary, &c.Position, &c.CreatedAt); err != nil {
		return Contact{}, ErrContactNotFound
	}
	return c, nil
}

// List returns the rider's contacts in notification order: primary first, then
// the rest by position.
func (s *ContactService) List(ctx context.Context, riderID string) ([]Contact, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, rider_id, name, phone_number, relationship, is_primary, position, created_at
		FROM emergency_contacts
		WHERE rider_id=$1
		ORDER BY is_primary DESC, position, created_at
	`, riderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.RiderID, &c.Name, &c.PhoneNumber, &c.Relationship, &c.IsPrimary, &c.Position, &c.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

func (s *ContactService) demotePrimary(ctx context.Context, riderID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE emergency_contacts SET is_primary=false
		WHERE rider_id=$1 AND is_primary=true
	`, riderID)
	return err
}
