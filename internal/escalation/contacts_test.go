package escalation

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

func contactRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "rider_id", "name", "phone_number", "relationship", "is_primary", "position", "created_at"})
}

func TestFirstContactBecomesPrimary(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, rider_id, name, phone_number`).
		WithArgs("rider-1").
		WillReturnRows(contactRows())

	mock.ExpectQuery(`INSERT INTO emergency_contacts`).
		WithArgs(pgxmock.AnyArg(), "rider-1", "Dana", "+15551234", "spouse", true, 0).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	svc := NewContactService(mock)
	contact, err := svc.Add(context.Background(), Contact{
		RiderID:      "rider-1",
		Name:         "Dana",
		PhoneNumber:  "+15551234",
		Relationship: "spouse",
		IsPrimary:    false, // ignored: an empty list always gets a primary
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !contact.IsPrimary {
		t.Fatalf("first contact not promoted to primary")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAddPrimaryDemotesExisting(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, rider_id, name, phone_number`).
		WithArgs("rider-1").
		WillReturnRows(contactRows().
			AddRow("c1", "rider-1", "Dana", "+15551234", "spouse", true, 0, time.Now()))

	mock.ExpectExec(`UPDATE emergency_contacts SET is_primary=false`).
		WithArgs("rider-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectQuery(`INSERT INTO emergency_contacts`).
		WithArgs(pgxmock.AnyArg(), "rider-1", "Sam", "+15555678", "friend", true, 1).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	svc := NewContactService(mock)
	_, err = svc.Add(context.Background(), Contact{
		RiderID:      "rider-1",
		Name:         "Sam",
		PhoneNumber:  "+15555678",
		Relationship: "friend",
		IsPrimary:    true,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRemovePrimaryPromotesNext(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, rider_id, name, phone_number`).
		WithArgs("c1").
		WillReturnRows(contactRows().
			AddRow("c1", "rider-1", "Dana", "+15551234", "spouse", true, 0, time.Now()))

	mock.ExpectExec(`DELETE FROM emergency_contacts`).
		WithArgs("c1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	mock.ExpectExec(`UPDATE emergency_contacts SET is_primary=true`).
		WithArgs("rider-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	svc := NewContactService(mock)
	if err := svc.Remove(context.Background(), "c1"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdatePatchesFields(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, rider_id, name, phone_number`).
		WithArgs("c2").
		WillReturnRows(contactRows().
			AddRow("c2", "rider-1", "Sam", "+15555678", "friend", false, 1, time.Now()))

	mock.ExpectExec(`UPDATE emergency_contacts`).
		WithArgs("c2", "Sam", "+15550000", "sibling", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	svc := NewContactService(mock)
	updated, err := svc.Update(context.Background(), "c2", Contact{
		PhoneNumber:  "+15550000",
		Relationship: "sibling",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.PhoneNumber != "+15550000" || updated.Relationship != "sibling" {
		t.Fatalf("patch not applied: %+v", updated)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListOrdersPrimaryFirst(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, rider_id, name, phone_number`).
		WithArgs("rider-1").
		WillReturnRows(contactRows().
			AddRow("c2", "rider-1", "Sam", "+15555678", "friend", true, 1, time.Now()).
			AddRow("c1", "rider-1", "Dana", "+15551234", "spouse", false, 0, time.Now()))

	svc := NewContactService(mock)
	contacts, err := svc.List(context.Background(), "rider-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(contacts) != 2 || !contacts[0].IsPrimary {
		t.Fatalf("unexpected order: %+v", contacts)
	}
}
