package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Contact is the subset of a Salesforce Contact the sync reads back.
type Contact struct {
	ID    string `json:"Id" salesforce:"Id"`
	Email string `json:"Email" salesforce:"Email"`
}

// FindContactByEmail returns the first Contact with the given email, or nil.
func FindContactByEmail(ctx context.Context, c Client, email string) (*Contact, error) {
	soql := fmt.Sprintf("SELECT Id, Email FROM Contact WHERE Email = '%s' LIMIT 1", escapeSoql(email))

	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrapf(err, "sf: find contact by email %s", email)
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// UpsertContactByEmail updates the Contact matching email or creates one.
// Salesforce requires LastName on create; "Unknown" fills a missing one.
func UpsertContactByEmail(ctx context.Context, c Client, email string, fields map[string]any) (string, error) {
	if email == "" {
		return "", eris.New("sf: contact email is required")
	}
	existing, err := FindContactByEmail(ctx, c, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if err := c.UpdateOne(ctx, "Contact", existing.ID, fields); err != nil {
			return "", eris.Wrapf(err, "sf: update contact %s", existing.ID)
		}
		return existing.ID, nil
	}

	record := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		record[k] = v
	}
	record["Email"] = email
	if s, _ := record["LastName"].(string); s == "" {
		record["LastName"] = "Unknown"
	}
	id, err := c.InsertOne(ctx, "Contact", record)
	if err != nil {
		return "", eris.Wrap(err, "sf: create contact")
	}
	return id, nil
}

// escapeSoql escapes quotes and backslashes in SOQL string literals.
func escapeSoql(s string) string {
	return strings.NewReplacer(`\`, `\\`, "'", `\'`).Replace(s)
}
