package hook

import (
	"github.com/goliatone/go-verify/core"
)

// IssuanceBody is the webhook body for a verified identity-card
// presentation.
type IssuanceBody struct {
	Schema         string `json:"schema"`
	Issuer         string `json:"issuer"`
	IssueTimestamp string `json:"issueTimestamp"`
	Credential     string `json:"credential"`
	Recipient      string `json:"recipient"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	BirthDate      string `json:"birthDate"`
	Height         string `json:"height"`
	Sex            string `json:"sex"`
	Origin         string `json:"origin"`
	Authority      string `json:"authority"`
	Expiry         string `json:"expiry"`
}

// GenericIssuanceBody covers recognized schemas without a dedicated field
// mapping; the raw attribute set rides along for the subscriber.
type GenericIssuanceBody struct {
	Schema         string         `json:"schema"`
	Issuer         string         `json:"issuer"`
	IssueTimestamp string         `json:"issueTimestamp"`
	Credential     string         `json:"credential"`
	Recipient      string         `json:"recipient"`
	Attributes     map[string]any `json:"attributes,omitempty"`
}

// RevocationBody is the webhook body for a confirmed revocation.
type RevocationBody struct {
	Schema              string `json:"schema"`
	Credential          string `json:"credential"`
	RevocationTimestamp string `json:"revocationTimestamp"`
}

// BuildBody assembles the JSON-serializable body for a notification.
func BuildBody(note core.Notification) any {
	if note.Action == core.ActionRevoke {
		return RevocationBody{
			Schema:              note.Credential.SchemaID,
			Credential:          note.Credential.SAID,
			RevocationTimestamp: note.Status.Timestamp,
		}
	}
	cred := note.Credential
	if cred.SchemaID == core.SchemaIDCard {
		return IssuanceBody{
			Schema:         cred.SchemaID,
			Issuer:         cred.IssuerPrefix,
			IssueTimestamp: cred.Attribute("dt"),
			Credential:     cred.SAID,
			Recipient:      cred.Attribute("i"),
			FirstName:      cred.Attribute("firstName"),
			LastName:       cred.Attribute("lastName"),
			BirthDate:      cred.Attribute("birthDate"),
			Height:         cred.Attribute("height"),
			Sex:            cred.Attribute("sex"),
			Origin:         cred.Attribute("origin"),
			Authority:      cred.Attribute("authority"),
			Expiry:         cred.Attribute("expiry"),
		}
	}
	return GenericIssuanceBody{
		Schema:         cred.SchemaID,
		Issuer:         cred.IssuerPrefix,
		IssueTimestamp: cred.Attribute("dt"),
		Credential:     cred.SAID,
		Recipient:      cred.Attribute("i"),
		Attributes:     cred.Attributes,
	}
}
