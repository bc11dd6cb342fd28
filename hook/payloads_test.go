package hook

import (
	"testing"

	"github.com/goliatone/go-verify/core"
)

func TestBuildBody_IdentityCardIssuance(t *testing.T) {
	note := core.Notification{
		SAID:   "EABC123",
		Action: core.ActionIssue,
		Credential: core.Credential{
			SAID:         "EABC123",
			SchemaID:     core.SchemaIDCard,
			IssuerPrefix: "EAuthority",
			Attributes: map[string]any{
				"i":         "EHolder",
				"dt":        "2026-03-01T10:00:00+00:00",
				"firstName": "Anne",
				"lastName":  "Hale",
				"birthDate": "1990-07-12",
				"height":    "172",
				"sex":       "F",
				"origin":    "Utrecht",
				"authority": "Gemeente Utrecht",
				"expiry":    "2031-07-12",
			},
		},
	}

	body, ok := BuildBody(note).(IssuanceBody)
	if !ok {
		t.Fatalf("expected identity card body, got %T", BuildBody(note))
	}
	if body.Credential != "EABC123" || body.Issuer != "EAuthority" || body.Recipient != "EHolder" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.FirstName != "Anne" || body.Expiry != "2031-07-12" {
		t.Fatalf("attribute mapping incomplete: %+v", body)
	}
}

func TestBuildBody_GenericSchemaCarriesRawAttributes(t *testing.T) {
	note := core.Notification{
		SAID:   "EABC123",
		Action: core.ActionIssue,
		Credential: core.Credential{
			SAID:         "EABC123",
			SchemaID:     core.SchemaLegalEntity,
			IssuerPrefix: "EQVI",
			Attributes: map[string]any{
				"i":   "EEntity",
				"dt":  "2026-03-01T10:00:00+00:00",
				"LEI": "5493001KJTIIGC8Y1R12",
			},
		},
	}

	body, ok := BuildBody(note).(GenericIssuanceBody)
	if !ok {
		t.Fatalf("expected generic body, got %T", BuildBody(note))
	}
	if body.Attributes["LEI"] != "5493001KJTIIGC8Y1R12" {
		t.Fatalf("expected raw attributes to ride along, got %+v", body.Attributes)
	}
}

func TestBuildBody_Revocation(t *testing.T) {
	note := core.Notification{
		SAID:   "EABC123",
		Action: core.ActionRevoke,
		Credential: core.Credential{
			SAID:     "EABC123",
			SchemaID: core.SchemaIDCard,
		},
		Status: core.RegistryStatus{
			EventType: core.EventRevoked,
			Timestamp: "2026-03-01T12:01:00+00:00",
		},
	}

	body, ok := BuildBody(note).(RevocationBody)
	if !ok {
		t.Fatalf("expected revocation body, got %T", BuildBody(note))
	}
	if body.RevocationTimestamp != "2026-03-01T12:01:00+00:00" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Credential != "EABC123" || body.Schema != core.SchemaIDCard {
		t.Fatalf("unexpected body %+v", body)
	}
}
