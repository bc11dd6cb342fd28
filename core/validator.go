package core

import (
	"fmt"
	"strings"
)

// Validator applies the schema-specific acceptance rules for presented and
// revoked credentials. It is a pure decision function over a credential plus
// its freshly polled registry status.
type Validator struct {
	authority string
	schemas   map[string]struct{}
}

// NewValidator builds a validator trusting the given authority identifier.
// When schemas is empty the default recognized set from DefaultConfig is
// used.
func NewValidator(authority string, schemas []string) (*Validator, error) {
	authority = strings.TrimSpace(authority)
	if authority == "" {
		return nil, fmt.Errorf("core: trusted authority identifier is required")
	}
	if len(schemas) == 0 {
		schemas = DefaultConfig().Schemas
	}
	recognized := make(map[string]struct{}, len(schemas))
	for _, schema := range schemas {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			continue
		}
		recognized[schema] = struct{}{}
	}
	if len(recognized) == 0 {
		return nil, fmt.Errorf("core: at least one recognized schema is required")
	}
	return &Validator{
		authority: authority,
		schemas:   recognized,
	}, nil
}

// Authority returns the configured trusted authority identifier.
func (v *Validator) Authority() string {
	if v == nil {
		return ""
	}
	return v.authority
}

// Validate decides whether the credential may advance for the given action.
//
// For ActionIssue a nil return accepts the presentation; a rejection carries
// one of the taxonomy codes (invalid state, unsupported schema, untrusted
// issuer) and is terminal for the record.
//
// For ActionRevoke a nil return confirms the revocation is reflected in the
// registry; ErrNotYetDecidable means the status has not caught up and the
// caller must retry rather than discard.
func (v *Validator) Validate(cred Credential, status RegistryStatus, action string) error {
	if v == nil {
		return fmt.Errorf("core: validator is not configured")
	}
	switch action {
	case ActionIssue:
		return v.validateIssue(cred, status)
	case ActionRevoke:
		return v.validateRevoke(status)
	default:
		return fmt.Errorf("core: unknown validation action %q", action)
	}
}

func (v *Validator) validateIssue(cred Credential, status RegistryStatus) error {
	if status.EventType != EventIssued && status.EventType != EventBackerIssued {
		return InvalidCredentialStateError(fmt.Sprintf(
			"credential %s from issuer %s is not in an issued state",
			cred.SAID, cred.IssuerPrefix,
		))
	}
	if _, ok := v.schemas[cred.SchemaID]; !ok {
		return UnsupportedSchemaError(fmt.Sprintf(
			"credential %s is of unsupported schema %s from issuer %s",
			cred.SAID, cred.SchemaID, cred.IssuerPrefix,
		))
	}
	if cred.SchemaID == SchemaIDCard && cred.IssuerPrefix != v.authority {
		return UntrustedIssuerError(fmt.Sprintf(
			"identity card credential %s not issued by the trusted authority",
			cred.SAID,
		))
	}
	return nil
}

func (v *Validator) validateRevoke(status RegistryStatus) error {
	switch status.EventType {
	case EventRevoked, EventBackerRevoked:
		return nil
	default:
		// Issued, backer-issued, or unknown: the revocation event has not
		// reached the registry yet.
		return ErrNotYetDecidable
	}
}
