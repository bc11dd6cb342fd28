package core

import (
	"fmt"
	"strings"
	"time"
)

// Transaction event log event types for a credential's registry status.
const (
	EventIssued        = "iss"
	EventRevoked       = "rev"
	EventBackerIssued  = "bis"
	EventBackerRevoked = "brv"
	EventUnknown       = ""
)

// Actions a record moves through the pipeline for.
const (
	ActionIssue  = "iss"
	ActionRevoke = "rev"
)

// Well-known credential schema SAIDs from the vLEI ecosystem.
const (
	SchemaQVI         = "EBfdlu8R27Fbx-ehrqwImnK-8Cm79sqbAQ4MmvEAYqao"
	SchemaLegalEntity = "ENPXp1vQzRF6JwIuS-mp2U8Uf1MoADoP_GqQ62VsDZWY"
	SchemaOORAuth     = "EKA57bKBKxr_kN7iN5i7lMUxpMG-s19dRcmov1iDxz-E"
	SchemaOOR         = "EBNaNu-M9P5cgrnfl2Fvymy4E_jvxxyjb70PRtiANlJy"
	SchemaIDCard      = "EEYMNgyQNHWrsO4m65Px84M93o2url6aUpTFqNdMZdKt"
)

// Credential is the read side of a verified credential keyed by its SAID.
// The pipeline never mutates credentials; they are owned by the external
// credential store.
type Credential struct {
	SAID         string
	SchemaID     string
	IssuerPrefix string
	IssueePrefix string
	Attributes   map[string]any
	RegistryKey  string
}

// Attribute returns the named credential attribute as a string, or "" when
// absent or not string-shaped.
func (c Credential) Attribute(name string) string {
	if len(c.Attributes) == 0 {
		return ""
	}
	value, ok := c.Attributes[name]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return text
}

// RegistryStatus is the lifecycle state of a credential as derived from its
// transaction event log at query time. It is recomputed on every poll and
// must never be cached by the pipeline.
type RegistryStatus struct {
	EventType string
	Timestamp string
}

// Notice is an ingested exchange-protocol event referencing a credential.
type Notice interface {
	Type() string
	Subject() string
	Actor() string
}

// PresentationNotice records that a counterparty presented a credential.
type PresentationNotice struct {
	SenderPrefix string
	SAID         string
}

func (n PresentationNotice) Type() string { return "verify.notice.presentation" }

func (n PresentationNotice) Subject() string { return n.SAID }

func (n PresentationNotice) Actor() string { return n.SenderPrefix }

func (n PresentationNotice) Validate() error {
	if strings.TrimSpace(n.SenderPrefix) == "" {
		return fmt.Errorf("core: presentation notice requires a sender prefix")
	}
	if strings.TrimSpace(n.SAID) == "" {
		return fmt.Errorf("core: presentation notice requires a credential SAID")
	}
	return nil
}

// RevocationNotice records that a counterparty announced a revocation.
type RevocationNotice struct {
	SenderPrefix string
	SAID         string
}

func (n RevocationNotice) Type() string { return "verify.notice.revocation" }

func (n RevocationNotice) Subject() string { return n.SAID }

func (n RevocationNotice) Actor() string { return n.SenderPrefix }

func (n RevocationNotice) Validate() error {
	if strings.TrimSpace(n.SenderPrefix) == "" {
		return fmt.Errorf("core: revocation notice requires a sender prefix")
	}
	if strings.TrimSpace(n.SAID) == "" {
		return fmt.Errorf("core: revocation notice requires a credential SAID")
	}
	return nil
}

// Notification is the outbound event handed to the dispatcher once a record
// has been validated. EnqueuedAt is the escrow window of the record that
// produced it; a re-presented credential starts a new window, so the stamp
// ties every delivery result to exactly one record lifecycle.
type Notification struct {
	SAID       string
	Resource   string
	Action     string
	Actor      string
	Credential Credential
	Status     RegistryStatus
	EnqueuedAt time.Time
}

// DeliveryOutcome reports the observed result of one webhook delivery
// attempt. Err is nil when the subscriber answered 2xx. EnqueuedAt carries
// the window stamp of the notification the attempt served.
type DeliveryOutcome struct {
	SAID       string
	Action     string
	EnqueuedAt time.Time
	Err        error
}
