// Package verify implements an escrow-driven verification pipeline for
// presented credentials: notices arrive over a peer exchange transport, are
// validated against a configured trust anchor, and confirmed events are
// pushed to a subscriber webhook with signed requests.
package verify

import (
	"github.com/goliatone/go-verify/core"
)

type Config = core.Config

type HookConfig = core.HookConfig

type EscrowConfig = core.EscrowConfig

type Credential = core.Credential

type RegistryStatus = core.RegistryStatus

type Notice = core.Notice
type PresentationNotice = core.PresentationNotice
type RevocationNotice = core.RevocationNotice

type Notification = core.Notification

type CredentialStore = core.CredentialStore
type StatusOracle = core.StatusOracle
type RequestSigner = core.RequestSigner
type NoticeQueue = core.NoticeQueue
type NotificationDispatcher = core.NotificationDispatcher
type MetricsRecorder = core.MetricsRecorder

type ExchangeMessage = core.ExchangeMessage
type ExchangeHandler = core.ExchangeHandler
type ExchangeRouter = core.ExchangeRouter

type Logger = core.Logger
type LoggerProvider = core.LoggerProvider

func DefaultConfig() Config {
	return core.DefaultConfig()
}

var (
	MalformedMessageError       = core.MalformedMessageError
	InvalidCredentialStateError = core.InvalidCredentialStateError
	UnsupportedSchemaError      = core.UnsupportedSchemaError
	UntrustedIssuerError        = core.UntrustedIssuerError
	DeliveryFailedError         = core.DeliveryFailedError
	RejectionCode               = core.RejectionCode
)
