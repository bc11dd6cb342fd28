package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	VerifyErrorMalformedMessage       = "VERIFY_MALFORMED_MESSAGE"
	VerifyErrorInvalidCredentialState = "VERIFY_INVALID_CREDENTIAL_STATE"
	VerifyErrorUnsupportedSchema      = "VERIFY_UNSUPPORTED_SCHEMA"
	VerifyErrorUntrustedIssuer        = "VERIFY_UNTRUSTED_ISSUER"
	VerifyErrorDeliveryFailed         = "VERIFY_DELIVERY_FAILED"
	VerifyErrorBadInput               = "VERIFY_BAD_INPUT"
	VerifyErrorInternal               = "VERIFY_INTERNAL_ERROR"
)

// ErrNotYetDecidable marks a revocation whose registry status has not caught
// up yet. It is a retry signal, not a rejection: the coordinator leaves the
// record in escrow and polls again on the next tick.
var ErrNotYetDecidable = errors.New("core: revocation status not yet decidable")

func MalformedMessageError(message string) *goerrors.Error {
	return newVerifyError(message, goerrors.CategoryBadInput, VerifyErrorMalformedMessage)
}

func InvalidCredentialStateError(message string) *goerrors.Error {
	return newVerifyError(message, goerrors.CategoryValidation, VerifyErrorInvalidCredentialState)
}

func UnsupportedSchemaError(message string) *goerrors.Error {
	return newVerifyError(message, goerrors.CategoryValidation, VerifyErrorUnsupportedSchema)
}

func UntrustedIssuerError(message string) *goerrors.Error {
	return newVerifyError(message, goerrors.CategoryAuth, VerifyErrorUntrustedIssuer)
}

func DeliveryFailedError(message string) *goerrors.Error {
	return newVerifyError(message, goerrors.CategoryOperation, VerifyErrorDeliveryFailed)
}

// RejectionCode reports the taxonomy code carried by a terminal validation
// rejection. Delivery failures and retry signals are not rejections.
func RejectionCode(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return "", false
	}
	switch richErr.TextCode {
	case VerifyErrorInvalidCredentialState,
		VerifyErrorUnsupportedSchema,
		VerifyErrorUntrustedIssuer:
		return richErr.TextCode, true
	}
	return "", false
}

// ErrorMapper normalizes arbitrary errors into the verify taxonomy envelope.
func ErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureVerifyErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "malformed"), strings.Contains(msg, "requires a sender"),
		strings.Contains(msg, "requires a credential"):
		return newVerifyError(err.Error(), goerrors.CategoryBadInput, VerifyErrorMalformedMessage)
	case strings.Contains(msg, "delivery"), strings.Contains(msg, "webhook"):
		return newVerifyError(err.Error(), goerrors.CategoryOperation, VerifyErrorDeliveryFailed)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newVerifyError(err.Error(), goerrors.CategoryBadInput, VerifyErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureVerifyErrorEnvelope(mapped)
}

func newVerifyError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureVerifyErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureVerifyErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = verifyHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultVerifyTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultVerifyTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return VerifyErrorBadInput
	case goerrors.CategoryValidation:
		return VerifyErrorInvalidCredentialState
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return VerifyErrorUntrustedIssuer
	case goerrors.CategoryOperation:
		return VerifyErrorDeliveryFailed
	default:
		return VerifyErrorInternal
	}
}

func verifyHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
