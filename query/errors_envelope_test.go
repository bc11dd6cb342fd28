package query

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-verify/core"
)

func TestGetCredentialQuery_InvalidMessageReturnsRichError(t *testing.T) {
	q := NewGetCredentialQuery(staticCredentialStore{})

	_, err := q.Query(context.Background(), GetCredentialMessage{})
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.VerifyErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.VerifyErrorBadInput, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
}

func TestGetEscrowRecordQuery_NilReaderReturnsRichError(t *testing.T) {
	var q *GetEscrowRecordQuery
	_, err := q.Query(context.Background(), GetEscrowRecordMessage{})
	if err == nil {
		t.Fatalf("expected dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.VerifyErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.VerifyErrorInternal, rich.TextCode)
	}
	if rich.Code != http.StatusInternalServerError {
		t.Fatalf("expected %d code, got %d", http.StatusInternalServerError, rich.Code)
	}
}
