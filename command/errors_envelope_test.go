package command

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-verify/core"
)

func TestSubmitPresentationCommand_InvalidMessageReturnsRichError(t *testing.T) {
	cmd := NewSubmitPresentationCommand(&captureQueue{})

	err := cmd.Execute(context.Background(), SubmitPresentationMessage{})
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

func TestSubmitRevocationCommand_NilQueueReturnsRichError(t *testing.T) {
	var cmd *SubmitRevocationCommand
	err := cmd.Execute(context.Background(), SubmitRevocationMessage{
		SenderPrefix: "EHolder",
		SAID:         "EABC123",
	})
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
