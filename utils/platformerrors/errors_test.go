package platformerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewErrorAssignsUUID(t *testing.T) {
	err := NewError(context.Background(), LayerDomain, ErrorTypeValidation, "bad input", nil, "")
	if err.UUID == "" {
		t.Fatal("expected generated UUID")
	}

	custom := NewError(context.Background(), LayerDomain, ErrorTypeValidation, "bad input", nil, "fixed-id")
	if custom.UUID != "fixed-id" {
		t.Fatalf("UUID = %q, want fixed-id", custom.UUID)
	}
}

func TestIsErrorTypeThroughWrapping(t *testing.T) {
	base := NewError(context.Background(), LayerInfrastructure, ErrorTypeInsufficientCredits, "no credits", nil, "")
	wrapped := fmt.Errorf("generate: %w", base)

	if !IsErrorType(wrapped, ErrorTypeInsufficientCredits) {
		t.Fatal("expected type to survive fmt.Errorf wrapping")
	}
	if IsErrorType(wrapped, ErrorTypeValidation) {
		t.Fatal("wrong type must not match")
	}
	if IsErrorType(nil, ErrorTypeValidation) {
		t.Fatal("nil must not match")
	}
	if IsErrorType(errors.New("plain"), ErrorTypeValidation) {
		t.Fatal("plain error must not match")
	}
}

func TestAsErrorPreservesTypeAndUUID(t *testing.T) {
	base := NewError(context.Background(), LayerInfrastructure, ErrorTypeUpstream, "status 500", nil, "")

	wrapped := AsError(context.Background(), LayerDomain, base, "generation failed")
	if wrapped.Type != ErrorTypeUpstream {
		t.Fatalf("type = %q, want upstream preserved", wrapped.Type)
	}
	if wrapped.UUID != base.UUID {
		t.Fatalf("UUID = %q, want original %q", wrapped.UUID, base.UUID)
	}
	if wrapped.Layer != LayerDomain {
		t.Fatalf("layer = %q, want domain", wrapped.Layer)
	}
}

func TestAsErrorPlainError(t *testing.T) {
	wrapped := AsError(context.Background(), LayerRoute, errors.New("boom"), "handler failed")
	if wrapped.Type != ErrorTypeInternal {
		t.Fatalf("type = %q, want internal for plain errors", wrapped.Type)
	}
	if AsError(context.Background(), LayerRoute, nil, "noop") != nil {
		t.Fatal("nil in must be nil out")
	}
}

func TestErrorTypeToHTTPStatus(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    int
	}{
		{ErrorTypeValidation, http.StatusBadRequest},
		{ErrorTypeNotFound, http.StatusNotFound},
		{ErrorTypeAuth, http.StatusUnauthorized},
		{ErrorTypeInsufficientCredits, http.StatusPaymentRequired},
		{ErrorTypeUpstreamRejected, http.StatusBadGateway},
		{ErrorTypeUpstream, http.StatusBadGateway},
		{ErrorTypeNetwork, http.StatusBadGateway},
		{ErrorTypePartialPersist, http.StatusInternalServerError},
		{ErrorTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := ErrorTypeToHTTPStatus(tt.errType); got != tt.want {
			t.Fatalf("%s -> %d, want %d", tt.errType, got, tt.want)
		}
	}
}

func TestIsStorageError(t *testing.T) {
	ctx := context.Background()
	for _, errType := range []ErrorType{
		ErrorTypeDirectoryUnavailable, ErrorTypeCollisionUnresolved, ErrorTypePartialPersist,
	} {
		err := NewError(ctx, LayerInfrastructure, errType, "storage", nil, "")
		if !IsStorageError(err) {
			t.Fatalf("%s should classify as storage error", errType)
		}
	}

	upstream := NewError(ctx, LayerInfrastructure, ErrorTypeUpstream, "upstream", nil, "")
	if IsStorageError(upstream) {
		t.Fatal("upstream error must not classify as storage error")
	}
}

func TestRequestIDFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), "requestID", "req-123") //nolint:staticcheck
	err := NewError(ctx, LayerRoute, ErrorTypeValidation, "bad input", nil, "")
	if err.RequestID != "req-123" {
		t.Fatalf("request ID = %q, want req-123", err.RequestID)
	}
}
