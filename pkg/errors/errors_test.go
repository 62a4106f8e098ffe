package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New("test error")
	if err == nil {
		t.Fatal("New() returned nil")
	}

	if !strings.Contains(err.Error(), "test error") {
		t.Errorf("Expected error message to contain 'test error', got: %s", err.Error())
	}

	if err.Location() == "" {
		t.Error("Location should not be empty")
	}
}

func TestWrap(t *testing.T) {
	baseErr := errors.New("base error")
	err := Wrap(baseErr, "wrapped")

	if !strings.Contains(err.Error(), "wrapped") || !strings.Contains(err.Error(), "base error") {
		t.Errorf("Unexpected wrapped message: %s", err.Error())
	}

	if errors.Unwrap(err) != baseErr {
		t.Errorf("Unwrap() returned wrong error: %v", errors.Unwrap(err))
	}

	if Wrap(nil, "nothing") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWithFieldsDoesNotMutateOriginal(t *testing.T) {
	base := New("test error").WithField("key", "value")
	extended := base.WithFields(map[string]interface{}{"other": 123})

	if len(base.GetFields()) != 1 {
		t.Fatalf("Expected base to keep 1 field, got %d", len(base.GetFields()))
	}
	if len(extended.GetFields()) != 2 {
		t.Fatalf("Expected 2 fields, got %d", len(extended.GetFields()))
	}
	if extended.GetFields()["other"] != 123 {
		t.Errorf("Expected field['other'] = 123, got: %v", extended.GetFields()["other"])
	}
}

func TestCampaignNotFound(t *testing.T) {
	err := NewCampaignNotFound("abc-123")

	if !errors.Is(err, ErrCampaignNotFound) {
		t.Error("errors.Is should match ErrCampaignNotFound")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("campaign lookup errors should not match the generic ErrNotFound")
	}
	if GetErrorCode(err) != "CAMPAIGN_NOT_FOUND" {
		t.Errorf("Unexpected code: %s", GetErrorCode(err))
	}
	if GetErrorFields(err)["campaign_id"] != "abc-123" {
		t.Errorf("Expected campaign_id field, got: %v", GetErrorFields(err))
	}

	wrapped := fmt.Errorf("processing call: %w", err)
	if !IsErrorType(wrapped, ErrCampaignNotFound) {
		t.Error("wrapped error should still match ErrCampaignNotFound")
	}
	if GetErrorCode(wrapped) != "CAMPAIGN_NOT_FOUND" {
		t.Error("GetErrorCode should see through fmt wrapping")
	}
}

func TestDecodeAndDeliveryErrors(t *testing.T) {
	decodeErr := NewDecodeFailed(errors.New("missing RIFF header"), "wav")
	if !errors.Is(decodeErr, ErrDecodeFailed) {
		t.Error("expected ErrDecodeFailed")
	}
	if !strings.Contains(decodeErr.Error(), "missing RIFF header") {
		t.Errorf("cause should be in the message: %s", decodeErr.Error())
	}

	deliveryErr := NewDeliveryFailed(errors.New("broker down"), 3)
	if !errors.Is(deliveryErr, ErrDeliveryFailed) {
		t.Error("expected ErrDeliveryFailed")
	}
	if GetErrorFields(deliveryErr)["attempts"] != 3 {
		t.Errorf("Expected attempts field, got: %v", GetErrorFields(deliveryErr))
	}
}

func TestHelpersOnPlainErrors(t *testing.T) {
	plain := errors.New("plain")
	if GetErrorCode(plain) != "" {
		t.Error("plain errors have no code")
	}
	if GetErrorFields(plain) != nil {
		t.Error("plain errors have no fields")
	}
}
