package errors

import (
	"errors"
	"testing"
)

func TestWrapKeepsSentinel(t *testing.T) {
	err := Wrapf(ErrArchiveNotFound, "site %d", 3)

	if !IsNotFound(err) {
		t.Errorf("Expected wrapped archive error to match ErrNotFound, got %v", err)
	}
	if !errors.Is(err, ErrArchiveNotFound) {
		t.Errorf("Expected wrapped error to match ErrArchiveNotFound")
	}
	if err.Error() != "site 3: archive not processed: resource not found" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "anything") != nil {
		t.Error("Expected nil when wrapping nil")
	}
	if Wrapf(nil, "site %d", 1) != nil {
		t.Error("Expected nil when wrapping nil")
	}
}

func TestInvalidInputf(t *testing.T) {
	err := InvalidInputf("limit %q is not an integer", "abc")

	if !IsInvalidInput(err) {
		t.Fatalf("Expected invalid input error, got %v", err)
	}
	if IsForbidden(err) {
		t.Error("Invalid input must not match ErrForbidden")
	}
}
