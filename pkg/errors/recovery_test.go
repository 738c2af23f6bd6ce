package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "KernelModel.Fit")
		panic("mat: dimension mismatch")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if panicErr.Operation != "KernelModel.Fit" {
		t.Errorf("Expected operation 'KernelModel.Fit', got '%s'", panicErr.Operation)
	}
	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}

	expectedMsg := "gklr: panic in KernelModel.Fit: mat: dimension mismatch"
	if panicErr.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, panicErr.Error())
	}
}

func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "KernelModel.Fit")
		return nil
	}

	if err := testFunc(); err != nil {
		t.Fatalf("Expected no error when no panic occurs, got: %v", err)
	}
}

func TestRecover_KeepsExistingError(t *testing.T) {
	original := New("original failure")
	testFunc := func() (err error) {
		defer Recover(&err, "estimate")
		err = original
		panic("late panic")
	}

	err := testFunc()
	var panicErr *PanicError
	if !As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if !strings.Contains(panicErr.Error(), "late panic") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestRecover_ErrorPanicValueUnwraps(t *testing.T) {
	sentinel := errors.New("index out of range")
	err := SafeExecute("calcs", func() error {
		panic(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected recovered error to unwrap to the panic value, got %v", err)
	}
}

func TestSafeExecute(t *testing.T) {
	if err := SafeExecute("ok", func() error { return nil }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	fnErr := New("function error")
	if err := SafeExecute("fail", func() error { return fnErr }); !Is(err, fnErr) {
		t.Errorf("expected function error to be returned, got %v", err)
	}
}
