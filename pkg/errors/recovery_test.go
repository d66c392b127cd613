package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestSafeExecute(t *testing.T) {
	cause := fmt.Errorf("fit failed")

	tests := []struct {
		name      string
		fn        func() error
		wantPanic bool
		wantErr   error
	}{
		{name: "success", fn: func() error { return nil }},
		{name: "returned error", fn: func() error { return cause }, wantErr: cause},
		{name: "string panic", fn: func() error { panic("index out of range") }, wantPanic: true},
		{name: "error panic", fn: func() error { panic(fmt.Errorf("boom")) }, wantPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeExecute("fit age", tt.fn)

			if tt.wantPanic {
				var panicErr *PanicError
				if !As(err, &panicErr) {
					t.Fatalf("expected *PanicError, got %T (%v)", err, err)
				}
				if panicErr.Operation != "fit age" {
					t.Errorf("Operation = %q, want %q", panicErr.Operation, "fit age")
				}
				if !strings.Contains(panicErr.String(), "Stack trace:") {
					t.Error("String() should include the stack trace")
				}
				return
			}
			if err != tt.wantErr {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecoverKeepsExistingError(t *testing.T) {
	original := fmt.Errorf("original error")

	fn := func() (err error) {
		defer Recover(&err, "apply city")
		err = original
		panic("after error")
	}

	err := fn()
	if err == nil {
		t.Fatal("expected error")
	}
	if !Is(err, original) {
		t.Error("original error should remain in the chain")
	}
	if !strings.Contains(err.Error(), "panic in apply city") {
		t.Errorf("message should mention the panic: %v", err)
	}
}

func BenchmarkSafeExecute_NoPanic(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = SafeExecute("bench", func() error { return nil })
	}
}
