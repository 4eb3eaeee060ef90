package errors

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "error without cause",
			err:      &Error{Code: ErrCodeConfig, Message: "invalid configuration"},
			expected: "[CONFIG_ERROR] invalid configuration",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeAction, "failed to add route", errors.New("permission denied")),
			expected: "[ACTION_ERROR] failed to add route: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeInternal, "wrapper", cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestError_Is(t *testing.T) {
	err1 := &Error{Code: ErrCodeBuild, Message: "test error"}
	err2 := &Error{Code: ErrCodeBuild, Message: "another error"}
	err3 := &Error{Code: ErrCodeFetch, Message: "fetch error"}

	if !err1.Is(err2) {
		t.Errorf("Expected errors with same code to match")
	}

	if err1.Is(err3) {
		t.Errorf("Expected errors with different codes to not match")
	}
}

func TestIsCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{
			name: "direct match",
			err:  NewFetchError("manifest unavailable", nil),
			code: ErrCodeFetch,
			want: true,
		},
		{
			name: "wrapped match",
			err:  NewActionError("apply failed", NewReadError("netlink down", nil)),
			code: ErrCodeRead,
			want: true,
		},
		{
			name: "no match",
			err:  errors.New("plain error"),
			code: ErrCodeBuild,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			code: ErrCodeBuild,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCode(tt.err, tt.code); got != tt.want {
				t.Errorf("IsCode() = %v, want %v", got, tt.want)
			}
		})
	}
}
