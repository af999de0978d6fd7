package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidManifest, "test message: %s", "value")

	if err.Code != ErrCodeInvalidManifest {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidManifest)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_MANIFEST: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeGit, cause, "clone failed")

	if err.Code != ErrCodeGit {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeGit)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	expected := "GIT_ERROR: clone failed: underlying error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestMissingKey(t *testing.T) {
	err := MissingKey("version")

	if err.Code != ErrCodeMissingKey {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeMissingKey)
	}
	if err.Key != "version" {
		t.Errorf("Key = %q, want %q", err.Key, "version")
	}

	wrapped := fmt.Errorf("entry 2: %w", err)
	if got := MissingKeyName(wrapped); got != "version" {
		t.Errorf("MissingKeyName() = %q, want %q", got, "version")
	}
	if got := MissingKeyName(New(ErrCodeInvalidManifest, "bad")); got != "" {
		t.Errorf("MissingKeyName() on other code = %q, want empty", got)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeInvalidManifest, "test"),
			code:     ErrCodeInvalidManifest,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeInvalidManifest, "test"),
			code:     ErrCodeGit,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      fmt.Errorf("outer: %w", New(ErrCodePostCommand, "inner")),
			code:     ErrCodePostCommand,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidManifest,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidManifest,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{"Error type", New(ErrCodeLock, "test"), ErrCodeLock},
		{"wrapped Error type", fmt.Errorf("x: %w", New(ErrCodeFilesystem, "test")), ErrCodeFilesystem},
		{"plain error", errors.New("plain error"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeManifestNotFound, "unable to find gilt.yml"),
			expected: "unable to find gilt.yml",
		},
		{
			name:     "Error type with cause",
			err:      Wrap(ErrCodeGit, errors.New("exit status 128"), "fetch"),
			expected: "fetch: exit status 128",
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: "plain error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsConfig(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{MissingKey("git"), true},
		{New(ErrCodeManifestNotFound, "x"), true},
		{New(ErrCodeInvalidInterpolation, "x"), true},
		{New(ErrCodeGit, "x"), false},
		{New(ErrCodePostCommand, "x"), false},
		{errors.New("plain"), false},
	}

	for _, tt := range tests {
		if got := IsConfig(tt.err); got != tt.want {
			t.Errorf("IsConfig(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
