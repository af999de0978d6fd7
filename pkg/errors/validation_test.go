package errors

import (
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple file", "README.md", false},
		{"nested", "roles/etcd/tasks/main.yml", false},
		{"glob", "*_manage", false},
		{"double star glob", "library/**/*.py", false},
		{"dot prefix", "./library", false},
		{"inner dotdot that stays inside", "a/../b", false},

		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"parent", "..", true},
		{"escapes", "../sibling/file", true},
		{"escapes after clean", "a/../../b", true},
		{"null byte", "foo\x00bar", true},
		{"control char", "foo\x01bar", true},
		{"too long", strings.Repeat("a", 501), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidatePath(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidPath)
			}
		})
	}
}
