package git

import (
	"errors"
	"testing"

	"github.com/matzehuels/gilt/pkg/retry"
	"github.com/matzehuels/gilt/pkg/shell"
)

func TestNetworkClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"dns", &shell.CommandError{Stderr: "fatal: unable to access 'https://x/': Could not resolve host: x"}, true},
		{"hangup", &shell.CommandError{Stderr: "fatal: The remote end hung up unexpectedly"}, true},
		{"not found", &shell.CommandError{Stderr: "fatal: repository 'https://x/' not found"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := network(tt.err)
			if got := retry.IsRetryable(err); got != tt.expect {
				t.Errorf("IsRetryable(network(%v)) = %v, want %v", tt.err, got, tt.expect)
			}
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Errorf("network() should wrap the original error")
			}
		})
	}
}
