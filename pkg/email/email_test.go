package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"New-Tester@Example.COM", "New-Tester@example.com"},
		{"  spaced@example.com ", "spaced@example.com"},
		{"no-at-sign", "no-at-sign"},
		{"quoted\"@\"local@Example.org", "quoted\"@\"local@example.org"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "new-tester@example.com", Fold(" New-Tester@Example.COM"))
}
