package emailguess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatterns(t *testing.T) {
	t.Parallel()
	got := Patterns("Jane", "Doe", "Acme.com")
	assert.Equal(t, []string{
		"jane.doe@acme.com",
		"janedoe@acme.com",
		"j.doe@acme.com",
		"jdoe@acme.com",
		"jane@acme.com",
		"jane_doe@acme.com",
	}, got)
}

func TestPatterns_FoldsNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "jose.oconnorsmith@firm.io", Best("José", "O'Connor-Smith", "firm.io"))
}

func TestPatterns_Unusable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name                string
		first, last, domain string
	}{
		{"no first", "", "Doe", "acme.com"},
		{"no last", "Jane", " ", "acme.com"},
		{"no domain", "Jane", "Doe", ""},
		{"bare host", "Jane", "Doe", "localhost"},
		{"symbols only", "!!", "Doe", "acme.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Patterns(tt.first, tt.last, tt.domain))
			assert.Empty(t, Best(tt.first, tt.last, tt.domain))
		})
	}
}
