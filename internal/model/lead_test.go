package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawLeadFromStrings_SkipsBlanks(t *testing.T) {
	t.Parallel()

	r := RawLeadFromStrings(map[string]string{
		"company_name": "",
		"companyName":  "Ridge",
		"last_name":    "Lee",
	})
	require.NotNil(t, r.CompanyName)
	assert.Equal(t, "Ridge", *r.CompanyName)
	require.NotNil(t, r.LastName)
	assert.Equal(t, "Lee", *r.LastName)
	assert.Nil(t, r.Email)
}

func TestRawLead_UnmarshalRejectsNonObject(t *testing.T) {
	t.Parallel()

	var r RawLead
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &r))
}
