package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequirementIDRoundTrip(t *testing.T) {
	id := NewRequirementID()

	parsed, err := ParseRequirementID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestRequirementIDJSON(t *testing.T) {
	id := NewRequirementID()

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+id.String()+`"`, string(data))

	var decoded RequirementID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseProjectID("not-a-uuid")
	assert.Error(t, err)
}

func TestIsNil(t *testing.T) {
	var empty GroupID
	assert.True(t, empty.IsNil())
	assert.False(t, NewGroupID().IsNil())
}
