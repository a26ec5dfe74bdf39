package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestDestinationFullLocation(t *testing.T) {
	d := Destination{City: "Curitiba", State: "PR", Country: "Brasil"}
	assert.Equal(t, "Curitiba, PR, Brasil", d.FullLocation())

	d.State = ""
	assert.Equal(t, "Curitiba, Brasil", d.FullLocation())
}

func TestDestinationJSON(t *testing.T) {
	data, err := json.Marshal(Destination{ID: 4, City: "Paris", Country: "França"})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "Paris, França", out["full_location"])
	assert.Nil(t, out["state"])
	_, hasCount := out["trip_requests_count"]
	assert.False(t, hasCount)
}

func TestNewDestination(t *testing.T) {
	d, err := NewDestination(DestinationPatch{City: strPtr(" Curitiba "), State: strPtr("PR"), Country: strPtr("Brasil")})
	require.NoError(t, err)
	assert.Equal(t, "Curitiba", d.City)

	_, err = NewDestination(DestinationPatch{State: strPtr("PR")})
	rules := fieldRules(t, err)
	assert.Equal(t, "required", rules["city"])
	assert.Equal(t, "required", rules["country"])

	_, err = NewDestination(DestinationPatch{City: strPtr(strings.Repeat("x", 256)), Country: strPtr("Brasil")})
	assert.Equal(t, "max", fieldRules(t, err)["city"])
}

func TestDestinationApplyPartial(t *testing.T) {
	d := Destination{ID: 1, City: "Curitiba", State: "PR", Country: "Brasil"}

	require.NoError(t, d.Apply(DestinationPatch{State: strPtr("")}))
	assert.Equal(t, "Curitiba, Brasil", d.FullLocation())

	err := d.Apply(DestinationPatch{Country: strPtr("  ")})
	assert.Equal(t, "required", fieldRules(t, err)["country"])
	assert.Equal(t, "Brasil", d.Country, "failed apply leaves the destination unchanged")
}
