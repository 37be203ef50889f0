package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginationNormalize(t *testing.T) {
	p := PaginationParams{Page: 0, Limit: 500, Order: "sideways"}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, "desc", p.Order)
	assert.Equal(t, "created_at", p.Sort)

	result := CreatePaginationResult([]int{1, 2}, 41, p)
	assert.Equal(t, 3, result.TotalPages)
}

func TestCustomValidators(t *testing.T) {
	type payload struct {
		Platform  string `validate:"required,platform"`
		EndReason string `validate:"end_reason"`
	}

	assert.NoError(t, ValidateStruct(payload{Platform: "web"}))
	assert.NoError(t, ValidateStruct(payload{Platform: "mobile", EndReason: "breach_of_contract"}))

	errs := GetValidationErrors(ValidateStruct(payload{Platform: "desktop", EndReason: "bored"}))
	require.Len(t, errs, 2)
	assert.Equal(t, "platform", errs[0].Tag)
	assert.Equal(t, "end_reason", errs[1].Tag)
}

func TestHashParts(t *testing.T) {
	a := HashParts("deal", "funding", "1000000")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashParts("deal", "funding", "1000000"))
	assert.NotEqual(t, a, HashParts("deal", "funding", "1000001"))
	assert.NotEqual(t, Sha3Hex([]byte("terms")), HashString("terms"))
}

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("utils-test-secret")
	id := uuid.New()

	token, err := GenerateJWT(id, 1)
	require.NoError(t, err)
	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id.String(), claims.UserID)

	SetJWTSecret("rotated")
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}
