package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohammadpnp/school-import/internal/infrastructure/security"
)

func TestBcryptHasherProducesVerifiableHash(t *testing.T) {
	hasher := security.NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("17042012")
	require.NoError(t, err)
	assert.NotEqual(t, "17042012", hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("17042012")))

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestBcryptHasherFallsBackToDefaultCost(t *testing.T) {
	hash, err := security.NewBcryptHasher(99).Hash("secret")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
