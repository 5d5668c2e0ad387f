package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableDeletionTokenIsDeterministic(t *testing.T) {
	token1 := TableDeletionToken("wp_old_plugin_data", "0123456789abcdef")
	token2 := TableDeletionToken("wp_old_plugin_data", "0123456789abcdef")
	assert.Equal(t, token1, token2)
	assert.Len(t, token1, 32)
}

func TestVerifyTableDeletionToken(t *testing.T) {
	secret := "0123456789abcdef"
	token := TableDeletionToken("wp_old_plugin_data", secret)

	assert.True(t, VerifyTableDeletionToken("wp_old_plugin_data", secret, token))
	assert.False(t, VerifyTableDeletionToken("wp_other_table", secret, token))
	assert.False(t, VerifyTableDeletionToken("wp_old_plugin_data", "another-secret-value", token))
	assert.False(t, VerifyTableDeletionToken("wp_old_plugin_data", secret, ""))
}

func TestCreateRandomHashIsUnique(t *testing.T) {
	assert.NotEqual(t, CreateRandomHash(), CreateRandomHash())
}
