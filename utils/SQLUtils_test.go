package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLikeEscaped(t *testing.T) {
	assert.Equal(t, "wp\\_options", LikeEscaped("wp_options"))
	assert.Equal(t, "100\\%", LikeEscaped("100%"))
	assert.Equal(t, "a\\\\b", LikeEscaped("a\\b"))
	assert.Equal(t, "plain", LikeEscaped("plain"))
}
