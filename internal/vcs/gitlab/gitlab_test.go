package gitlab

import (
	"errors"
	"net/http"
	"testing"

	"github.com/revuekit/revue/internal/vcs"
	gl "gitlab.com/gitlab-org/api/client-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHost_RequiresToken(t *testing.T) {
	_, err := NewHost("", "")
	require.Error(t, err)

	h, err := NewHost("glpat-test", "")
	require.NoError(t, err)
	assert.Equal(t, "gitlab", h.Info().Name)
	assert.Equal(t, "https://gitlab.com", h.Info().BaseURL)
	assert.NoError(t, h.Validate())
}

func TestNewHost_SelfManagedBaseURL(t *testing.T) {
	h, err := NewHost("glpat-test", "https://gitlab.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://gitlab.example.com", h.Info().BaseURL)
}

func glResponse(status int) *gl.Response {
	return &gl.Response{Response: &http.Response{StatusCode: status}}
}

func TestMapErr_SentinelMapping(t *testing.T) {
	base := errors.New("api says no")

	assert.ErrorIs(t, mapErr(base, nil), vcs.ErrTransient)
	assert.ErrorIs(t, mapErr(base, glResponse(404)), vcs.ErrNotFound)
	assert.ErrorIs(t, mapErr(base, glResponse(401)), vcs.ErrUnauthorized)
	assert.ErrorIs(t, mapErr(base, glResponse(403)), vcs.ErrUnauthorized)
	assert.ErrorIs(t, mapErr(base, glResponse(429)), vcs.ErrTransient)
	assert.ErrorIs(t, mapErr(base, glResponse(502)), vcs.ErrTransient)

	// Other statuses pass the original error through unchanged.
	err := mapErr(base, glResponse(409))
	assert.ErrorIs(t, err, base)
	assert.NotErrorIs(t, err, vcs.ErrTransient)
}

func TestFormatSuggestionBlock_GitLabSyntax(t *testing.T) {
	h, err := NewHost("glpat-test", "")
	require.NoError(t, err)
	assert.Equal(t, "```suggestion:-0+0\nx := 1\n```", h.FormatSuggestionBlock("x := 1"))
}
