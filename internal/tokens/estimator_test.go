package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristic(t *testing.T) {
	assert.Equal(t, 0, Heuristic(""))
	assert.Equal(t, 1, Heuristic("ab"), "tiny non-empty text still costs a token")
	assert.Equal(t, 25, Heuristic(strings.Repeat("x", 100)))
}

func TestForName(t *testing.T) {
	est, err := ForName("")
	require.NoError(t, err)
	assert.Equal(t, Heuristic("hello world"), est("hello world"))

	_, err = ForName("heuristic")
	require.NoError(t, err)

	_, err = ForName("TikToken")
	require.NoError(t, err)

	_, err = ForName("sentencepiece")
	require.Error(t, err)
}

func TestTiktoken_NeverZeroForText(t *testing.T) {
	est := Tiktoken()
	n := est("func main() { fmt.Println(42) }")
	assert.Greater(t, n, 0)
}
