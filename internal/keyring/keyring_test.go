package keyring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKey_SetResolveDelete(t *testing.T) {
	keyring.MockInit()

	value, src := OpenAI.Resolve("")
	assert.Empty(t, value)
	assert.Equal(t, Missing, src)

	require.NoError(t, OpenAI.Set("  sk-test\n"))

	got, err := OpenAI.Get()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", got, "stored trimmed")

	value, src = OpenAI.Resolve("")
	assert.Equal(t, "sk-test", value)
	assert.Equal(t, FromKeychain, src)

	value, src = OpenAI.Resolve("sk-env")
	assert.Equal(t, "sk-env", value, "environment wins")
	assert.Equal(t, FromEnv, src)

	require.NoError(t, OpenAI.Delete())
	require.NoError(t, OpenAI.Delete(), "deleting twice is fine")
	_, src = OpenAI.Resolve("")
	assert.Equal(t, Missing, src)

	require.Error(t, Anthropic.Set("   "))
}

func TestLookup(t *testing.T) {
	for _, k := range Keys() {
		got, err := Lookup(k.Service)
		require.NoError(t, err)
		assert.Equal(t, k, got)
		assert.NotEmpty(t, k.Purpose)
		assert.NotEmpty(t, k.Env)
	}

	got, err := Lookup("Anthropic")
	require.NoError(t, err)
	assert.Equal(t, Anthropic, got)

	_, err = Lookup("mistral")
	require.Error(t, err)
}
