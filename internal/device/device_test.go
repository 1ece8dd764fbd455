package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyRoundTrip(t *testing.T) {
	for _, key := range Keys() {
		parsed, err := ParseKey(key.String())
		require.NoError(t, err, "key %s", key)
		assert.Equal(t, key, parsed)
	}
}

func TestParseKey_Unknown(t *testing.T) {
	_, err := ParseKey("menu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key")
}

type fakeProvider struct {
	name      string
	available bool
}

func (p *fakeProvider) Controller(string) (Controller, error) { return nil, nil }
func (p *fakeProvider) Info() Info                            { return Info{Name: p.name} }
func (p *fakeProvider) IsAvailable() bool                     { return p.available }

func TestRegistry_DetectPrefersRegistrationOrder(t *testing.T) {
	ClearProviders()
	defer ClearProviders()

	first := &fakeProvider{name: "first", available: false}
	second := &fakeProvider{name: "second", available: true}
	third := &fakeProvider{name: "third", available: true}
	Register(first)
	Register(second)
	Register(third)

	p, err := Detect()
	require.NoError(t, err)
	assert.Equal(t, "second", p.Info().Name)
}

func TestRegistry_DetectNoneAvailable(t *testing.T) {
	ClearProviders()
	defer ClearProviders()

	Register(&fakeProvider{name: "offline", available: false})

	_, err := Detect()
	require.Error(t, err)
}

func TestRegistry_GetProviderByName(t *testing.T) {
	ClearProviders()
	defer ClearProviders()

	Register(&fakeProvider{name: "adb", available: false})
	Register(&fakeProvider{name: "x11", available: true})

	p, err := GetProvider("adb")
	require.NoError(t, err)
	assert.Equal(t, "adb", p.Info().Name)

	// Empty name behaves like Detect.
	p, err = GetProvider("")
	require.NoError(t, err)
	assert.Equal(t, "x11", p.Info().Name)

	_, err = GetProvider("wayland")
	require.Error(t, err)
}
