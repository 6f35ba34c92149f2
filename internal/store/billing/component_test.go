package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-store/internal/store/data"
)

// fakeTransitioner records the transition a callback asked for.
type fakeTransitioner struct {
	applied bool
	err     error

	gamespaceID int64
	orderID     int64
	expected    data.Status
	next        data.Status
	extraInfo   data.Info
	guards      TransitionGuards
	calls       int
}

func (t *fakeTransitioner) TransitionIf(
	_ context.Context,
	gamespaceID, orderID int64,
	expected, next data.Status,
	extraInfo data.Info,
	guards TransitionGuards,
) (bool, error) {
	t.calls++
	t.gamespaceID = gamespaceID
	t.orderID = orderID
	t.expected = expected
	t.next = next
	t.extraInfo = extraInfo
	t.guards = guards
	return t.applied, t.err
}

func TestRegistryKnowsBuiltinComponents(t *testing.T) {
	for _, name := range []string{
		"offline",
		"iap-steam",
		"iap-xsolla",
		"iap-mailru",
		"iap-appstore",
	} {
		assert.True(t, Registered(name), name)
	}
	assert.False(t, Registered("iap-nonexistent"))
}

func TestNewUnknownComponent(t *testing.T) {
	_, err := New("iap-nonexistent", data.Info{})
	assert.ErrorIs(t, err, ErrUnknownComponent)
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	tests := []struct {
		name   string
		config data.Info
	}{
		{"iap-steam", data.Info{"app_id": "480"}},
		{"iap-xsolla", data.Info{"merchant_id": "m", "api_key": "k"}},
		{"iap-mailru", data.Info{}},
		{"iap-appstore", data.Info{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.name, tt.config)
			assert.ErrorIs(t, err, ErrComponentBadConfig)
		})
	}
}

func TestConfigRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		config data.Info
	}{
		{"iap-steam", data.Info{
			"app_id":  "480",
			"key":     "publisher-key",
			"sandbox": true,
		}},
		{"iap-xsolla", data.Info{
			"merchant_id": "merchant-1",
			"api_key":     "api-key",
			"project_key": "project-key",
			"project_id":  int64(77),
			"sandbox":     false,
		}},
		{"iap-mailru", data.Info{
			"secret": "s3cret",
		}},
		{"iap-appstore", data.Info{
			"bundle":  "com.example.game",
			"sandbox": true,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			component, err := New(tt.name, tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.name, component.Name())
			assert.Equal(t, tt.config, component.Dump())
		})
	}
}
