package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoMergedOverridesAndKeeps(t *testing.T) {
	base := Info{
		"transaction_id": "tx-1",
		"state":          "pending",
	}
	merged := base.Merged(Info{
		"state":   "paid",
		"receipt": "r-1",
	})

	assert.Equal(t, Info{
		"transaction_id": "tx-1",
		"state":          "paid",
		"receipt":        "r-1",
	}, merged)

	// The receiver stays untouched.
	assert.Equal(t, "pending", base["state"])
	assert.NotContains(t, base, "receipt")
}

func TestInfoMergedFromNil(t *testing.T) {
	var base Info
	merged := base.Merged(Info{"key": "value"})
	assert.Equal(t, Info{"key": "value"}, merged)

	assert.Equal(t, Info{"key": "value"}, merged.Merged(nil))
}

func TestConfirmableStatuses(t *testing.T) {
	confirmable := ConfirmableStatuses()
	assert.ElementsMatch(t, []Status{CreatedStatus, ApprovedStatus, RetryStatus}, confirmable)

	for _, status := range []Status{NewStatus, SucceededStatus, RejectedStatus, ErrorStatus} {
		assert.NotContains(t, confirmable, status)
	}
}
