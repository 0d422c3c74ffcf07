package continuity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// The step names in these scenarios borrow from the discovery and plan
// building pipeline; plan.Build itself chains a single step (the image
// coverage bound). The multi-step chains check that steps run in order and
// stop at the first failure.

func TestIfThen_AllStepsSucceed(t *testing.T) {
	err := New().
		Thenf("accept extents", func() error { return nil }).
		Thenf("check coverage bound", func() error { return nil }).
		Err()
	require.NoError(t, err)
}

func TestIfThen_SingleStep(t *testing.T) {
	err := New().Thenf("check coverage bound", func() error { return nil }).Err()
	require.NoError(t, err)
}

func TestIfThen_StopsAtFirstFailureAndSkipsTheRest(t *testing.T) {
	var sealed, boundChecked, emitted bool
	err := New().
		Thenf("seal accepted extents", func() error {
			sealed = true
			return nil
		}).
		Thenf("check coverage bound", func() error {
			boundChecked = true
			return errors.New("accepted extents overrun image size")
		}).
		Thenf("emit plan", func() error {
			emitted = true
			return nil
		}).
		Err()

	require.Error(t, err)
	require.Equal(t, "accepted extents overrun image size", err.Error())
	require.True(t, sealed)
	require.True(t, boundChecked)
	require.False(t, emitted, "a step after the failing one must never run")
}

func TestIfThen_ThenAggregatesMultipleErrorsFromOneStep(t *testing.T) {
	var verified bool
	err := New().
		Thenf("hash image", func() error { return nil }).
		Then("verify candidate extents",
			func() error {
				verified = true
				return errors.New("extent A fails verification")
			}(),
			errors.New("extent B fails verification"),
		).
		Thenf("build plan", func() error {
			t.Fatal("build plan must not run after verification fails")
			return nil
		}).
		Err()

	require.Error(t, err)
	require.Equal(t, "multiple errors: extent A fails verification, extent B fails verification", err.Error())
	require.True(t, verified)
}

func TestIfThen_ThenIgnoresNilErrors(t *testing.T) {
	err := New().Then("no-op check", nil, nil).Err()
	require.NoError(t, err)
}
