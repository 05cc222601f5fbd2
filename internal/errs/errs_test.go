package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindUnknown},
		{errors.New("boom"), KindUnknown},
		{ErrInvalidCredentials, KindAuth},
		{fmt.Errorf("sign in: %w", ErrRateLimited), KindAuth},
		{ErrNoInvitesRemaining, KindInvite},
		{fmt.Errorf("consume: %w", ErrInvalidOrExpiredCode), KindInvite},
		{Invalid("email", "malformed"), KindValidation},
		{&PersistenceError{Op: "list boxes"}, KindPersistence},
		{ErrNotFound, KindNotFound},
		{ErrHasDependents, KindConflict},
	}
	for _, c := range cases {
		require.Equal(t, c.want, KindOf(c.err), "err=%v", c.err)
	}
}

func TestPersistence_KeepsClassifiedErrors(t *testing.T) {
	t.Parallel()

	require.NoError(t, Persistence("op", nil))
	require.ErrorIs(t, Persistence("op", ErrNotFound), ErrNotFound)

	cause := errors.New("connection reset")
	err := Persistence("save box", cause)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "save box", pe.Op)
	require.ErrorIs(t, err, cause)
	require.NotContains(t, err.Error(), "connection reset")
}

func TestReason_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, r := range reasons {
		got := FromReason(Reason(r.err), "", nil)
		require.ErrorIs(t, got, r.err)
	}

	v := FromReason(Reason(Invalid("password", "too short")), "", map[string]string{"field": "password", "message": "too short"})
	var ve *ValidationError
	require.ErrorAs(t, v, &ve)
	require.Equal(t, "password", ve.Field)

	require.Equal(t, "", Reason(errors.New("plain")))
	require.Nil(t, FromReason("SOMETHING_ELSE", "", nil))
}
