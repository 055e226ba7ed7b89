package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodePolarity(t *testing.T) {
	assert.True(t, OK.Proceed())
	assert.True(t, VideoParamChanged.Proceed())
	assert.False(t, Unknown.Proceed())

	assert.True(t, VideoParamChanged.IsWarning())
	assert.False(t, OK.IsWarning())
	assert.False(t, Unknown.IsWarning())
}

func TestBackpressureIsNotError(t *testing.T) {
	assert.True(t, MoreData.IsBackpressure())
	assert.True(t, MoreSurface.IsBackpressure())
	assert.False(t, MoreData.IsError())
	assert.False(t, MoreSurface.IsError())

	assert.True(t, Unknown.IsError())
	assert.True(t, NotFound.IsError())
	assert.False(t, OK.IsError())
}

func TestStringRoundTrip(t *testing.T) {
	cases := []Code{OK, VideoParamChanged, MoreData, MoreSurface, Unknown, NotFound, Aborted}
	for _, c := range cases {
		s := c.String()
		assert.NotEmpty(t, s)
		assert.NotContains(t, s, "status(")
	}
	assert.Contains(t, Code(42).String(), "status(42)")
}

func TestAsError(t *testing.T) {
	require.NoError(t, AsError(OK))
	require.NoError(t, AsError(VideoParamChanged))

	err := AsError(NotFound)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", err.Error())

	var st *Status
	require.ErrorAs(t, err, &st)
	assert.Equal(t, NotFound, st.Code)
}
