package stage

import (
	"encoding/json"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailed_WrapsSentinelAndCause(t *testing.T) {
	res := Failed("configure", ErrConfiguration, fs.ErrPermission)

	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrConfiguration)
	assert.ErrorIs(t, res.Err, fs.ErrPermission)
	assert.False(t, errors.Is(res.Err, ErrLaunch))
	assert.Equal(t, "configuration failed: permission denied", res.Error())
}

func TestOKAndSkipped(t *testing.T) {
	ok := OK("collect", "2 records")
	assert.Equal(t, StatusOK, ok.Status)
	assert.Empty(t, ok.Error())

	skipped := Skipped("collect", "event log not found")
	assert.Equal(t, StatusSkipped, skipped.Status)
	assert.Nil(t, skipped.Err)
}

func TestStatus_Text(t *testing.T) {
	for _, s := range []Status{StatusOK, StatusSkipped, StatusFailed} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var decoded Status
		require.NoError(t, decoded.UnmarshalText(text))
		assert.Equal(t, s, decoded)
	}

	var s Status
	assert.Error(t, s.UnmarshalText([]byte("exploded")))
	assert.Equal(t, "status(9)", Status(9).String())
}

func TestResult_JSON(t *testing.T) {
	data, err := json.Marshal(Skipped("forward", "disabled"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage":"forward","status":"skipped","detail":"disabled","duration_ns":0}`, string(data))
}
