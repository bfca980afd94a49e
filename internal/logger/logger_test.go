package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"trace", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"", LevelInfo, false},
		{"info", LevelInfo, false},
		{"Warning", LevelWarning, false},
		{"error", LevelError, false},
		{"fatal", LevelFatal, false},
		{"verbose", LevelInfo, true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWarnCounterIgnoresSampling(t *testing.T) {
	l := NewNop()
	l.SetErrorSampleRate(1000)

	before := TotalWarnings.Load()
	for i := 0; i < 10; i++ {
		l.Warnw("sampled warning", "i", i)
	}
	assert.Equal(t, before+10, TotalWarnings.Load())
}

func TestNewLoggerLevel(t *testing.T) {
	l, err := New(Config{Level: "warn", ErrorSampleRate: 1})
	require.NoError(t, err)
	assert.Equal(t, LevelWarning, l.GetLevel())

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())
}

func TestWarnHttp4xx(t *testing.T) {
	before404 := Total404Errors.Load()
	before4xx := Total4xxErrors.Load()

	WarnHttp4xx(404)

	assert.Equal(t, before404+1, Total404Errors.Load())
	assert.Equal(t, before4xx+1, Total4xxErrors.Load())
}
