package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilderMarksSentinel(t *testing.T) {
	err := NewErrorf("rule %s not found", "r1").
		WithHint("check the rule code").
		Mark(ErrNotFound)

	assert.True(t, IsNotFound(err))
	assert.False(t, IsAlreadyExists(err))
	assert.Equal(t, http.StatusNotFound, HTTPStatusFromErr(err))
	assert.Contains(t, err.Error(), "rule r1 not found")
	assert.Equal(t, "check the rule code", Hint(err))
}

func TestHTTPStatusFromErr(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewError("bad").Mark(ErrValidation), http.StatusBadRequest},
		{"conflict", NewError("dup").Mark(ErrAlreadyExists), http.StatusConflict},
		{"invalid operation", NewError("in use").Mark(ErrInvalidOperation), http.StatusBadRequest},
		{"database", WithError(assert.AnError).Mark(ErrDatabase), http.StatusInternalServerError},
		{"unmarked", assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatusFromErr(tc.err))
		})
	}
}

func TestReportableDetails(t *testing.T) {
	err := NewError("request validation failed").
		WithReportableDetails(map[string]any{"Type": "required"}).
		Mark(ErrValidation)
	err = WithError(err).WithReportableDetails(map[string]any{"Name": "max"}).Mark(ErrValidation)

	assert.Equal(t, map[string]any{"Type": "required", "Name": "max"}, ReportableDetails(err))
	assert.Nil(t, ReportableDetails(NewError("plain").Mark(ErrSystem)))
}
