package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("project %s not found", "JO-1"), http.StatusNotFound},
		{Validation("missing field"), http.StatusBadRequest},
		{Conflict("duplicate day"), http.StatusBadRequest},
		{Permission("denied"), http.StatusForbidden},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusCode(tc.err), tc.err.Error())
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("add day: %w", Conflict("Project day already exists"))
	assert.True(t, Is(err, KindConflict))
	assert.Equal(t, "conflict", KindOf(err).String())
	assert.Equal(t, "add day: Project day already exists", err.Error())
}
