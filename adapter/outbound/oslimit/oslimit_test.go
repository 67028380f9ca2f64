package oslimit

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajkula/GoNotify/domain/model"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, Translate("watch", "/a", nil))

	err := Translate("watch", "/a", fmt.Errorf("stat: %w", os.ErrNotExist))
	assert.ErrorIs(t, err, model.ErrPathNotFound)

	cause := errors.New("weird")
	err = Translate("watch", "/a", cause)
	assert.ErrorIs(t, err, model.ErrBackendFailure)
	assert.ErrorIs(t, err, cause)
}
