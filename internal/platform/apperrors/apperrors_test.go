package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("processing: %w", NewDoesNotExistError("disbursement %s not found", "d-1"))

	assert.ErrorIs(t, err, ErrDoesNotExist)
	assert.NotErrorIs(t, err, ErrUnknown)
	assert.Equal(t, KindDoesNotExist, KindOf(err))
	assert.Equal(t, "processing: disbursement d-1 not found", err.Error())
}

func TestKindOf_UnclassifiedIsUnknown(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("driver exploded")))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("conn reset")
	err := Wrap(KindUnknown, cause, "loading payroll %s", "p-1")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrUnknown)
	assert.Equal(t, "loading payroll p-1: conn reset", err.Error())
}

func TestFromValidation_ListsFieldRules(t *testing.T) {
	type req struct {
		Amount   string `validate:"required"`
		Currency string `validate:"len=3"`
	}
	verr := validator.New().Struct(req{Currency: "US"})
	require.Error(t, verr)

	err := FromValidation(verr)
	assert.ErrorIs(t, err, ErrSemanticValidation)
	assert.Contains(t, err.Error(), "req.Amount: required")
	assert.Contains(t, err.Error(), "req.Currency: len=3")
	assert.Nil(t, FromValidation(nil))
}
