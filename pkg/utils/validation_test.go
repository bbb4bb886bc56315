package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "qdesign-backend/pkg/errors"
)

type sample struct {
	Name   string  `validate:"required,max=5"`
	Status string  `validate:"omitempty,oneof=approved rejected"`
	Score  float64 `validate:"gte=0,lte=1"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		input   sample
		wantMsg string
	}{
		{name: "valid", input: sample{Name: "ok", Score: 0.5}},
		{name: "missing name", input: sample{Score: 0.5}, wantMsg: "name is required"},
		{name: "too long", input: sample{Name: "toolong"}, wantMsg: "name must be at most 5"},
		{name: "bad enum", input: sample{Name: "ok", Status: "maybe"}, wantMsg: "status must be one of: approved rejected"},
		{name: "out of range", input: sample{Name: "ok", Score: 2}, wantMsg: "score must be less than or equal to 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestNowIsUTCMilliseconds(t *testing.T) {
	now := Now()
	assert.Equal(t, "UTC", now.Location().String())
	assert.Zero(t, now.Nanosecond()%1e6)
}
