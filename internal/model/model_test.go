package model_test

import (
	"testing"

	"codeberg.org/mutker/benchctl/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestMeasurementRecord(t *testing.T) {
	m := model.Measurement{Time: 3, Force: 12.5}

	assert.Equal(t, []string{"time", "force"}, m.Fields())
	assert.Equal(t, []string{"3", "12.5"}, m.Values())
}

func TestFrameEmpty(t *testing.T) {
	volts := 12.1
	assert.True(t, model.Frame{Voltage: &volts}.Empty())
	assert.False(t, model.Frame{Measurements: []model.Measurement{{Time: 1, Force: 2}}}.Empty())
}

func TestCommandNames(t *testing.T) {
	assert.Equal(t, "start", model.StartCommand{}.Name())
	assert.Equal(t, "stop", model.StopCommand{}.Name())
}
