package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnrollmentComplete(t *testing.T) {
	p := &Profile{}
	assert.False(t, p.EnrollmentComplete(3))

	p.Samples = make([]VoiceSample, 3)
	assert.True(t, p.EnrollmentComplete(3))

	// Profiles may exceed the minimum.
	p.Samples = append(p.Samples, VoiceSample{})
	assert.True(t, p.EnrollmentComplete(3))
}
