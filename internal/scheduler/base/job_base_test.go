package base

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobBase_RecordRun(t *testing.T) {
	var j JobBase

	last, _, err := j.LastRun()
	assert.True(t, last.IsZero())
	assert.NoError(t, err)
	assert.Zero(t, j.Runs())

	started := time.Now().Add(-time.Second)
	j.RecordRun(started, errors.New("upstream down"))

	last, dur, err := j.LastRun()
	assert.Equal(t, started, last)
	assert.GreaterOrEqual(t, dur, time.Second)
	assert.EqualError(t, err, "upstream down")
	assert.Equal(t, int64(1), j.Runs())

	j.RecordRun(time.Now(), nil)
	_, _, err = j.LastRun()
	assert.NoError(t, err)
	assert.Equal(t, int64(2), j.Runs())
}
