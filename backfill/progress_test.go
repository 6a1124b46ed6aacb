package backfill

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Basic(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 100, 10)

	p.Start()
	p.Add(25, 0)
	p.Add(25, 5)
	p.Add(50, 0)

	assert.Equal(t, 100, p.Done())
	assert.Contains(t, buf.String(), "100/100")
	assert.Contains(t, buf.String(), "100.0%")
	assert.Contains(t, buf.String(), "5 failed")
}

func TestProgress_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 1000, 100)
	p.Start()

	p.Add(50, 0)
	assert.Empty(t, buf.String(), "should not print under interval")

	p.Add(50, 0)
	assert.Contains(t, buf.String(), "100/1000")
}

func TestProgress_CapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 100, 10)
	p.Start()
	p.Add(150, 0)

	assert.Equal(t, 100, p.Done())
	assert.Contains(t, buf.String(), "100/100")
}

func TestProgress_Finish(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 0, 10)
	p.Start()
	p.Finish()

	assert.Contains(t, buf.String(), "0/0")
	assert.Contains(t, buf.String(), "docs/s")
	assert.Contains(t, buf.String(), "\n")
}

func TestProgress_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 100, 10)

	p.Add(10, 0)
	p.Finish()

	assert.Empty(t, buf.String())
	assert.Zero(t, p.Elapsed())
}
