package uictl_test

import (
	"testing"

	"github.com/medannot/medannot/pkg/uictl"
	"github.com/stretchr/testify/assert"
)

func TestCapped(t *testing.T) {
	var elapsed int64
	dial := uictl.Capped[int64](uictl.DialFunc[int64](func() int64 { return elapsed }), 1800)

	num, limit := dial.Cap()
	assert.Equal(t, int64(0), num)
	assert.Equal(t, int64(1800), limit)

	elapsed = 83
	assert.Equal(t, int64(83), dial.Read())
	num, _ = dial.Cap()
	assert.Equal(t, int64(83), num)
}
