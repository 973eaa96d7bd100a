package check

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCheckCommand(t *testing.T) {
	cmd := NewCheckCommand()

	require.NotNil(t, cmd)

	assert.Equal(t, "check", cmd.Use)
	assert.True(t, cmd.HasExample())

	assert.Nil(t, cmd.Run)
	assert.NotNil(t, cmd.RunE)

	assert.NotNil(t, cmd.Flags().Lookup("interactive"))
}

func TestSamplesCoverBothClasses(t *testing.T) {
	var spam, ham int
	for _, s := range samples {
		require.NotEmpty(t, s.text)
		require.NotEmpty(t, s.expected)
		if strings.Contains(s.expected, "垃圾消息") {
			spam++
		} else {
			ham++
		}
	}
	assert.Positive(t, spam)
	assert.Positive(t, ham)
}
