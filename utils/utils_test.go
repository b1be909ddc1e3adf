package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesMD5(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", BytesMD5(nil))
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", BytesMD5([]byte("hello")))
}

func TestInitLogger(t *testing.T) {
	previous := Logger
	t.Cleanup(func() { Logger = previous })

	for _, mode := range []string{"debug", "release"} {
		require.NoError(t, InitLogger(mode))
		require.NotNil(t, Logger)
		Logger.Info("logger ready")
	}
}
