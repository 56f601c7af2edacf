package xena

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineBuffer_Reassembly(t *testing.T) {
	require := require.New(t)

	var buf LineBuffer

	require.NoError(buf.Write([]byte("1/2 x RESER")))
	_, ok := buf.Next()
	require.False(ok, "fragment without terminator must not be returned")
	require.Equal(11, buf.Len())

	require.NoError(buf.Write([]byte("VED_BY_YOU\n<SY")))
	line, ok := buf.Next()
	require.True(ok)
	require.Equal("1/2 x RESERVED_BY_YOU", line)

	_, ok = buf.Next()
	require.False(ok)

	require.NoError(buf.Write([]byte("NC>\n")))
	line, ok = buf.Next()
	require.True(ok)
	require.Equal("<SYNC>", line)
	require.Zero(buf.Len())
}

func TestLineBuffer_MultipleLinesInOneWrite(t *testing.T) {
	require := require.New(t)

	var buf LineBuffer
	require.NoError(buf.Write([]byte("<OK>\n\n<OK>\ntail")))

	line, ok := buf.Next()
	require.True(ok)
	require.Equal("<OK>", line)

	line, ok = buf.Next()
	require.True(ok)
	require.Empty(line)

	line, ok = buf.Next()
	require.True(ok)
	require.Equal("<OK>", line)

	_, ok = buf.Next()
	require.False(ok)
	require.Equal(4, buf.Len())
}

func TestLineBuffer_Compaction(t *testing.T) {
	require := require.New(t)

	var buf LineBuffer
	for i := range 1000 {
		require.NoError(buf.Write([]byte("0/1 P_RESERVATION RELEASED\n0/")))
		line, ok := buf.Next()
		require.True(ok, "iteration %d", i)
		if i == 0 {
			require.Equal("0/1 P_RESERVATION RELEASED", line)
		} else {
			require.Equal("0/0/1 P_RESERVATION RELEASED", line)
		}
	}
	require.Less(cap(buf.data), 4096)
}

func TestLineBuffer_Overflow(t *testing.T) {
	require := require.New(t)

	var buf LineBuffer
	err := buf.Write(bytes.Repeat([]byte("a"), MaxLineLength+1))
	require.ErrorIs(err, ErrProtocolParse)
	require.Zero(buf.Len())

	require.NoError(buf.Write([]byte("<OK>\n")))
	line, ok := buf.Next()
	require.True(ok)
	require.Equal("<OK>", line)
}
