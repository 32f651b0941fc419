/*
Copyright (c) 2025 Odd Kin <oddkin@oddkin.co>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package server

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkRecorder records the size of every write
type chunkRecorder struct {
	bytes.Buffer
	writes []int
}

func (c *chunkRecorder) Write(p []byte) (int, error) {
	c.writes = append(c.writes, len(p))
	return c.Buffer.Write(p)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestChunkInterval(t *testing.T) {
	assert.Equal(t, time.Duration(0), chunkInterval(0))
	assert.Equal(t, time.Duration(0), chunkInterval(-time.Second))
	assert.Equal(t, 100*time.Millisecond, chunkInterval(3*time.Second))
	assert.Equal(t, 33*time.Millisecond, chunkInterval(1000*time.Millisecond))
	assert.Equal(t, 67*time.Millisecond, chunkInterval(2000*time.Millisecond))
	assert.Equal(t, time.Duration(0), chunkInterval(14*time.Millisecond))
	assert.Equal(t, time.Millisecond, chunkInterval(15*time.Millisecond))
}

func TestThrottledWriter_ChunkSizes(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 1009)
	out := &chunkRecorder{}

	var progress []int64
	writer := &throttledWriter{w: out, onChunk: func(written, _ int64) { progress = append(progress, written) }}

	written, err := writer.Stream(context.Background(), bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, int64(1009), written)
	assert.Equal(t, payload, out.Bytes())

	require.Len(t, out.writes, throttleChunks)
	for _, size := range out.writes[:throttleChunks-1] {
		assert.Equal(t, 33, size)
	}
	assert.Equal(t, 1009-33*29, out.writes[throttleChunks-1])

	require.Len(t, progress, throttleChunks)
	assert.Equal(t, int64(1009), progress[throttleChunks-1])
}

func TestThrottledWriter_SmallPayload(t *testing.T) {
	out := &chunkRecorder{}
	writer := &throttledWriter{w: out}

	written, err := writer.Stream(context.Background(), bytes.NewReader([]byte("tiny")), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), written)
	assert.Equal(t, []int{4}, out.writes)
}

func TestThrottledWriter_EmptyPayload(t *testing.T) {
	out := &chunkRecorder{}
	writer := &throttledWriter{w: out}

	written, err := writer.Stream(context.Background(), bytes.NewReader(nil), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), written)
	assert.Empty(t, out.writes)
}

func TestThrottledWriter_Throttle(t *testing.T) {
	payload := bytes.Repeat([]byte("y"), 3000)
	out := &chunkRecorder{}
	throttle := 600 * time.Millisecond
	writer := &throttledWriter{w: out, throttle: throttle}

	start := time.Now()
	written, err := writer.Stream(context.Background(), bytes.NewReader(payload), int64(len(payload)))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), written)
	assert.GreaterOrEqual(t, elapsed, throttle-chunkInterval(throttle))
}

func TestThrottledWriter_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := &chunkRecorder{}
	writer := &throttledWriter{w: out, throttle: time.Hour, onChunk: func(int64, int64) { cancel() }}

	written, err := writer.Stream(ctx, bytes.NewReader(bytes.Repeat([]byte("z"), 300)), 300)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(10), written)
}

func TestThrottledWriter_WriteFailure(t *testing.T) {
	writer := &throttledWriter{w: failingWriter{}}

	_, err := writer.Stream(context.Background(), bytes.NewReader(bytes.Repeat([]byte("z"), 60)), 60)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestThrottledWriter_ShortSource(t *testing.T) {
	writer := &throttledWriter{w: &chunkRecorder{}}

	_, err := writer.Stream(context.Background(), bytes.NewReader([]byte("short")), 100)
	assert.Error(t, err)
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 100, progressPercent(0, 0))
	assert.Equal(t, 50, progressPercent(50, 100))
	assert.Equal(t, 33, progressPercent(1, 3))
	assert.Equal(t, 67, progressPercent(2, 3))
}
