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
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// throttleChunks is the fixed number of chunks a download is split into
const throttleChunks = 30

// throttledWriter streams a payload of known size in throttleChunks chunks,
// pausing between chunks so the whole transfer takes roughly throttle
type throttledWriter struct {
	w        io.Writer
	throttle time.Duration

	// onChunk is called after every chunk with the bytes written so far
	onChunk func(written, total int64)
}

// chunkInterval returns the pause between chunks, rounded to whole milliseconds
func chunkInterval(throttle time.Duration) time.Duration {
	if throttle <= 0 {
		return 0
	}
	ms := float64(throttle.Milliseconds()) / throttleChunks
	return time.Duration(math.Round(ms)) * time.Millisecond
}

// Stream copies total bytes from r. Every chunk holds total/throttleChunks
// bytes except the last, which takes the remainder.
func (t *throttledWriter) Stream(ctx context.Context, r io.Reader, total int64) (int64, error) {
	chunkSize := total / throttleChunks
	lastSize := total - chunkSize*(throttleChunks-1)
	interval := chunkInterval(t.throttle)
	flusher, _ := t.w.(http.Flusher)

	buf := make([]byte, lastSize)
	var written int64

	for i := 0; i < throttleChunks; i++ {
		size := chunkSize
		if i == throttleChunks-1 {
			size = lastSize
		}

		if size > 0 {
			chunk := buf[:size]
			if _, err := io.ReadFull(r, chunk); err != nil {
				return written, fmt.Errorf("failed to read chunk %d: %w", i+1, err)
			}
			n, err := t.w.Write(chunk)
			written += int64(n)
			if err != nil {
				return written, fmt.Errorf("failed to write chunk %d: %w", i+1, err)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}

		if t.onChunk != nil {
			t.onChunk(written, total)
		}

		if interval > 0 && i < throttleChunks-1 {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return written, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return written, nil
}

// progressPercent returns written as a rounded percentage of total
func progressPercent(written, total int64) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(written) * 100 / float64(total)))
}
