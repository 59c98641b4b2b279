package logging

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"
)

// TailFile follows an append-only text file and calls emit once per complete
// line. With fromStart false the existing content is skipped and only lines
// appended after the call are delivered. When no new line is available the
// file is re-polled at the given interval. The function returns only when
// ctx is cancelled or emit returns an error.
func TailFile(ctx context.Context, path string, fromStart bool, interval time.Duration, emit func(line string) error) error {
	f, err := waitForFile(ctx, path, interval)
	if err != nil {
		return err
	}
	defer f.Close()

	if !fromStart {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return err
		}
	}

	reader := bufio.NewReader(f)
	var partial strings.Builder

	for {
		chunk, err := reader.ReadString('\n')
		if err == nil {
			line := partial.String() + strings.TrimRight(chunk, "\n")
			partial.Reset()
			if err := emit(line); err != nil {
				return err
			}
			continue
		}
		if err != io.EOF {
			return err
		}
		// Hold on to an incomplete trailing line until the writer
		// finishes it.
		partial.WriteString(chunk)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func waitForFile(ctx context.Context, path string, interval time.Duration) (*os.File, error) {
	for {
		f, err := os.Open(path)
		if err == nil {
			return f, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}
