package ingest

import (
	"bufio"
	"io"
)

const (
	initialBufSize = 64 * 1024
	maxLineSize    = 16 * 1024 * 1024
)

// lineReader reads JSONL line by line. Lines longer than maxLen are
// dropped and counted instead of aborting the file.
type lineReader struct {
	r         *bufio.Reader
	maxLen    int
	buf       []byte
	oversized int
}

func newLineReader(r io.Reader, maxLen int) *lineReader {
	return &lineReader{
		r:      bufio.NewReaderSize(r, initialBufSize),
		maxLen: maxLen,
		buf:    make([]byte, 0, initialBufSize),
	}
}

// next returns the next non-blank line and true, or ("", false, err)
// at EOF (err nil) or on a read failure.
func (lr *lineReader) next() (string, bool, error) {
	for {
		line, err := lr.readLine()
		if err == io.EOF {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		if line != "" {
			return line, true, nil
		}
	}
}

func (lr *lineReader) readLine() (string, error) {
	lr.buf = lr.buf[:0]
	skipping := false

	for {
		chunk, isPrefix, err := lr.r.ReadLine()
		if err != nil {
			if err == io.EOF && len(lr.buf) > 0 {
				break
			}
			return "", err
		}
		if skipping {
			if !isPrefix {
				return "", nil
			}
			continue
		}

		lr.buf = append(lr.buf, chunk...)
		if len(lr.buf) > lr.maxLen {
			lr.oversized++
			skipping = true
			lr.buf = lr.buf[:0]
			if !isPrefix {
				return "", nil
			}
			continue
		}
		if !isPrefix {
			break
		}
	}
	return string(lr.buf), nil
}
