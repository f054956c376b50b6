// Package output maintains the append-only CoNLL output log.
//
// Blocks are buffered in memory and reach the file only on Flush, which also
// fsyncs. The driver saves the checkpoint immediately after a successful
// flush, recording the flushed byte offset; Open truncates the file back to
// that offset, so anything written after the last coupled flush (a torn tail
// from a crash) is discarded and the log is always a valid prefix of an
// uninterrupted run.
package output

import (
	"bufio"
	"fmt"
	"os"
)

// Log is the append-only output writer. Single writer, no concurrent use.
type Log struct {
	f       *os.File
	w       *bufio.Writer
	flushed int64 // bytes durably in the file
	pending int64 // bytes buffered since the last flush
	blocks  int   // blocks appended so far, flushed or not
}

// Open opens (or creates) the log at path and truncates it to validBytes,
// the offset recorded by the matching checkpoint. Pass 0 for a fresh run.
func Open(path string, validBytes int64) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open output log: %w", err)
	}
	if validBytes > info.Size() {
		f.Close()
		return nil, fmt.Errorf("open output log: checkpoint claims %d bytes but file has %d", validBytes, info.Size())
	}
	if err := f.Truncate(validBytes); err != nil {
		f.Close()
		return nil, fmt.Errorf("open output log: %w", err)
	}
	if _, err := f.Seek(validBytes, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("open output log: %w", err)
	}

	return &Log{f: f, w: bufio.NewWriterSize(f, 64*1024), flushed: validBytes}, nil
}

// Append adds one record's CoNLL block. A blank line separates blocks, so a
// block never contains its own trailing newline.
func (l *Log) Append(block string) error {
	var sep string
	if l.flushed+l.pending > 0 {
		sep = "\n\n"
	}
	n, err := l.w.WriteString(sep + block)
	l.pending += int64(n)
	if err != nil {
		return fmt.Errorf("append output: %w", err)
	}
	l.blocks++
	return nil
}

// Flush forces buffered blocks to durable storage and returns the new valid
// byte offset for the checkpoint.
func (l *Log) Flush() (int64, error) {
	if err := l.w.Flush(); err != nil {
		return l.flushed, fmt.Errorf("flush output: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return l.flushed, fmt.Errorf("flush output: %w", err)
	}
	l.flushed += l.pending
	l.pending = 0
	return l.flushed, nil
}

// FlushedBytes returns the durable length of the log.
func (l *Log) FlushedBytes() int64 { return l.flushed }

// Blocks returns the number of blocks appended in this session.
func (l *Log) Blocks() int { return l.blocks }

// Close flushes and closes the log.
func (l *Log) Close() error {
	if _, err := l.Flush(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
