package transcript

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrWrite marks a failed transcript write. Losing transcript output
// silently is unacceptable, so callers treat this as fatal.
var ErrWrite = errors.New("transcript write failed")

// Line is one recognized span of audio. Once written it is never
// mutated; sequence numbers increase strictly.
type Line struct {
	Seq   int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Writer appends transcript lines to a file, flushing after every line
// so that everything already written survives an interruption.
type Writer struct {
	path       string
	file       *os.File
	buf        *bufio.Writer
	echo       io.Writer
	timestamps bool
	lastSeq    int
	lines      int
}

// Open creates the file if absent and appends if present. The file is
// never truncated. echo, when non-nil, receives a copy of every line.
func Open(path string, timestamps bool, echo io.Writer) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &Writer{
		path:       path,
		file:       file,
		buf:        bufio.NewWriter(file),
		echo:       echo,
		timestamps: timestamps,
	}, nil
}

// WriteLine formats, appends and flushes one line. Sequence numbers
// must be strictly increasing.
func (w *Writer) WriteLine(line Line) error {
	if line.Seq <= w.lastSeq {
		return fmt.Errorf("%w: sequence %d not greater than %d", ErrWrite, line.Seq, w.lastSeq)
	}
	formatted := w.Format(line)
	if _, err := w.buf.WriteString(formatted + "\n"); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	w.lastSeq = line.Seq
	w.lines++
	if w.echo != nil {
		fmt.Fprintln(w.echo, formatted)
	}
	return nil
}

// Format renders a line the way it appears in the file.
func (w *Writer) Format(line Line) string {
	if !w.timestamps {
		return line.Text
	}
	return FormatOffset(line.Start) + " " + line.Text
}

// FormatOffset renders an audio offset as [HH:MM:SS].
func FormatOffset(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("[%02d:%02d:%02d]", total/3600, total/60%60, total%60)
}

// Lines reports how many lines were written by this writer.
func (w *Writer) Lines() int {
	return w.lines
}

// Path returns the transcript file location.
func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) Close() error {
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("%w: %v", ErrWrite, flushErr)
	}
	return closeErr
}
