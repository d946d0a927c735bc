package telegram

import (
	"io"
	"sync"
)

// fileWriter is satisfied by *os.File.
type fileWriter interface {
	io.Writer
	io.WriterAt
}

// progressWriter counts bytes written to the destination and reports them.
// Parallel downloads write from several goroutines, hence the mutex.
type progressWriter struct {
	dst    fileWriter
	total  int64
	report ProgressFunc

	mu      sync.Mutex
	written int64
}

func newProgressWriter(dst fileWriter, total int64, report ProgressFunc) *progressWriter {
	return &progressWriter{dst: dst, total: total, report: report}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.add(n)
	return n, err
}

func (w *progressWriter) WriteAt(p []byte, off int64) (int, error) {
	n, err := w.dst.WriteAt(p, off)
	w.add(n)
	return n, err
}

func (w *progressWriter) add(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written += int64(n)
	if w.report != nil {
		w.report(w.written, w.total)
	}
}

// Written returns the number of bytes written so far.
func (w *progressWriter) Written() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}
