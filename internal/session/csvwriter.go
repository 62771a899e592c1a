package session

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
)

// csvWriter is a buffered, mutex-guarded CSV file. Rows are flushed by the
// owner, not per write.
type csvWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	csv  *csv.Writer
	rows uint64
}

func newCSVWriter(path string, header []string) (*csvWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv create %s: %w", path, err)
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	w := &csvWriter{file: f, buf: bw, csv: csv.NewWriter(bw)}
	if err := w.csv.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("csv write header: %w", err)
	}
	return w, nil
}

func (w *csvWriter) writeRow(row []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("csv write row: %w", err)
	}
	w.rows++
	return nil
}

func (w *csvWriter) flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	return w.buf.Flush()
}

func (w *csvWriter) close() error {
	ferr := w.flush()
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Close(); err != nil {
		return err
	}
	return ferr
}

func (w *csvWriter) count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}
