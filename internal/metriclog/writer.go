package metriclog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Config controls rotation and location, mirroring §6's log.metric.* keys.
type Config struct {
	Directory       string
	BaseName        string // default "metrics.log"
	SingleMaxBytes  int64  // rotate once the active file reaches this size
	MaxFileAmount   int    // oldest numbered file is deleted past this count
}

// Writer is a rotating pipe-delimited metric log plus its companion time
// index, safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	cfg Config

	file    *os.File
	bw      *bufio.Writer
	idxFile *os.File
	idxBw   *bufio.Writer
	size    int64
	index   int
}

const (
	defaultBaseName      = "metrics.log"
	defaultSingleMaxSize = 64 * 1024 * 1024
	defaultMaxFileAmount = 10
)

// NewWriter opens (creating if needed) the active log + index file pair
// under cfg.Directory.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Directory == "" {
		return nil, fmt.Errorf("metriclog: directory is required")
	}
	if cfg.BaseName == "" {
		cfg.BaseName = defaultBaseName
	}
	if cfg.SingleMaxBytes <= 0 {
		cfg.SingleMaxBytes = defaultSingleMaxSize
	}
	if cfg.MaxFileAmount <= 0 {
		cfg.MaxFileAmount = defaultMaxFileAmount
	}
	if err := os.MkdirAll(cfg.Directory, 0o750); err != nil {
		return nil, fmt.Errorf("metriclog: creating directory: %w", err)
	}

	w := &Writer{cfg: cfg, index: 1}
	if err := w.openCurrent(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) logPath(index int) string {
	return filepath.Join(w.cfg.Directory, fmt.Sprintf("%s.%d", w.cfg.BaseName, index))
}

func (w *Writer) idxPath(index int) string {
	return filepath.Join(w.cfg.Directory, fmt.Sprintf("%s.%d.idx", w.cfg.BaseName, index))
}

func (w *Writer) openCurrent() error {
	// Find the highest-numbered existing file and resume onto it, so a
	// restart doesn't clobber the file an earlier process was writing.
	for i := w.index; i <= w.cfg.MaxFileAmount; i++ {
		if _, err := os.Stat(w.logPath(i)); err == nil {
			w.index = i
		}
	}

	f, err := os.OpenFile(w.logPath(w.index), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("metriclog: opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("metriclog: stat log file: %w", err)
	}
	idxF, err := os.OpenFile(w.idxPath(w.index), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		f.Close()
		return fmt.Errorf("metriclog: opening index file: %w", err)
	}

	w.file = f
	w.bw = bufio.NewWriter(f)
	w.idxFile = idxF
	w.idxBw = bufio.NewWriter(idxF)
	w.size = info.Size()
	return nil
}

// WriteRecord appends one metric line and its index entry, rotating first
// if the active file has reached its size limit.
func (w *Writer) WriteRecord(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size >= w.cfg.SingleMaxBytes {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	line := FormatLine(r) + "\n"
	n, err := w.bw.WriteString(line)
	if err != nil {
		return fmt.Errorf("metriclog: writing record: %w", err)
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("metriclog: flushing record: %w", err)
	}

	idxLine := fmt.Sprintf("%d|%d\n", r.Timestamp.UnixMilli(), w.size)
	if _, err := w.idxBw.WriteString(idxLine); err != nil {
		return fmt.Errorf("metriclog: writing index entry: %w", err)
	}
	if err := w.idxBw.Flush(); err != nil {
		return fmt.Errorf("metriclog: flushing index entry: %w", err)
	}

	w.size += int64(n)
	return nil
}

func (w *Writer) rotateLocked() error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	w.index++
	if err := w.openCurrent(); err != nil {
		return err
	}
	w.pruneLocked()
	return nil
}

func (w *Writer) pruneLocked() {
	oldest := w.index - w.cfg.MaxFileAmount
	if oldest < 1 {
		return
	}
	os.Remove(w.logPath(oldest))
	os.Remove(w.idxPath(oldest))
}

func (w *Writer) closeLocked() error {
	if w.bw != nil {
		if err := w.bw.Flush(); err != nil {
			return err
		}
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return err
		}
	}
	if w.idxBw != nil {
		if err := w.idxBw.Flush(); err != nil {
			return err
		}
	}
	if w.idxFile != nil {
		return w.idxFile.Close()
	}
	return nil
}

// Close flushes and closes the active log and index files.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}
