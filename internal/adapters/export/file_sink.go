package export

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vncsmyrnk/scorepoll/internal/codec"
	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
)

// FileSink writes one tagged JSON poll per line. Output goes to a temporary
// file next to path and is renamed into place on Close.
type FileSink struct {
	path string
	tmp  *os.File
	w    *bufio.Writer
}

func NewFileSink(path string) (ports.ExportSink, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}
	return &FileSink{path: path, tmp: tmp, w: bufio.NewWriter(tmp)}, nil
}

func (s *FileSink) Write(_ context.Context, poll *domain.Poll) error {
	return writeLine(s.w, poll)
}

func (s *FileSink) Close(context.Context) error {
	if err := s.w.Flush(); err != nil {
		_ = s.Abort()
		return fmt.Errorf("failed to flush export: %w", err)
	}
	if err := s.tmp.Sync(); err != nil {
		_ = s.Abort()
		return fmt.Errorf("failed to sync export: %w", err)
	}
	if err := s.tmp.Close(); err != nil {
		_ = os.Remove(s.tmp.Name())
		return fmt.Errorf("failed to close export: %w", err)
	}
	return os.Rename(s.tmp.Name(), s.path)
}

func (s *FileSink) Abort() error {
	_ = s.tmp.Close()
	return os.Remove(s.tmp.Name())
}

type lineWriter interface {
	Write(p []byte) (int, error)
	WriteByte(c byte) error
}

func writeLine(w lineWriter, poll *domain.Poll) error {
	line, err := codec.EncodePollJSON(poll)
	if err != nil {
		return err
	}
	if _, err := w.Write(line); err != nil {
		return err
	}
	return w.WriteByte('\n')
}
