package audit

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/edgecomet/revalidator/internal/common/configtypes"
)

const (
	DefaultMaxSize    = 100 // MB
	DefaultMaxAge     = 30  // days
	DefaultMaxBackups = 10  // files
)

// Emitter receives one record per revalidation call.
// Emit never fails the request: write errors are logged by the emitter.
type Emitter interface {
	Emit(r *Record)
	Close() error
}

// NoopEmitter drops every record
type NoopEmitter struct{}

func (NoopEmitter) Emit(*Record) {}

func (NoopEmitter) Close() error { return nil }

// FileEmitter appends formatted records to a rotated file
type FileEmitter struct {
	writer    *lumberjack.Logger
	formatter *TemplateFormatter
	logger    *zap.Logger
}

// New returns a FileEmitter when the audit log is enabled and a NoopEmitter otherwise
func New(cfg configtypes.AuditLogConfig, logger *zap.Logger) (Emitter, error) {
	if !cfg.Enabled {
		return NoopEmitter{}, nil
	}
	return NewFileEmitter(cfg, logger)
}

// NewFileEmitter validates the template and prepares the log directory
func NewFileEmitter(cfg configtypes.AuditLogConfig, logger *zap.Logger) (*FileEmitter, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory %s: %w", dir, err)
	}

	template := cfg.Template
	if template == "" {
		template = DefaultTemplate
	}
	formatter, err := NewTemplateFormatter(template)
	if err != nil {
		return nil, fmt.Errorf("invalid template for audit log %s: %w", cfg.Path, err)
	}

	rotation := cfg.Rotation
	if rotation.MaxSize == 0 {
		rotation.MaxSize = DefaultMaxSize
	}
	if rotation.MaxAge == 0 {
		rotation.MaxAge = DefaultMaxAge
	}
	if rotation.MaxBackups == 0 {
		rotation.MaxBackups = DefaultMaxBackups
	}

	return &FileEmitter{
		writer: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    rotation.MaxSize,
			MaxAge:     rotation.MaxAge,
			MaxBackups: rotation.MaxBackups,
			Compress:   rotation.Compress,
		},
		formatter: formatter,
		logger:    logger,
	}, nil
}

func (f *FileEmitter) Emit(r *Record) {
	line := f.formatter.Format(r)
	if _, err := f.writer.Write([]byte(line + "\n")); err != nil {
		f.logger.Warn("Failed to write audit record",
			zap.String("request_id", r.RequestID),
			zap.Error(err))
	}
}

func (f *FileEmitter) Close() error {
	return f.writer.Close()
}
