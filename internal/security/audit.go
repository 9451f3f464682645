// internal/security/audit.go
package security

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Audit event types
const (
	EventWalletInitialized    = "wallet_initialized"
	EventKeystoreExported     = "keystore_exported"
	EventKeystoreImported     = "keystore_imported"
	EventTransactionSubmitted = "transaction_submitted"
	EventTransactionResolved  = "transaction_resolved"
	EventTokenApproved        = "token_approved"
	EventTokenTransferred     = "token_transferred"
)

// AuditLogger appends one JSON object per security event to a file.
// Payloads must never carry key material.
type AuditLogger struct {
	file   afero.File
	logger *zap.Logger
}

// NewAuditLogger opens (or creates) path for appending
func NewAuditLogger(fs afero.Fs, path string) (*AuditLogger, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	file, err := fs.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		MessageKey:     "event_type",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), zapcore.InfoLevel)

	return &AuditLogger{
		file:   file,
		logger: zap.New(core),
	}, nil
}

// Record writes an event line
func (a *AuditLogger) Record(eventType string, payload map[string]string) {
	a.logger.Info(eventType,
		zap.String("event_id", uuid.NewString()),
		zap.Any("payload", payload))
}

// Close flushes and closes the underlying file
func (a *AuditLogger) Close() error {
	_ = a.logger.Sync()
	return a.file.Close()
}

// NopAuditor discards events
type NopAuditor struct{}

func (NopAuditor) Record(string, map[string]string) {}
