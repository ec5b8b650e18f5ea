package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/csv2xlsx/internal/history"
	"github.com/JonMunkholm/csv2xlsx/internal/storage"
)

// ConvertTimeout bounds a single conversion, including the wait for a slot.
var ConvertTimeout = 5 * time.Minute

// ServiceConfig wires a Service. Store is required; History and Limiter
// default to an in-memory ring and a default limiter.
type ServiceConfig struct {
	Store    *storage.Store
	History  history.Store
	Limiter  *ConversionLimiter
	Defaults Options
}

// Service runs conversions on behalf of the HTTP layer: it applies default
// options, bounds concurrency, stores outputs and records history.
type Service struct {
	store    *storage.Store
	history  history.Store
	limiter  *ConversionLimiter
	defaults Options
}

// ConversionResult summarises one conversion.
type ConversionResult struct {
	File       string        `json:"file,omitempty"`
	Rows       int           `json:"rows"`
	Bytes      int           `json:"bytes"`
	InputBytes int64         `json:"input_bytes"`
	Engine     string        `json:"engine"`
	Duration   time.Duration `json:"duration_ns"`
}

// NewService validates cfg and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("core: service requires a storage.Store")
	}
	defaults := cfg.Defaults.withDefaults()
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("core: default options: %w", err)
	}
	if cfg.History == nil {
		cfg.History = history.NewMemoryHistory(0)
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewConversionLimiter(0, 0)
	}
	return &Service{
		store:    cfg.Store,
		history:  cfg.History,
		limiter:  cfg.Limiter,
		defaults: defaults,
	}, nil
}

// Defaults returns the options applied to requests that leave fields unset.
func (s *Service) Defaults() Options {
	return s.defaults
}

// Limiter returns the conversion limiter, for status and shutdown drain.
func (s *Service) Limiter() *ConversionLimiter {
	return s.limiter
}

// ConvertAndStore converts r and saves the workbook as outputName in the
// output directory. The stored name always ends in ".xlsx".
func (s *Service) ConvertAndStore(ctx context.Context, r io.Reader, outputName string, opts Options) (*ConversionResult, error) {
	name, err := storage.NormalizeName(outputName)
	if err != nil {
		return nil, err
	}

	data, res, err := s.convert(ctx, r, opts)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Save(name, data)
	if err != nil {
		return nil, err
	}
	res.File = stored

	s.record(ctx, res, opts)
	return res, nil
}

// ConvertToBytes converts r and returns the workbook without storing it.
func (s *Service) ConvertToBytes(ctx context.Context, r io.Reader, opts Options) ([]byte, *ConversionResult, error) {
	data, res, err := s.convert(ctx, r, opts)
	if err != nil {
		return nil, nil, err
	}
	s.record(ctx, res, opts)
	return data, res, nil
}

func (s *Service) convert(ctx context.Context, r io.Reader, opts Options) ([]byte, *ConversionResult, error) {
	opts = opts.Merge(s.defaults)

	ctx, cancel := context.WithTimeout(ctx, ConvertTimeout)
	defer cancel()

	var (
		data []byte
		res  *ConversionResult
	)
	err := s.limiter.Do(ctx, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		in := NewCountingReader(r)

		wb, err := ReadWorkbook(in, opts)
		if err != nil {
			return err
		}

		enc, err := opts.encoder()
		if err != nil {
			return err
		}
		data, err = enc.Encode(wb)
		if err != nil {
			return err
		}

		res = &ConversionResult{
			Rows:       wb.RowCount(),
			Bytes:      len(data),
			InputBytes: in.N,
			Engine:     opts.EngineName(),
			Duration:   time.Since(start),
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return data, res, nil
}

// record writes a history entry. Failures are logged, not returned: the
// conversion itself has already succeeded.
func (s *Service) record(ctx context.Context, res *ConversionResult, opts Options) {
	opts = opts.Merge(s.defaults)
	entry := history.Entry{
		OutputName: res.File,
		SourceName: SourceNameFromContext(ctx),
		Rows:       res.Rows,
		Bytes:      int64(res.Bytes),
		Delimiter:  opts.Delimiter,
		Engine:     res.Engine,
		Duration:   res.Duration,
		ClientIP:   ClientIPFromContext(ctx),
	}
	if err := s.history.Record(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("failed to record conversion history", "file", res.File, "error", err)
	}
}

// TakeFile returns the stored file and removes it, so each output can be
// downloaded once.
func (s *Service) TakeFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.Take(name)
}

// OpenFile returns a reader over a stored file without removing it.
func (s *Service) OpenFile(ctx context.Context, name string) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.store.Read(name)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// ListFiles returns the stored outputs sorted by name.
func (s *Service) ListFiles(ctx context.Context) ([]storage.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.List()
}

// History returns up to limit recent conversions, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]history.Entry, error) {
	return s.history.Recent(ctx, limit)
}
