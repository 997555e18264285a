package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-grid-api/internal/dto"
	"github.com/noah-isme/timetable-grid-api/internal/models"
	"github.com/noah-isme/timetable-grid-api/internal/timetable"
	appErrors "github.com/noah-isme/timetable-grid-api/pkg/errors"
	"github.com/noah-isme/timetable-grid-api/pkg/middleware/requestid"
	"github.com/noah-isme/timetable-grid-api/pkg/sheet"
	"github.com/noah-isme/timetable-grid-api/pkg/storage"
)

// chatMessageLimit is the longest report a chat transport accepts.
const chatMessageLimit = 4096

// SheetOpener opens an uploaded spreadsheet.
type SheetOpener func(r io.Reader) (SheetHandle, error)

// SheetHandle is an opened spreadsheet.
type SheetHandle interface {
	timetable.SheetSource
	Close() error
}

// OpenWorkbook adapts the excelize-backed reader to SheetOpener.
func OpenWorkbook(r io.Reader) (SheetHandle, error) {
	return sheet.Open(r)
}

type fileStore interface {
	Save(name string, data []byte) (string, error)
	Read(name string) ([]byte, error)
	Exists(name string) bool
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type tokenSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (*storage.Grant, error)
}

type renderCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Purge(ctx context.Context) (int, error)
}

// TimetableServiceConfig tunes the orchestration around the core pipeline.
type TimetableServiceConfig struct {
	Grid           timetable.GridConfig
	MaxUploadBytes int64
	// DownloadPath is prefixed to signed tokens to form download URLs.
	DownloadPath string
	CacheTTL     time.Duration
}

// RenderInput is one render request.
type RenderInput struct {
	Upload  []byte
	Range   string
	Format  models.OutputFormat
	NoColor bool
}

// Download is a stored document resolved from a signed token.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

// TimetableService runs uploads through extraction and rendering and manages the stored results.
type TimetableService struct {
	renderer *Renderer
	store    fileStore
	signer   tokenSigner
	cache    renderCache
	metrics  *MetricsService
	open     SheetOpener
	logger   *zap.Logger
	config   TimetableServiceConfig
	now      func() time.Time
}

// NewTimetableService wires the service. cache and metrics may be nil.
func NewTimetableService(renderer *Renderer, store fileStore, signer tokenSigner, cache renderCache, metrics *MetricsService, logger *zap.Logger, cfg TimetableServiceConfig) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Grid.RowWeekdays == nil || cfg.Grid.ColumnSlots == nil {
		cfg.Grid = timetable.DefaultGridConfig()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 * 1024 * 1024
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/api/v1/export/"
	}
	if cache == nil {
		cache = (*CacheService)(nil)
	}
	return &TimetableService{
		renderer: renderer,
		store:    store,
		signer:   signer,
		cache:    cache,
		metrics:  metrics,
		open:     OpenWorkbook,
		logger:   logger,
		config:   cfg,
		now:      time.Now,
	}
}

// Extract parses an upload and returns its occurrences and conflicts.
func (s *TimetableService) Extract(ctx context.Context, upload []byte) (*dto.ExtractResponse, error) {
	result, err := s.extract(ctx, upload)
	if err != nil {
		return nil, err
	}
	return &dto.ExtractResponse{
		Label:           result.Label,
		Variant:         result.Variant,
		Occurrences:     result.Occurrences,
		Conflicts:       result.Conflicts,
		Report:          result.Report,
		ReportTruncated: timetable.TruncateReport(result.Report, chatMessageLimit),
		ParseMisses:     result.ParseMisses,
	}, nil
}

// Render produces the requested document, stores it and returns a signed download link.
// Identical requests are answered from the render cache while the stored file exists.
func (s *TimetableService) Render(ctx context.Context, input RenderInput) (*dto.RenderResponse, error) {
	artifact, cached, err := s.RenderArtifact(ctx, input)
	if err != nil {
		return nil, err
	}
	url, expiresAt, err := s.DownloadURL(artifact)
	if err != nil {
		return nil, err
	}
	return &dto.RenderResponse{
		ID:              artifact.ID,
		Format:          artifact.Format,
		Label:           artifact.Label,
		Variant:         artifact.Variant,
		DownloadURL:     url,
		ExpiresAt:       expiresAt,
		Conflicts:       artifact.Conflicts,
		Report:          artifact.Report,
		ReportTruncated: timetable.TruncateReport(artifact.Report, chatMessageLimit),
		Weeks:           artifact.Weeks,
		Overflows:       artifact.Overflows,
		Cached:          cached,
	}, nil
}

// RenderArtifact renders and stores a document without signing a link.
func (s *TimetableService) RenderArtifact(ctx context.Context, input RenderInput) (*models.RenderArtifact, bool, error) {
	if !input.Format.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported output format %q", input.Format))
	}
	start, end, err := timetable.ParseDateRange(input.Range, s.config.Grid.ReferenceDate())
	if err != nil {
		return nil, false, err
	}
	if err := s.checkUpload(input.Upload); err != nil {
		return nil, false, err
	}

	key := CacheKey(input)
	var hit models.RenderArtifact
	if ok, _ := s.cache.Get(ctx, key, &hit); ok && s.store.Exists(hit.Path) {
		s.logger.Debug("render served from cache", zap.String("id", hit.ID), zap.String("format", string(hit.Format)))
		return &hit, true, nil
	}

	result, err := s.extract(ctx, input.Upload)
	if err != nil {
		return nil, false, err
	}

	begin := time.Now()
	rendered, err := s.renderer.Render(ctx, result, start, end, input.Format, input.NoColor)
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveRender(input.Format, time.Since(begin), rendered.Stats.Overflows)

	id := uuid.NewString()
	path, err := s.store.Save(fmt.Sprintf("renders/%s.%s", id, input.Format.Extension()), rendered.Data)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store rendered file")
	}

	artifact := &models.RenderArtifact{
		ID:          id,
		Path:        path,
		Format:      input.Format,
		Label:       result.Label,
		Variant:     result.Variant,
		Report:      result.Report,
		Conflicts:   len(result.Conflicts),
		Occurrences: len(result.Occurrences),
		ParseMisses: result.ParseMisses,
		Weeks:       rendered.Stats.Weeks,
		Overflows:   rendered.Stats.Overflows,
		CreatedAt:   s.now().UTC(),
	}
	_ = s.cache.Set(ctx, key, artifact, s.config.CacheTTL)

	s.logger.Info("timetable rendered",
		zap.String("request_id", requestid.FromContext(ctx)),
		zap.String("id", id),
		zap.String("label", result.Label),
		zap.String("format", string(input.Format)),
		zap.Int("occurrences", artifact.Occurrences),
		zap.Int("conflicts", artifact.Conflicts),
		zap.Int("overflows", artifact.Overflows),
	)
	return artifact, false, nil
}

// DownloadURL signs a link to a stored artifact.
func (s *TimetableService) DownloadURL(artifact *models.RenderArtifact) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Generate(artifact.ID, artifact.Path)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return s.config.DownloadPath + token, expiresAt, nil
}

// ResolveDownload validates a token and loads the referenced document.
func (s *TimetableService) ResolveDownload(_ context.Context, token string) (*Download, error) {
	grant, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(grant.Path)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrNotFound, "rendered file no longer exists")
	}
	format := formatFromPath(grant.Path)
	return &Download{
		Filename:    "timetable." + format.Extension(),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// Cleanup removes stored documents older than ttl.
func (s *TimetableService) Cleanup(ttl time.Duration) (int, error) {
	deleted, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		return 0, err
	}
	if len(deleted) > 0 {
		s.logger.Info("expired renders removed", zap.Int("count", len(deleted)))
	}
	return len(deleted), nil
}

// PurgeCache drops every cached render.
func (s *TimetableService) PurgeCache(ctx context.Context) (int, error) {
	removed, err := s.cache.Purge(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge render cache")
	}
	return removed, nil
}

func (s *TimetableService) checkUpload(upload []byte) error {
	if len(upload) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "spreadsheet file is required")
	}
	if int64(len(upload)) > s.config.MaxUploadBytes {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("spreadsheet exceeds %d bytes", s.config.MaxUploadBytes))
	}
	return nil
}

func (s *TimetableService) extract(ctx context.Context, upload []byte) (*timetable.Result, error) {
	if err := s.checkUpload(upload); err != nil {
		return nil, err
	}
	wb, err := s.open(bytes.NewReader(upload))
	if err != nil {
		return nil, err
	}
	defer wb.Close() //nolint:errcheck

	result, err := timetable.Extract(wb, timetable.Options{Grid: s.config.Grid, Logger: s.logger})
	if err != nil {
		s.logger.Info("sheet rejected", zap.String("request_id", requestid.FromContext(ctx)), zap.Error(err))
		return nil, err
	}
	s.metrics.RecordExtraction(len(result.Occurrences), len(result.Conflicts), result.ParseMisses)
	return result, nil
}

// CacheKey identifies a render by upload content, window, format and colour mode.
func CacheKey(input RenderInput) string {
	sum := sha256.Sum256(input.Upload)
	return hex.EncodeToString(sum[:]) + ":" + input.Range + ":" + string(input.Format) + ":" + strconv.FormatBool(input.NoColor)
}

func formatFromPath(path string) models.OutputFormat {
	for _, f := range []models.OutputFormat{models.FormatReport, models.FormatSVG, models.FormatPDF, models.FormatPNG, models.FormatICS, models.FormatCSV} {
		ext := "." + f.Extension()
		if len(path) > len(ext) && path[len(path)-len(ext):] == ext {
			return f
		}
	}
	return ""
}
