// internal/service/print_service.go
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"escpos-service/internal/command"
	"escpos-service/internal/config"
	"escpos-service/internal/model"
	"escpos-service/internal/printer"
	"escpos-service/internal/protocol"
	"escpos-service/internal/receipt"
	"escpos-service/internal/repository"
	"escpos-service/internal/utils"
)

var (
	ErrPrinterNotFound = errors.New("printer not found")
	ErrQueueFull       = errors.New("print queue is full")
	ErrInvalidJob      = errors.New("invalid print job")
	ErrServiceStopped  = errors.New("print service is not running")
)

// EventPublisher receives job and printer status events
type EventPublisher interface {
	Publish(event model.PrinterEvent)
}

// TransportFactory builds a fresh transport for one job on one printer
type TransportFactory func(pc *config.PrinterConfig, logger *zap.Logger) (protocol.Transport, error)

// DefaultTransportFactory creates the transport named by the printer's
// connection type
func DefaultTransportFactory(pc *config.PrinterConfig, logger *zap.Logger) (protocol.Transport, error) {
	ct, err := protocol.ParseConnectionType(pc.ConnectionType)
	if err != nil {
		return nil, err
	}
	return protocol.CreateProtocol(ct, pc.Connection, logger)
}

// Option configures a PrintService
type Option func(*PrintService)

// WithTransportFactory replaces the transport factory
func WithTransportFactory(f TransportFactory) Option {
	return func(ps *PrintService) { ps.newTransport = f }
}

// WithEventPublisher sets the event sink
func WithEventPublisher(pub EventPublisher) Option {
	return func(ps *PrintService) { ps.events = pub }
}

// PrintService owns the configured printers and runs one job queue per
// printer. Jobs for the same printer run one at a time in submission order.
type PrintService struct {
	config       *config.Config
	jobRepo      repository.JobRepository
	events       EventPublisher
	newTransport TransportFactory
	logger       *utils.ServiceLogger

	workers map[string]*printerWorker
	order   []string

	mutex   sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type queuedJob struct {
	job *model.PrintJob
	doc *receipt.Document
	raw []byte
}

type printerWorker struct {
	cfg    config.PrinterConfig
	model  command.Model
	queue  chan *queuedJob
	logger *utils.PrinterLogger

	mutex sync.Mutex
	state model.Printer
}

// NewPrintService creates a print service for every printer in cfg
func NewPrintService(cfg *config.Config, jobRepo repository.JobRepository, logger *zap.Logger, opts ...Option) (*PrintService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ps := &PrintService{
		config:       cfg,
		jobRepo:      jobRepo,
		newTransport: DefaultTransportFactory,
		logger:       utils.NewServiceLogger(logger, "print-service"),
		workers:      make(map[string]*printerWorker),
	}
	for _, opt := range opts {
		opt(ps)
	}

	for _, pc := range cfg.Printers {
		m, err := command.ParseModel(pc.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to configure printer %s: %w", pc.ID, err)
		}
		ps.workers[pc.ID] = &printerWorker{
			cfg:    pc,
			model:  m,
			queue:  make(chan *queuedJob, cfg.Jobs.QueueSize),
			logger: utils.NewPrinterLogger(logger, pc.ID, pc.ConnectionType, pc.Model),
			state: model.Printer{
				ID:               pc.ID,
				Name:             pc.Name,
				Model:            m.String(),
				Encoding:         pc.Encoding,
				PaperWidth:       pc.PaperWidth,
				ConnectionType:   model.ConnectionType(pc.ConnectionType),
				ConnectionConfig: model.JSONObject(pc.Connection),
				Status:           model.PrinterStatusIdle,
			},
		}
		ps.order = append(ps.order, pc.ID)
	}

	return ps, nil
}

// Start launches the printer workers and the history pruner
func (ps *PrintService) Start(ctx context.Context) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if ps.running {
		return fmt.Errorf("print service already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	ps.cancel = cancel
	ps.running = true

	for _, id := range ps.order {
		w := ps.workers[id]
		ps.wg.Add(1)
		go func() {
			defer ps.wg.Done()
			ps.runWorker(runCtx, w)
		}()
	}

	if ps.config.Jobs.HistoryTTL > 0 {
		ps.wg.Add(1)
		go func() {
			defer ps.wg.Done()
			ps.pruneHistory(runCtx)
		}()
	}

	ps.logger.Info("Print service started", zap.Int("printers", len(ps.order)))
	return nil
}

// Stop cancels running jobs, fails queued ones and waits for the workers
func (ps *PrintService) Stop() {
	ps.mutex.Lock()
	if !ps.running {
		ps.mutex.Unlock()
		return
	}
	ps.running = false
	cancel := ps.cancel
	ps.mutex.Unlock()

	cancel()
	ps.wg.Wait()
	ps.logger.Info("Print service stopped")
}

// Running reports whether the workers accept jobs
func (ps *PrintService) Running() bool {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()
	return ps.running
}

// ListPrinters returns a snapshot of every configured printer
func (ps *PrintService) ListPrinters() []*model.Printer {
	printers := make([]*model.Printer, 0, len(ps.order))
	for _, id := range ps.order {
		printers = append(printers, ps.workers[id].snapshot())
	}
	return printers
}

// GetPrinter returns a snapshot of one printer
func (ps *PrintService) GetPrinter(printerID string) (*model.Printer, error) {
	w, ok := ps.workers[printerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPrinterNotFound, printerID)
	}
	return w.snapshot(), nil
}

// SubmitDocument queues a receipt document for printing
func (ps *PrintService) SubmitDocument(ctx context.Context, printerID string, doc *receipt.Document, copies int, correlationID string) (*model.PrintJob, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: missing document", ErrInvalidJob)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	return ps.submit(ctx, printerID, model.JobTypeDocument, copies, correlationID, &queuedJob{doc: doc})
}

// SubmitRaw queues bytes to be sent to the printer unchanged
func (ps *PrintService) SubmitRaw(ctx context.Context, printerID string, data []byte, copies int, correlationID string) (*model.PrintJob, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidJob)
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return ps.submit(ctx, printerID, model.JobTypeRaw, copies, correlationID, &queuedJob{raw: raw})
}

func (ps *PrintService) submit(ctx context.Context, printerID string, jobType model.JobType, copies int, correlationID string, qj *queuedJob) (*model.PrintJob, error) {
	if copies == 0 {
		copies = 1
	}
	if copies < 0 || copies > ps.config.Jobs.MaxCopies {
		return nil, fmt.Errorf("%w: copies must be between 1 and %d", ErrInvalidJob, ps.config.Jobs.MaxCopies)
	}

	w, ok := ps.workers[printerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPrinterNotFound, printerID)
	}

	ps.mutex.RLock()
	defer ps.mutex.RUnlock()
	if !ps.running {
		return nil, ErrServiceStopped
	}

	job := &model.PrintJob{
		ID:            uuid.New(),
		PrinterID:     printerID,
		JobType:       jobType,
		Status:        model.JobStatusQueued,
		Copies:        copies,
		CreatedAt:     time.Now(),
		CorrelationID: correlationID,
	}
	qj.job = job

	if err := ps.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	// the worker owns job once it is queued
	snapshot := *job

	select {
	case w.queue <- qj:
	default:
		if err := ps.jobRepo.Delete(ctx, job.ID); err != nil {
			ps.logger.Error("Failed to discard rejected job", zap.Error(err))
		}
		w.logger.Warn("Print queue full", zap.Int("queue_size", cap(w.queue)))
		return nil, fmt.Errorf("%w: %s", ErrQueueFull, printerID)
	}

	w.setQueueLength(len(w.queue))
	ps.publishJob(model.EventJobQueued, &snapshot, "INFO")

	ps.logger.Info("Print job queued",
		zap.String("job_id", snapshot.ID.String()),
		zap.String("printer_id", printerID),
		zap.String("job_type", string(jobType)),
		zap.Int("copies", copies),
	)

	return &snapshot, nil
}

// Preview is the encoded form of a document for one printer
type Preview struct {
	PrinterID string `json:"printer_id"`
	Bytes     int    `json:"bytes"`
	Hex       string `json:"hex"`
}

// Preview encodes doc exactly as a job on printerID would and returns the
// bytes as a hex dump without touching the printer
func (ps *PrintService) Preview(ctx context.Context, printerID string, doc *receipt.Document) (*Preview, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: missing document", ErrInvalidJob)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	w, ok := ps.workers[printerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPrinterNotFound, printerID)
	}

	previewCtx, cancel := context.WithTimeout(ctx, ps.config.Jobs.Timeout)
	defer cancel()

	var out bytes.Buffer
	transport := protocol.NewConsoleConnection(&protocol.ConsoleConfig{BytesPerLine: 16}, &out, w.logger.Logger)
	qj := &queuedJob{job: &model.PrintJob{Copies: 1}, doc: doc}
	written, err := ps.printTo(previewCtx, w, transport, qj)
	if err != nil {
		return nil, fmt.Errorf("failed to render preview: %w", err)
	}

	return &Preview{PrinterID: printerID, Bytes: written, Hex: out.String()}, nil
}

// GetJob retrieves a job by ID
func (ps *PrintService) GetJob(ctx context.Context, jobID uuid.UUID) (*model.PrintJob, error) {
	job, err := ps.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs lists jobs with filtering
func (ps *PrintService) ListJobs(ctx context.Context, filter *repository.JobFilter) ([]*model.PrintJob, int, error) {
	if filter != nil && filter.PrinterID != nil {
		if _, ok := ps.workers[*filter.PrinterID]; !ok {
			return nil, 0, fmt.Errorf("%w: %s", ErrPrinterNotFound, *filter.PrinterID)
		}
	}
	jobs, total, err := ps.jobRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, total, nil
}

// GetJobStats returns job statistics for one printer, or all when
// printerID is empty
func (ps *PrintService) GetJobStats(ctx context.Context, printerID string) (*repository.JobStats, error) {
	if printerID != "" {
		if _, ok := ps.workers[printerID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrPrinterNotFound, printerID)
		}
	}
	stats, err := ps.jobRepo.GetJobStats(ctx, printerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	return stats, nil
}

func (ps *PrintService) runWorker(ctx context.Context, w *printerWorker) {
	for {
		select {
		case <-ctx.Done():
			ps.drain(w)
			return
		case qj := <-w.queue:
			w.setQueueLength(len(w.queue))
			ps.process(ctx, w, qj)
		}
	}
}

// drain fails every job still waiting in the queue
func (ps *PrintService) drain(w *printerWorker) {
	for {
		select {
		case qj := <-w.queue:
			ps.finish(context.Background(), w, qj.job, time.Now(), 0, ErrServiceStopped)
		default:
			w.setQueueLength(0)
			return
		}
	}
}

func (ps *PrintService) process(ctx context.Context, w *printerWorker, qj *queuedJob) {
	started := time.Now()
	job := qj.job
	job.Status = model.JobStatusPrinting
	job.StartedAt = &started
	if err := ps.jobRepo.Update(ctx, job); err != nil {
		ps.logger.Error("Failed to update job status", zap.Error(err))
	}
	ps.publishJob(model.EventJobStarted, job, "INFO")
	ps.setStatus(w, model.PrinterStatusPrinting, nil)

	written, err := ps.execute(ctx, w, qj)
	ps.finish(ctx, w, job, started, written, err)
}

// execute opens a fresh connection, prints every copy and closes it. The
// returned byte count is what the transport accepted.
func (ps *PrintService) execute(ctx context.Context, w *printerWorker, qj *queuedJob) (int, error) {
	jobCtx, cancel := context.WithTimeout(ctx, ps.config.Jobs.Timeout)
	defer cancel()

	transport, err := ps.newTransport(&w.cfg, w.logger.Logger)
	if err != nil {
		return 0, fmt.Errorf("failed to create transport: %w", err)
	}
	return ps.printTo(jobCtx, w, transport, qj)
}

// printTo drives one job through a port over transport
func (ps *PrintService) printTo(ctx context.Context, w *printerWorker, transport protocol.Transport, qj *queuedJob) (int, error) {
	port := protocol.NewPort(ctx, transport, w.logger.Logger)
	if err := <-port.Open(); err != nil {
		w.logger.LogConnection("open", err)
		return 0, fmt.Errorf("failed to open printer: %w", err)
	}
	w.logger.LogConnection("open", nil)

	p := printer.New(port,
		printer.WithModel(w.model),
		printer.WithEncoding(w.cfg.Encoding),
		printer.WithLogger(w.logger.Logger),
	)

	var renderErr error
	for i := 0; i < qj.job.Copies && renderErr == nil; i++ {
		if qj.doc != nil {
			p.Init()
			renderErr = receipt.Render(p, qj.doc, receipt.ForPaperWidth(w.cfg.PaperWidth))
		} else {
			p.Raw(qj.raw)
		}
	}

	closeErr := <-p.Close()
	w.logger.LogConnection("close", closeErr)

	written := int(transport.Stats().BytesWritten)
	if renderErr != nil {
		return written, errors.Join(renderErr, closeErr)
	}
	return written, closeErr
}

func (ps *PrintService) finish(ctx context.Context, w *printerWorker, job *model.PrintJob, started time.Time, written int, err error) {
	completed := time.Now()
	duration := completed.Sub(started)
	ms := int(duration.Milliseconds())

	job.CompletedAt = &completed
	job.DurationMs = &ms
	job.BytesWritten = written

	eventType, severity := model.EventJobCompleted, "INFO"
	if err != nil {
		msg := err.Error()
		job.Status = model.JobStatusFailed
		job.ErrorMessage = &msg
		eventType, severity = model.EventJobFailed, "ERROR"
	} else {
		job.Status = model.JobStatusCompleted
	}

	if uerr := ps.jobRepo.Update(ctx, job); uerr != nil {
		ps.logger.Error("Failed to update job", zap.Error(uerr))
	}

	w.record(job, completed)
	ps.publishJob(eventType, job, severity)

	if err != nil && !errors.Is(err, ErrServiceStopped) {
		ps.setStatus(w, model.PrinterStatusError, err)
	} else {
		ps.setStatus(w, model.PrinterStatusIdle, nil)
	}
	w.logger.LogJob(job.ID.String(), written, duration, err)
}

// setStatus updates the printer status and publishes a change event when
// it differs from the previous one
func (ps *PrintService) setStatus(w *printerWorker, status model.PrinterStatus, cause error) {
	w.mutex.Lock()
	previous := w.state.Status
	w.state.Status = status
	if cause != nil {
		msg := cause.Error()
		w.state.LastError = &msg
	}
	w.mutex.Unlock()

	if previous == status {
		return
	}

	severity := "INFO"
	if status == model.PrinterStatusError {
		severity = "WARNING"
	}
	ps.publish(model.PrinterEvent{
		EventType: model.EventStatusChange,
		PrinterID: w.cfg.ID,
		Data: model.JSONObject{
			"old_status": string(previous),
			"new_status": string(status),
		},
		Severity: severity,
	})
}

func (ps *PrintService) publishJob(eventType model.EventType, job *model.PrintJob, severity string) {
	ps.publish(model.PrinterEvent{
		EventType: eventType,
		PrinterID: job.PrinterID,
		Data: model.JobEventData{
			JobID:        job.ID,
			JobType:      job.JobType,
			Status:       job.Status,
			BytesWritten: job.BytesWritten,
			DurationMs:   job.DurationMs,
			ErrorMessage: job.ErrorMessage,
		}.ToObject(),
		Severity: severity,
	})
}

func (ps *PrintService) publish(event model.PrinterEvent) {
	if ps.events == nil {
		return
	}
	event.ID = uuid.New()
	event.Timestamp = time.Now()
	event.Source = "print-service"
	ps.events.Publish(event)
}

// pruneHistory periodically removes finished jobs older than the
// configured history TTL
func (ps *PrintService) pruneHistory(ctx context.Context) {
	ttl := ps.config.Jobs.HistoryTTL
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := ps.jobRepo.DeleteOlderThan(ctx, time.Now().Add(-ttl))
			if err != nil {
				ps.logger.Error("Failed to prune job history", zap.Error(err))
				continue
			}
			if deleted > 0 {
				ps.logger.Debug("Job history pruned", zap.Int64("deleted", deleted))
			}
		}
	}
}

func (w *printerWorker) snapshot() *model.Printer {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	p := w.state
	return &p
}

func (w *printerWorker) setQueueLength(n int) {
	w.mutex.Lock()
	w.state.QueueLength = n
	w.mutex.Unlock()
}

func (w *printerWorker) record(job *model.PrintJob, at time.Time) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.state.LastJobAt = &at
	w.state.Stats.BytesWritten += int64(job.BytesWritten)
	if job.Status == model.JobStatusCompleted {
		w.state.Stats.JobsCompleted++
	} else {
		w.state.Stats.JobsFailed++
	}
}
