// Package reconciler runs a KO reconciliation end to end.
//
// A run loads the three source exports, classifies their rows into
// withdrawals and deposits, lays the counts out as the Withdrawal, Deposit
// and Total summaries and writes the spreadsheet and PDF reports:
//
//	Admin workbook   ─┐
//	Echeque workbook ─┼─> classify ─> summaries ─> report files
//	Yono statement   ─┘
//
// Example usage:
//
//	service, err := reconciler.NewService(reconciler.DefaultConfig(), nil)
//	service.AddProgressCallback(func(p *reconciler.Progress) {
//		fmt.Printf("%.0f%% %s\n", p.PercentComplete, p.CurrentStep)
//	})
//	result, err := service.Run(ctx, &reconciler.Request{
//		AdminFile:   "admin.xlsx",
//		EchequeFile: "echeque.xlsx",
//		YonoFile:    "yono.csv",
//		DateLabel:   "2024-01-31",
//		OutputDir:   "out",
//	})
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ko-reconciliation-service/internal/classifier"
	"ko-reconciliation-service/internal/models"
	"ko-reconciliation-service/internal/parsers"
	"ko-reconciliation-service/internal/reporter"
	"ko-reconciliation-service/pkg/errors"
	"ko-reconciliation-service/pkg/logger"
)

// Config holds configuration options for the reconciliation service
type Config struct {
	// ParallelLoad reads the three sources concurrently. Results are the
	// same either way.
	ParallelLoad bool

	Admin      *parsers.AdminConfig
	Echeque    *parsers.EchequeConfig
	Yono       *parsers.YonoConfig
	Classifier *classifier.Config
	Emitter    *reporter.EmitterConfig
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		Admin:      parsers.DefaultAdminConfig(),
		Echeque:    parsers.DefaultEchequeConfig(),
		Yono:       parsers.DefaultYonoConfig(),
		Classifier: classifier.DefaultConfig(),
		Emitter:    reporter.DefaultEmitterConfig(),
	}
}

// Request names the inputs and outputs of one run
type Request struct {
	AdminFile   string
	EchequeFile string
	YonoFile    string
	DateLabel   string
	OutputDir   string
}

// Validate validates the reconciliation request
func (r *Request) Validate() error {
	if r == nil {
		return errors.ValidationError(errors.CodeMissingField, "request", nil, nil)
	}

	required := []struct {
		field string
		value string
	}{
		{"admin_file", r.AdminFile},
		{"echeque_file", r.EchequeFile},
		{"yono_file", r.YonoFile},
		{"output_dir", r.OutputDir},
	}
	for _, f := range required {
		if f.value == "" {
			return errors.ValidationError(errors.CodeMissingField, f.field, f.value, nil)
		}
	}

	return reporter.ValidateDateLabel(r.DateLabel)
}

// Progress tracks the steps of a run
type Progress struct {
	TotalSteps      int           `json:"total_steps"`
	CompletedSteps  int           `json:"completed_steps"`
	CurrentStep     string        `json:"current_step"`
	PercentComplete float64       `json:"percent_complete"`
	StartTime       time.Time     `json:"start_time"`
	ElapsedTime     time.Duration `json:"elapsed_time"`
}

// ProgressCallback is called after every step change with a copy of the
// current progress
type ProgressCallback func(*Progress)

// Run steps, in order
const (
	stepValidate  = "Validating request"
	stepLoad      = "Loading sources"
	stepClassify  = "Classifying transactions"
	stepAggregate = "Building summaries"
	stepEmit      = "Writing reports"
	stepDone      = "Completed"

	totalSteps = 5
)

// ReportWriter persists the summaries of a run
type ReportWriter interface {
	Emit(outputDir, dateLabel string, summaries models.Summaries) (reporter.Files, error)
}

// Service runs reconciliations
type Service struct {
	config     *Config
	admin      parsers.Loader
	echeque    parsers.Loader
	yono       parsers.Loader
	classifier *classifier.Classifier
	writer     ReportWriter
	logger     logger.Logger

	progressCallbacks []ProgressCallback
	progress          Progress
	progressMutex     sync.Mutex
}

// NewService creates a reconciliation service. A nil writer uses a
// reporter.Emitter built from config.Emitter.
func NewService(config *Config, writer ReportWriter) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}

	admin, err := parsers.NewAdminLoader(config.Admin)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "admin", config.Admin, err)
	}

	echeque, err := parsers.NewEchequeLoader(config.Echeque)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "echeque", config.Echeque, err)
	}

	yono, err := parsers.NewYonoLoader(config.Yono)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "yono", config.Yono, err)
	}

	c, err := classifier.New(config.Classifier)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "classifier", config.Classifier, err)
	}

	if writer == nil {
		emitter, err := reporter.NewEmitter(config.Emitter)
		if err != nil {
			return nil, err
		}
		writer = emitter
	}

	log := logger.GetGlobalLogger().WithComponent("reconciler")
	log.WithField("parallel_load", config.ParallelLoad).Debug("Reconciliation service created")

	return &Service{
		config:     config,
		admin:      admin,
		echeque:    echeque,
		yono:       yono,
		classifier: c,
		writer:     writer,
		logger:     log,
		progress:   Progress{TotalSteps: totalSteps},
	}, nil
}

// AddProgressCallback adds a progress callback function
func (s *Service) AddProgressCallback(callback ProgressCallback) {
	s.progressMutex.Lock()
	defer s.progressMutex.Unlock()
	s.progressCallbacks = append(s.progressCallbacks, callback)
}

// sources holds the loaded tables of a run
type sources struct {
	admin   *models.Table
	echeque *models.Table
	yono    *models.Table
}

// counts holds the classified counts of a run, one per summary row
type counts struct {
	admin  models.DirectionCounts
	cheque models.DirectionCounts
	yono   models.DirectionCounts
	branch models.DirectionCounts
}

// Run performs a complete reconciliation. Any load, schema or write error
// aborts the run before a report file is left in the output directory.
func (s *Service) Run(ctx context.Context, request *Request) (*models.Result, error) {
	start := time.Now()
	runID := uuid.NewString()

	op := logger.NewOperationLogger("reconciliation", s.logger).WithField("run_id", runID)
	if request != nil {
		op.WithFields(logger.Fields{
			"admin_file":   request.AdminFile,
			"echeque_file": request.EchequeFile,
			"yono_file":    request.YonoFile,
			"date":         request.DateLabel,
			"output_dir":   request.OutputDir,
		})
	}

	s.initializeProgress(start)

	result, err := s.run(ctx, request, op)
	if err != nil {
		op.Error(err, "Reconciliation failed")
		return nil, errors.WrapIfNeeded(err, errors.CategoryInternal, errors.CodeUnexpectedError, "reconciliation failed")
	}

	result.RunID = runID
	result.ProcessedAt = start
	result.Duration = time.Since(start)

	s.updateProgress(stepDone, totalSteps)
	op.WithFields(logger.Fields{
		"excel_file": result.ExcelFile,
		"pdf_file":   result.PDFFile,
	}).Success("Reconciliation completed")

	return result, nil
}

func (s *Service) run(ctx context.Context, request *Request, op *logger.OperationLogger) (*models.Result, error) {
	s.updateProgress(stepValidate, 0)
	if err := request.Validate(); err != nil {
		return nil, err
	}

	s.updateProgress(stepLoad, 1)
	op.Step(stepLoad)
	loaded, err := s.loadSources(ctx, request)
	if err != nil {
		return nil, err
	}

	if err := checkCancelled(ctx, "classification"); err != nil {
		return nil, err
	}

	s.updateProgress(stepClassify, 2)
	op.Step(stepClassify)
	classified, err := s.classify(loaded)
	if err != nil {
		return nil, err
	}

	s.updateProgress(stepAggregate, 3)
	summaries, err := BuildSummaries(classified.admin, classified.cheque, classified.yono, classified.branch)
	if err != nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "aggregation", err)
	}

	if err := checkCancelled(ctx, "report writing"); err != nil {
		return nil, err
	}

	s.updateProgress(stepEmit, 4)
	op.Step(stepEmit)
	files, err := s.writer.Emit(request.OutputDir, request.DateLabel, summaries)
	if err != nil {
		return nil, err
	}

	return &models.Result{
		DateLabel: request.DateLabel,
		Summaries: summaries,
		Unmatched: UnmatchedPlaceholders(),
		ExcelFile: files.ExcelFile,
		PDFFile:   files.PDFFile,
	}, nil
}

// loadSources reads the three exports, concurrently when configured. The
// first failure cancels the remaining loads.
func (s *Service) loadSources(ctx context.Context, request *Request) (*sources, error) {
	loaded := &sources{}
	jobs := []struct {
		loader parsers.Loader
		path   string
		dst    **models.Table
	}{
		{s.admin, request.AdminFile, &loaded.admin},
		{s.echeque, request.EchequeFile, &loaded.echeque},
		{s.yono, request.YonoFile, &loaded.yono},
	}

	if !s.config.ParallelLoad {
		for _, job := range jobs {
			if err := s.load(ctx, job.loader, job.path, job.dst); err != nil {
				return nil, err
			}
		}
		s.logLoaded(loaded)
		return loaded, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			return s.load(gctx, job.loader, job.path, job.dst)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logLoaded(loaded)
	return loaded, nil
}

// load runs one loader, timing it under the source's name
func (s *Service) load(ctx context.Context, loader parsers.Loader, path string, dst **models.Table) error {
	return logger.TimedOperation("load "+loader.Source(), s.logger.WithField("file", path), func() error {
		table, err := loader.Load(ctx, path)
		if err != nil {
			return err
		}
		*dst = table
		return nil
	})
}

func (s *Service) logLoaded(loaded *sources) {
	s.logger.WithFields(logger.Fields{
		"admin_rows":   loaded.admin.Len(),
		"echeque_rows": loaded.echeque.Len(),
		"yono_rows":    loaded.yono.Len(),
	}).Info("Sources loaded")
}

// classify applies the type strategy to the ledgers and both pattern
// passes to the statement. The two passes share the statement table and
// may count the same row twice.
func (s *Service) classify(loaded *sources) (*counts, error) {
	admin, err := s.classifier.AnalyzeTransactions(loaded.admin)
	if err != nil {
		return nil, err
	}

	cheque, err := s.classifier.AnalyzeTransactions(loaded.echeque)
	if err != nil {
		return nil, err
	}

	combined, err := s.classifier.AnalyzeYonoCombined(loaded.yono)
	if err != nil {
		return nil, err
	}

	branch, err := s.classifier.AnalyzeYonoBranch(loaded.yono)
	if err != nil {
		return nil, err
	}

	if failures := admin.CoercionFailures + cheque.CoercionFailures + combined.CoercionFailures + branch.CoercionFailures; failures > 0 {
		s.logger.WithField("coercion_failures", failures).Debug("Some amounts were not numeric and were left out of sums")
	}

	return &counts{
		admin:  admin.Directional(),
		cheque: cheque.Directional(),
		yono:   combined.Directional(),
		branch: branch.Directional(),
	}, nil
}

func (s *Service) initializeProgress(start time.Time) {
	s.progressMutex.Lock()
	defer s.progressMutex.Unlock()

	s.progress = Progress{
		TotalSteps: totalSteps,
		StartTime:  start,
	}
}

func (s *Service) updateProgress(step string, completed int) {
	s.progressMutex.Lock()
	defer s.progressMutex.Unlock()

	s.progress.CurrentStep = step
	s.progress.CompletedSteps = completed
	s.progress.ElapsedTime = time.Since(s.progress.StartTime)
	s.progress.PercentComplete = float64(completed) / float64(s.progress.TotalSteps) * 100

	for _, callback := range s.progressCallbacks {
		snapshot := s.progress
		callback(&snapshot)
	}
}

func checkCancelled(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return errors.InternalError(errors.CodeCancelled, operation, err)
	}
	return nil
}
