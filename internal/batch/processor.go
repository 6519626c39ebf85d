// Package batch answers a CSV file of questions and writes a CSV of results.
package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"marketinsights/internal/metrics"
	"marketinsights/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const progressEvery = 10

// OutputColumns is the header written by WriteResults
var OutputColumns = []string{
	"question_id", "question", "answer", "query_time_ms",
	"model_used", "engine_used", "timestamp", "status", "error",
}

// Querier answers a single question
type Querier interface {
	RouteQuery(ctx context.Context, raw string) model.ModelResponse
}

// Question is one input row
type Question struct {
	ID   string
	Text string
}

// Result is one output row
type Result struct {
	QuestionID  string
	Question    string
	Answer      string
	QueryTimeMs int64
	ModelUsed   string
	EngineUsed  string
	Timestamp   time.Time
	Status      string // success, error
	Error       string
}

// Summary totals a batch run
type Summary struct {
	Total          int
	Successful     int
	Failed         int
	AvgQueryTimeMs float64
}

// Options controls how questions are scheduled
type Options struct {
	Parallel bool
	Workers  int
	Clock    func() time.Time
}

// Processor runs questions through a Querier
type Processor struct {
	router   Querier
	parallel bool
	workers  int
	now      func() time.Time
	logger   *zap.Logger
}

// NewProcessor creates a processor. Workers defaults to 5.
func NewProcessor(router Querier, opts Options, logger *zap.Logger) *Processor {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		router:   router,
		parallel: opts.Parallel,
		workers:  opts.Workers,
		now:      opts.Clock,
		logger:   logger,
	}
}

// ReadQuestions reads rows with question_id and question columns
func ReadQuestions(r io.Reader) ([]Question, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("input is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idCol, textCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case "question_id":
			idCol = i
		case "question":
			textCol = i
		}
	}
	if idCol < 0 || textCol < 0 {
		return nil, fmt.Errorf("input must have question_id and question columns, got %v", header)
	}

	var questions []Question
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		if idCol >= len(record) || textCol >= len(record) {
			return nil, fmt.Errorf("line %d: expected at least %d fields", line, max(idCol, textCol)+1)
		}
		questions = append(questions, Question{
			ID:   strings.TrimSpace(record[idCol]),
			Text: record[textCol],
		})
	}
	return questions, nil
}

// Process answers every question and returns results sorted by question id
func (p *Processor) Process(ctx context.Context, questions []Question) []Result {
	results := make([]Result, len(questions))
	var completed atomic.Int64

	answer := func(i int) {
		results[i] = p.processOne(ctx, questions[i])
		if n := completed.Add(1); n%progressEvery == 0 {
			p.logger.Info("Batch progress", zap.Int64("completed", n), zap.Int("total", len(questions)))
		}
	}

	if p.parallel {
		p.logger.Info("Processing questions in parallel", zap.Int("workers", p.workers))
		var g errgroup.Group
		g.SetLimit(p.workers)
		for i := range questions {
			g.Go(func() error {
				answer(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		p.logger.Info("Processing questions sequentially")
		for i := range questions {
			answer(i)
		}
	}

	sortResults(results)
	return results
}

func (p *Processor) processOne(ctx context.Context, q Question) Result {
	start := p.now()
	result := Result{QuestionID: q.ID, Question: q.Text}

	if err := ctx.Err(); err != nil {
		result.Status = "error"
		result.Error = err.Error()
	} else {
		resp := p.router.RouteQuery(ctx, q.Text)
		result.ModelUsed = resp.ModelUsed
		result.EngineUsed = resp.EngineUsed
		if resp.EngineUsed == model.EngineErrorHandler {
			result.Status = "error"
			result.Error = resp.Content
		} else {
			result.Status = "success"
			result.Answer = resp.Content
		}
	}

	end := p.now()
	result.QueryTimeMs = end.Sub(start).Milliseconds()
	result.Timestamp = end
	metrics.BatchRowsProcessed.WithLabelValues(result.Status).Inc()
	if result.Status == "error" {
		p.logger.Error("Error processing question",
			zap.String("question_id", q.ID),
			zap.String("error", result.Error),
		)
	}
	return result
}

// sortResults orders numeric ids numerically ahead of any other ids
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, aErr := strconv.Atoi(results[i].QuestionID)
		b, bErr := strconv.Atoi(results[j].QuestionID)
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		}
		return results[i].QuestionID < results[j].QuestionID
	})
}

// WriteResults writes results with the OutputColumns header
func WriteResults(w io.Writer, results []Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(OutputColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range results {
		record := []string{
			r.QuestionID,
			r.Question,
			r.Answer,
			strconv.FormatInt(r.QueryTimeMs, 10),
			r.ModelUsed,
			r.EngineUsed,
			r.Timestamp.Format(time.RFC3339),
			r.Status,
			r.Error,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write result %s: %w", r.QuestionID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Summarize totals results
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	var totalMs int64
	for _, r := range results {
		if r.Status == "success" {
			s.Successful++
		} else {
			s.Failed++
		}
		totalMs += r.QueryTimeMs
	}
	if len(results) > 0 {
		s.AvgQueryTimeMs = float64(totalMs) / float64(len(results))
	}
	return s
}

// Run reads questions from in, answers them and writes results to out
func (p *Processor) Run(ctx context.Context, in io.Reader, out io.Writer) (Summary, error) {
	questions, err := ReadQuestions(in)
	if err != nil {
		return Summary{}, err
	}
	p.logger.Info("Loaded questions", zap.Int("count", len(questions)))

	results := p.Process(ctx, questions)
	if err := WriteResults(out, results); err != nil {
		return Summary{}, err
	}

	summary := Summarize(results)
	p.logger.Info("Batch processing complete",
		zap.Int("total", summary.Total),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Float64("avg_query_time_ms", summary.AvgQueryTimeMs),
	)
	return summary, nil
}
