// Package assistant runs one interactive analysis: load an upload, show the
// dataset overview, answer questions about it. Presentation goes to a Sink and
// answers come from a Completer, so the package needs neither a terminal nor a
// network.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/KaramelBytes/datalens-cli/internal/analysis"
	"github.com/KaramelBytes/datalens-cli/internal/loader"
	"github.com/KaramelBytes/datalens-cli/internal/table"
	"github.com/KaramelBytes/datalens-cli/internal/upload"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

// Section titles.
const (
	TitlePreview  = "Data Preview"
	TitleColumns  = "Available Columns"
	TitleInfo     = "Dataset Info"
	TitleResults  = "Analysis Results"
	TitleStats    = "Statistical Summary"
	TitleMissing  = "Missing Values"
	TitleTypes    = "Column Data Types"
	noMissingText = "No missing values found in the dataset!"
)

// Options configure a Session.
type Options struct {
	Load         loader.Options
	HeadRows     int
	SystemPrompt string
	// PromptLimit truncates the dataset part of the prompt to roughly this
	// many tokens; 0 disables truncation.
	PromptLimit int
}

// Extras selects the optional report sections.
type Extras struct {
	Stats   bool
	Missing bool
	Types   bool
}

// AllExtras turns every optional section on.
var AllExtras = Extras{Stats: true, Missing: true, Types: true}

// Session holds the table of a single upload. It is not safe for concurrent
// use; the HTTP server builds one per request.
type Session struct {
	opt       Options
	sink      Sink
	completer Completer

	name    string
	result  *loader.Result
	summary *analysis.Summary
}

// NewSession wires a session to its collaborators. completer may be nil when
// only Upload and Report are used.
func NewSession(opt Options, sink Sink, completer Completer) *Session {
	if opt.HeadRows <= 0 {
		opt.HeadRows = analysis.DefaultHeadRows
	}
	return &Session{opt: opt, sink: sink, completer: completer}
}

// Summary returns the summary of the loaded table, or nil.
func (s *Session) Summary() *analysis.Summary { return s.summary }

// Table returns the loaded table, or nil.
func (s *Session) Table() *table.Table {
	if s.result == nil {
		return nil
	}
	return s.result.Table
}

// Result returns the full load result, or nil.
func (s *Session) Result() *loader.Result { return s.result }

// Upload loads u and shows the overview sections. On failure the previous
// table, if any, is discarded and the error is both shown and returned.
func (s *Session) Upload(ctx context.Context, u *upload.Upload) error {
	log := zerolog.Ctx(ctx)
	s.name, s.result, s.summary = "", nil, nil

	start := time.Now()
	res, err := loader.Load(u, s.opt.Load)
	if err != nil {
		msg := Explain(err)
		log.Info().Err(err).Str("file", u.Name).Str("code", msg.Code).Msg("load failed")
		s.sink.Notify(Error, "Error reading file: "+err.Error())
		s.sink.Notify(Info, msg.Action)
		return err
	}
	log.Debug().Str("file", u.Name).Str("format", res.Format).
		Int("rows", res.Table.NumRows()).Int("cols", res.Table.NumCols()).
		Dur("took", time.Since(start)).Msg("file loaded")

	if res.Encoding != nil {
		msg := "Detected CSV file encoding: " + res.Encoding.Label
		if res.Encoding.Fallback {
			msg += fmt.Sprintf(" (fallback, detector guessed %s at %d%%)", res.Encoding.Guessed, res.Encoding.Confidence)
		}
		s.sink.Notify(Info, msg)
	}

	s.name, s.result = u.Name, res
	s.summary = analysis.Build(res.Table, analysis.Options{
		Name:       u.Name,
		FileType:   u.Ext(),
		HeadRows:   s.opt.HeadRows,
		SourceRows: res.TotalRows,
	})
	s.sink.Notify(Success, fmt.Sprintf("File '%s' uploaded successfully!", u.Name))
	if res.Sheet != "" && len(res.Sheets) > 1 {
		s.sink.Notify(Info, fmt.Sprintf("Using sheet %q (available: %s)", res.Sheet, strings.Join(res.Sheets, ", ")))
	}
	for _, w := range s.summary.Warnings {
		s.sink.Notify(Warning, w)
	}

	s.sink.Section(TitlePreview, s.summary.HeadText())
	s.sink.Section(TitleColumns, strings.Join(s.summary.Columns, ", "))
	s.sink.Section(TitleInfo, fmt.Sprintf("Total Rows: %d\nTotal Columns: %d\nFile Type: %s",
		s.summary.Rows, s.summary.Cols, s.summary.FileType))
	return nil
}

// Report shows the optional sections chosen in x. It does nothing before a
// successful Upload.
func (s *Session) Report(x Extras) {
	if s.summary == nil {
		return
	}
	if x.Stats {
		s.sink.Section(TitleStats, s.summary.DescribeText())
	}
	if x.Missing {
		if s.summary.MissingTotal() == 0 {
			s.sink.Section(TitleMissing, noMissingText)
		} else {
			s.sink.Section(TitleMissing, s.summary.MissingText())
		}
	}
	if x.Types {
		s.sink.Section(TitleTypes, s.summary.TypesText())
	}
}

// Prompt renders the prompt Ask would send for question.
func (s *Session) Prompt(question string) (string, error) {
	p, _, err := s.prompt(question)
	return p, err
}

// prompt also reports the token estimate of the untruncated dataset part
// when PromptLimit cut it, and 0 otherwise.
func (s *Session) prompt(question string) (string, int, error) {
	if s.summary == nil {
		return "", 0, ErrNoData
	}
	q := strings.TrimSpace(question)
	if q == "" {
		return "", 0, ErrEmptyQuestion
	}
	data := s.summary.Markdown()
	cut := 0
	if n := utils.CountTokens(data); s.opt.PromptLimit > 0 && n > s.opt.PromptLimit {
		cut = n
		data = utils.TruncateToTokenLimit(data, s.opt.PromptLimit)
	}
	return BuildPrompt(data, q), cut, nil
}

// Ask sends question together with the dataset summary to the completer and
// shows the answer unchanged under "Analysis Results". Completion failures
// are wrapped in a TransportError; nothing is retried here.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	prompt, cut, err := s.prompt(question)
	if err != nil {
		s.sink.Notify(Error, "Error: "+Explain(err).Message)
		return "", err
	}
	if cut > 0 {
		s.sink.Notify(Warning, fmt.Sprintf("Dataset summary exceeds limit (%d > %d tokens). Truncating before send...",
			cut, s.opt.PromptLimit))
	}
	if s.completer == nil {
		return "", &TransportError{Err: fmt.Errorf("no completion service configured")}
	}
	log := zerolog.Ctx(ctx)
	log.Debug().Int("prompt_tokens", utils.CountTokens(prompt)).Msg("sending question")

	answer, err := s.completer.Complete(ctx, s.opt.SystemPrompt, prompt)
	if err != nil {
		terr := &TransportError{Err: err}
		msg := Explain(terr)
		log.Info().Err(err).Str("code", msg.Code).Msg("completion failed")
		s.sink.Notify(Error, "Error: "+err.Error())
		s.sink.Notify(Info, msg.Action)
		return "", terr
	}
	s.sink.Section(TitleResults, answer)
	return answer, nil
}
