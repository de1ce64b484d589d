package voucher

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voucher-service/internal/core/dates"
	"voucher-service/internal/core/fields"
	"voucher-service/internal/core/numbering"
	"voucher-service/internal/core/records"
	"voucher-service/internal/core/render"
	"voucher-service/internal/core/template"
	"voucher-service/internal/document"
	"voucher-service/internal/domain"
	"voucher-service/internal/sheet"
)

// Ordering controls the record order handed to numbering and rendering.
type Ordering string

const (
	// OrderRows keeps spreadsheet row order.
	OrderRows Ordering = "row"
	// OrderIncomeFirst moves all income records ahead of expenses, keeping
	// row order within each batch.
	OrderIncomeFirst Ordering = "income_first"
)

// Service define the voucher generation operations.
type Service interface {
	Extract(ctx context.Context, in ExtractInput) (*Extraction, error)
	Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error)
	AnalyzeTemplate(ctx context.Context, tpl []byte, columns []string) (*Analysis, error)
}

// Config wires the core components. Nil members get defaults.
type Config struct {
	Resolver    *fields.Resolver
	Dates       *dates.Normalizer
	Renderer    *render.Renderer
	Titles      template.Titles
	StrictDates bool
	BothAmounts records.BothAmountsPolicy
	Ordering    Ordering
	HeaderScan  int
	Logger      *zap.Logger
}

// ExtractInput names a spreadsheet and optional field pins.
type ExtractInput struct {
	Spreadsheet io.Reader
	Filename    string
	Overrides   map[domain.CanonicalField]string
}

// GenerateInput adds the template to an extraction. An empty template
// renders onto the built-in layout.
type GenerateInput struct {
	ExtractInput
	Template []byte
	// Logo goes into the page header; Image goes below every voucher.
	Logo  *Picture
	Image *Picture
	// Archive also produces a zip with one document per voucher.
	Archive bool
}

// Extraction is the numbered record list of one spreadsheet.
type Extraction struct {
	Headers []string                                `json:"headers"`
	Mapping domain.ColumnMapping                    `json:"mapping"`
	Methods map[domain.CanonicalField]fields.Method `json:"methods"`
	Records []domain.TransactionRecord              `json:"records"`
	Summary domain.RunSummary                       `json:"summary"`
}

// GenerateResult carries the rendered output of a run.
type GenerateResult struct {
	*Extraction
	Document []byte                       `json:"-"`
	Archive  []byte                       `json:"-"`
	Gaps     []domain.RenderingGapWarning `json:"gaps,omitempty"`
}

// Analysis is a template inventory with column suggestions.
type Analysis struct {
	Inventory   template.Inventory    `json:"inventory"`
	Suggestions []template.Suggestion `json:"suggestions,omitempty"`
}

type service struct {
	resolver    *fields.Resolver
	dates       *dates.Normalizer
	renderer    *render.Renderer
	titles      template.Titles
	strictDates bool
	bothAmounts records.BothAmountsPolicy
	ordering    Ordering
	headerScan  int
	logger      *zap.Logger
}

// NewService builds the generation service.
func NewService(cfg Config) Service {
	svc := &service{
		resolver:    cfg.Resolver,
		dates:       cfg.Dates,
		renderer:    cfg.Renderer,
		titles:      cfg.Titles,
		strictDates: cfg.StrictDates,
		bothAmounts: cfg.BothAmounts,
		ordering:    cfg.Ordering,
		headerScan:  cfg.HeaderScan,
		logger:      cfg.Logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.resolver == nil {
		svc.resolver = fields.NewResolver(fields.Options{})
	}
	if svc.dates == nil {
		svc.dates = dates.NewNormalizer(dates.DefaultOptions())
	}
	if svc.titles == nil {
		svc.titles = template.DefaultTitles()
	}
	if svc.renderer == nil {
		svc.renderer = render.NewRenderer(render.Options{
			Labels: svc.resolver,
			Titles: svc.titles,
			Logger: svc.logger,
		})
	}
	if svc.ordering == "" {
		svc.ordering = OrderRows
	}
	return svc
}

func (svc *service) Extract(ctx context.Context, in ExtractInput) (*Extraction, error) {
	if in.Spreadsheet == nil {
		return nil, &domain.InputError{Source: "spreadsheet", Err: fmt.Errorf("no file")}
	}
	table, err := sheet.Read(in.Spreadsheet, in.Filename, sheet.Options{
		HeaderScan: svc.headerScan,
		Score:      svc.resolver.Hits,
	})
	if err != nil {
		return nil, &domain.InputError{Source: "spreadsheet", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := svc.resolver.Resolve(table.Headers, in.Overrides)
	if err != nil {
		var missing *domain.MissingFieldsError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("resolve columns: %w", err)
		}
		return nil, &domain.InputError{Source: "overrides", Err: err}
	}

	ex := records.NewExtractor(table.Rows, res.Mapping, records.Options{
		Dates:       svc.dates,
		StrictDates: svc.strictDates,
		BothAmounts: svc.bothAmounts,
		Logger:      svc.logger,
	})
	var recs []domain.TransactionRecord
	for rec := range ex.Records() {
		recs = append(recs, rec)
	}
	if err := ex.Err(); err != nil {
		return nil, fmt.Errorf("extract records: %w", err)
	}
	if svc.ordering == OrderIncomeFirst {
		recs = incomeFirst(recs)
	}

	summary := ex.Summary()
	summary.RunID = uuid.NewString()
	for _, w := range res.Warnings {
		summary.Warnings = append(summary.Warnings, w.Error())
	}
	return &Extraction{
		Headers: table.Headers,
		Mapping: res.Mapping,
		Methods: res.Methods,
		Records: numbering.Assign(recs),
		Summary: summary,
	}, nil
}

// incomeFirst is a stable partition: income then expense.
func incomeFirst(recs []domain.TransactionRecord) []domain.TransactionRecord {
	out := slices.Clone(recs)
	slices.SortStableFunc(out, func(a, b domain.TransactionRecord) int {
		return rank(a.Type) - rank(b.Type)
	})
	return out
}

func rank(t domain.TransactionType) int {
	if t == domain.TypeIncome {
		return 0
	}
	return 1
}

func (svc *service) Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	start := time.Now()

	// an unreadable template or picture aborts the run before any rows
	// are read
	tpl := document.New()
	if len(in.Template) > 0 {
		var err error
		if tpl, err = document.Decode(in.Template); err != nil {
			return nil, &domain.InputError{Source: "template", Err: err}
		}
	}
	tpl, err := decorate(tpl, in.Logo, in.Image)
	if err != nil {
		return nil, err
	}

	ext, err := svc.Extract(ctx, in.ExtractInput)
	if err != nil {
		return nil, err
	}

	out, gaps, err := svc.renderer.Render(tpl, ext.Records)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	data, err := document.Encode(out)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	for _, g := range gaps {
		ext.Summary.Warnings = append(ext.Summary.Warnings, g.Error())
	}

	result := &GenerateResult{Extraction: ext, Document: data, Gaps: gaps}
	if in.Archive {
		if result.Archive, err = svc.archive(ctx, tpl, ext.Records); err != nil {
			return nil, err
		}
	}

	svc.logger.Info("voucher run completed",
		zap.String("run_id", ext.Summary.RunID),
		zap.Int("records", ext.Summary.Records),
		zap.Int("skipped", ext.Summary.Skipped),
		zap.Int("warnings", len(ext.Summary.Warnings)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// archive renders every record on its own and zips the documents as
// {voucher}.docx.
func (svc *service) archive(ctx context.Context, tpl *document.Document, recs []domain.TransactionRecord) ([]byte, error) {
	buffer := &bytes.Buffer{}
	zw := zip.NewWriter(buffer)
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, _, err := svc.renderer.Render(tpl, []domain.TransactionRecord{rec})
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", rec.VoucherNumber, err)
		}
		data, err := document.Encode(page)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", rec.VoucherNumber, err)
		}
		w, err := zw.Create(rec.VoucherNumber + ".docx")
		if err != nil {
			return nil, fmt.Errorf("archive entry: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("archive write: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive close: %w", err)
	}
	return buffer.Bytes(), nil
}

func (svc *service) AnalyzeTemplate(ctx context.Context, tpl []byte, columns []string) (*Analysis, error) {
	doc, err := document.Decode(tpl)
	if err != nil {
		return nil, &domain.InputError{Source: "template", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inv := template.Analyze(doc, template.Options{Titles: svc.titles})
	a := &Analysis{Inventory: inv}
	if len(columns) > 0 {
		a.Suggestions = template.Suggest(inv, columns, svc.resolver.Threshold())
	}
	return a, nil
}
