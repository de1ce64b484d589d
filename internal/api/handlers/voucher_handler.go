package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voucher-service/internal/api/responses"
	"voucher-service/internal/core/voucher"
	"voucher-service/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	zipContentType  = "application/zip"
)

// Output formats accepted by the generate endpoint.
const (
	FormatDOCX = "docx"
	FormatZIP  = "zip"
	FormatJSON = "json"
)

var spreadsheetExts = map[string]bool{".xlsx": true, ".xlsm": true, ".xls": true, ".csv": true}

// overridable lists the fields a caller may pin to a raw column.
var overridable = map[string]domain.CanonicalField{}

func init() {
	for _, f := range domain.ResolutionOrder {
		overridable[string(f)] = f
	}
}

// VoucherHandler serves voucher generation, record preview and template analysis.
type VoucherHandler struct {
	service voucher.Service
	now     func() time.Time
}

// NewVoucherHandler creates a voucher handler.
func NewVoucherHandler(service voucher.Service) *VoucherHandler {
	return &VoucherHandler{service: service, now: time.Now}
}

// getListFromForm splits a comma separated form field, dropping blanks.
func getListFromForm(c *gin.Context, formKey string) []string {
	raw := c.PostForm(formKey)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getOverrides reads overrides[field]=column pairs.
func getOverrides(c *gin.Context) (map[domain.CanonicalField]string, error) {
	form := c.PostFormMap("overrides")
	if len(form) == 0 {
		return nil, nil
	}
	out := make(map[domain.CanonicalField]string, len(form))
	for name, column := range form {
		field, ok := overridable[name]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		if column = strings.TrimSpace(column); column != "" {
			out[field] = column
		}
	}
	return out, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// extractInput opens the uploaded spreadsheet. The caller closes the file.
func extractInput(c *gin.Context) (voucher.ExtractInput, io.Closer, bool) {
	var in voucher.ExtractInput

	fh, err := c.FormFile("spreadsheet")
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "spreadsheet (.xlsx, .xls, .csv) not found or invalid")
		return in, nil, false
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !spreadsheetExts[ext] {
		responses.Error(c, http.StatusBadRequest, fmt.Sprintf("unsupported spreadsheet extension: %s", ext))
		return in, nil, false
	}
	overrides, err := getOverrides(c)
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "invalid overrides", err.Error())
		return in, nil, false
	}

	f, err := fh.Open()
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "could not open spreadsheet")
		return in, nil, false
	}
	in = voucher.ExtractInput{Spreadsheet: f, Filename: fh.Filename, Overrides: overrides}
	return in, f, true
}

// readTemplate returns the uploaded template, or nil when none was sent.
func readTemplate(c *gin.Context, required bool) ([]byte, bool) {
	fh, err := c.FormFile("template")
	if err != nil {
		if required {
			responses.Error(c, http.StatusBadRequest, "template (.docx) not found or invalid")
			return nil, false
		}
		return nil, true
	}
	if ext := strings.ToLower(filepath.Ext(fh.Filename)); ext != ".docx" {
		responses.Error(c, http.StatusBadRequest, fmt.Sprintf("unsupported template extension: %s", ext))
		return nil, false
	}
	data, err := readFormFile(fh)
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "could not read template")
		return nil, false
	}
	return data, true
}

// readPicture returns the uploaded image under key with its position form
// field, or nil when no image was sent.
func readPicture(c *gin.Context, key string) (*voucher.Picture, bool) {
	fh, err := c.FormFile(key)
	if err != nil {
		return nil, true
	}
	data, err := readFormFile(fh)
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "could not read "+key)
		return nil, false
	}
	return &voucher.Picture{Data: data, Position: c.PostForm(key + "_position")}, true
}

// HandleGenerate renders one voucher page per transaction record.
func (h *VoucherHandler) HandleGenerate(c *gin.Context) {
	format := strings.ToLower(c.DefaultPostForm("format", c.DefaultQuery("format", FormatDOCX)))
	if format != FormatDOCX && format != FormatZIP && format != FormatJSON {
		responses.Error(c, http.StatusBadRequest, fmt.Sprintf("unsupported format: %s", format))
		return
	}

	in, file, ok := extractInput(c)
	if !ok {
		return
	}
	defer file.Close()

	tpl, ok := readTemplate(c, false)
	if !ok {
		return
	}
	logo, ok := readPicture(c, "logo")
	if !ok {
		return
	}
	image, ok := readPicture(c, "image")
	if !ok {
		return
	}

	res, err := h.service.Generate(c.Request.Context(), voucher.GenerateInput{
		ExtractInput: in,
		Template:     tpl,
		Logo:         logo,
		Image:        image,
		Archive:      format == FormatZIP,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	stamp := h.now().Format("20060102_150405")
	switch format {
	case FormatJSON:
		responses.Success(c, res, fmt.Sprintf("%d vouchers generated", res.Summary.Records))
	case FormatZIP:
		setSummaryHeaders(c, res.Summary)
		responses.Attachment(c, fmt.Sprintf("Vouchers_%s.zip", stamp), zipContentType, res.Archive)
	default:
		setSummaryHeaders(c, res.Summary)
		responses.Attachment(c, fmt.Sprintf("Vouchers_%s.docx", stamp), docxContentType, res.Document)
	}
}

func setSummaryHeaders(c *gin.Context, s domain.RunSummary) {
	c.Header("X-Run-ID", s.RunID)
	c.Header("X-Voucher-Count", strconv.Itoa(s.Records))
	c.Header("X-Skipped-Rows", strconv.Itoa(s.Skipped))
	c.Header("X-Warning-Count", strconv.Itoa(len(s.Warnings)))
}

// HandlePreview returns the numbered records without rendering.
func (h *VoucherHandler) HandlePreview(c *gin.Context) {
	in, file, ok := extractInput(c)
	if !ok {
		return
	}
	defer file.Close()

	ext, err := h.service.Extract(c.Request.Context(), in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	responses.Success(c, ext, fmt.Sprintf("%d records extracted", ext.Summary.Records))
}

// HandleAnalyzeTemplate reports a template's paragraphs, tables and fields.
// An optional columns list gets label-to-column suggestions.
func (h *VoucherHandler) HandleAnalyzeTemplate(c *gin.Context) {
	tpl, ok := readTemplate(c, true)
	if !ok {
		return
	}
	a, err := h.service.AnalyzeTemplate(c.Request.Context(), tpl, getListFromForm(c, "columns"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	responses.Success(c, a, "template analyzed")
}

// handleServiceError maps service failures onto HTTP statuses.
func handleServiceError(c *gin.Context, err error) {
	var (
		missing  *domain.MissingFieldsError
		inputErr *domain.InputError
	)
	switch {
	case errors.As(err, &missing):
		names := make([]string, len(missing.Fields))
		for i, f := range missing.Fields {
			names[i] = string(f)
		}
		responses.Error(c, http.StatusUnprocessableEntity, "required columns not found", names...)
	case errors.Is(err, domain.ErrInvalidDate):
		responses.Error(c, http.StatusUnprocessableEntity, "unparseable date", err.Error())
	case errors.As(err, &inputErr):
		responses.Error(c, http.StatusBadRequest, "could not read "+inputErr.Source, inputErr.Err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		responses.Error(c, http.StatusRequestTimeout, "request cancelled")
	default:
		responses.Error(c, http.StatusInternalServerError, "voucher generation failed", err.Error())
	}
}
