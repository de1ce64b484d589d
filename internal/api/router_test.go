package api

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"voucher-service/internal/api/responses"
	"voucher-service/internal/core/auth"
	"voucher-service/internal/core/voucher"
	"voucher-service/internal/document"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type upload struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, url string, files []upload, fields map[string]string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, f := range files {
		w, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		w.Write(f.data)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("form field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func ledger(t *testing.T, header []interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		header,
		{"114/03/05", 5000, nil, "捐款", "年度贊助"},
		{"114/03/06", nil, 300, "文具", "影印紙"},
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func goodLedger(t *testing.T) []byte {
	return ledger(t, []interface{}{"日期", "收入", "支出", "科目", "摘要"})
}

func newRouter(t *testing.T, withAuth bool) *gin.Engine {
	t.Helper()

	opts := Options{Vouchers: voucher.NewService(voucher.Config{}), MaxUploadBytes: 8 << 20}
	if withAuth {
		hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		opts.Auth = auth.NewService([]auth.User{{Username: "clerk", PasswordHash: string(hash)}}, []byte("k"), time.Hour)
	}
	return NewRouter(opts)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responses.APIResponse {
	t.Helper()
	var resp responses.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newRouter(t, false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "voucher-service") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGenerateDocx(t *testing.T) {
	t.Parallel()

	router := newRouter(t, false)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/v1/vouchers/generate",
		[]upload{{"spreadsheet", "ledger.xlsx", goodLedger(t)}}, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != docxMIME {
		t.Fatalf("content type=%s", ct)
	}
	if rec.Header().Get("X-Voucher-Count") != "2" || rec.Header().Get("X-Run-ID") == "" {
		t.Fatalf("summary headers=%v", rec.Header())
	}
	doc, err := document.Decode(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if n := len(doc.Tables()); n != 2 {
		t.Fatalf("tables=%d", n)
	}
}

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

func TestGenerateWithLogo(t *testing.T) {
	t.Parallel()

	var pic bytes.Buffer
	if err := png.Encode(&pic, image.NewGray(image.Rect(0, 0, 90, 30))); err != nil {
		t.Fatalf("png: %v", err)
	}
	router := newRouter(t, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/v1/vouchers/generate",
		[]upload{{"spreadsheet", "ledger.xlsx", goodLedger(t)}, {"logo", "logo.png", pic.Bytes()}},
		map[string]string{"logo_position": "左上"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	found := false
	for _, f := range zr.File {
		found = found || f.Name == "word/header1.xml"
	}
	if !found {
		t.Fatalf("no header part written")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/v1/vouchers/generate",
		[]upload{{"spreadsheet", "ledger.xlsx", goodLedger(t)}, {"image", "scan.png", []byte("plain text")}}, nil))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "could not read image") {
		t.Fatalf("bad image status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGenerateZipAndJSON(t *testing.T) {
	t.Parallel()

	router := newRouter(t, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/v1/vouchers/generate?format=zip",
		[]upload{{"spreadsheet", "ledger.xlsx", goodLedger(t)}}, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("zip status=%d body=%s", rec.Code, rec.Body.String())
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("entries=%d", len(zr.File))
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/v1/vouchers/generate",
		[]upload{{"spreadsheet", "ledger.xlsx", goodLedger(t)}}, map[string]string{"format": "json"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("json status=%d body=%s", rec.Code, rec.Body.String())
	}
	if body := rec.Body.String(); !strings.Contains(body, `"voucher_number":"1140305A01"`) ||
		!strings.Contains(body, `"voucher_number":"1140306B01"`) {
		t.Fatalf("json body=%s", body)
	}
}

func TestPreviewWithOverrides(t *testing.T) {
	t.Parallel()

	data := ledger(t, []interface{}{"日期", "收入", "支出", "備考", "內容"})
	rec := httptest.NewRecorder()
	newRouter(t, false).ServeHTTP(rec, multipartRequest(t, "/api/v1/vouchers/preview",
		[]upload{{"spreadsheet", "ledger.xlsx", data}},
		map[string]string{"overrides[subject]": "備考", "overrides[description]": "內容"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != "success" || !strings.Contains(rec.Body.String(), `"subject":"捐款"`) {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	router := newRouter(t, false)
	tests := []struct {
		name   string
		url    string
		files  []upload
		fields map[string]string
		status int
		errs   []string
	}{
		{
			name:   "missing spreadsheet",
			url:    "/api/v1/vouchers/generate",
			status: http.StatusBadRequest,
		},
		{
			name:   "bad extension",
			url:    "/api/v1/vouchers/generate",
			files:  []upload{{"spreadsheet", "ledger.pdf", []byte("x")}},
			status: http.StatusBadRequest,
		},
		{
			name:   "bad format",
			url:    "/api/v1/vouchers/generate?format=pdf",
			files:  []upload{{"spreadsheet", "ledger.xlsx", goodLedger(t)}},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown override",
			url:    "/api/v1/vouchers/preview",
			files:  []upload{{"spreadsheet", "ledger.xlsx", goodLedger(t)}},
			fields: map[string]string{"overrides[handler]": "經手人"},
			status: http.StatusBadRequest,
		},
		{
			name:   "missing columns",
			url:    "/api/v1/vouchers/generate",
			files:  []upload{{"spreadsheet", "ledger.xlsx", ledger(t, []interface{}{"日期", "收入", "支出", "備考", "內容"})}},
			status: http.StatusUnprocessableEntity,
			errs:   []string{"subject", "description"},
		},
		{
			name: "corrupt template",
			url:  "/api/v1/vouchers/generate",
			files: []upload{
				{"spreadsheet", "ledger.xlsx", goodLedger(t)},
				{"template", "form.docx", []byte("not a zip")},
			},
			status: http.StatusBadRequest,
		},
		{
			name:   "corrupt spreadsheet",
			url:    "/api/v1/vouchers/generate",
			files:  []upload{{"spreadsheet", "ledger.xlsx", []byte("not a zip")}},
			status: http.StatusBadRequest,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, multipartRequest(t, tc.url, tc.files, tc.fields))
			if rec.Code != tc.status {
				t.Fatalf("status=%d, want %d; body=%s", rec.Code, tc.status, rec.Body.String())
			}
			resp := decodeEnvelope(t, rec)
			if resp.Status != "error" {
				t.Fatalf("envelope=%+v", resp)
			}
			if tc.errs != nil && strings.Join(resp.Errors, ",") != strings.Join(tc.errs, ",") {
				t.Fatalf("errors=%v, want %v", resp.Errors, tc.errs)
			}
		})
	}
}

func TestAnalyzeTemplate(t *testing.T) {
	t.Parallel()

	tpl := document.New()
	tpl.Append(document.NewParagraph("支出憑證", document.Font{}))
	tpl.Append(document.NewParagraph("中華民國 年 月 日", document.Font{}))
	tpl.Append(document.NewTable([][]string{{"會計科目", "金額"}, {"", ""}}, document.Font{}))
	data, err := document.Encode(tpl)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	rec := httptest.NewRecorder()
	newRouter(t, false).ServeHTTP(rec, multipartRequest(t, "/api/v1/templates/analyze",
		[]upload{{"template", "form.docx", data}}, map[string]string{"columns": "日期, 科目 ,金額"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{`"strategy":"table"`, `"is_date_field":true`, `"column":"科目"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %s: %s", want, body)
		}
	}

	rec = httptest.NewRecorder()
	newRouter(t, false).ServeHTTP(rec, multipartRequest(t, "/api/v1/templates/analyze", nil, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing template status=%d", rec.Code)
	}
}

func TestAuthGuardsVoucherRoutes(t *testing.T) {
	t.Parallel()

	router := newRouter(t, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/v1/vouchers/generate",
		[]upload{{"spreadsheet", "ledger.xlsx", goodLedger(t)}}, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	login := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"username":"clerk","password":"wrong"}`))
	login.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, login)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	login = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"username":"clerk","password":"s3cret"}`))
	login.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, login)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Data.Token == "" {
		t.Fatalf("token body=%s err=%v", rec.Body.String(), err)
	}

	rec = httptest.NewRecorder()
	req := multipartRequest(t, "/api/v1/vouchers/preview", []upload{{"spreadsheet", "ledger.xlsx", goodLedger(t)}}, nil)
	req.Header.Set("Authorization", "Bearer "+resp.Data.Token)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authorized status=%d body=%s", rec.Code, rec.Body.String())
	}
}
