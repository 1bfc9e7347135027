package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
	"github.com/KaramelBytes/datalens-cli/internal/assistant"
)

func newTestServer(t *testing.T, c assistant.Completer, maxBytes int64) *httptest.Server {
	t.Helper()
	s := NewServer(Config{
		MaxUploadBytes: maxBytes,
		Session:        assistant.Options{SystemPrompt: "sys"},
		Completer:      c,
		Logger:         zerolog.New(io.Discard),
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func post(t *testing.T, url string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, contentType, body)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil, 0)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestDescribe(t *testing.T) {
	srv := newTestServer(t, nil, 0)
	body, ct := multipartBody(t, "data.csv", []byte("x,y\n1,\n2,3\n3,4\n4,5\n"), nil)
	resp := post(t, srv.URL+"/api/describe", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Session string `json:"session"`
		Summary struct {
			Rows    int      `json:"total_rows"`
			Columns []string `json:"columns"`
			Stats   []struct {
				Name  string   `json:"name"`
				Count int      `json:"count"`
				Mean  *float64 `json:"mean"`
			} `json:"basic_stats"`
			Missing []struct {
				Name  string `json:"name"`
				Count int    `json:"count"`
			} `json:"missing_values"`
		} `json:"summary"`
		Notices  []assistant.Notice  `json:"notices"`
		Sections []assistant.Section `json:"sections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Session == "" || out.Summary.Rows != 4 || len(out.Summary.Columns) != 2 {
		t.Fatalf("summary = %+v", out)
	}
	if len(out.Summary.Stats) != 2 || out.Summary.Stats[0].Count != 4 || *out.Summary.Stats[0].Mean != 2.5 {
		t.Fatalf("stats = %+v", out.Summary.Stats)
	}
	if out.Summary.Missing[0].Count != 0 || out.Summary.Missing[1].Count != 1 {
		t.Fatalf("missing = %+v", out.Summary.Missing)
	}
	titles := make([]string, len(out.Sections))
	for i, s := range out.Sections {
		titles[i] = s.Title
	}
	want := "Data Preview|Available Columns|Dataset Info|Statistical Summary|Missing Values|Column Data Types"
	if strings.Join(titles, "|") != want {
		t.Fatalf("sections = %v", titles)
	}
}

func TestDescribeErrors(t *testing.T) {
	srv := newTestServer(t, nil, 1024)
	cases := []struct {
		name    string
		file    string
		content []byte
		status  int
		code    string
	}{
		{"unsupported", "notes.txt", []byte("hello"), http.StatusUnsupportedMediaType, "FMT001"},
		{"malformed", "empty.csv", nil, http.StatusUnprocessableEntity, "FMT002"},
		{"no file", "", nil, http.StatusBadRequest, "REQ003"},
		{"too large", "big.csv", bytes.Repeat([]byte("a,b\n"), 1024), http.StatusRequestEntityTooLarge, "REQ004"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			body, ct := multipartBody(t, c.file, c.content, nil)
			resp := post(t, srv.URL+"/api/describe", body, ct)
			if resp.StatusCode != c.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, c.status)
			}
			e := decodeError(t, resp)
			if e.Code != c.code || e.Message == "" || e.Error != e.Message {
				t.Fatalf("error body = %+v", e)
			}
		})
	}
}

func TestDescribeNotMultipart(t *testing.T) {
	srv := newTestServer(t, nil, 0)
	resp := post(t, srv.URL+"/api/describe", strings.NewReader("a,b\n1,2\n"), "text/csv")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if e := decodeError(t, resp); e.Code != "REQ005" {
		t.Fatalf("code = %s", e.Code)
	}
}

func TestAsk(t *testing.T) {
	var prompt string
	c := assistant.CompleterFunc(func(_ context.Context, _ string, p string) (string, error) {
		prompt = p
		return "Column a averages 2.", nil
	})
	srv := newTestServer(t, c, 0)
	body, ct := multipartBody(t, "data.csv", []byte("a\n1\n3\n"), map[string]string{"question": "What is the mean of a?"})
	resp := post(t, srv.URL+"/api/ask", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Answer != "Column a averages 2." || out.Question != "What is the mean of a?" {
		t.Fatalf("response = %+v", out)
	}
	if !strings.Contains(prompt, "Question: What is the mean of a?") {
		t.Fatalf("prompt = %q", prompt)
	}
}

func TestAskErrors(t *testing.T) {
	failing := assistant.CompleterFunc(func(context.Context, string, string) (string, error) {
		return "", &ai.AuthError{APIError: &ai.APIError{StatusCode: 401, Message: "Invalid API Key"}}
	})
	cases := []struct {
		name      string
		completer assistant.Completer
		question  string
		status    int
		code      string
	}{
		{"blank question", failing, "  ", http.StatusBadRequest, "REQ002"},
		{"auth", failing, "why?", http.StatusBadGateway, "AI002"},
		{"no completer", nil, "why?", http.StatusBadGateway, "AI001"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := newTestServer(t, c.completer, 0)
			body, ct := multipartBody(t, "data.csv", []byte("a\n1\n"), map[string]string{"question": c.question})
			resp := post(t, srv.URL+"/api/ask", body, ct)
			if resp.StatusCode != c.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, c.status)
			}
			if e := decodeError(t, resp); e.Code != c.code {
				t.Fatalf("code = %s, want %s", e.Code, c.code)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[string]int{
		"FMT001": http.StatusUnsupportedMediaType,
		"FMT002": http.StatusUnprocessableEntity,
		"REQ002": http.StatusBadRequest,
		"AI003":  http.StatusTooManyRequests,
		"AI006":  http.StatusBadGateway,
		"AI007":  http.StatusBadGateway,
		"AI008":  http.StatusGatewayTimeout,
		"GEN001": http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := statusFor(code); got != want {
			t.Errorf("statusFor(%s) = %d, want %d", code, got, want)
		}
	}
}
