package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/docscan/internal/config"
	"github.com/MeKo-Tech/docscan/internal/server"
)

// theScanServerIsRunning starts the real handler stack on an httptest server.
func (testCtx *TestContext) theScanServerIsRunning() error {
	return testCtx.startServer(0, 0)
}

func (testCtx *TestContext) theScanServerIsRunningWithRateLimit(rpm, burst int) error {
	return testCtx.startServer(rpm, burst)
}

func (testCtx *TestContext) startServer(rpm, burst int) error {
	cfg := config.DefaultConfig()
	s, err := server.NewServer(server.Config{
		CORSOrigin:        cfg.Server.CORSOrigin,
		MaxUploadMB:       int64(cfg.Server.MaxUploadMB),
		TimeoutSec:        cfg.Server.TimeoutSec,
		PipelineConfig:    cfg.ToPipelineConfig(),
		OverlayEnabled:    true,
		OverlayColor:      cfg.Output.OverlayColor,
		JPEGQuality:       cfg.Output.JPEGQuality,
		Version:           "test",
		RequestsPerMinute: rpm,
		Burst:             burst,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.HTTPServer = httptest.NewServer(s.Handler())
	return nil
}

func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	if testCtx.HTTPServer == nil {
		return errNoServer
	}
	resp, err := http.Get(testCtx.HTTPServer.URL + path) //nolint:noctx // test request against httptest
	if err != nil {
		return err
	}
	return testCtx.recordResponse(resp)
}

// iUploadTo posts filename as the multipart "image" field, with optional
// extra form fields given as a table.
func (testCtx *TestContext) iUploadTo(filename, path string) error {
	return testCtx.upload(filename, path, nil)
}

func (testCtx *TestContext) iUploadToWithFields(filename, path string, table *godog.Table) error {
	fields := map[string]string{}
	for _, row := range table.Rows {
		if len(row.Cells) == 2 {
			fields[row.Cells[0].Value] = row.Cells[1].Value
		}
	}
	return testCtx.upload(filename, path, fields)
}

func (testCtx *TestContext) upload(filename, path string, fields map[string]string) error {
	if testCtx.HTTPServer == nil {
		return errNoServer
	}
	data, err := os.ReadFile(testCtx.Path(filename))
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := http.Post(testCtx.HTTPServer.URL+path, mw.FormDataContentType(), &body) //nolint:noctx // test request against httptest
	if err != nil {
		return err
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPBody = body
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != value {
		return fmt.Errorf("header %s is %q, expected %q", name, got, value)
	}
	return nil
}

func (testCtx *TestContext) theResponseJSONFieldShouldBe(field, expected string) error {
	var data any
	if err := json.Unmarshal(testCtx.LastHTTPBody, &data); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	v, err := lookupPath(data, field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("response field %s is %q, expected %q", field, got, expected)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !bytes.Contains(testCtx.LastHTTPBody, []byte(text)) {
		return fmt.Errorf("response does not contain %q: %s", text, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) iSendRequestsInARow(n int, filename, path string) error {
	for range n {
		if err := testCtx.upload(filename, path, nil); err != nil {
			return err
		}
	}
	return nil
}

// RegisterServerSteps registers the HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the scan server is running$`, testCtx.theScanServerIsRunning)
	sc.Step(`^the scan server is running with a limit of (\d+) requests per minute and burst (\d+)$`,
		testCtx.theScanServerIsRunningWithRateLimit)
	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with:$`, testCtx.iUploadToWithFields)
	sc.Step(`^I upload (\d+) times "([^"]*)" to "([^"]*)"$`, testCtx.iSendRequestsInARow)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseJSONFieldShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
}
