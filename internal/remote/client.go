package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"analyzer-console/internal/companies"
)

const transportFailureMessage = "analysis service unreachable"

// UploadReceipt is the backend's acknowledgement of a batch submission.
type UploadReceipt struct {
	BatchID        string `json:"batch_id"`
	TotalCompanies int    `json:"total_companies"`
	Message        string `json:"message"`
}

// Client is a thin HTTP wrapper around the analysis backend. It issues one
// request per call and never retries; retry policy belongs to the caller.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// SubmitBatch uploads a CSV file and returns the assigned batch id.
func (c *Client) SubmitBatch(ctx context.Context, filename string, file io.Reader) (UploadReceipt, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return UploadReceipt{}, &UploadError{Message: transportFailureMessage, Err: err}
	}
	if _, err := io.Copy(part, file); err != nil {
		return UploadReceipt{}, &UploadError{Message: transportFailureMessage, Err: err}
	}
	if err := writer.Close(); err != nil {
		return UploadReceipt{}, &UploadError{Message: transportFailureMessage, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze-csv", body)
	if err != nil {
		return UploadReceipt{}, &UploadError{Message: transportFailureMessage, Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return UploadReceipt{}, &UploadError{Message: transportFailureMessage, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UploadReceipt{}, &UploadError{Status: resp.StatusCode, Message: backendMessage(resp)}
	}

	var receipt UploadReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return UploadReceipt{}, &UploadError{Status: resp.StatusCode, Message: transportFailureMessage, Err: err}
	}
	return receipt, nil
}

// FetchProgress returns the current progress snapshot for one batch. A
// failure here is scoped to that batch only.
func (c *Client) FetchProgress(ctx context.Context, batchID string) (companies.ProgressSnapshot, error) {
	var snapshot companies.ProgressSnapshot
	if err := c.getJSON(ctx, "/api/progress/"+batchID, &snapshot); err != nil {
		return companies.ProgressSnapshot{}, progressErr(batchID, err)
	}
	return snapshot, nil
}

// FetchCompanies lists all companies known to the backend, newest first.
func (c *Client) FetchCompanies(ctx context.Context) ([]companies.Company, error) {
	var listing []companies.Company
	if err := c.getJSON(ctx, "/api/companies", &listing); err != nil {
		return nil, resultsErr("", err)
	}
	return listing, nil
}

// FetchResults returns the companies of one batch in ingestion order.
func (c *Client) FetchResults(ctx context.Context, batchID string) ([]companies.Company, error) {
	var results []companies.Company
	if err := c.getJSON(ctx, "/api/results/"+batchID, &results); err != nil {
		return nil, resultsErr(batchID, err)
	}
	return results, nil
}

// ExportBatch downloads the spreadsheet export for a batch. The payload is
// opaque to the orchestrator; the filename comes from Content-Disposition
// when the backend supplies one.
func (c *Client) ExportBatch(ctx context.Context, batchID string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/export/"+batchID, nil)
	if err != nil {
		return nil, "", &ExportError{BatchID: batchID, Message: transportFailureMessage, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", &ExportError{BatchID: batchID, Message: transportFailureMessage, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &ExportError{BatchID: batchID, Status: resp.StatusCode, Message: backendMessage(resp)}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &ExportError{BatchID: batchID, Message: transportFailureMessage, Err: err}
	}

	filename := fmt.Sprintf("digital_native_analysis_%s.xlsx", batchID)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name := params["filename"]; name != "" {
			filename = name
		}
	}
	return payload, filename, nil
}

// DeleteBatch removes a batch and all its companies from the backend.
func (c *Client) DeleteBatch(ctx context.Context, batchID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/batch/"+batchID, nil)
	if err != nil {
		return &DeleteError{BatchID: batchID, Message: transportFailureMessage, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &DeleteError{BatchID: batchID, Message: transportFailureMessage, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeleteError{BatchID: batchID, Status: resp.StatusCode, Message: backendMessage(resp)}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// httpError carries the backend status and message between getJSON and the
// per-operation error constructors.
type httpError struct {
	status  int
	message string
	err     error
}

func (e *httpError) Error() string { return e.message }
func (e *httpError) Unwrap() error { return e.err }

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &httpError{message: transportFailureMessage, err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &httpError{message: transportFailureMessage, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpError{status: resp.StatusCode, message: backendMessage(resp)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &httpError{status: resp.StatusCode, message: transportFailureMessage, err: err}
	}
	return nil
}

func progressErr(batchID string, err error) *ProgressError {
	var he *httpError
	if !errors.As(err, &he) {
		return &ProgressError{BatchID: batchID, Message: transportFailureMessage, Err: err}
	}
	return &ProgressError{BatchID: batchID, Status: he.status, Message: he.message, Err: he.err}
}

func resultsErr(batchID string, err error) *ResultsError {
	var he *httpError
	if !errors.As(err, &he) {
		return &ResultsError{BatchID: batchID, Message: transportFailureMessage, Err: err}
	}
	return &ResultsError{BatchID: batchID, Status: he.status, Message: he.message, Err: he.err}
}

// backendMessage extracts the error message the backend attached to a non-2xx
// response, falling back to the raw status when the body has none.
func backendMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(body) > 0 {
		var parsed struct {
			Detail  string `json:"detail"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &parsed) == nil {
			if parsed.Detail != "" {
				return parsed.Detail
			}
			if parsed.Message != "" {
				return parsed.Message
			}
		}
	}
	return "analysis service returned " + resp.Status
}
