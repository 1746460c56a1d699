// Package crm talks to the CRM's location custom-values API.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://services.leadconnectorhq.com"
	DefaultAPIVersion = "2021-07-28"
	DefaultPageSize   = 100
	DefaultMaxRecords = 5000
)

// CustomValue is a named value stored on a CRM location
type CustomValue struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UnmarshalJSON accepts non-string values, which the CRM returns for some
// legacy entries.
func (cv *CustomValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cv.ID = raw.ID
	cv.Name = raw.Name
	cv.Value = ""
	if len(raw.Value) == 0 || string(raw.Value) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Value, &s); err == nil {
		cv.Value = s
		return nil
	}
	cv.Value = string(raw.Value)
	return nil
}

// HTTPError is a non-2xx response from the CRM
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("crm http %d: %s", e.StatusCode, e.Message)
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	PageSize   int
	MaxRecords int
	UserAgent  string
}

// Client is a CRM custom-values client. Writes are never retried so a changed
// key costs at most one write call per push.
type Client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
	pageSize   int
	maxRecords int
	userAgent  string
}

// NewClient creates a new CRM client
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	maxRecords := opts.MaxRecords
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Client{
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: httpClient,
		pageSize:   pageSize,
		maxRecords: maxRecords,
		userAgent:  strings.TrimSpace(opts.UserAgent),
	}
}

type listResponse struct {
	CustomValues []CustomValue `json:"customValues"`
}

type writeRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type writeResponse struct {
	CustomValue CustomValue `json:"customValue"`
}

// List fetches one page of custom values
func (c *Client) List(ctx context.Context, locationID, token string, limit, skip int) ([]CustomValue, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("skip", strconv.Itoa(skip))

	var out listResponse
	if err := c.do(ctx, http.MethodGet, c.valuesPath(locationID)+"?"+query.Encode(), token, nil, &out); err != nil {
		return nil, err
	}
	return out.CustomValues, nil
}

// FetchAll pages through every custom value of a location. It stops on a short
// page or once the record cap is reached. Any API error aborts the fetch.
func (c *Client) FetchAll(ctx context.Context, locationID, token string) ([]CustomValue, error) {
	all := make([]CustomValue, 0, c.pageSize)
	for skip := 0; skip < c.maxRecords; skip += c.pageSize {
		page, err := c.List(ctx, locationID, token, c.pageSize, skip)
		if err != nil {
			return nil, fmt.Errorf("failed to list custom values at offset %d: %w", skip, err)
		}
		all = append(all, page...)
		if len(page) < c.pageSize {
			break
		}
	}
	if len(all) > c.maxRecords {
		all = all[:c.maxRecords]
	}
	return all, nil
}

// Create creates a custom value and returns the stored entity
func (c *Client) Create(ctx context.Context, locationID, token, name, value string) (CustomValue, error) {
	var out writeResponse
	body := writeRequest{Name: name, Value: value}
	if err := c.do(ctx, http.MethodPost, c.valuesPath(locationID), token, body, &out); err != nil {
		return CustomValue{}, err
	}
	if out.CustomValue.Name == "" {
		out.CustomValue.Name = name
		out.CustomValue.Value = value
	}
	return out.CustomValue, nil
}

// Update overwrites an existing custom value by id
func (c *Client) Update(ctx context.Context, locationID, token, id, name, value string) (CustomValue, error) {
	var out writeResponse
	body := writeRequest{Name: name, Value: value}
	if err := c.do(ctx, http.MethodPut, c.valuesPath(locationID)+"/"+url.PathEscape(id), token, body, &out); err != nil {
		return CustomValue{}, err
	}
	if out.CustomValue.ID == "" {
		out.CustomValue = CustomValue{ID: id, Name: name, Value: value}
	}
	return out.CustomValue, nil
}

func (c *Client) valuesPath(locationID string) string {
	return "/locations/" + url.PathEscape(locationID) + "/customValues"
}

func (c *Client) do(ctx context.Context, method, path, token string, payload, out any) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("crm access token is empty")
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode crm response: %w", err)
	}
	return nil
}

func errorMessage(body []byte) string {
	msg := strings.TrimSpace(string(body))
	var parsed map[string]any
	if json.Unmarshal(body, &parsed) == nil {
		switch m := parsed["message"].(type) {
		case string:
			if strings.TrimSpace(m) != "" {
				return m
			}
		case []any:
			parts := make([]string, 0, len(m))
			for _, p := range m {
				parts = append(parts, fmt.Sprint(p))
			}
			return strings.Join(parts, "; ")
		}
		if e, ok := parsed["error"].(string); ok && e != "" {
			return e
		}
	}
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}
