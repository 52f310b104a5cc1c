package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fwctl/fwctl/internal/calibration"
	"github.com/fwctl/fwctl/internal/configuration"
	"github.com/fwctl/fwctl/internal/store"
	"github.com/fwctl/fwctl/internal/telemetry"
)

// ResponseError is returned by the Client for every non 2xx answer of the daemon.
type ResponseError struct {
	StatusCode int
	Result     Result
}

func (e *ResponseError) Error() string {
	if len(e.Result.Message) > 0 {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Result.Name, e.Result.Message)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Client talks to the REST service of a running daemon.
type Client struct {
	baseUrl string
	http    *http.Client
}

// NewClient creates a client for address, which is either host:port or a full URL
func NewClient(address string) *Client {
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	return &Client{
		baseUrl: strings.TrimSuffix(address, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method string, path string, query url.Values, body interface{}, result interface{}) error {
	endpoint := c.baseUrl + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("unable to reach fwctl daemon at %s: %w", c.baseUrl, err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		responseError := &ResponseError{StatusCode: response.StatusCode}
		_ = json.Unmarshal(data, &responseError.Result)
		return responseError
	}
	if result == nil || len(data) <= 0 {
		return nil
	}
	return json.Unmarshal(data, result)
}

func (c *Client) Alive(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/alive/", nil, nil, nil)
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodGet, "/status/", nil, nil, &status)
	return status, err
}

func (c *Client) Settings(ctx context.Context) (configuration.Settings, error) {
	var settings configuration.Settings
	err := c.do(ctx, http.MethodGet, "/settings/", nil, nil, &settings)
	return settings, err
}

func (c *Client) Samples(ctx context.Context, since string) ([]telemetry.Sample, error) {
	query := url.Values{}
	if len(since) > 0 {
		query.Set(queryParamSince, since)
	}
	var samples []telemetry.Sample
	err := c.do(ctx, http.MethodGet, "/telemetry/samples/", query, nil, &samples)
	return samples, err
}

func (c *Client) StartCalibration(ctx context.Context, domain store.Domain, sweep []float64) (calibration.Status, error) {
	var status calibration.Status
	err := c.do(ctx, http.MethodPost, "/calibration/", nil, CalibrationRequest{Domain: domain, Sweep: sweep}, &status)
	return status, err
}

func (c *Client) CancelCalibration(ctx context.Context, domain store.Domain) (calibration.Status, error) {
	var status calibration.Status
	err := c.do(ctx, http.MethodDelete, "/calibration/", url.Values{queryParamDomain: {string(domain)}}, nil, &status)
	return status, err
}

func (c *Client) CalibrationStatus(ctx context.Context, domain store.Domain) (calibration.Status, error) {
	var status calibration.Status
	err := c.do(ctx, http.MethodGet, "/calibration/", url.Values{queryParamDomain: {string(domain)}}, nil, &status)
	return status, err
}

func (c *Client) CalibrationTable(ctx context.Context) ([]configuration.CalibrationPoint, error) {
	var points []configuration.CalibrationPoint
	err := c.do(ctx, http.MethodGet, "/calibration/table/", nil, nil, &points)
	return points, err
}
