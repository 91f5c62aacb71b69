// Package prediction turns a price window into a rise probability by
// querying the external model-serving service.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Feature is one named model input. The service expects features in
// the exact order the model was trained with, so they travel as an
// ordered array, not a map.
type Feature struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Client communicates with the prediction service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new prediction service client.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("client", "prediction").Logger(),
	}
}

type predictRequest struct {
	Model    string    `json:"model"`
	Features []Feature `json:"features"`
}

type predictResponse struct {
	Probability float64 `json:"probability"`
	Error       *string `json:"error"`
}

// Predict sends an ordered feature vector to the model identified by
// modelID and returns the probability the asset rises.
func (c *Client) Predict(ctx context.Context, modelID string, features []Feature) (float64, error) {
	payload, err := json.Marshal(predictRequest{Model: modelID, Features: features})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/predict", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("prediction service returned status %d: %s", resp.StatusCode, body)
	}

	var result predictResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != nil {
		return 0, fmt.Errorf("prediction service error: %s", *result.Error)
	}

	return result.Probability, nil
}
