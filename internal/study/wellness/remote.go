package wellness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultQuoteURL    = "https://zenquotes.io/api/random"
	DefaultFactURL     = "https://meowfacts.herokuapp.com/"
	DefaultCatURL      = "https://cataas.com/cat"
	DefaultCatGIFURL   = "https://cataas.com/cat/gif"
	defaultHTTPTimeout = 8 * time.Second
	maxBody            = 64 << 10
)

var ErrEmptyResponse = errors.New("wellness: empty response")

// Remote fetches quotes and facts from public JSON endpoints.
type Remote struct {
	client   *http.Client
	quoteURL string
	factURL  string
}

func NewRemote(client *http.Client, quoteURL, factURL string) *Remote {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if strings.TrimSpace(quoteURL) == "" {
		quoteURL = DefaultQuoteURL
	}
	if strings.TrimSpace(factURL) == "" {
		factURL = DefaultFactURL
	}
	return &Remote{client: client, quoteURL: quoteURL, factURL: factURL}
}

// Quote reads a zenquotes style body: [{"q": "...", "a": "..."}].
func (r *Remote) Quote(ctx context.Context) (string, error) {
	var out []struct {
		Q string `json:"q"`
		A string `json:"a"`
	}
	if err := r.getJSON(ctx, r.quoteURL, &out); err != nil {
		return "", err
	}
	if len(out) == 0 || strings.TrimSpace(out[0].Q) == "" {
		return "", ErrEmptyResponse
	}
	q := strings.TrimSpace(out[0].Q)
	if a := strings.TrimSpace(out[0].A); a != "" {
		q += " -" + a
	}
	return q + " ✨", nil
}

// CatFact reads a meowfacts style body: {"data": ["..."]}.
func (r *Remote) CatFact(ctx context.Context) (string, error) {
	var out struct {
		Data []string `json:"data"`
	}
	if err := r.getJSON(ctx, r.factURL, &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 || strings.TrimSpace(out.Data[0]) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(out.Data[0]) + " 🐾🐱", nil
}

func (r *Remote) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return fmt.Errorf("wellness: GET %s: http %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(v); err != nil {
		return fmt.Errorf("wellness: decode %s: %w", url, err)
	}
	return nil
}
