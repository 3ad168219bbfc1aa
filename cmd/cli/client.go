package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

type tokenData struct {
	Token string `json:"token"`
}

type apiClient struct {
	http      *http.Client
	baseURL   string
	tokenPath string
}

func (c *apiClient) hasToken() bool {
	tok, err := readToken(c.tokenPath)
	return err == nil && tok != ""
}

func (c *apiClient) printGet(ctx context.Context, path string, qv url.Values, authed bool) {
	if len(qv) > 0 {
		path += "?" + qv.Encode()
	}
	var resp any
	if err := c.doJSON(ctx, http.MethodGet, path, authed, nil, &resp); err != nil {
		fatalf("GET %s failed: %v", path, err)
	}
	printJSON(resp)
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, authed bool, payload any, out any) error {
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
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		tok, err := readToken(c.tokenPath)
		if err != nil || tok == "" {
			return fmt.Errorf("no token, run: movierec token issue -user <id>")
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// watch streams job events until the connection drops.
func (c *apiClient) watch(path string) error {
	endpoint, err := websocketURL(c.baseURL, path)
	if err != nil {
		return err
	}
	tok, err := readToken(c.tokenPath)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	hdr := http.Header{"Authorization": {"Bearer " + tok}}

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, hdr)
	if err != nil {
		return err
	}
	defer conn.Close()
	fmt.Fprintf(os.Stderr, "connected to %s\n", endpoint)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Println(string(msg))
	}
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{Scheme: scheme, Host: u.Host, Path: path}).String(), nil
}

func parseIDs(s string) ([]int64, error) {
	out := []int64{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}

func parseArgs(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid arg %q, want key=value", part)
		}
		out[k] = v
	}
	return out, nil
}

func setIf(qv url.Values, key, val string) {
	if val != "" {
		qv.Set(key, val)
	}
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.movierec-token.json"
	}
	return filepath.Join(home, ".movierec", "token.json")
}

func saveToken(path, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return "", err
	}
	return strings.TrimSpace(td.Token), nil
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
