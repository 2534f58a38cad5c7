// Package tui is the terminal dashboard for eagerclean-watch. It talks
// only to internal/httpstatus's read-only API and never calls the
// CleanupEngine directly, the same separation the status API itself
// draws between observation and decision logic.
package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/flowforge/eagerclean/pkg/cleanup"
)

// Client is a thin HTTP client over internal/httpstatus's endpoints.
type Client struct {
	addr string
	http *http.Client
}

// NewClient returns a Client for the status API listening on addr
// (e.g. "http://127.0.0.1:8090").
func NewClient(addr string) *Client {
	return &Client{addr: addr, http: &http.Client{Timeout: 3 * time.Second}}
}

func (c *Client) get(path string, out any) error {
	resp, err := c.http.Get(c.addr + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tui: %s returned %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Report fetches the aggregate Report.
func (c *Client) Report() (cleanup.Report, error) {
	var r cleanup.Report
	err := c.get("/report", &r)
	return r, err
}

// Processes fetches the per-process snapshot list.
func (c *Client) Processes() ([]cleanup.ProcessSnapshot, error) {
	var ps []cleanup.ProcessSnapshot
	err := c.get("/processes", &ps)
	return ps, err
}

// Paths fetches the per-path snapshot list.
func (c *Client) Paths() ([]cleanup.PathSnapshot, error) {
	var ps []cleanup.PathSnapshot
	err := c.get("/paths", &ps)
	return ps, err
}
