package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jabolina/peer-mutex/pkg/mutex/types"
)

// Client talks to a remote Server over JSON/HTTP, implementing the
// Directory interface a peer embeds. Lookup failures are translated to
// types.ErrDirectoryUnavailable so Membership can apply the
// skip-the-tick policy of spec.md §7 uniformly.
type Client struct {
	base string
	http *http.Client
}

// NewClient targets the directory service listening at baseURL, e.g.
// "http://localhost:9000".
func NewClient(baseURL string) *Client {
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) Register(name, endpoint string) error {
	body, err := json.Marshal(registerRequest{Name: name, Endpoint: endpoint})
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.base+"/directory/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", types.ErrDirectoryUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) Lookup(name string) (string, error) {
	resp, err := c.http.Get(c.base + "/directory/lookup?name=" + url.QueryEscape(name))
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	var out lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrDirectoryUnavailable, err)
	}
	if out.Error != "" {
		return "", ErrNotFound
	}
	return out.Endpoint, nil
}

func (c *Client) List(prefix string) (map[string]string, error) {
	resp, err := c.http.Get(c.base + "/directory/list?prefix=" + url.QueryEscape(prefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDirectoryUnavailable, err)
	}
	return out.Records, nil
}

func (c *Client) Remove(name string) error {
	req, err := http.NewRequest(http.MethodPost, c.base+"/directory/remove?name="+url.QueryEscape(name), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()
	return nil
}
