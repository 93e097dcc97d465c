package connectivity

import (
	"context"
	"net/http"
	"strings"
)

// Reachable reports whether the service at baseURL answers its health
// check. It suits one-shot callers that cannot hold a Probe open.
func Reachable(ctx context.Context, baseURL string, client *http.Client) bool {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
