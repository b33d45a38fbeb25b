package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/transport"
)

// RequestPath is the path all requests are posted to
const RequestPath = "/v1/rpc"

// NewHttpClientConnector creates a connector sending every request as a POST
func NewHttpClientConnector() transport.IClientConnector {
	return &httpClientConnector{}
}

type httpClientConnector struct{}

// httpClientConn is the connection to one node. HTTP keeps its own connection
// pool, so the conn is only broken by Close.
type httpClientConn struct {
	url    string
	client *http.Client
	closed atomic.Bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientConnector)
// --------------------------------------------------------------------------

func (c *httpClientConnector) GetName() string {
	return "http"
}

func (c *httpClientConnector) Dial(_ context.Context, addr common.NodeAddress, config common.ClientConfig) (transport.IClientConn, error) {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     config.Timeout,
		},
	}

	return &httpClientConn{
		url:    strings.TrimSuffix(base, "/") + RequestPath,
		client: client,
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientConn)
// --------------------------------------------------------------------------

func (c *httpClientConn) Send(ctx context.Context, req []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, common.ErrClosed
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(req))
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Content-Type", "application/octet-stream")

	httpResponse, err := c.client.Do(httpRequest)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	if httpResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error: %s", httpResponse.Status)
	}

	return io.ReadAll(httpResponse.Body)
}

func (c *httpClientConn) IsBroken() bool {
	return c.closed.Load()
}

func (c *httpClientConn) Close() error {
	c.closed.Store(true)
	c.client.CloseIdleConnections()
	return nil
}
