package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ErrorCode extracts the stable classification code from an RPC error
// produced by the daemon. It returns "" when the error carries no code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "[") {
		return ""
	}
	end := strings.IndexByte(msg, ']')
	if end <= 1 {
		return ""
	}
	return msg[1:end]
}

// ErrorMessage strips the classification code prefix for display.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if code := ErrorCode(err); code != "" {
		return strings.TrimSpace(strings.TrimPrefix(msg, "["+code+"]"))
	}
	return msg
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Reel.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Reel.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Reel.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SignIn establishes the daemon session for an identity.
func (c *Client) SignIn(identity, email string) (*SignInResponse, error) {
	var resp SignInResponse
	req := SignInRequest{Identity: identity, Email: email}
	if err := c.client.Call("Reel.SignIn", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SignOut ends the daemon session.
func (c *Client) SignOut() (*SignOutResponse, error) {
	var resp SignOutResponse
	if err := c.client.Call("Reel.SignOut", SignOutRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteAccount removes all persisted state for the signed-in identity.
func (c *Client) DeleteAccount() (*DeleteAccountResponse, error) {
	var resp DeleteAccountResponse
	if err := c.client.Call("Reel.DeleteAccount", DeleteAccountRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Account retrieves the signed-in account snapshot.
func (c *Client) Account() (*AccountResponse, error) {
	var resp AccountResponse
	if err := c.client.Call("Reel.Account", AccountRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit starts a new generation job.
func (c *Client) Submit(req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.client.Call("Reel.Submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobStatus retrieves the generation snapshot.
func (c *Client) JobStatus() (*JobStatusResponse, error) {
	var resp JobStatusResponse
	if err := c.client.Call("Reel.JobStatus", JobStatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History retrieves resolved videos for this daemon session.
func (c *Client) History() (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.client.Call("Reel.History", HistoryRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Catalog retrieves the storefront catalog.
func (c *Client) Catalog() (*CatalogResponse, error) {
	var resp CatalogResponse
	if err := c.client.Call("Reel.Catalog", CatalogRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Purchase buys a product by id.
func (c *Client) Purchase(productID string) (*PurchaseResponse, error) {
	var resp PurchaseResponse
	req := PurchaseRequest{ProductID: productID}
	if err := c.client.Call("Reel.Purchase", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncEntitlements reconciles entitlements and checks for due rewards.
func (c *Client) SyncEntitlements() (*SyncResponse, error) {
	var resp SyncResponse
	if err := c.client.Call("Reel.SyncEntitlements", SyncRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
// TestNotification asks the daemon to send a test push.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Reel.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Reel.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
