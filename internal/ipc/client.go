package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to a running launcher.
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
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the launcher state.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Open opens a vault, answering the launcher's questions from req.
func (c *Client) Open(req OpenRequest) (*OpenResponse, error) {
	return call[OpenResponse](c, "Open", req)
}

// CloseVault closes the open vault.
func (c *Client) CloseVault() (*CloseResponse, error) {
	return call[CloseResponse](c, "Close", CloseRequest{})
}

// Start starts or restarts the vault daemon.
func (c *Client) Start(openBrowser bool) (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{OpenBrowser: openBrowser})
}

// Stop stops the vault daemon.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Backup runs a backup of the open vault.
func (c *Client) Backup(req BackupRequest) (*BackupResponse, error) {
	return call[BackupResponse](c, "Backup", req)
}

// CancelBackup cancels the running backup.
func (c *Client) CancelBackup() (*CancelBackupResponse, error) {
	return call[CancelBackupResponse](c, "CancelBackup", CancelBackupRequest{})
}

// History lists recent backup runs.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	return call[HistoryResponse](c, "History", HistoryRequest{Limit: limit})
}

// ExportKey reveals the vault key.
func (c *Client) ExportKey(req ExportKeyRequest) (*ExportKeyResponse, error) {
	return call[ExportKeyResponse](c, "ExportKey", req)
}

// RecoverKey resets the vault credentials from the vault key.
func (c *Client) RecoverKey(req RecoverKeyRequest) (*RecoverKeyResponse, error) {
	return call[RecoverKeyResponse](c, "RecoverKey", req)
}

// RunTool runs a maintenance tool.
func (c *Client) RunTool(req RunToolRequest) (*RunToolResponse, error) {
	return call[RunToolResponse](c, "RunTool", req)
}

// CancelTool cancels the running maintenance tool.
func (c *Client) CancelTool() (*CancelToolResponse, error) {
	return call[CancelToolResponse](c, "CancelTool", CancelToolRequest{})
}

// UpdateConfig changes settings of the launcher and the open vault.
func (c *Client) UpdateConfig(req UpdateConfigRequest) (*UpdateConfigResponse, error) {
	return call[UpdateConfigResponse](c, "UpdateConfig", req)
}

// TestNotification triggers a notification test via the launcher.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}

// Finish shuts the launcher down.
func (c *Client) Finish() (*FinishResponse, error) {
	return call[FinishResponse](c, "Finish", FinishRequest{})
}
