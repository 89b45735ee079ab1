// Package sqlcmd drives the Microsoft sqlcmd client on the target host to
// export Veeam credential tables as comma-separated text.
package sqlcmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
)

// Binary is the client executable looked up on the target's PATH.
const Binary = "sqlcmd"

const (
	// VBRQuery exports dbo.Credentials from the Backup & Replication database.
	VBRQuery = "SET NOCOUNT ON;SELECT [id] ID,[usn] USN,[user_name] Username,[password] Password,[description] Description,[visible] Visible FROM dbo.Credentials"
	// VOMQuery exports named collector users from the Veeam ONE database.
	VOMQuery = "SET NOCOUNT ON;SELECT [uid] ID, [id] USN, [name] Username, [password] Password,'VeeamONE Credential' Description,0 Visible FROM [collector].[user] WHERE [collector].[user].[name] IS NOT NULL AND [collector].[user].[name] NOT LIKE ''"
)

// QueryFor returns the export query for a product.
func QueryFor(p model.Product) (string, error) {
	switch p {
	case model.ProductBackupReplication:
		return VBRQuery, nil
	case model.ProductOneMonitor:
		return VOMQuery, nil
	}
	return "", fmt.Errorf("no export query for product %q", p)
}

// Compile-time interface satisfaction check.
var _ driven.DatabaseExporter = (*Client)(nil)

// Client runs sqlcmd through the remote executor.
type Client struct {
	exec driven.RemoteExecutor
}

// NewClient creates a new Client.
func NewClient(exec driven.RemoteExecutor) *Client {
	return &Client{exec: exec}
}

// Detect reports whether sqlcmd is available on the target host.
func (c *Client) Detect(ctx context.Context) (bool, error) {
	out, err := c.exec.ExecuteCommand(ctx, Binary+" -?")
	if err != nil {
		return false, fmt.Errorf("check %s: %w", Binary, err)
	}
	return strings.Contains(strings.ToLower(out), "sql server command line tool"), nil
}

// Query runs a query and returns the raw text. Output that carries a client
// error message is returned as an unknown-kind RunError holding that text.
func (c *Client) Query(ctx context.Context, conn model.Connection, query string) (string, error) {
	cmd, err := Command(conn, query)
	if err != nil {
		return "", model.FailWrap(model.KindBadConfig, err, "build %s command", Binary)
	}
	out, err := c.exec.ExecuteCommand(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("run %s: %w", Binary, err)
	}
	if IsClientError(out) {
		return "", model.Fail(model.KindUnknown, "%s", strings.TrimSpace(out))
	}
	return out, nil
}

// Export implements driven.DatabaseExporter.
func (c *Client) Export(ctx context.Context, product model.Product, conn model.Connection) (string, error) {
	query, err := QueryFor(product)
	if err != nil {
		return "", model.FailWrap(model.KindBadConfig, err, "export %s", product.DisplayName())
	}
	return c.Query(ctx, conn, query)
}

// IsClientError recognises sqlcmd's own error output, which starts with
// "Sqlcmd: " for client failures or "Msg " for server messages.
func IsClientError(out string) bool {
	lower := strings.ToLower(strings.TrimLeft(out, "\x00"))
	return strings.HasPrefix(lower, "sqlcmd: ") || strings.HasPrefix(lower, "msg ")
}

// Command renders the sqlcmd invocation for a query. Headers are suppressed,
// columns separated by commas, trailing spaces trimmed and quoted identifiers
// enabled. CR and LF bytes are removed from the result.
func Command(conn model.Connection, query string) (string, error) {
	if conn.InstancePath == "" || conn.Database == "" {
		return "", fmt.Errorf("connection requires instance and database")
	}

	var auth string
	switch conn.Auth {
	case model.AuthIntegrated:
		auth = "-E"
	case model.AuthSQL:
		if conn.User == "" || conn.Password == "" {
			return "", fmt.Errorf("sql authentication requires user and password")
		}
		auth = fmt.Sprintf("-U %s -P %s", quoteArg(conn.User), quoteArg(conn.Password))
	default:
		return "", fmt.Errorf("unknown auth mode %q", conn.Auth)
	}

	cmd := fmt.Sprintf(`%s -d %s -S %s %s -Q %s -h-1 -s"," -w 65535 -W -I`,
		Binary, quoteArg(conn.Database), conn.InstancePath, auth, quoteArg(query))
	return strings.NewReplacer("\r", "", "\n", "").Replace(cmd), nil
}

// quoteArg wraps s in double quotes, doubling embedded quotes.
func quoteArg(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
