package kit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
)

// ServeMCPLines answers newline-delimited JSON-RPC messages read from r on w
// until r is exhausted or ctx is cancelled. It is the stdio transport of
// `brine mcp`.
func ServeMCPLines(ctx context.Context, srv *server.MCPServer, r io.Reader, w io.Writer, logger *slog.Logger) error {
	ctx = WithTransport(ctx, TransportMCP)
	reader := bufio.NewReader(r)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			line = line[:len(line)-1]
		}
		if len(line) > 0 {
			if werr := answer(ctx, srv, line, w); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			logger.Error("MCP read error", "error", err)
			return fmt.Errorf("read MCP message: %w", err)
		}
	}
}

func answer(ctx context.Context, srv *server.MCPServer, line []byte, w io.Writer) error {
	response := srv.HandleMessage(ctx, json.RawMessage(line))
	if response == nil {
		return nil
	}
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshal MCP response: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write MCP response: %w", err)
	}
	return nil
}
