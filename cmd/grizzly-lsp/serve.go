package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/urfave/cli/v3"

	"github.com/Biometria-se/grizzly-lsp/lsp"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the language server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "stdio",
				Usage: "communicate over stdin/stdout (default)",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "socket",
				Usage: "communicate over a TCP socket at host:port instead of stdio",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "socket host, combined with --port when --socket is not given (not applied to a --socket value)",
				Value: "127.0.0.1",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "socket port; setting it without --socket serves over TCP at host:port (not applied to a --socket value)",
				Value: 7658,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "debug-level logging",
			},
			&cli.BoolFlag{
				Name:  "embedded",
				Usage: "assume the editor manages environment provisioning; skip install prompts",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cmd.Bool("verbose") {
		level.SetLevel(zapcore.DebugLevel)
	}

	// Editors spawning serve over stdio almost always set cwd to the
	// workspace root; there is no RootURI to consult yet since Initialize
	// hasn't run, and the stdio transport leaves stderr free for logging.
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving workspace: %w", err)
	}

	logger, err := newLogger(level, workspace)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	embedded := cmd.Bool("embedded")

	addr := cmd.String("socket")
	if addr == "" && cmd.IsSet("port") {
		addr = fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	}

	if addr == "" {
		logger.Info("starting grizzly-lsp over stdio")
		return serveOne(ctx, logger, level, embedded, &stdioReadWriteCloser{os.Stdin, os.Stdout})
	}

	logger.Info("starting grizzly-lsp over socket", zap.String("addr", addr))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	defer listener.Close()

	conn, err := listener.Accept()
	if err != nil {
		return fmt.Errorf("accepting connection: %w", err)
	}

	return serveOne(ctx, logger, level, embedded, conn)
}

// serveOne runs exactly one LSP session over rwc until the client
// disconnects or the connection is closed. level lets the workspace's
// .grizzly.yaml log_level override --verbose once Initialize loads it;
// embedded skips virtual-environment provisioning entirely.
func serveOne(ctx context.Context, logger *zap.Logger, level zap.AtomicLevel, embedded bool, rwc io.ReadWriteCloser) error {
	stream := jsonrpc2.NewStream(rwc)
	conn := jsonrpc2.NewConn(stream)
	client := protocol.ClientDispatcher(conn, logger)
	server := lsp.NewServer(client, logger, lsp.WithLogLevel(&level), lsp.WithEmbedded(embedded))

	conn.Go(ctx, protocol.ServerHandler(server, nil))

	<-conn.Done()

	return conn.Err()
}

// stdioReadWriteCloser wraps the process's stdin/stdout into the single
// io.ReadWriteCloser jsonrpc2 expects. Closing it closes stdout; stdin, the
// editor's side of the pipe, is left for the OS to reclaim on exit.
type stdioReadWriteCloser struct {
	io.Reader
	io.Writer
}

func (rwc *stdioReadWriteCloser) Close() error {
	if c, ok := rwc.Writer.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
