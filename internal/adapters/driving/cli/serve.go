package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/submittal-review/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/submittal-review/internal/adapters/driving/mcp"
	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/logger"
	"github.com/custodia-labs/submittal-review/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr     string
	serveWatch    bool
	serveMCP      bool
	serveDebounce time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review API",
	Long: `Starts the HTTP review API:

  POST /api/review   review a submittal (JSON body: type, description, specifications)
  GET  /api/health   knowledge base readiness
  /mcp               MCP streamable HTTP transport (with --mcp)

The knowledge base is loaded or built once at startup. With --watch, changes
to the standards corpus trigger a background rebuild; the current index keeps
serving until the new one is ready.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "rebuild the index when the corpus changes")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "also serve the MCP streamable HTTP transport at /mcp")
	serveCmd.Flags().DurationVar(&serveDebounce, "debounce", watcher.DefaultDebounce, "quiet period before a watch rebuild")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger.SetTimestamps(true)
	defer logger.SetTimestamps(false)

	svc, settings, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	if err := startKnowledge(cmd, svc); err != nil {
		return err
	}

	server, err := httpapi.NewServer(svc.Knowledge, svc.Review)
	if err != nil {
		return err
	}
	if serveMCP {
		mcpServer, err := mcp.NewServer(&mcp.Ports{Review: svc.Review, Knowledge: svc.Knowledge})
		if err != nil {
			return err
		}
		server.Mount("/mcp", mcpServer.Handler())
	}

	if serveWatch {
		w, err := watcher.New(settings.CorpusDir, svc.Knowledge, serveDebounce)
		if err != nil {
			return fmt.Errorf("watch corpus: %w", err)
		}
		defer w.Close()
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("Corpus watcher stopped: %v", err)
			}
		}()
	}

	addr := settings.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	cmd.Printf("Review API listening on %s\n", addr)
	return server.Run(ctx, addr, shutdownTimeout)
}

// startKnowledge loads or builds the knowledge base once at startup.
// A missing corpus is fatal; other failures leave the server degraded so
// health checks can report them.
func startKnowledge(cmd *cobra.Command, svc *Services) error {
	status, err := svc.Knowledge.GetOrBuild(cmd.Context())
	switch {
	case err == nil:
		logger.Info("Knowledge base ready: %d chunks from %d documents", status.ChunkCount, status.DocumentCount)
		return nil
	case errors.Is(err, domain.ErrCorpusNotFound):
		return err
	default:
		logger.Error("Knowledge base unavailable, serving degraded: %v", err)
		return nil
	}
}
