// Package cli implements the assetctl command line tool.
package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"assetapi/internal/client"
)

const serverEnv = "ASSETCTL_SERVER"

type options struct {
	server  string
	timeout time.Duration
}

func (o *options) client() *client.Client {
	return client.New(o.server, o.timeout)
}

// NewRootCommand builds the assetctl command tree. Output goes to the command's
// configured writer, set with SetOut.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "assetctl",
		Short: "Upload and manage design assets",
		Long: `assetctl talks to the asset API.

Examples:
  assetctl upload logo.svg hero.png intro.json
  assetctl list --kind image --limit 20
  assetctl get 1700000000000-k3j9x2ab1
  assetctl delete 1700000000000-k3j9x2ab1`,
		SilenceUsage: true,
	}

	server := os.Getenv(serverEnv)
	if server == "" {
		server = client.DefaultServer
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "API base URL (env "+serverEnv+")")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "Request timeout")

	root.AddCommand(
		newUploadCmd(opts),
		newListCmd(opts),
		newGetCmd(opts),
		newDeleteCmd(opts),
	)
	return root
}

// Execute runs the command tree against the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
