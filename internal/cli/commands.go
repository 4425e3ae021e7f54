package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"assetapi/internal/ingest"
)

func newUploadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload one or more files as a single batch",
		Long: `Upload files in one request. The batch is accepted or rejected as a whole.

Each part is declared by extension (svg, png, jpg, webp, json, gltf, glb; obj,
fbx, stl and other 3D formats as application/octet-stream), otherwise by its
sniffed content type.

Accepted types: ` + strings.Join(ingest.AllowedTypes(), ", "),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.client().Upload(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
}

func newListCmd(opts *options) *cobra.Command {
	var (
		kind   string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List catalogued assets, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client().List(cmd.Context(), kind, limit, offset)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind: image, vector, animation, model or data")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (server default 10, max 100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a)
		},
	}
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an asset, its thumbnail and its catalog entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
