package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/condep/condep/pkg/config"
	"github.com/condep/condep/pkg/engine"
	"github.com/condep/condep/pkg/paths"
)

// maxCatalogSize bounds a downloaded catalog.
const maxCatalogSize = 1 << 20

func newInstallCommand() *cobra.Command {
	var (
		file     string
		url      string
		hardcode bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install a profile catalog",
		Long: `Validate a profile catalog and install it as the active one.

The catalog is written to --catalog when given, otherwise to
$CONDEP_CATALOG or $XDG_CONFIG_HOME/condep/catalog.cue. An invalid catalog
is reported with its positions and nothing is written.`,
		Example: `  # Install a catalog kept in the project
  condep install --file ./condep.cue

  # Install a shared team catalog
  condep install --url https://example.com/condep/catalog.cue

  # Restore the built-in PocketBook catalog
  condep install --hardcode`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				name string
				data []byte
				err  error
			)
			switch {
			case hardcode:
				name, data = config.BuiltinName, config.BuiltinSource()
			case url != "":
				name = url
				data, err = download(ctx, url)
			default:
				name = file
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return engine.NewFatalError("failed to read the catalog", err).
					WithOp("install").
					WithSubject(name).
					WithCode(engine.ErrCodeCatalogInvalid)
			}

			dest := catalogPath
			if dest == "" {
				dest = paths.CatalogPath()
			}
			ws, err := installCatalog(name, data, dest)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s to %s (%d targets)\n", name, dest, len(ws.Catalog.Targets))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog file to install")
	cmd.Flags().StringVar(&url, "url", "", "URL to download the catalog from")
	cmd.Flags().BoolVar(&hardcode, "hardcode", false, "install the built-in catalog")
	cmd.MarkFlagsMutuallyExclusive("file", "url", "hardcode")
	cmd.MarkFlagsOneRequired("file", "url", "hardcode")

	return cmd
}

// installCatalog validates data and writes it to dest.
func installCatalog(name string, data []byte, dest string) (*config.Workspace, error) {
	loader, err := config.NewLoader()
	if err != nil {
		return nil, err
	}
	ws, err := loader.Parse(name, data)
	if err != nil {
		return nil, catalogError(name, err)
	}

	if err := paths.EnsureDir(dest); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".catalog-*.cue")
	if err != nil {
		return nil, fmt.Errorf("failed to install catalog: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to install catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to install catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return nil, fmt.Errorf("failed to install catalog: %w", err)
	}

	log.Debug().Str("source", name).Str("path", dest).Msg("Catalog installed")
	return ws, nil
}

func download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxCatalogSize {
		return nil, fmt.Errorf("catalog larger than %d bytes", maxCatalogSize)
	}
	return data, nil
}
