// localfs-server is the file tool server: a JSON-RPC 2.0 peer on stdin and
// stdout, sandboxed to the directory given by --root-dir.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amilabs/orchestrator/internal/config"
	"github.com/amilabs/orchestrator/internal/logging"
	"github.com/amilabs/orchestrator/localfs"
)

func main() {
	rootDir := ""

	cmd := &cobra.Command{
		Use:           "localfs-server",
		Short:         "File manipulation tool server over stdio",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(rootDir)
		},
	}
	cmd.Flags().StringVar(&rootDir, "root-dir", ".", "Root directory for file operations")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(rootDir string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return fmt.Errorf("resolve root dir %q: %w", rootDir, err)
	}

	logger, closeLog, err := logging.New(absRoot, logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer closeLog()

	fsys := afero.NewOsFs()
	types, err := loadFileTypes(fsys, logger)
	if err != nil {
		return err
	}
	validator := localfs.NewValidator(types,
		localfs.WithValidatorTimeout(cfg.ValidatorTimeout),
		localfs.WithValidatorLogger(logger.Named("validator")),
	)

	ws, err := localfs.NewWorkspace(fsys, absRoot,
		localfs.WithMaxFileSize(cfg.MaxFileSize),
		localfs.WithWorkspaceLogger(logger.Named("workspace")),
		localfs.WithValidator(validator),
	)
	if err != nil {
		return err
	}

	server := localfs.NewServer(ws, localfs.WithServerLogger(logger.Named("server")))
	return server.Run(os.Stdin, os.Stdout)
}

// loadFileTypes prefers a filetypes.csv next to the executable and falls
// back to the table embedded in the binary.
func loadFileTypes(fsys afero.Fs, logger *zap.Logger) (localfs.FileTypes, error) {
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), "filetypes.csv")
		if ok, _ := afero.Exists(fsys, sibling); ok {
			types, err := localfs.LoadFileTypes(fsys, sibling)
			if err != nil {
				return nil, err
			}
			logger.Info("loaded file types", zap.String("path", sibling), zap.Int("entries", len(types)))
			return types, nil
		}
	}
	return localfs.DefaultFileTypes()
}
