// Command api serves the APIM KubeAPI façade and runs its maintenance tasks.
package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/VEEP09/xc-test-apim/internal/config"
	"github.com/VEEP09/xc-test-apim/internal/logger"
	"github.com/VEEP09/xc-test-apim/internal/version"
)

const rootDescription = `
apim-kubeapi manages NGINX ingress resources for the API management portal.
IP access policies are written to the cluster and to the policy database;
failed dual writes are journalled and repaired by the reconcile sweep.
`

func newRootCmd(stdout io.Writer) *cobra.Command {
	serve := newServeCmd()

	cmd := &cobra.Command{
		Use:          version.Name,
		Short:        "NGINX APIM KubeAPI service",
		Long:         rootDescription,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         serve.RunE,
	}
	cmd.SetOut(stdout)
	cmd.AddCommand(
		serve,
		newReconcileCmd(stdout),
		newVersionCmd(stdout),
	)
	return cmd
}

// setupLogging sends log output to stdout and a rotating file under cfg.LogDir.
// The file is skipped when the directory cannot be created.
func setupLogging(cfg config.Config) {
	out := io.Writer(os.Stdout)
	if err := os.MkdirAll(cfg.LogDir, 0o755); err == nil {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, version.Name+".log"),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	logger.Init(cfg.Debug, out)
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
