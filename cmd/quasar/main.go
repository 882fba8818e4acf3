// Command quasar is the master/worker process supervisor's entrypoint,
// a single re-exec'd binary that behaves as master when started
// normally and as a worker when started with the internal --worker-fd
// flag (see master.spawnCohort).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oriys/quasar/internal/proctitle"
)

var (
	configPath  string
	testConfig  bool
	workerFD    int
	metricsPort int
)

func main() {
	proctitle.Init()

	rootCmd := &cobra.Command{
		Use:   "quasar",
		Short: "quasar - master/worker process supervisor",
		Long:  "quasar supervises a cycle of configuration, listeners, and worker processes, hot-upgrading the binary in place without dropping a connection.",
		RunE:  runRoot,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/quasar/quasar.yaml", "Path to configuration file")
	rootCmd.Flags().BoolVarP(&testConfig, "test-config", "t", false, "Test the configuration file and exit")
	rootCmd.Flags().IntVar(&workerFD, "worker-fd", 0, "internal: run as a worker attached to inherited control-channel fd N")
	rootCmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "internal: loopback port this worker serves /metrics on")
	rootCmd.Flags().MarkHidden("worker-fd")
	rootCmd.Flags().MarkHidden("metrics-port")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	if testConfig {
		return runTestConfig()
	}
	if workerFD > 0 {
		return runWorker()
	}
	return runMaster()
}
