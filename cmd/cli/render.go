package cli

import (
	"github.com/spf13/cobra"

	"github.com/anstrom/topodraw/internal/pipeline"
)

var renderStore bool

// renderCmd represents the render command.
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render an nmap XML report as a draw.io diagram",
	Long: `Render reads an nmap XML report (nmap -sV --traceroute -oX) and writes a
draw.io diagram. Hosts are grouped into one box per hop distance; every
distinct service gets a table of the addresses and ports it was seen on.

Use "-" for standard input or output. A file output is replaced only when
the run succeeds.`,
	Example: `  topodraw render --input scan.xml --output network.drawio
  nmap -sV --traceroute -oX - 192.168.1.0/24 | topodraw render > network.drawio
  topodraw render -i scan.xml -o network.drawio --skip-incomplete --resolve
  topodraw render -i scan.xml -o network.drawio --store`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("input", "i", "", "nmap XML report, - for stdin")
	renderCmd.Flags().StringP("output", "o", "", "diagram file, - for stdout")
	renderCmd.Flags().Bool("skip-incomplete", false, "skip services without name or product instead of failing")
	renderCmd.Flags().Bool("resolve", false, "add reverse DNS names for hosts without hostnames")
	renderCmd.Flags().String("metrics-textfile", "", "write Prometheus metrics to this file after the run")
	renderCmd.Flags().BoolVar(&renderStore, "store", false, "save the run to the configured database")
}

func runRender(cmd *cobra.Command, _ []string) error {
	bindFlags(cmd, map[string]string{
		"input":            "input",
		"output":           "output",
		"skip-incomplete":  "services.skip_incomplete",
		"resolve":          "resolve.enabled",
		"metrics-textfile": "metrics.textfile",
	})

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	d, err := setup(ctx, cfg, renderStore)
	if err != nil {
		return err
	}
	defer d.Close()
	defer d.flushMetrics()

	return pipeline.New(d.rendererOptions()...).RenderFile(ctx, cfg.Input, cfg.Output)
}
