package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/topodraw/internal/inventory"
	"github.com/anstrom/topodraw/internal/pipeline"
)

const maxBindingsShown = 6

// servicesCmd represents the services command.
var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the service tables of a scan report",
	Long: `Services aggregates the services of an nmap XML report exactly as render
does and prints one row per distinct service with the addresses it runs on.`,
	Example: `  topodraw services --input scan.xml
  topodraw services -i scan.xml --skip-incomplete`,
	RunE: runServices,
}

// hostsCmd represents the hosts command.
var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List the hosts of a scan report by hop distance",
	Long: `Hosts prints every host of an nmap XML report grouped by hop distance,
with the items render would draw for it.`,
	Example: `  topodraw hosts --input scan.xml
  topodraw hosts -i scan.xml --resolve`,
	RunE: runHosts,
}

func init() {
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(hostsCmd)

	servicesCmd.Flags().StringP("input", "i", "", "nmap XML report, - for stdin")
	servicesCmd.Flags().Bool("skip-incomplete", false, "skip services without name or product instead of failing")

	hostsCmd.Flags().StringP("input", "i", "", "nmap XML report, - for stdin")
	hostsCmd.Flags().Bool("resolve", false, "add reverse DNS names for hosts without hostnames")
}

func analyzeInput() (*pipeline.Inventory, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	ctx, cancel := signalContext()
	defer cancel()

	d, err := setup(ctx, cfg, false)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	return pipeline.New(d.rendererOptions()...).AnalyzeFile(ctx, cfg.Input)
}

func runServices(cmd *cobra.Command, _ []string) error {
	bindFlags(cmd, map[string]string{
		"input":           "input",
		"skip-incomplete": "services.skip_incomplete",
	})

	inv, err := analyzeInput()
	if err != nil {
		return err
	}
	return displayServicesTable(cmd.OutOrStdout(), inv.Tables)
}

func runHosts(cmd *cobra.Command, _ []string) error {
	bindFlags(cmd, map[string]string{
		"input":   "input",
		"resolve": "resolve.enabled",
	})

	inv, err := analyzeInput()
	if err != nil {
		return err
	}
	return displayHostsTable(cmd.OutOrStdout(), inv.Clusters)
}

// displayServicesTable prints one row per service table.
func displayServicesTable(w io.Writer, tables *inventory.Tables) error {
	table := tablewriter.NewWriter(w)
	table.Header("Service", "Product", "Version", "Extra", "Hosts", "Bindings")

	for i := range tables.Services {
		t := &tables.Services[i]
		extra := ""
		if t.ExtraInfo != nil {
			extra = *t.ExtraInfo
		}
		if err := table.Append([]string{
			t.Name,
			t.Product,
			t.VersionOr("unknown"),
			extra,
			strconv.Itoa(len(t.Bindings)),
			formatBindings(t.Bindings),
		}); err != nil {
			return err
		}
	}

	if err := table.Render(); err != nil {
		return err
	}
	if n := tables.Skipped(); n > 0 {
		fmt.Fprintf(w, "%d incomplete services skipped\n", n)
	}
	return nil
}

// formatBindings lists the first bindings as ip:port and counts the rest.
func formatBindings(bindings []inventory.Binding) string {
	shown := bindings
	if len(shown) > maxBindingsShown {
		shown = shown[:maxBindingsShown]
	}

	parts := make([]string, 0, len(shown)+1)
	for _, b := range shown {
		parts = append(parts, b.IP+":"+strconv.Itoa(int(b.Port)))
	}
	if rest := len(bindings) - len(shown); rest > 0 {
		parts = append(parts, fmt.Sprintf("(+%d more)", rest))
	}
	return strings.Join(parts, " ")
}

// displayHostsTable prints one row per host, clusters in distance order.
func displayHostsTable(w io.Writer, clusters []inventory.Cluster) error {
	table := tablewriter.NewWriter(w)
	table.Header("Distance", "Address", "Names", "Ports", "OS")

	for _, c := range clusters {
		for _, h := range c.Hosts {
			ports := make([]string, 0, len(h.Ports))
			for _, p := range h.Ports {
				ports = append(ports, strconv.Itoa(int(p.Number))+"/"+p.Protocol)
			}
			os := "-"
			if h.OS != nil {
				os = *h.OS
			}
			if err := table.Append([]string{
				strconv.Itoa(c.Distance),
				h.PrimaryAddress(),
				strings.Join(h.Hostnames, ", "),
				strings.Join(ports, ", "),
				os,
			}); err != nil {
				return err
			}
		}
	}
	return table.Render()
}
