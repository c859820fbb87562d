package cmd

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/snowball-gateway/pkg/normalize"
	"github.com/Sternrassler/snowball-gateway/pkg/snowball"
	"github.com/spf13/cobra"
)

var (
	callProfile string
	callRaw     bool
	callOutput  string
)

var callCmd = &cobra.Command{
	Use:   "call <operation> [key=value ...]",
	Short: "Invoke one operation and print the result",
	Long: `Invoke one catalog operation through the gateway and print the result.

Arguments are given as key=value pairs; run "ops" to list operations and
their parameters.

Examples:
  snowball-gateway call quotec stock_code=SH600000
  snowball-gateway call kline stock_code=SZ000002 period=week count=52
  snowball-gateway call income stock_code=SH600519 --output json
  snowball-gateway call fund_detail fund_code=110011 --raw`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&callProfile, "profile", "", `normalization profile ("none" for timestamps only; default: the operation's own)`)
	callCmd.Flags().BoolVar(&callRaw, "raw", false, "print the upstream payload without normalization")
	callCmd.Flags().StringVarP(&callOutput, "output", "o", formatTable, "output format: table or json")
}

func runCall(cmd *cobra.Command, args []string) error {
	name := args[0]
	spec, ok := snowball.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q (run \"ops\" for the list)", snowball.ErrUnknownOperation, name)
	}

	if callOutput != formatTable && callOutput != formatJSON {
		return fmt.Errorf("unsupported output format: %s", callOutput)
	}

	kv, err := parseArgs(args[1:])
	if err != nil {
		return err
	}
	op, err := snowball.BuildOperation(name, kv)
	if err != nil {
		return err
	}

	profile := spec.Profile
	if cmd.Flags().Changed("profile") {
		if profile, err = normalize.ParseProfile(callProfile); err != nil {
			return err
		}
	}

	stack, err := bootstrap(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	out := cmd.OutOrStdout()
	if callRaw {
		payload, err := stack.gateway.Fetch(cmd.Context(), op)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(payload))
		return err
	}

	result, err := stack.gateway.Invoke(cmd.Context(), op, profile)
	if err != nil {
		return err
	}
	return renderResult(out, result, callOutput)
}

// parseArgs turns key=value pairs into operation arguments.
func parseArgs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q is not key=value", p)
		}
		out[k] = v
	}
	return out, nil
}
