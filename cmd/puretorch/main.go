// Command puretorch is a maintenance CLI for the pure-torch runtime:
// it pre-fetches the native shim, reports versions and inspects
// serialized script modules.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tensorware/pure-torch/torch"
)

var cliVersion = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	libPath     string
	shimVersion string
	cacheDir    string
}

func (g *globalFlags) bootstrapOptions() []torch.BootstrapOption {
	var opts []torch.BootstrapOption
	if g.libPath != "" {
		opts = append(opts, torch.WithLibraryPath(g.libPath))
	}
	if g.shimVersion != "" {
		opts = append(opts, torch.WithVersion(g.shimVersion))
	}
	if g.cacheDir != "" {
		opts = append(opts, torch.WithCacheDir(g.cacheDir))
	}
	return opts
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "puretorch",
		Short:         "Manage the pure-torch native runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.libPath, "lib-path", "", "path to an existing native shim library")
	root.PersistentFlags().StringVar(&flags.shimVersion, "shim-version", "", "native shim version to download")
	root.PersistentFlags().StringVar(&flags.cacheDir, "cache-dir", "", "directory to cache downloaded shims in")

	root.AddCommand(newVersionCmd(flags))
	root.AddCommand(newBootstrapCmd(flags))
	root.AddCommand(newInspectCmd(flags))
	return root
}

func newVersionCmd(flags *globalFlags) *cobra.Command {
	var native bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version, and optionally the native runtime version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "puretorch %s\n", cliVersion)
			if !native {
				return nil
			}

			if err := torch.InitializeWithBootstrap(flags.bootstrapOptions()...); err != nil {
				return errors.Wrap(err, "initializing native runtime")
			}
			defer func() { _ = torch.Teardown() }()

			version, err := torch.Version()
			if err != nil {
				return errors.Wrap(err, "querying native version")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "native runtime %s\n", version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&native, "native", false, "also load the native shim and print its version")
	return cmd
}

func newBootstrapCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Download the native shim into the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := torch.EnsureSharedLibrary(flags.bootstrapOptions()...)
			if err != nil {
				return errors.Wrap(err, "fetching native shim")
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newInspectCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <module.pt>",
		Short: "Load a script module and list its parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := torch.InitializeWithBootstrap(flags.bootstrapOptions()...); err != nil {
				return errors.Wrap(err, "initializing native runtime")
			}
			defer func() { _ = torch.Teardown() }()

			module, err := torch.LoadScriptModule(args[0], torch.CPU)
			if err != nil {
				return errors.Wrapf(err, "loading %s", args[0])
			}
			defer func() { _ = module.Close() }()

			params, err := module.NamedParameters()
			if err != nil {
				return errors.Wrap(err, "listing parameters")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d parameters\n", args[0], len(params))
			for _, p := range params {
				shape, err := p.Tensor.Shape()
				if err != nil {
					return errors.Wrapf(err, "reading shape of %s", p.Name)
				}
				dtype, err := p.Tensor.Dtype()
				if err != nil {
					return errors.Wrapf(err, "reading dtype of %s", p.Name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %-40s %-8s %v\n", p.Name, dtype, []int64(shape))
				_ = p.Tensor.Close()
			}
			return nil
		},
	}
}
