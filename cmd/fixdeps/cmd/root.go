/*
Copyright © 2018-2023 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	"github.com/caarlos0/ctrlc"
	"github.com/openms/fixdeps/internal/colors"
	"github.com/openms/fixdeps/internal/commands/fixdeps"
	"github.com/openms/fixdeps/internal/config"
	"github.com/openms/fixdeps/internal/deps"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// Verbose boolean flag for verbose logging
	Verbose bool
	// Color boolean flag for colorized output
	Color bool
	// AppVersion stores the plugin's version
	AppVersion string
	// AppBuildTime stores the plugin's build time
	AppBuildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fixdeps",
	Short: "Bundle the non-system dependencies of macOS binaries and make their load paths relative",
	Example: heredoc.Doc(`
		# Copy everything the binaries in ./bin need into ./lib
		❯ fixdeps --bin-path ./bin --lib-path ./lib

		# Also fix plugins that are loaded by a host application
		❯ fixdeps --bin-path ./bin --lib-path ./lib --plugin-path ./plugins

		# Only rewrite references, do not copy anything
		❯ fixdeps --bin-path ./bin --no-copy`),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("verbose") {
			log.SetLevel(log.DebugLevel)
		}
		if cmd.Flags().Changed("color") || viper.IsSet("color") {
			c := viper.GetBool("color")
			colors.Init(&c)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {

		conf, err := config.LoadConfig()
		if err != nil {
			if errors.Is(err, config.ErrMissingPath) {
				cmd.Usage()
			}
			return err
		}

		fx, err := fixdeps.New(conf)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var st *deps.State
		if err := ctrlc.Default.Run(ctx, func() error {
			var err error
			st, err = fx.Run(ctx)
			return err
		}); err != nil {
			if errors.As(err, &ctrlc.ErrorCtrlC{}) {
				log.Warn("Interrupted, the library directory may be incomplete")
				return nil
			}
			return err
		}

		fixdeps.PrintSummary(os.Stdout, &st.Summary)

		if err := fx.WriteOutputs(st); err != nil {
			log.WithError(err).Error("failed to write outputs")
		}

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihander.Default)

	cobra.OnInitialize(initConfig)

	// Persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/fixdeps/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&Color, "color", false, "colorize output")
	rootCmd.PersistentFlags().String("path-prefix", config.DefaultPathPrefix, "Prefix for rewritten load paths")
	rootCmd.PersistentFlags().String("introspector", config.IntrospectorNative, "How to read load commands (native, otool)")
	rootCmd.PersistentFlags().String("otool", "otool", "otool binary used by --introspector=otool")
	rootCmd.PersistentFlags().StringArray("system-root", nil, "Directory prefix whose libraries are never bundled (repeatable)")
	rootCmd.RegisterFlagCompletionFunc("introspector", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{config.IntrospectorNative, config.IntrospectorOtool}, cobra.ShellCompDirectiveNoFileComp
	})
	for _, name := range []string{"verbose", "color", "path-prefix", "introspector", "otool", "system-root"} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
	viper.BindEnv("color", "CLICOLOR")

	// Flags
	rootCmd.Flags().StringP("lib-path", "l", "", "Directory the libraries are copied to (and fixed in)")
	rootCmd.Flags().StringP("bin-path", "b", "", "Directory of the binaries to fix")
	rootCmd.Flags().StringP("plugin-path", "p", "", "Directory of plugins to fix (loader relative references)")
	rootCmd.Flags().Bool("no-auto-relative", false, "Do not append the offset from --bin-path to --lib-path to the prefix")
	rootCmd.Flags().Bool("extract-from-framework", false, "Copy only the binary out of framework bundles")
	rootCmd.Flags().Bool("no-copy", false, "Rewrite references to bare library names without copying anything")
	rootCmd.Flags().String("install-name-tool", "install_name_tool", "install_name_tool binary")
	rootCmd.Flags().String("report", "", "Write a YAML summary of the run to this file")
	rootCmd.Flags().String("dot", "", "Write the dependency graph in graphviz format to this file")
	rootCmd.MarkFlagDirname("lib-path")
	rootCmd.MarkFlagDirname("bin-path")
	rootCmd.MarkFlagDirname("plugin-path")
	for _, name := range []string{
		"lib-path", "bin-path", "plugin-path", "no-auto-relative", "extract-from-framework",
		"no-copy", "install-name-tool", "report", "dot",
	} {
		viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}

	// Settings
	rootCmd.Version = AppVersion
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(filepath.Join(home, ".config", "fixdeps"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("fixdeps")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
