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
	"fmt"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/openms/fixdeps/internal/commands/fixdeps"
	"github.com/openms/fixdeps/internal/config"
	"github.com/openms/fixdeps/internal/deps"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <MACHO>...",
	Short: "Show how the dependencies of Mach-O files would be classified",
	Example: heredoc.Doc(`
		# Show the install name, rpaths and dependencies of a binary
		❯ fixdeps inspect ./bin/app

		# Use otool instead of the builtin parser
		❯ fixdeps inspect --introspector otool ./lib/*.dylib`),
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {

		var intro deps.Introspector
		switch viper.GetString("introspector") {
		case config.IntrospectorOtool:
			intro = deps.NewOtoolIntrospector(viper.GetString("otool"))
		case config.IntrospectorNative, "":
			i, err := deps.NewMachoIntrospector(len(args))
			if err != nil {
				return err
			}
			intro = i
		default:
			return fmt.Errorf("unsupported introspector %q; must be one of: %s, %s",
				viper.GetString("introspector"), config.IntrospectorNative, config.IntrospectorOtool)
		}

		roots := viper.GetStringSlice("system-root")
		if len(roots) == 0 {
			roots = deps.DefaultSystemRoots
		}
		classifier := deps.NewClassifier(afero.NewOsFs(), viper.GetString("path-prefix"), roots...)

		for i, arg := range args {
			if i > 0 {
				fmt.Println()
			}
			if err := fixdeps.Describe(os.Stdout, intro, classifier, filepath.Clean(arg)); err != nil {
				log.WithError(err).Errorf("failed to inspect %s", arg)
			}
		}

		return nil
	},
}
