// Command vistabled runs the vistable dashboard service.
package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("VISTABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "vistabled",
		Short:         "vistable dashboard service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().String("sqlite-path", "vistable.db", "path to the sqlite database file")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	bindFlags(v, cmd.PersistentFlags(), "sqlite-path", "log-level")

	cmd.AddCommand(newServeCommand(v))
	cmd.AddCommand(newMigrateCommand(v))
	return cmd
}

// bindFlags binds the named flags to viper so each one can also be set
// through a VISTABLE_ environment variable.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, names ...string) {
	for _, name := range names {
		if err := v.BindPFlag(name, fs.Lookup(name)); err != nil {
			panic(err)
		}
	}
}
