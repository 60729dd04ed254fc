package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	devicePath string
	grab       bool
	rate       uint32
	delay      uint32
	logLevel   string
	logRate    int
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "keyrepeat",
	Short: "Synthesize key repeats for a keyboard",
	Long: `Keyrepeat reads key presses and releases from an evdev keyboard, ignoring
the repeats generated by the kernel, and logs the repeats synthesized from the
configured rate and delay.

Flags may also be set in $HOME/.keyrepeat.toml, or via KEYREPEAT_ prefixed
environment variables, e.g. KEYREPEAT_RATE.`,
	PersistentPreRunE: bindFlags,
	RunE:              run,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.keyrepeat.toml)")

	rootCmd.Flags().StringVarP(&devicePath, "device", "d", "", "evdev device path, e.g. /dev/input/event3 (default is the first keyboard found)")
	rootCmd.Flags().BoolVar(&grab, "grab", false, "grab the device, so other programs do not receive its input (Ctrl+C will not reach the terminal)")
	rootCmd.Flags().Uint32Var(&rate, "rate", 33000, "repeat rate, in thousandths, the gap between repeats is rate/1000 ms")
	rootCmd.Flags().Uint32Var(&delay, "delay", 600, "delay before the first repeat, in ms")
	rootCmd.Flags().StringVar(&logLevel, "log-level", logiface.LevelInformational.String(), "log level (trace, debug, info, notice, warning, err, crit, alert, emerg, disabled)")
	rootCmd.Flags().IntVar(&logRate, "log-rate", 5, "maximum repeats logged per second, per key (0 is unlimited)")
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".keyrepeat" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("toml")
		viper.SetConfigName(".keyrepeat")
	}
	// Set environment variable prefix
	viper.SetEnvPrefix("keyrepeat")
	viper.AutomaticEnv()

	// Read config, it is optional
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			fmt.Fprintf(os.Stderr, "keyrepeat: error reading config file: %s\n", err)
			os.Exit(1)
		}
	}
}

// set values to the PFlag variables from config, if they are set. Priority is still given to explicitly provided CLI flags.
func bindFlags(cmd *cobra.Command, _ []string) error {
	var errs []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Since viper does case-insensitive comparisons, we only need to remove the hyphens.
		configName := strings.ReplaceAll(f.Name, "-", "")

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && viper.IsSet(configName) {
			val := viper.Get(configName)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				errs = append(errs, fmt.Errorf("flag %s: config value %v: %w", f.Name, val, err))
			}
		}
	})
	return errors.Join(errs...)
}

// parseLevel accepts the names printed by logiface.Level.String.
func parseLevel(s string) (logiface.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf("invalid log level: %q", s)
}

func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}
