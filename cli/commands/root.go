package commands

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/satishbabariya/audit-go/cli/internal/ui"
	"github.com/satishbabariya/audit-go/cli/internal/version"
	"github.com/satishbabariya/audit-go/telemetry"
)

var (
	cfgFile       string
	verbose       bool
	noColor       bool
	noTelemetry   bool
	assumeYes     bool
	samplingRate  float64
	excludeModels []string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "auditdemo",
	Short: "Audit logging pipeline demo",
	Long: `auditdemo runs a fixed set of write operations through the audit
interceptor against an in-memory store and reports the audit log rows
each operation produced.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			os.Setenv("NO_COLOR", "1")
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/auditdemo/.auditdemo.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&noTelemetry, "no-telemetry", false, "disable telemetry collection")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.PersistentFlags().Float64Var(&samplingRate, "sampling", 1.0, "audit log sampling rate, 0.0-1.0")
	rootCmd.PersistentFlags().StringSliceVar(&excludeModels, "exclude-model", nil, "model names to exclude from auditing")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))
	viper.BindPFlag("sampling", rootCmd.PersistentFlags().Lookup("sampling"))

	// Add version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print the version number and build information for auditdemo",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			if verbose {
				fmt.Println(info.FullString())
			} else {
				fmt.Println(info.String())
			}
		},
	}

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Loads AUDIT_TELEMETRY_* overrides from a .env file if present;
	// silently does nothing when the file is absent.
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search config in home directory with name ".auditdemo" (without extension).
		home, err := os.UserHomeDir()
		if err != nil {
			ui.PrintError("Failed to get home directory: %v", err)
			os.Exit(1)
		}

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.AddConfigPath(fmt.Sprintf("%s/.config/auditdemo", home))
		viper.SetConfigType("yaml")
		viper.SetConfigName(".auditdemo")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			ui.PrintInfo("Using config file: %s", viper.ConfigFileUsed())
		}
	}
}

func runDemo() error {
	if noTelemetry {
		os.Setenv("AUDIT_TELEMETRY_DISABLED", "1")
	}
	telemetry.InitTelemetry(version.Version, !noTelemetry)
	defer telemetry.Shutdown()

	ui.PrintHeader("audit-go demo", "running seed scenarios against an in-memory store")

	if !assumeYes {
		confirmed := false
		prompt := &survey.Confirm{Message: "Run all demo scenarios now?", Default: true}
		if err := survey.AskOne(prompt, &confirmed); err != nil {
			return err
		}
		if !confirmed {
			ui.PrintWarning("aborted")
			return nil
		}
	}

	mem, ic, err := buildDemoInterceptor()
	if err != nil {
		return err
	}

	scenarioList := scenarios()
	for i, s := range scenarioList {
		ui.PrintStep(i+1, len(scenarioList), s.name)
		if err := runScenario(s, ic, mem); err != nil {
			ui.PrintError("%v", err)
			return err
		}
	}

	ui.PrintSuccess("all scenarios completed")
	return nil
}
