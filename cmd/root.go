package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	inventorycmd "github.com/tallycam/tallycam-go/cmd/inventory"
	"github.com/tallycam/tallycam-go/cmd/scan"
	"github.com/tallycam/tallycam-go/cmd/serve"
	"github.com/tallycam/tallycam-go/cmd/sessions"
	"github.com/tallycam/tallycam-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tallycam",
		Short: "TallyCam inventory cataloging CLI",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		scan.Command(settings),
		sessions.Command(settings),
		inventorycmd.Command(settings),
		serve.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Parse the command line flags
		if err := cmd.Flags().Parse(args); err != nil {
			return err
		}

		// Sync the settings struct with viper so command-line arguments
		// take precedence over config file and environment values.
		if err := viper.Unmarshal(settings); err != nil {
			return fmt.Errorf("error syncing flags with settings: %w", err)
		}
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Main.DataDir, "datadir", viper.GetString("main.datadir"), "Base directory for stores, photos and logs")
	rootCmd.PersistentFlags().StringVar(&settings.Vision.APIKey, "vision-key", viper.GetString("vision.apikey"), "Vision endpoint API key")

	for flag, key := range map[string]string{
		"debug":      "debug",
		"datadir":    "main.datadir",
		"vision-key": "vision.apikey",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
