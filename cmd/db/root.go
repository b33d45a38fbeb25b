package db

import (
	"os"

	"github.com/ValentinKolb/dRow/cmd/util"
	"github.com/ValentinKolb/dRow/rpc/client"
	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	database *client.Database

	// DatabaseCommands represents the db command group
	DatabaseCommands = &cobra.Command{
		Use:                "db",
		Short:              "Write rows to a set of nodes",
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: teardownClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the db command
	util.SetupRPCClientFlags(DatabaseCommands)

	DatabaseCommands.PersistentFlags().String("output", "text", util.WrapString("Output format (text, json, yaml)"))
	DatabaseCommands.PersistentFlags().Bool("print-metrics", false, util.WrapString("Print the client metrics in prometheus format after the command"))

	// Add subcommands
	DatabaseCommands.AddCommand(insertCmd)
	DatabaseCommands.AddCommand(deleteCmd)
	DatabaseCommands.AddCommand(healthCmd)
	DatabaseCommands.AddCommand(perfTestCmd)
}

// setupClient creates the database client all subcommands use
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	connector, err := util.GetConnector()
	if err != nil {
		return err
	}

	database, err = client.NewDatabase(config, connector, s)
	return err
}

func teardownClient(_ *cobra.Command, _ []string) error {
	if viper.GetBool("print-metrics") {
		client.WriteMetrics(os.Stdout)
	}
	if database != nil {
		return database.Close()
	}
	return nil
}
