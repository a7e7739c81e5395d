package cmd

import (
	"errors"
	"fmt"

	"github.com/loteraa/verifier/src/utils/model"
	"github.com/loteraa/verifier/src/utils/monitoring"
	"github.com/loteraa/verifier/src/verify"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify <dataset-id>",
	Short: "Run the verification of a single pending dataset right away",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		db, err := model.NewConnection(applicationCtx, conf, "verify-cmd")
		if err != nil {
			return
		}
		defer func() {
			sqlDB, dbErr := db.DB()
			if dbErr == nil {
				sqlDB.Close()
			}
		}()

		store := verify.NewStore(db)
		dataset, err := store.GetDataset(applicationCtx, args[0])
		if err != nil {
			return
		}
		if dataset == nil {
			return errors.New("dataset not found")
		}

		outcome := verify.NewWorkflow(conf).
			WithStore(store).
			WithMonitor(monitoring.NewMonitor(conf)).
			Run(applicationCtx, dataset.ID, dataset.UserID)

		fmt.Fprintln(cmd.OutOrStdout(), outcome)
		return
	},
}
