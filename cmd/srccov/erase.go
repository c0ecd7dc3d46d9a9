package main

import (
	"github.com/spf13/cobra"

	"github.com/jupierce/source-coverage/pkg/data"
)

func newEraseCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "erase",
		Short: "Delete the data file and any parallel data files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			logger, err := g.newLogger(cmd)
			if err != nil {
				return err
			}
			defer logger.Close()

			parallel, err := data.FindParallelFiles(cfg.DataFile)
			if err != nil {
				return err
			}
			for _, p := range append([]string{cfg.DataFile}, parallel...) {
				if err := data.Erase(p); err != nil {
					return err
				}
				logger.Debug("erased %s", p)
			}
			return nil
		},
	}
}
