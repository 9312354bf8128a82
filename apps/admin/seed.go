package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/fieldpro/storage/seed"
)

func (cli *commandLine) seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo data (or a YAML seed file) into the configured storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := seed.Load(file)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			repos, closeRepos, err := cli.repos(ctx)
			if err != nil {
				return err
			}
			defer closeRepos()

			res, err := seed.Apply(ctx, seed.Target{
				Users:      repos.Users,
				Businesses: repos.Businesses,
				Customers:  repos.Customers,
				Products:   repos.Products,
			}, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d businesses, %d users, %d customers, %d products\n",
				res.Businesses, res.Users, res.Customers, res.Products)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "a YAML seed file, the demo data when empty")
	return cmd
}
