package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/service-portal/internal/api/dto"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and print a bearer token for PORTAL_API_TOKEN",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.api.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "logged in as %s (%s), token expires %s\n",
				resp.User.Name, resp.User.Role, time.Unix(resp.ExpiresAt, 0).Format(time.RFC3339))
			fmt.Fprintf(out, "export PORTAL_API_TOKEN=%s\n", resp.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newOutletsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outlets",
		Short: "List the outlets of the current account",
		RunE: func(cmd *cobra.Command, args []string) error {
			outlets, err := a.api.ListOutlets(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tADDRESS")
			for _, o := range outlets {
				fmt.Fprintf(w, "%s\t%s\t%s\n", o.ID, o.Name, o.Address)
			}
			return w.Flush()
		},
	}

	var req dto.CreateOutletRequest
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a new outlet",
		RunE: func(cmd *cobra.Command, args []string) error {
			outlet, err := a.api.CreateOutlet(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created outlet %s (%s)\n", outlet.Name, outlet.ID)
			return nil
		},
	}
	add.Flags().StringVar(&req.Name, "name", "", "outlet name")
	add.Flags().StringVar(&req.Address, "address", "", "street address")
	add.Flags().Float64Var(&req.Location.Lat, "lat", 0, "latitude")
	add.Flags().Float64Var(&req.Location.Lng, "lng", 0, "longitude")
	_ = add.MarkFlagRequired("name")
	cmd.AddCommand(add)
	return cmd
}
