package main

import (
	"fmt"
	"strings"

	"RestJSON/internal/model"
	"RestJSON/internal/router"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load and link every resource, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		reg, err := loadRegistry(cfg)
		if err != nil {
			return err
		}
		if _, err := model.LoadLocales(cfg.LocalesDir, cfg.Locale); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok: %d resources (%s)\n", len(reg.Names()), strings.Join(reg.Names(), ", "))
		return nil
	},
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the routes of every resource",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		reg, err := loadRegistry(cfg)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, name := range reg.Names() {
			res, _ := reg.Get(name)
			for _, rt := range router.Routes(cfg.APIPrefix) {
				fmt.Fprintf(out, "%-7s %-40s %s#%s\n", rt.Method, strings.Replace(rt.Path, "{resource}", name, 1), name, rt.Action)
			}
			for _, action := range res.QueryActions() {
				fmt.Fprintf(out, "%-7s %-40s %s#%s\n", "GET", cfg.APIPrefix+"/"+name+"/"+action, name, action)
			}
		}
		return nil
	},
}
