package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/retrylife/remoteplayers/internal/config"
	"github.com/retrylife/remoteplayers/internal/links"
)

// --- integration ---

var integrationCmd = &cobra.Command{
	Use:   "integration",
	Short: "Show or toggle waypoint integration",
}

func setIntegration(enabled bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openLinks()
		if err != nil {
			return err
		}
		defer closeFn()

		if err := store.SetIntegrationEnabled(enabled); err != nil {
			return fmt.Errorf("saving integration flag: %w", err)
		}
		if enabled {
			printSuccess("Waypoint integration enabled")
		} else {
			printSuccess("Waypoint integration disabled")
		}
		return nil
	}
}

var integrationEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable waypoint integration",
	Args:  cobra.NoArgs,
	RunE:  setIntegration(true),
}

var integrationDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable waypoint integration",
	Args:  cobra.NoArgs,
	RunE:  setIntegration(false),
}

var integrationStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print whether waypoint integration is enabled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openLinks()
		if err != nil {
			return err
		}
		defer closeFn()

		enabled, err := store.IntegrationEnabled()
		if err != nil {
			return fmt.Errorf("reading integration flag: %w", err)
		}
		if enabled {
			fmt.Fprintln(cmd.OutOrStdout(), "enabled")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "disabled")
		}
		return nil
	},
}

func init() {
	integrationCmd.AddCommand(integrationEnableCmd)
	integrationCmd.AddCommand(integrationDisableCmd)
	integrationCmd.AddCommand(integrationStatusCmd)
}

// --- link ---

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage the Dynmap linked to each server",
	Long: `Manage the Dynmap linked to each server.

Examples:
  remoteplayers link set survival https://map.example.com
  remoteplayers link show survival
  remoteplayers link remove survival`,
}

var linkSetCmd = &cobra.Command{
	Use:   "set <server> <url>",
	Short: "Link a server to a Dynmap URL",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, url := args[0], args[1]

		store, closeFn, err := openLinks()
		if err != nil {
			return err
		}
		defer closeFn()

		if err := store.SetLinkedServiceURL(server, url); err != nil {
			return fmt.Errorf("saving link: %w", err)
		}
		printSuccess("Linked %s -> %s", server, url)
		return nil
	},
}

var linkShowCmd = &cobra.Command{
	Use:   "show <server>",
	Short: "Print the Dynmap URL linked to a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openLinks()
		if err != nil {
			return err
		}
		defer closeFn()

		url, ok, err := store.LinkedServiceURL(args[0])
		if err != nil {
			return fmt.Errorf("reading link: %w", err)
		}
		if !ok {
			return fmt.Errorf("no map linked to server %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	},
}

var linkRemoveCmd = &cobra.Command{
	Use:     "remove <server>",
	Aliases: []string{"rm", "unlink"},
	Short:   "Remove the Dynmap link from a server",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openLinks()
		if err != nil {
			return err
		}
		defer closeFn()

		had, err := store.HasLinkedService(args[0])
		if err != nil {
			return fmt.Errorf("reading link: %w", err)
		}
		if err := store.UnlinkService(args[0]); err != nil {
			return fmt.Errorf("removing link: %w", err)
		}
		if had {
			printSuccess("Unlinked %s", args[0])
		} else {
			printWarning("%s had no map linked", args[0])
		}
		return nil
	},
}

var linkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every server with a linked Dynmap",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openLinks()
		if err != nil {
			return err
		}
		defer closeFn()

		all, err := store.Links()
		if err != nil {
			return fmt.Errorf("listing links: %w", err)
		}
		if len(all) == 0 {
			printWarning("No servers linked.")
			return nil
		}
		printLinks(cmd.OutOrStdout(), all)
		return nil
	},
}

func init() {
	linkCmd.AddCommand(linkSetCmd)
	linkCmd.AddCommand(linkShowCmd)
	linkCmd.AddCommand(linkRemoveCmd)
	linkCmd.AddCommand(linkListCmd)
}

// --- export ---

type exportDoc struct {
	IntegrationEnabled bool         `json:"integration_enabled" yaml:"integration_enabled"`
	Links              []links.Link `json:"links" yaml:"links"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the integration flag and every link",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		if format != "json" && format != "yaml" {
			return fmt.Errorf("unsupported format %q (want json or yaml)", format)
		}

		store, closeFn, err := openLinks()
		if err != nil {
			return err
		}
		defer closeFn()

		var doc exportDoc
		if doc.IntegrationEnabled, err = store.IntegrationEnabled(); err != nil {
			return fmt.Errorf("reading integration flag: %w", err)
		}
		if doc.Links, err = store.Links(); err != nil {
			return fmt.Errorf("listing links: %w", err)
		}
		if doc.Links == nil {
			doc.Links = []links.Link{}
		}

		var w io.Writer = cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		if err := writeExport(w, format, doc); err != nil {
			return err
		}
		if output != "" {
			printSuccess("Exported %d links to %s", len(doc.Links), output)
		}
		return nil
	},
}

func writeExport(w io.Writer, format string, doc exportDoc) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func init() {
	exportCmd.Flags().String("format", "json", "output format: json or yaml")
	exportCmd.Flags().String("output", "", "output file path (default: stdout)")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		settings, err := openSettings()
		if err != nil {
			return err
		}
		defer settings.Close()

		if err := settings.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the local API bearer token, generating it if needed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		settings, err := openSettings()
		if err != nil {
			return err
		}
		defer settings.Close()

		token, err := settings.APIToken(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configTokenCmd)
}
