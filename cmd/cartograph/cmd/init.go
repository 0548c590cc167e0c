package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cartograph-dev/cartograph/configs"
	"github.com/cartograph-dev/cartograph/internal/config"
	"github.com/cartograph-dev/cartograph/internal/output"
)

// mcpServerEntry is one server in a .mcp.json registration file.
type mcpServerEntry struct {
	Type    string   `json:"type,omitempty"`
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

type mcpRegistry struct {
	MCPServers map[string]mcpServerEntry `json:"mcpServers"`
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write project configuration and MCP registration",
		Long: `Initialize Cartograph for the current project.

Writes a commented .cartograph.yaml template to the project root and
registers the server in .mcp.json so MCP clients pick it up. Existing
files are left alone unless --force is given.`,
		Example: `  # Initialize in the current project
  cartograph init

  # Overwrite an existing configuration
  cartograph init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration files")
	return cmd
}

func runInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	root, err := config.FindProjectRoot(".")
	if err != nil {
		return err
	}

	wrote, err := writeProjectConfig(root, force)
	if err != nil {
		return err
	}
	if wrote {
		out.Success("wrote %s", config.ConfigFileName)
	} else {
		out.Printf("%s already exists, use --force to overwrite", config.ConfigFileName)
	}

	wrote, err = registerMCPServer(root, force)
	if err != nil {
		return err
	}
	if wrote {
		out.Success("registered cartograph in .mcp.json")
	} else {
		out.Println("cartograph already registered in .mcp.json")
	}

	out.Println("")
	out.Println("Run 'cartograph index' to build the index, or restart your MCP client.")
	return nil
}

func writeProjectConfig(root string, force bool) (bool, error) {
	path := filepath.Join(root, config.ConfigFileName)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", config.ConfigFileName, err)
	}
	return true, nil
}

// registerMCPServer adds a cartograph entry to .mcp.json, preserving any
// servers already registered there.
func registerMCPServer(root string, force bool) (bool, error) {
	path := filepath.Join(root, ".mcp.json")

	reg := mcpRegistry{MCPServers: make(map[string]mcpServerEntry)}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &reg); err != nil {
			return false, fmt.Errorf("failed to parse existing .mcp.json: %w", err)
		}
		if reg.MCPServers == nil {
			reg.MCPServers = make(map[string]mcpServerEntry)
		}
	}

	if _, ok := reg.MCPServers["cartograph"]; ok && !force {
		return false, nil
	}

	reg.MCPServers["cartograph"] = mcpServerEntry{
		Type:    "stdio",
		Command: "cartograph",
		Args:    []string{"serve"},
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return false, fmt.Errorf("failed to write .mcp.json: %w", err)
	}
	return true, nil
}
