package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qrs-ai/roadscan/internal/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive configuration wizard",
		Long:  "Guides you through setting up roadscan: choose a backend, enter its endpoint or API key, and save the config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			return runInit(os.Stdin, os.Stdout, path)
		},
	}
}

type wizardChoice struct {
	name    string
	local   bool
	keyHint string
}

var wizardProviders = []wizardChoice{
	{name: "llamacpp", local: true},
	{name: "ollama", local: true},
	{name: "openai", keyHint: "OPENAI_API_KEY"},
	{name: "anthropic", keyHint: "ANTHROPIC_API_KEY"},
	{name: "gemini", keyHint: "GEMINI_API_KEY"},
}

func runInit(in io.Reader, out io.Writer, configPath string) error {
	reader := bufio.NewReader(in)
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		s, _ := reader.ReadString('\n')
		return strings.TrimSpace(s)
	}

	fmt.Fprintln(out, "Welcome to the roadscan configuration wizard!")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Available backends:")
	for i, p := range wizardProviders {
		kind := "hosted"
		if p.local {
			kind = "local"
		}
		fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, p.name, kind)
	}

	selected := wizardProviders[0]
	if input := ask(fmt.Sprintf("\nSelect backend (1-%d) [1]: ", len(wizardProviders))); input != "" {
		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(wizardProviders) {
			return fmt.Errorf("invalid selection %q", input)
		}
		selected = wizardProviders[n-1]
	}
	fmt.Fprintf(out, "Selected: %s\n\n", selected.name)

	var pc config.ProviderConfig
	if selected.local {
		def := config.KnownProviderBaseURLs[selected.name]
		pc.BaseURL = ask(fmt.Sprintf("Server URL [%s]: ", def))
	} else {
		pc.APIKey = ask(fmt.Sprintf("Enter API key for %s (or leave empty to use %s): ", selected.name, selected.keyHint))
	}
	pc.Model = ask(fmt.Sprintf("Model [%s]: ", config.KnownProviderModels[selected.name]))

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "\nConfig file already exists at %s\n", configPath)
		if answer := ask("Update provider settings in place? [y/N]: "); strings.ToLower(answer) != "y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := config.SaveProviderToFile(configPath, selected.name, pc); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nConfig saved to %s\n", configPath)
	fmt.Fprintln(out, "You can now run: roadscan status && roadscan scan")
	return nil
}
