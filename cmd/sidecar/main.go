// Package main provides the Sidecar terminal coding assistant. It
// hosts the session engine behind a line-based chat loop: the model's
// streamed output and tool activity print as they happen, and slash
// commands control the session.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sidecardev/sidecar/pkg/config"
	"github.com/sidecardev/sidecar/pkg/session"
	"github.com/sidecardev/sidecar/pkg/types"
)

const version = "0.1.0"

// Config holds the command line configuration.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	ProjectDir  string
	ShowVersion bool
}

func main() {
	cfg := parseFlags()

	if cfg.ShowVersion {
		fmt.Printf("Sidecar v%s\n", version)
		return
	}

	if err := run(cfg); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Provider, "provider", "", "Model provider: openai, anthropic, or deepseek (default: the stored active provider)")
	flag.StringVar(&cfg.Model, "model", "", "Model to use (default: the provider's default)")
	flag.StringVar(&cfg.BaseURL, "base-url", "", "Provider endpoint URL (for compatible APIs)")
	flag.StringVar(&cfg.APIKey, "api-key", os.Getenv("SIDECAR_API_KEY"), "Provider API key (or set SIDECAR_API_KEY)")
	flag.StringVar(&cfg.ProjectDir, "project", ".", "Project directory the assistant works in")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Sidecar - a terminal coding assistant\n\n")
		fmt.Fprintf(os.Stderr, "Usage: sidecar [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  SIDECAR_API_KEY    Provider API key\n")
		fmt.Fprintf(os.Stderr, "\nChat commands:\n")
		fmt.Fprintf(os.Stderr, "  /cancel    stop the in-flight turn\n")
		fmt.Fprintf(os.Stderr, "  /clear     drop the conversation history\n")
		fmt.Fprintf(os.Stderr, "  /quit      exit\n")
	}

	flag.Parse()
	return cfg
}

// resolveConfig merges flags over the stored configuration.
func resolveConfig(cfg *Config) (config.ProviderConfig, error) {
	store, err := config.NewFileStore("")
	if err != nil {
		return config.ProviderConfig{}, err
	}

	var provider config.ProviderConfig
	if cfg.Provider != "" {
		stored, ok := store.Provider(cfg.Provider)
		if !ok {
			if !config.IsSupported(cfg.Provider) {
				return config.ProviderConfig{}, types.NewError(types.ErrConfiguration, "unsupported provider %q", cfg.Provider)
			}
			stored = config.New(cfg.Provider)
		}
		stored.Provider = cfg.Provider
		provider = stored
	} else {
		provider, err = store.ActiveConfig()
		if err != nil {
			return config.ProviderConfig{}, err
		}
	}

	if cfg.Model != "" {
		provider.Model = cfg.Model
	}
	if cfg.BaseURL != "" {
		provider.BaseURL = cfg.BaseURL
	}
	if cfg.APIKey != "" {
		provider.APIKey = cfg.APIKey
	}
	return provider.WithDefaults(), nil
}

func run(cfg *Config) error {
	provider, err := resolveConfig(cfg)
	if err != nil {
		return err
	}
	if err := provider.Validate(); err != nil {
		return err
	}

	manager, err := session.NewManager()
	if err != nil {
		return err
	}
	if err := manager.ProjectOpened(cfg.ProjectDir); err != nil {
		return fmt.Errorf("cannot open project: %w", err)
	}
	defer manager.ProjectClosed()

	s := manager.Create(provider)
	defer manager.Destroy(s.ID())

	// Ctrl-C cancels the in-flight turn instead of killing the process;
	// a second Ctrl-C while idle exits via the closed stdin loop below.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigChan {
			s.CancelTurn()
		}
	}()

	root, _ := manager.Guard().Root()
	fmt.Printf("Sidecar v%s\n", version)
	fmt.Printf("Project: %s\n", root)
	fmt.Printf("Provider: %s (%s)\n", provider.Provider, provider.Model)
	fmt.Println("\nType a message, or /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			fmt.Println("Goodbye!")
			return nil
		case "/cancel":
			s.CancelTurn()
			continue
		case "/clear":
			if err := s.ClearHistory(); err != nil {
				fmt.Printf("! %v\n", err)
			} else {
				fmt.Println("History cleared.")
			}
			continue
		}

		if err := s.SendUserMessage(line); err != nil {
			fmt.Printf("! %v\n", err)
			continue
		}
		drainTurn(s)
	}
}

// drainTurn prints the turn's events until the terminal one.
func drainTurn(s *session.Session) {
	for event := range s.Events() {
		switch event.Type {
		case types.EventTypeDelta:
			fmt.Print(event.Content)
		case types.EventTypeToolInvoked:
			fmt.Printf("\n[tool] %s %v\n", event.ToolName, event.ToolArgs)
		case types.EventTypeToolResult:
			if event.IsError {
				fmt.Printf("[tool] %s failed: %s\n", event.ToolName, event.Content)
			} else {
				fmt.Printf("[tool] %s ok\n", event.ToolName)
			}
		case types.EventTypeCompleted:
			fmt.Println()
			if event.Usage != nil {
				fmt.Printf("(%d tokens)\n", event.Usage.TotalTokens)
			}
			return
		case types.EventTypeFailed:
			fmt.Printf("\n! turn failed (%s): %s\n", event.ErrorKind, event.Content)
			return
		case types.EventTypeCancelled:
			fmt.Println("\n(cancelled)")
			return
		}
	}
}
