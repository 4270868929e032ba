package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/bubble-tools-mcp/internal/config"
	"github.com/ironsheep/bubble-tools-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := os.Getenv("BUBBLE_MCP_CONFIG")
	writePath := ""

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version", "-v", "version":
			fmt.Printf("bubble-tools-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printUsage()
			return
		case "--config", "-c":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a path")
				os.Exit(2)
			}
			i++
			configPath = args[i]
		case "--write-config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--write-config requires a path")
				os.Exit(2)
			}
			i++
			writePath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown option: %s\n", args[i])
			printUsage()
			os.Exit(2)
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if level := os.Getenv("BUBBLE_MCP_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if writePath != "" {
		if err := config.SaveConfig(cfg, writePath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Wrote configuration to %s\n", writePath)
		return
	}

	if cfg.Debug() {
		log.Printf("Bubble MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
		if configPath != "" {
			log.Printf("Config: %s", configPath)
		}
	}

	server.Version = Version
	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printUsage() {
	fmt.Println("bubble-tools-mcp - MCP server for bubble size analysis and mass-transfer correlation")
	fmt.Println()
	fmt.Println("Usage: bubble-tools-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config, -c PATH      YAML configuration file (defaults apply when missing)")
	fmt.Println("  --write-config PATH    Write the effective configuration as YAML and exit")
	fmt.Println("  --version, -v          Print version information")
	fmt.Println("  --help, -h             Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  BUBBLE_MCP_CONFIG=PATH       Configuration file, overridden by --config")
	fmt.Println("  BUBBLE_MCP_LOG_LEVEL=debug   Enable debug logging")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}
