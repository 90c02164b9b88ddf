package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"docchat/internal/client"
	"docchat/internal/tui"
)

func main() {
	_ = godotenv.Load()

	defaultAddr := os.Getenv("DOCCHAT_SERVER_URL")
	if defaultAddr == "" {
		defaultAddr = "http://localhost:8080"
	}

	var (
		serverURL string
		timeout   time.Duration
	)
	flag.StringVar(&serverURL, "server", defaultAddr, "Base URL of the docchat server")
	flag.DurationVar(&timeout, "timeout", 0, "Per-request timeout (0 waits for the server)")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "Usage: docchat [--server=http://localhost:8080] [--timeout=0]")
		flag.PrintDefaults()
	}
	flag.Parse()

	api := client.New(serverURL, timeout)
	p := tea.NewProgram(tui.New(api), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("tui failed: %v", err)
	}
}
