package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentdeck/agentdeck/internal/actions"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/engine"
	"github.com/agentdeck/agentdeck/internal/httpapi"
	"github.com/agentdeck/agentdeck/internal/mock"
	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/agentdeck/agentdeck/internal/stream"
)

// sessionActions routes the mutating operations: focus goes through the
// tmux/editor path, end goes through the engine so the process cache is
// invalidated and the next result reflects the kill.
type sessionActions struct {
	eng *engine.Engine
	act *actions.Actions
}

func (s sessionActions) FocusSession(pid int, projectPath string) error {
	return s.act.FocusSession(pid, projectPath)
}

func (s sessionActions) EndSession(pid int) error {
	return s.eng.KillSession(pid)
}

func main() {
	configPath := flag.String("config", "agentdeck.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	viewerCmd := flag.String("viewer", "", "Override viewer command")
	mockMode := flag.Bool("mock", false, "Serve synthetic sessions instead of detecting real agents")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *viewerCmd != "" {
		cfg.Viewer.Command = *viewerCmd
	}

	if *mockMode {
		runMock(cfg)
		return
	}

	eng := engine.New(cfg)

	acts := sessionActions{
		eng: eng,
		act: &actions.Actions{
			EditorCommand: cfg.Viewer.EditorCommand,
			Refresh:       eng.TriggerRefresh,
		},
	}

	privacy := cfg.PrivacyFilter()
	broadcaster := httpapi.NewBroadcaster(eng.Latest, privacy, cfg.Server.MaxWSConnections)
	eng.Subscribe(broadcaster.BroadcastResult)

	var viewer *stream.Viewer
	if cfg.Viewer.Command != "" {
		viewer, err = stream.LaunchViewer(cfg.Viewer.Command, acts, eng.DiffStats)
		if err != nil {
			log.Fatalf("Failed to launch viewer: %v", err)
		}
		eng.Subscribe(func(res session.SessionsResult) {
			if err := viewer.Publish(res); err != nil {
				log.Printf("[main] viewer publish: %v", err)
			}
		})
		// Periodic re-push so a viewer that missed a line (or launched
		// mid-pass) converges without waiting for the next change.
		if cfg.Viewer.PushInterval > 0 {
			go func() {
				ticker := time.NewTicker(cfg.Viewer.PushInterval)
				defer ticker.Stop()
				for range ticker.C {
					if res, ok := eng.Latest(); ok {
						if err := viewer.Publish(res); err != nil {
							return
						}
					}
				}
			}()
		}
	}

	eng.Start()

	server := httpapi.NewServer(eng, acts, broadcaster, privacy, cfg.Server.Token)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		eng.Stop()
		if viewer != nil {
			viewer.Close()
		}
		os.Exit(0)
	}()

	if err := httpapi.ListenAndServe(cfg.Server.Host, cfg.Server.Port, server.Handler()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runMock serves scripted sessions so the frontend and viewer can be
// developed without any agent processes running.
func runMock(cfg *config.Config) {
	log.Println("[main] mock mode: serving synthetic sessions")

	gen := mock.NewGenerator()

	privacy := cfg.PrivacyFilter()
	broadcaster := httpapi.NewBroadcaster(gen.Latest, privacy, cfg.Server.MaxWSConnections)
	gen.Subscribe(broadcaster.BroadcastResult)
	gen.Start()

	server := httpapi.NewServer(gen, gen, broadcaster, privacy, cfg.Server.Token)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		gen.Stop()
		os.Exit(0)
	}()

	if err := httpapi.ListenAndServe(cfg.Server.Host, cfg.Server.Port, server.Handler()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
