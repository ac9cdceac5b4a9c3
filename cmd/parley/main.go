package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parleyvoice/parley/internal/config"
	"github.com/parleyvoice/parley/internal/log"
	"github.com/parleyvoice/parley/internal/relay"
	"github.com/parleyvoice/parley/internal/wsclient"
	"github.com/parleyvoice/parley/pkg/audio/wav"
	"github.com/parleyvoice/parley/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - voice conversation sessions over speech and chat providers",
	Long: `parley runs voice conversation sessions: captured speech is transcribed,
answered by a chat model as one agent or a roster of meeting personas, and
spoken back. The serve command hosts the credential-holding relay; the
session command drives a conversation against a running relay.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Info())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log.Init(cfg.LogLevel)
		logger := log.L()

		if err := cfg.ValidateServer(); err != nil {
			return err
		}

		srv, err := relay.New(relay.Config{
			Port:           cfg.Port,
			DeepgramAPIKey: cfg.DeepgramAPIKey,
			OpenAIAPIKey:   cfg.OpenAIAPIKey,
			Voice:          cfg.Voice,
			SystemPrompt:   cfg.SystemPrompt,
			AllRespond:     cfg.AllRespond,
			MaxUtterance:   cfg.MaxUtterance,
			SilenceTimeout: cfg.SilenceTimeout,
			Logger:         logger,
		})
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Listen() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			logger.Info("shutting down")
			return srv.Shutdown()
		}
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run a conversation session against a relay from a WAV recording",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log.Init(cfg.LogLevel)
		logger := log.L()

		relayURL, _ := cmd.Flags().GetString("relay")
		mode, _ := cmd.Flags().GetString("mode")
		audioPath, _ := cmd.Flags().GetString("audio")
		outDir, _ := cmd.Flags().GetString("out")
		voice, _ := cmd.Flags().GetString("voice")
		allRespond, _ := cmd.Flags().GetBool("all-respond")

		if relayURL == "" {
			relayURL = cfg.RelayURL
		}
		if audioPath == "" {
			return fmt.Errorf("--audio is required")
		}
		if mode != "solo" && mode != "meeting" {
			return fmt.Errorf("--mode must be solo or meeting")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return runSession(ctx, sessionOptions{
			relayURL:   relayURL,
			mode:       mode,
			audioPath:  audioPath,
			outDir:     outDir,
			voice:      voice,
			allRespond: allRespond,
		}, logger)
	},
}

type sessionOptions struct {
	relayURL   string
	mode       string
	audioPath  string
	outDir     string
	voice      string
	allRespond bool
}

const frameDuration = 100 * time.Millisecond

// runSession streams the recording to the gateway as live capture, prints
// the conversation as it unfolds, and stores each spoken reply under the
// output directory.
func runSession(ctx context.Context, opts sessionOptions, logger *slog.Logger) error {
	data, err := os.ReadFile(opts.audioPath)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	pcm, format, err := wav.Decode(data)
	if err != nil {
		return fmt.Errorf("decode audio: %w", err)
	}
	if format.SampleRate != 16000 || format.NumChannels != 1 {
		return fmt.Errorf("audio must be 16kHz mono PCM, got %d Hz %d channel(s)",
			format.SampleRate, format.NumChannels)
	}

	params := url.Values{}
	if opts.voice != "" {
		params.Set("voice", opts.voice)
	}
	if opts.mode == "meeting" {
		params.Set("all_respond", strconv.FormatBool(opts.allRespond))
	}

	client := wsclient.New(opts.relayURL, logger)
	if err := client.Connect(ctx, opts.mode, params); err != nil {
		return err
	}
	defer client.Close()

	// Unblock the read loop when the context is cancelled.
	go func() {
		<-ctx.Done()
		client.Stop()
		client.Close()
	}()

	if err := client.Start(); err != nil {
		return err
	}

	// Stream the recording as 100ms live frames alongside the event loop.
	go func() {
		frameBytes := 2 * 16000 * int(frameDuration.Milliseconds()) / 1000
		for off := 0; off < len(pcm); off += frameBytes {
			end := off + frameBytes
			if end > len(pcm) {
				end = len(pcm)
			}
			if err := client.SendAudio(pcm[off:end]); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(frameDuration):
			}
		}
	}()

	replies := 0
	turns := 0
	for {
		ev, audioData, err := client.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if audioData != nil {
			replies++
			if opts.outDir != "" {
				name := filepath.Join(opts.outDir, fmt.Sprintf("reply-%03d.mp3", replies))
				if err := os.WriteFile(name, audioData, 0o644); err != nil {
					logger.Warn("save reply failed", slog.String("error", err.Error()))
				} else {
					fmt.Printf("  [saved %s]\n", name)
				}
			}
			if err := client.PlaybackDone(); err != nil {
				return err
			}
			continue
		}

		switch ev.Type {
		case "ready":
			logger.Info("session ready", slog.String("id", ev.Session))
		case "status":
			fmt.Printf("-- %s\n", ev.Label)
			// Once the conversation has come back around to listening,
			// the recording is spent; wrap up.
			if ev.Phase == "listening" && turns > 1 {
				if err := client.Stop(); err != nil {
					return err
				}
			}
			if ev.Phase == "idle" && turns > 0 {
				return nil
			}
		case "turn":
			turns++
			fmt.Printf("%s: %s\n", ev.Participant, ev.Text)
		case "error":
			return fmt.Errorf("session error: %s", ev.Message)
		}
	}
}

func main() {
	sessionCmd.Flags().String("relay", "", "relay base URL (defaults to PARLEY_RELAY_URL)")
	sessionCmd.Flags().String("mode", "solo", "session mode: solo or meeting")
	sessionCmd.Flags().String("audio", "", "path to a 16kHz mono WAV recording to speak")
	sessionCmd.Flags().String("out", "", "directory to save spoken replies into")
	sessionCmd.Flags().String("voice", "", "solo synthesis voice")
	sessionCmd.Flags().Bool("all-respond", true, "meeting mode: every persona replies each turn")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
