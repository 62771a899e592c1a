package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/posture.report/internal/api"
	"github.com/banshee-data/posture.report/internal/pipeline"
	"github.com/banshee-data/posture.report/internal/posestream"
	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/store"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	common := addCommonFlags(fs)
	listen := fs.String("listen", ":8080", "Listen address")
	name := fs.String("name", "", "Session name")
	serialPort := fs.String("serial", "", "Serial device streaming JSON-lines landmarks (overrides config)")
	baud := fs.Int("baud", 0, "Serial baud rate (overrides config)")
	dbPath := fs.String("db", "", "SQLite database for sessions (overrides config)")
	outputDir := fs.String("output-dir", "", "Directory for session reports (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.config()
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "serial":
			cfg.SerialPort = serialPort
		case "baud":
			cfg.SerialBaudRate = baud
		case "db":
			cfg.DatabasePath = dbPath
		case "output-dir":
			cfg.OutputDir = outputDir
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	settings, err := settingsFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec, err := session.NewRecorder(session.Options{
		OutputDir:         cfg.GetOutputDir(),
		Name:              *name,
		BufferSize:        cfg.GetRecentBufferSize(),
		HighRiskThreshold: cfg.GetHighRiskThreshold(),
	})
	if err != nil {
		return err
	}
	defer rec.Close()
	csvPath, err := rec.StartRecording("")
	if err != nil {
		return err
	}
	log.Printf("recording frames to %s", csvPath)

	sinks := []pipeline.Sink{rec}
	var st *store.Store
	if path := cfg.GetDatabasePath(); path != "" {
		if st, err = store.Open(path); err != nil {
			return err
		}
		defer st.Close()
		sess, err := st.CreateSession(ctx, store.Session{
			ID: rec.ID(), Name: rec.Name(), Mode: settings.Mode, Params: settings.Params, StartedAt: rec.StartedAt(),
		})
		if err != nil {
			return err
		}
		sinks = append(sinks, pipeline.NewStoreSink(ctx, st, sess.ID))
		defer func() {
			if err := st.FinishSession(context.Background(), sess.ID, time.Now()); err != nil {
				log.Printf("failed to finish session: %v", err)
			}
		}()
	}

	analyzer, err := pipeline.NewAnalyzer(pipeline.Options{
		MinVisibility: cfg.GetMinVisibility(),
		EveryN:        cfg.GetProcessEveryNFrames(),
		Settings:      settings,
		Sinks:         sinks,
	})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	var stream *posestream.Stream
	if port := cfg.GetSerialPort(); port != "" {
		stream, err = posestream.OpenSerial(port, posestream.PortOptions{BaudRate: cfg.GetSerialBaudRate()})
		if err != nil {
			return err
		}
		defer stream.Close()

		// subscribe before monitoring so no early frame is missed
		id, frames := stream.Subscribe()
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := stream.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor pose stream: %v", err)
			}
			log.Print("monitor routine terminated")
		}()
		go func() {
			defer wg.Done()
			defer stream.Unsubscribe(id)
			if err := analyzer.Run(ctx, frames); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("analyzer stopped: %v", err)
			}
			log.Print("analyzer routine terminated")
		}()
	}

	srv := api.NewServer(api.Options{Analyzer: analyzer, Recorder: rec, Store: st, Stream: stream})
	mux := http.NewServeMux()
	if err := srv.AttachAdminRoutes(mux); err != nil {
		return err
	}
	mux.Handle("/", srv.Handler())

	server := &http.Server{
		Addr:              *listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if stream != nil {
		stream.Close()
	}
	wg.Wait()

	// The CSV log is still open, so SaveAll leaves it alone.
	paths, err := rec.SaveAll("")
	if err != nil {
		return err
	}
	for k, p := range paths {
		log.Printf("saved %s report to %s", k, p)
	}
	log.Printf("Graceful shutdown complete")
	return nil
}
