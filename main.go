// femtoctl is the daemon that owns one FemtoFiber laser: it opens the serial
// connection, records every bus exchange to a sqlite transcript, serves the
// HTTP control API, and optionally publishes retained status over MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/photonics-data/femtoctl/internal/api"
	"github.com/photonics-data/femtoctl/internal/config"
	"github.com/photonics-data/femtoctl/internal/db"
	"github.com/photonics-data/femtoctl/internal/instbus"
	"github.com/photonics-data/femtoctl/internal/mqttpub"
	"github.com/photonics-data/femtoctl/internal/version"
	"github.com/photonics-data/femtoctl/lasers"
	"github.com/photonics-data/femtoctl/lasers/femtoferb"
)

var (
	devMode    = flag.Bool("dev", false, "Run against an in-memory laser simulator instead of real hardware")
	serialPort = flag.String("serial-port", "", "Serial port of the laser, e.g. /dev/ttyUSB0")
	listen     = flag.String("listen", "", "HTTP listen address")
	dbPath     = flag.String("db", "", "Path to the sqlite transcript database")
	mqttBroker = flag.String("mqtt", "", "MQTT broker URL for status publishing, e.g. mqtt://localhost:1883")
	configPath = flag.String("config", "", "Path to a JSON config file")
)

func loadConfig() *config.Config {
	// .env values become environment variables before ApplyEnv reads them.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	// Flags win over env and file.
	if *serialPort != "" {
		cfg.SerialPort = *serialPort
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *mqttBroker != "" {
		cfg.MQTTBroker = *mqttBroker
	}
	return cfg
}

func main() {
	flag.Parse()
	log.Printf("femtoctl %s starting", version.String())

	cfg := loadConfig()
	if !*devMode && cfg.SerialPort == "" {
		log.Fatal("a serial port is required (use -serial-port, FEMTOCTL_SERIAL_PORT, or the config file)")
	}

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open transcript database: %v", err)
	}
	defer store.Close()

	sessionPort := cfg.SerialPort
	if *devMode {
		sessionPort = "simulator"
	}
	sessionID, err := store.BeginSession(sessionPort)
	if err != nil {
		log.Fatalf("failed to begin session: %v", err)
	}
	recorder := &db.SessionRecorder{DB: store, SessionID: sessionID}

	var laser lasers.Laser
	if *devMode {
		laser, _ = femtoferb.NewSimulated(instbus.WithRecorder(recorder))
		log.Print("running against the laser simulator")
	} else {
		laser, err = lasers.Open(lasers.Params{
			femtoferb.PortParam: cfg.SerialPort,
		}, instbus.WithRecorder(recorder))
		if err != nil {
			log.Fatalf("failed to open laser: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []api.Option{api.WithStore(store, sessionID)}

	var publisher *mqttpub.Publisher
	if cfg.MQTTBroker != "" {
		publisher, err = mqttpub.Connect(ctx, cfg.MQTTBroker, "femtoctl-"+sessionID[:8], cfg.MQTTTopic)
		if err != nil {
			log.Fatalf("failed to connect to mqtt broker: %v", err)
		}
		opts = append(opts, api.WithNotify(func(status api.Status) {
			if err := publisher.Publish(ctx, status); err != nil {
				log.Printf("failed to publish status: %v", err)
			}
		}))
	}

	server := api.NewServer(laser, opts...)
	e := server.Echo()

	go func() {
		if err := e.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Best effort: leave the bench dark before releasing the connection.
	if err := laser.TurnOff(); err != nil {
		log.Printf("failed to turn laser off on shutdown: %v", err)
	}
	if err := laser.Close(); err != nil {
		log.Printf("failed to close laser connection: %v", err)
	}

	if publisher != nil {
		if err := publisher.Close(shutdownCtx); err != nil {
			log.Printf("mqtt disconnect error: %v", err)
		}
	}

	if err := store.EndSession(sessionID); err != nil {
		log.Printf("failed to end session: %v", err)
	}
	log.Print("graceful shutdown complete")
}
