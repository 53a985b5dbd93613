// Command blurtd drives the acoustic 802.11a PHY end to end: send a
// file over the speakers, listen for one over the microphone, or run
// the websocket monitor server the teacher's web UI talks to.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sdrmodem/blurt80211/internal/audio"
	"github.com/sdrmodem/blurt80211/internal/config"
	"github.com/sdrmodem/blurt80211/internal/phy"
	"github.com/sdrmodem/blurt80211/internal/server"
	"github.com/sdrmodem/blurt80211/internal/transport"
)

func main() {
	cfg := config.Default()
	config.RegisterFlags(flag.CommandLine, &cfg)

	mode := flag.String("mode", "serve", "operation: serve, send, receive")
	file := flag.String("file", "", "path to the file to send (mode=send)")
	addr := flag.String("addr", "0.0.0.0:8080", "monitor server address (mode=serve)")
	uploadDir := flag.String("upload-dir", "./uploads", "upload directory (mode=serve)")
	receiveDir := flag.String("receive-dir", "./received", "receive directory (mode=serve or receive)")
	listDevices := flag.Bool("list-devices", false, "list audio devices and exit")
	flag.Parse()

	if err := audio.Init(); err != nil {
		log.Fatalf("Failed to initialize PortAudio: %v", err)
	}
	defer audio.Terminate()

	if *listDevices {
		if err := audio.PrintDevices(); err != nil {
			log.Fatalf("Failed to list devices: %v", err)
		}
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		audio.Terminate()
		os.Exit(0)
	}()

	switch *mode {
	case "send":
		runSend(cfg, *file)
	case "receive":
		runReceive(cfg, *receiveDir)
	case "serve":
		runServe(cfg, *addr, *uploadDir, *receiveDir)
	default:
		log.Fatalf("unknown -mode %q (want serve, send, or receive)", *mode)
	}
}

func runSend(cfg config.Config, file string) {
	if file == "" {
		log.Fatal("-file is required for -mode=send")
	}

	ao := audio.NewAudioIO(cfg.Channel)
	if err := ao.OpenOutput(); err != nil {
		log.Fatalf("open output: %v", err)
	}
	defer ao.Close()
	if err := ao.StartOutput(); err != nil {
		log.Fatalf("start output: %v", err)
	}

	tx := phy.NewTransmitter(cfg.Channel)
	err := transport.SendFileWithProgress(tx, ao, file, cfg.Rate, func(done, total int, status string) {
		log.Printf("%s (%d/%d)", status, done, total)
	})
	if err != nil {
		log.Fatalf("send: %v", err)
	}
}

func runReceive(cfg config.Config, receiveDir string) {
	os.MkdirAll(receiveDir, 0755)

	ai := audio.NewAudioIO(cfg.Channel)
	if err := ai.OpenInput(); err != nil {
		log.Fatalf("open input: %v", err)
	}
	defer ai.Close()
	if err := ai.StartInput(); err != nil {
		log.Fatalf("start input: %v", err)
	}

	rx := phy.NewReceiver(cfg.Channel, cfg.MTU)
	frames := make(chan phy.Frame, 32)

	go func() {
		defer close(frames)
		deadline := time.Now().Add(2 * time.Minute)
		for time.Now().Before(deadline) {
			chunk, err := ai.Read()
			if err != nil {
				log.Printf("audio read: %v", err)
				return
			}
			for _, f := range rx.Feed(chunk, time.Now()) {
				log.Printf("decoded frame: %d bytes, SNR %.1f dB", len(f.Payload), f.SNRdB)
				frames <- f
			}
		}
	}()

	outPath := fmt.Sprintf("%s/received-%d.bin", receiveDir, time.Now().UnixNano())
	outFile, err := os.Create(outPath)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	defer outFile.Close()

	meta, err := transport.ReceiveFileWithProgress(frames, outFile, func(done, total int, status string) {
		log.Printf("%s (%d/%d)", status, done, total)
	})
	if err != nil {
		log.Fatalf("receive: %v", err)
	}
	log.Printf("received %s (%d bytes)", meta.Filename, meta.Size)
}

func runServe(cfg config.Config, addr, uploadDir, receiveDir string) {
	os.MkdirAll(uploadDir, 0755)
	os.MkdirAll(receiveDir, 0755)

	handlers := server.NewHandlers(cfg, uploadDir, receiveDir)
	srv := server.NewServer(addr, handlers, "./web/static")

	if err := srv.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
