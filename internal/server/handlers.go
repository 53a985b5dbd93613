package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sdrmodem/blurt80211/internal/audio"
	"github.com/sdrmodem/blurt80211/internal/config"
	"github.com/sdrmodem/blurt80211/internal/phy"
	"github.com/sdrmodem/blurt80211/internal/transport"
)

// receiveTimeout bounds how long HandleReceiveStart's background
// capture loop waits for one complete file transfer before giving up.
const receiveTimeout = 60 * time.Second

// Handlers holds the HTTP API handlers. Unlike the teacher's version
// (built around a persistent protocol.Session/ARQ transport), each
// send/receive request here opens its own short-lived phy.Transmitter
// or phy.Receiver plus audio.AudioIO, and progress/decode-status
// events go out over wsHub instead of being returned synchronously —
// this is the "status/monitor surface" SPEC_FULL.md's §2 (NEW)
// ambient stack describes.
type Handlers struct {
	cfg        config.Config
	wsHub      *WSHub
	uploadDir  string
	receiveDir string

	mu     sync.Mutex
	active bool
}

// NewHandlers creates new API handlers bound to cfg's channel/MTU/rate
// defaults.
func NewHandlers(cfg config.Config, uploadDir, receiveDir string) *Handlers {
	return &Handlers{
		cfg:        cfg,
		wsHub:      NewWSHub(),
		uploadDir:  uploadDir,
		receiveDir: receiveDir,
	}
}

func (h *Handlers) setActive(v bool) {
	h.mu.Lock()
	h.active = v
	h.mu.Unlock()
}

func (h *Handlers) isActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// HandleWebSocket handles WebSocket upgrade requests.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	h.wsHub.AddClient(conn)

	go func() {
		defer h.wsHub.RemoveClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// HandleUpload handles file upload for sending.
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, fmt.Sprintf("Parse form: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("Get file: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	os.MkdirAll(h.uploadDir, 0755)
	outPath := filepath.Join(h.uploadDir, header.Filename)
	outFile, err := os.Create(outPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Create file: %v", err), http.StatusInternalServerError)
		return
	}
	defer outFile.Close()

	written, err := io.Copy(outFile, file)
	if err != nil {
		http.Error(w, fmt.Sprintf("Save file: %v", err), http.StatusInternalServerError)
		return
	}

	h.wsHub.BroadcastLog("info", fmt.Sprintf("File uploaded: %s (%d bytes)", header.Filename, written))

	json.NewEncoder(w).Encode(map[string]interface{}{
		"filename": header.Filename,
		"size":     written,
		"status":   "uploaded",
	})
}

// parseRate accepts either a bare PHY rate nibble ("0xb", "11") or an
// empty string (meaning "use the server's configured default").
func (h *Handlers) parseRate(s string) (byte, error) {
	if s == "" {
		return h.cfg.Rate, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", s, err)
	}
	if v < 0x8 || v > 0xf {
		return 0, fmt.Errorf("rate %#x out of range 0x8-0xf", v)
	}
	return byte(v), nil
}

// HandleSend initiates file sending over the acoustic channel.
func (h *Handlers) HandleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Filename string `json:"filename"`
		Rate     string `json:"rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Parse request: %v", err), http.StatusBadRequest)
		return
	}

	filePath := filepath.Join(h.uploadDir, req.Filename)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	rate, err := h.parseRate(req.Rate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	go func() {
		h.setActive(true)
		defer h.setActive(false)

		ao := audio.NewAudioIO(h.cfg.Channel)
		if err := ao.OpenOutput(); err != nil {
			h.wsHub.BroadcastStatus("error", fmt.Sprintf("Audio output open failed: %v", err))
			return
		}
		defer ao.Close()
		if err := ao.StartOutput(); err != nil {
			h.wsHub.BroadcastStatus("error", fmt.Sprintf("Audio output start failed: %v", err))
			return
		}

		h.wsHub.BroadcastStatus("transferring", "Sending file...")

		tx := phy.NewTransmitter(h.cfg.Channel)
		err := transport.SendFileWithProgress(tx, ao, filePath, rate, func(done, total int, status string) {
			h.wsHub.BroadcastProgress("transferring", status, float64(done)/float64(total), int64(done), int64(total))
		})
		if err != nil {
			h.wsHub.BroadcastStatus("error", fmt.Sprintf("Send failed: %v", err))
			return
		}

		h.wsHub.BroadcastStatus("completed", "File sent successfully!")
	}()

	json.NewEncoder(w).Encode(map[string]string{
		"status": "sending",
	})
}

// HandleReceiveStart starts a background capture loop that decodes
// frames off the microphone and reassembles a file transfer from them,
// broadcasting each decoded frame's SNR and the overall progress.
func (h *Handlers) HandleReceiveStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	go func() {
		h.setActive(true)
		defer h.setActive(false)

		os.MkdirAll(h.receiveDir, 0755)

		ai := audio.NewAudioIO(h.cfg.Channel)
		if err := ai.OpenInput(); err != nil {
			h.wsHub.BroadcastStatus("error", fmt.Sprintf("Audio input open failed: %v", err))
			return
		}
		defer ai.Close()
		if err := ai.StartInput(); err != nil {
			h.wsHub.BroadcastStatus("error", fmt.Sprintf("Audio input start failed: %v", err))
			return
		}

		h.wsHub.BroadcastStatus("connecting", "Listening for a transfer...")

		rx := phy.NewReceiver(h.cfg.Channel, h.cfg.MTU)
		frames := make(chan phy.Frame, 32)
		done := make(chan struct{})

		go func() {
			defer close(frames)
			deadline := time.Now().Add(receiveTimeout)
			for time.Now().Before(deadline) {
				chunk, err := ai.Read()
				if err != nil {
					h.wsHub.BroadcastStatus("error", fmt.Sprintf("Audio read failed: %v", err))
					return
				}
				for _, f := range rx.Feed(chunk, time.Now()) {
					h.wsHub.BroadcastLog("info", fmt.Sprintf("decoded frame: %d bytes, SNR %.1f dB", len(f.Payload), f.SNRdB))
					select {
					case frames <- f:
					case <-done:
						return
					}
				}
				select {
				case <-done:
					return
				default:
				}
			}
		}()

		outPath := filepath.Join(h.receiveDir, fmt.Sprintf("received-%d.bin", time.Now().UnixNano()))
		outFile, err := os.Create(outPath)
		if err != nil {
			close(done)
			h.wsHub.BroadcastStatus("error", fmt.Sprintf("Create output file failed: %v", err))
			return
		}
		defer outFile.Close()

		h.wsHub.BroadcastStatus("transferring", "Receiving file...")
		meta, err := transport.ReceiveFileWithProgress(frames, outFile, func(done, total int, status string) {
			h.wsHub.BroadcastProgress("transferring", status, float64(done)/float64(total), int64(done), int64(total))
		})
		close(done)
		if err != nil {
			h.wsHub.BroadcastStatus("error", fmt.Sprintf("Receive failed: %v", err))
			return
		}

		finalPath := filepath.Join(h.receiveDir, meta.Filename)
		if meta.Filename != "" {
			os.Rename(outPath, finalPath)
		}
		h.wsHub.BroadcastStatus("completed", fmt.Sprintf("File received: %s (%d bytes)", meta.Filename, meta.Size))
	}()

	json.NewEncoder(w).Encode(map[string]string{
		"status": "receiving",
	})
}

// HandleStatus returns whether a send/receive is currently in progress.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := "idle"
	if h.isActive() {
		status = "active"
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status": status,
	})
}

// HandleDevices lists available audio devices.
func (h *Handlers) HandleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := audio.ListDevices()
	if err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"devices":   devices,
		"hasInput":  audio.HasInputDevice(),
		"hasOutput": audio.HasOutputDevice(),
	})
}

// HandleDownload serves received files for download.
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	filename := strings.TrimPrefix(r.URL.Path, "/api/download/")
	if filename == "" {
		http.Error(w, "Filename required", http.StatusBadRequest)
		return
	}

	filePath := filepath.Join(h.receiveDir, filename)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, filePath)
}
