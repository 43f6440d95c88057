package workerws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"cuepoint/agent/internal/auth"
	"cuepoint/agent/internal/config"

	ws "nhooyr.io/websocket"
)

// maxMessageBytes bounds one inbound frame; capture_data carries a whole base64 recording.
const maxMessageBytes = 16 << 20

type Server struct {
	Cfg config.Config
	Reg *Registry
}

func NewServer(cfg config.Config, reg *Registry) *Server {
	return &Server{Cfg: cfg, Reg: reg}
}

func (s *Server) HandleSurfaceWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}
	link := s.Reg.Get(sessionID)
	if link == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	if s.Cfg.Surface.TokenSecret == "" {
		http.Error(w, "surface auth not configured", http.StatusUnauthorized)
		return
	}
	token, err := auth.FromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if _, _, err := auth.ValidateSurfaceToken(s.Cfg.Surface.TokenSecret, token, sessionID, time.Now(), s.Cfg.Surface.TokenSkewSecs); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := ws.Accept(w, r, nil)
	if err != nil {
		log.Printf("[ws] accept: %v", err)
		return
	}
	c.SetReadLimit(maxMessageBytes)
	if link.attach(c) {
		log.Printf("[ws] session=%s surface replaced", sessionID)
	}
	log.Printf("[ws] session=%s surface connected", sessionID)

	ctx := r.Context()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		if typ != ws.MessageText && typ != ws.MessageBinary {
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			metricMessages.WithLabelValues("in", "invalid").Inc()
			log.Printf("[ws] session=%s invalid message: %v", sessionID, err)
			continue
		}
		metricMessages.WithLabelValues("in", msg.Type).Inc()
		msg.SessionID = sessionID
		if s.Cfg.Debug() {
			log.Printf("[ws] session=%s <- %s seq=%d %v", sessionID, msg.Type, msg.Seq, msg.Payload)
		}

		switch msg.Type {
		case EvCaptureData:
			if !link.resolveCapture(msg) {
				log.Printf("[ws] session=%s capture_data for unknown command %q", sessionID, msg.CommandID)
			}
			continue
		case EvHello:
			ok, _ := msg.Payload["recognition"].(bool)
			link.setRecognition(ok)
		}
		link.deliver(msg)
	}
	_ = c.Close(ws.StatusNormalClosure, "done")
	if link.detach(c) {
		log.Printf("[ws] session=%s surface disconnected", sessionID)
		link.deliver(Message{Type: EvDisconnected, SessionID: sessionID, TsMs: time.Now().UnixMilli()})
	}
}
