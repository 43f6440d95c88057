package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	ws "nhooyr.io/websocket"

	"cuepoint/agent/internal/workerws"
)

// surface-sim plays the role of the front-end surface against a running agent: it answers
// media and capture commands on a scripted timeline so a full guided turn, and optionally a
// voice chat exchange, can be exercised without a browser.
func main() {
	agent := flag.String("agent", "http://localhost:8080", "Agent base URL")
	speak := flag.Duration("speak", time.Second, "How long to 'speak' before stopping a guided recording")
	tick := flag.Duration("tick", 250*time.Millisecond, "Interval between time updates while playing")
	voice := flag.String("voice", "", "If set, enter voice chat after the first guided turn and say this")
	timeout := flag.Duration("timeout", 60*time.Second, "Overall run time")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	base := strings.TrimRight(*agent, "/")
	var sess struct {
		SessionID string `json:"session_id"`
	}
	if err := post(ctx, base+"/sessions", &sess); err != nil {
		log.Fatalf("create session: %v", err)
	}
	var creds struct {
		Token string `json:"token"`
	}
	if err := post(ctx, base+"/sessions/"+sess.SessionID+"/surface-token", &creds); err != nil {
		log.Fatalf("surface token: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/ws/surface?session_id=" + url.QueryEscape(sess.SessionID)
	h := http.Header{}
	h.Set("Authorization", "Bearer "+creds.Token)
	conn, _, err := ws.Dial(ctx, wsURL, &ws.DialOptions{HTTPHeader: h})
	if err != nil {
		log.Fatalf("dial surface: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "done")

	fmt.Printf("=== Surface simulator ===\n")
	fmt.Printf("Session: %s\n\n", sess.SessionID)

	s := &sim{conn: conn, speak: *speak, tick: *tick, voice: *voice}
	s.send(ctx, workerws.EvHello, "", map[string]any{"recognition": true})
	if err := post(ctx, base+"/sessions/"+sess.SessionID+"/start", nil); err != nil {
		log.Fatalf("start: %v", err)
	}
	s.run(ctx)
}

type sim struct {
	conn  *ws.Conn
	speak time.Duration
	tick  time.Duration
	voice string

	mu       sync.Mutex
	seq      int64
	t        float64
	stopPlay context.CancelFunc
	turns    int
	inVoice  bool
}

func (s *sim) run(ctx context.Context) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			fmt.Printf("[surface] closed: %v\n", err)
			return
		}
		var m workerws.Message
		if err := json.Unmarshal(data, &m); err != nil {
			fmt.Printf("[surface] bad frame: %v\n", err)
			continue
		}
		s.handle(ctx, m)
	}
}

func (s *sim) handle(ctx context.Context, m workerws.Message) {
	ts := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] <- %s %v\n", ts, m.Type, m.Payload)

	switch m.Type {
	case workerws.CmdSetSource:
		s.mu.Lock()
		s.t = 0
		s.mu.Unlock()
		s.later(ctx, 100*time.Millisecond, func() { s.send(ctx, workerws.EvMediaReady, "", nil) })

	case workerws.CmdPlay:
		s.play(ctx)

	case workerws.CmdPause:
		s.pause()

	case workerws.CmdCaptureStart:
		s.later(ctx, s.speak, func() { s.send(ctx, workerws.ActStopRecording, "", nil) })

	case workerws.CmdCaptureStop:
		s.send(ctx, workerws.EvCaptureData, m.CommandID, map[string]any{
			"mime": "audio/wav",
			"data": base64.StdEncoding.EncodeToString(silentWAV(s.speak)),
		})

	case workerws.CmdPlayAudio:
		id, _ := m.Payload["id"].(string)
		s.later(ctx, 500*time.Millisecond, func() {
			s.send(ctx, workerws.EvAudioEnded, "", map[string]any{"id": id})
			s.afterAudio(ctx)
		})

	case workerws.CmdRecognitionStart:
		if s.voice == "" {
			return
		}
		words := strings.Fields(s.voice)
		for i, w := range words {
			w := w
			s.later(ctx, time.Duration(i+1)*300*time.Millisecond, func() {
				s.send(ctx, workerws.EvRecognitionResult, "", map[string]any{
					"fragments": []map[string]any{{"text": w, "is_final": true}},
				})
			})
		}
	}
}

// afterAudio enters voice chat after the first guided feedback and leaves it after the reply.
func (s *sim) afterAudio(ctx context.Context) {
	s.mu.Lock()
	s.turns++
	inVoice := s.inVoice
	enter := s.voice != "" && !inVoice && s.turns == 1
	s.inVoice = inVoice || enter
	s.mu.Unlock()

	switch {
	case enter:
		s.send(ctx, workerws.ActVoiceChatEnter, "", nil)
	case inVoice:
		s.mu.Lock()
		s.inVoice = false
		s.mu.Unlock()
		s.send(ctx, workerws.ActVoiceChatExit, "", nil)
	}
}

func (s *sim) play(ctx context.Context) {
	s.pause()
	pctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.stopPlay = cancel
	s.mu.Unlock()
	go func() {
		tk := time.NewTicker(s.tick)
		defer tk.Stop()
		for {
			select {
			case <-pctx.Done():
				return
			case <-tk.C:
				s.mu.Lock()
				s.t += s.tick.Seconds()
				t := s.t
				s.mu.Unlock()
				s.send(ctx, workerws.EvTimeUpdate, "", map[string]any{"t": t})
				if t >= 10 {
					s.send(ctx, workerws.EvMediaEnded, "", nil)
					return
				}
			}
		}
	}()
}

func (s *sim) pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopPlay != nil {
		s.stopPlay()
		s.stopPlay = nil
	}
}

func (s *sim) later(ctx context.Context, d time.Duration, fn func()) {
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(d):
			fn()
		}
	}()
}

func (s *sim) send(ctx context.Context, typ, commandID string, payload map[string]any) {
	s.mu.Lock()
	s.seq++
	m := workerws.Message{Type: typ, TsMs: time.Now().UnixMilli(), Seq: s.seq, CommandID: commandID, Payload: payload}
	s.mu.Unlock()
	b, _ := json.Marshal(m)
	if err := s.conn.Write(ctx, ws.MessageText, b); err != nil {
		fmt.Printf("[surface] send %s: %v\n", typ, err)
		return
	}
	if typ != workerws.EvTimeUpdate {
		fmt.Printf("[%s] -> %s\n", time.Now().Format("15:04:05.000"), typ)
	}
}

func post(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", u, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// silentWAV returns a 16 kHz mono 16-bit PCM file of d silence.
func silentWAV(d time.Duration) []byte {
	const rate = 16000
	n := int(d.Seconds() * rate)
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+2*n))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint32(rate))
	binary.Write(&b, binary.LittleEndian, uint32(rate*2))
	binary.Write(&b, binary.LittleEndian, uint16(2))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(2*n))
	b.Write(make([]byte, 2*n))
	return b.Bytes()
}
