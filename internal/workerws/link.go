package workerws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "nhooyr.io/websocket"

	"cuepoint/agent/internal/media"
	"cuepoint/agent/internal/types"
)

type captureReply struct {
	blob media.Blob
	err  error
}

// Link is the agent's view of one session's surface. It implements media.Surface and
// media.AudioPlayer directly; Recorder and Recognizer return the capture and recognition
// adapters. Commands fail with types.ErrTransport while no surface is connected.
type Link struct {
	sessionID    string
	writeTimeout time.Duration

	mu          sync.Mutex
	conn        *ws.Conn
	seq         int64
	recognition bool
	waiters     map[string]chan captureReply
	onEvent     func(Message)
	debug       bool
}

func NewLink(sessionID string, writeTimeout time.Duration) *Link {
	if writeTimeout <= 0 {
		writeTimeout = 2 * time.Second
	}
	return &Link{sessionID: sessionID, writeTimeout: writeTimeout, waiters: make(map[string]chan captureReply)}
}

func (l *Link) SessionID() string { return l.sessionID }

// SetDebug turns on logging of every command sent to the surface.
func (l *Link) SetDebug(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = on
}

// OnEvent sets the receiver of surface events. fn is called from the connection's reader
// goroutine and must hand the message off to the event loop.
func (l *Link) OnEvent(fn func(Message)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onEvent = fn
}

func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// attach makes c the active connection and closes the previous one.
func (l *Link) attach(c *ws.Conn) (replaced bool) {
	l.mu.Lock()
	old := l.conn
	l.conn = c
	l.recognition = false
	l.mu.Unlock()
	if old != nil {
		_ = old.Close(ws.StatusNormalClosure, "replaced")
		return true
	}
	metricConnections.Inc()
	return false
}

// detach clears c if it is still the active connection and fails pending capture waits.
func (l *Link) detach(c *ws.Conn) bool {
	l.mu.Lock()
	if l.conn != c {
		l.mu.Unlock()
		return false
	}
	l.conn = nil
	waiters := l.waiters
	l.waiters = make(map[string]chan captureReply)
	l.mu.Unlock()

	metricConnections.Dec()
	for _, ch := range waiters {
		ch <- captureReply{err: fmt.Errorf("%w: surface disconnected", types.ErrTransport)}
	}
	return true
}

// Close drops the active connection.
func (l *Link) Close() {
	l.mu.Lock()
	c := l.conn
	l.mu.Unlock()
	if c != nil {
		_ = c.Close(ws.StatusGoingAway, "session closed")
	}
}

func (l *Link) deliver(msg Message) {
	l.mu.Lock()
	fn := l.onEvent
	l.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

func (l *Link) setRecognition(ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recognition = ok
}

// resolveCapture answers a pending capture_stop. Unknown command ids are dropped.
func (l *Link) resolveCapture(msg Message) bool {
	l.mu.Lock()
	ch, ok := l.waiters[msg.CommandID]
	delete(l.waiters, msg.CommandID)
	l.mu.Unlock()
	if !ok {
		return false
	}
	var p struct {
		Mime string `json:"mime"`
		Data string `json:"data"`
	}
	if err := msg.Decode(&p); err != nil {
		ch <- captureReply{err: fmt.Errorf("%w: capture_data: %v", types.ErrTransport, err)}
		return true
	}
	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		ch <- captureReply{err: fmt.Errorf("%w: capture_data: %v", types.ErrTransport, err)}
		return true
	}
	if p.Mime == "" {
		p.Mime = media.DefaultMimeType
	}
	ch <- captureReply{blob: media.Blob{Data: data, MimeType: p.Mime}}
	return true
}

func (l *Link) send(typ, commandID string, payload map[string]any) error {
	l.mu.Lock()
	c := l.conn
	l.seq++
	msg := Message{Type: typ, TsMs: time.Now().UnixMilli(), SessionID: l.sessionID, Seq: l.seq, CommandID: commandID, Payload: payload}
	debug := l.debug
	l.mu.Unlock()
	if c == nil {
		metricSendErrors.WithLabelValues(typ).Inc()
		return fmt.Errorf("%w: %s: surface not connected", types.ErrTransport, typ)
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.writeTimeout)
	defer cancel()
	if err := c.Write(ctx, ws.MessageText, b); err != nil {
		metricSendErrors.WithLabelValues(typ).Inc()
		log.Printf("[ws] send %s session=%s: %v", typ, l.sessionID, err)
		return fmt.Errorf("%w: %s: %v", types.ErrTransport, typ, err)
	}
	metricMessages.WithLabelValues("out", typ).Inc()
	if debug {
		log.Printf("[ws] session=%s -> %s seq=%d %v", l.sessionID, typ, msg.Seq, payload)
	}
	return nil
}

func (l *Link) SetSource(url string) error { return l.send(CmdSetSource, "", map[string]any{"url": url}) }

func (l *Link) Play() error { return l.send(CmdPlay, "", nil) }

func (l *Link) Pause() error { return l.send(CmdPause, "", nil) }

func (l *Link) PlayAudio(id, src string) error {
	return l.send(CmdPlayAudio, "", map[string]any{"id": id, "src": src})
}

func (l *Link) StopAudio(id string) error { return l.send(CmdStopAudio, "", map[string]any{"id": id}) }

func (l *Link) Recorder() media.Recorder { return linkRecorder{l} }

func (l *Link) Recognizer() *Recognizer { return &Recognizer{l} }

type linkRecorder struct{ l *Link }

func (r linkRecorder) Start() error { return r.l.send(CmdCaptureStart, "", nil) }

// Stop asks the surface to finish the recording and waits for the capture_data answer.
func (r linkRecorder) Stop(ctx context.Context) (media.Blob, error) {
	id := uuid.New().String()
	ch := make(chan captureReply, 1)
	r.l.mu.Lock()
	r.l.waiters[id] = ch
	r.l.mu.Unlock()

	start := time.Now()
	if err := r.l.send(CmdCaptureStop, id, nil); err != nil {
		r.l.mu.Lock()
		delete(r.l.waiters, id)
		r.l.mu.Unlock()
		return media.Blob{}, err
	}
	select {
	case rep := <-ch:
		metricCaptureWaitMS.Observe(float64(time.Since(start).Milliseconds()))
		return rep.blob, rep.err
	case <-ctx.Done():
		r.l.mu.Lock()
		delete(r.l.waiters, id)
		r.l.mu.Unlock()
		return media.Blob{}, fmt.Errorf("%w: capture_stop: %v", types.ErrTransport, ctx.Err())
	}
}

// Recognizer drives the surface's continuous speech recognition.
type Recognizer struct{ l *Link }

// Supported reports what the connected surface announced in its hello.
func (r *Recognizer) Supported() bool {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	return r.l.conn != nil && r.l.recognition
}

func (r *Recognizer) Start() error { return r.l.send(CmdRecognitionStart, "", nil) }

func (r *Recognizer) Stop() error { return r.l.send(CmdRecognitionStop, "", nil) }
