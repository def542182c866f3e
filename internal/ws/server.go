package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/subtitler/internal/app"
	"github.com/obiente/translate/subtitler/internal/audio"
	"github.com/obiente/translate/subtitler/internal/subtitle"
	"github.com/obiente/translate/subtitler/internal/transcript"
	"github.com/obiente/translate/subtitler/internal/translation"
)

const readTimeout = 60 * time.Second

type Server struct {
	app      *app.App
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	rooms    map[string]map[*websocket.Conn]*clientMeta
}

type identity struct {
	peerID    string
	peerLabel string
	channelID string
}

// clientMeta is shared by the read loop, the job goroutine and room
// broadcasts from other connections.
type clientMeta struct {
	mu   sync.Mutex
	id   identity
	send func(any) error
}

func (m *clientMeta) identity() identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

func (m *clientMeta) update(fn func(*identity)) identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.id)
	return m.id
}

func NewServer(a *app.App) *Server {
	return &Server{
		app: a,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024 * 16,
			WriteBufferSize: 1024 * 16,
		},
		rooms: make(map[string]map[*websocket.Conn]*clientMeta),
	}
}

type outcome struct {
	res transcript.Result
	err error
}

// session is one connection. Audio chunks are written into a pipe that the
// engine reads as a single job.
type session struct {
	s      *Server
	conn   *websocket.Conn
	wmu    sync.Mutex
	rmu    sync.Mutex
	roomID string
	meta   *clientMeta

	jobID   string
	source  string
	targets []string
	pw      *io.PipeWriter
	done    chan outcome
	cancel  context.CancelFunc
}

// room is read by the job goroutine while the read loop may change it.
func (ss *session) room() string {
	ss.rmu.Lock()
	defer ss.rmu.Unlock()
	return ss.roomID
}

func (ss *session) setRoom(id string) {
	ss.rmu.Lock()
	ss.roomID = id
	ss.rmu.Unlock()
}

func (ss *session) send(v any) error {
	ss.wmu.Lock()
	defer ss.wmu.Unlock()
	return ss.conn.WriteJSON(v)
}

func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(readTimeout)); return nil })

	ss := &session{s: s, conn: conn}
	ss.meta = &clientMeta{send: ss.send}
	defer ss.abort()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("ws read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if mt == websocket.BinaryMessage {
			if !ss.write(data) {
				return
			}
			continue
		}
		if mt != websocket.TextMessage {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = ss.send(map[string]any{"type": "error", "detail": "invalid json"})
			continue
		}
		switch msg["type"] {
		case "ping":
			_ = ss.send(map[string]any{"type": "pong", "ts": msg["ts"]})
		case "start":
			ss.start(r.Context(), msg)
		case "chunk":
			b64, _ := msg["data"].(string)
			if b64 == "" {
				continue
			}
			if mime, _ := msg["mime_type"].(string); mime != "" && mime != "audio/pcm" && mime != "audio/L16" && mime != "audio/pcm16" {
				_ = ss.send(map[string]any{"type": "error", "detail": "unsupported mime_type " + mime})
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				_ = ss.send(map[string]any{"type": "error", "detail": "invalid base64 audio"})
				continue
			}
			if !ss.write(raw) {
				return
			}
		case "stop":
			if ss.pw != nil {
				_ = ss.pw.Close()
				ss.finish()
			}
			_ = ss.send(map[string]any{"type": "stopped"})
			return
		case "join_room":
			rid, _ := msg["room_id"].(string)
			if rid == "" {
				break
			}
			id := ss.meta.update(func(id *identity) {
				if v, ok := msg["peer_id"].(string); ok {
					id.peerID = v
				}
				if v, ok := msg["peer_label"].(string); ok {
					id.peerLabel = v
				}
			})
			s.leaveRoom(ss.room(), conn)
			s.joinRoom(rid, conn, ss.meta)
			ss.setRoom(rid)
			_ = ss.send(map[string]any{"type": "room_joined", "room_id": rid, "peer_id": id.peerID, "peer_label": id.peerLabel})
		case "leave_room":
			s.leaveRoom(ss.room(), conn)
			ss.setRoom("")
			_ = ss.send(map[string]any{"type": "room_left"})
		default:
			_ = ss.send(map[string]any{"type": "error", "detail": "unknown message type"})
		}
	}
}

// start launches the transcription job for this connection.
func (ss *session) start(parent context.Context, msg map[string]any) {
	if ss.pw != nil {
		_ = ss.send(map[string]any{"type": "error", "detail": "job already started"})
		return
	}
	rate := int(asFloat(msg["sample_rate"]))
	if rate <= 0 {
		rate = audio.TargetSampleRate
	}
	ss.jobID, _ = msg["id"].(string)
	if ss.jobID == "" {
		ss.jobID = uuid.NewString()
	}
	persist := true
	if v, ok := msg["persist"].(bool); ok {
		persist = v
	}
	id := ss.meta.update(func(id *identity) {
		if v, ok := msg["channel_id"].(string); ok {
			id.channelID = v
		}
	})
	ss.source, _ = msg["language"].(string)
	ss.targets = nil
	if v, ok := msg["target_languages"].([]any); ok {
		for _, lang := range v {
			if s, ok := lang.(string); ok && s != "" {
				ss.targets = append(ss.targets, s)
			}
		}
	}

	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(parent)
	ss.pw, ss.cancel = pw, cancel
	ss.done = make(chan outcome, 1)

	job := transcript.Job{
		ID:         ss.jobID,
		Audio:      pr,
		SampleRate: rate,
		Persist:    persist,
		OnEntry:    ss.pushEntry,
	}
	go func() {
		res, err := ss.s.app.Engine.Transcribe(ctx, job)
		// Unblock a writer when the job ends before the stream does.
		if err != nil {
			_ = pr.CloseWithError(err)
		} else {
			_ = pr.Close()
		}
		ss.done <- outcome{res: res, err: err}
	}()

	log.Info().
		Str("job", ss.jobID).
		Int("sample_rate", rate).
		Str("channel", id.channelID).
		Strs("target_langs", ss.targets).
		Msg("ws: session started")
	_ = ss.send(map[string]any{"type": "started", "id": ss.jobID})
}

// write forwards a PCM chunk to the running job. It returns false when the
// session has to end.
func (ss *session) write(b []byte) bool {
	if ss.pw == nil {
		_ = ss.send(map[string]any{"type": "error", "detail": "send start before audio"})
		return true
	}
	if _, err := ss.pw.Write(b); err != nil {
		ss.finish()
		return false
	}
	return true
}

func (ss *session) pushEntry(e subtitle.Entry) {
	payload := map[string]any{
		"type":  "entry",
		"id":    ss.jobID,
		"index": e.Index,
		"start": e.Start,
		"end":   e.End,
		"text":  e.Text,
	}
	if err := ss.send(payload); err != nil {
		log.Warn().Err(err).Msg("failed to send entry")
	}
	if room := ss.room(); room != "" {
		id := ss.meta.identity()
		rp := map[string]any{
			"type":       "room_entry",
			"room_id":    room,
			"peer_id":    id.peerID,
			"peer_label": id.peerLabel,
			"channel_id": id.channelID,
			"index":      e.Index,
			"start":      e.Start,
			"end":        e.End,
			"text":       e.Text,
		}
		ss.s.broadcast(room, ss.conn, id.peerID, rp)
	}
}

// finish waits for the job and reports its document, translated into every
// requested target language.
func (ss *session) finish() {
	out := <-ss.done
	ss.cancel()
	ss.pw = nil
	if out.err != nil {
		log.Warn().Err(out.err).Str("job", ss.jobID).Msg("ws: job failed")
		_ = ss.send(map[string]any{"type": "error", "detail": out.err.Error()})
		return
	}
	translations := map[string]any{}
	if tr := ss.s.app.Translator; tr != nil && len(ss.targets) > 0 && len(out.res.Document.Entries) > 0 {
		for _, target := range ss.targets {
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(ss.s.app.Config.Translation.TimeoutSec)*time.Second)
			srt, err := translation.TranslateSubtitle(ctx, tr, out.res.Text, ss.source, target)
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("target", target).Msg("ws: translation request failed")
				continue
			}
			translations[target] = srt
		}
	}
	_ = ss.send(map[string]any{
		"type":         "subtitle",
		"id":           out.res.ID,
		"srt":          out.res.Text,
		"skipped":      out.res.Skipped,
		"segments":     out.res.Segments,
		"translations": translations,
	})
	if room := ss.room(); room != "" {
		id := ss.meta.identity()
		ss.s.broadcast(room, ss.conn, id.peerID, map[string]any{
			"type":         "room_subtitle",
			"room_id":      room,
			"peer_id":      id.peerID,
			"srt":          out.res.Text,
			"translations": translations,
		})
	}
}

// abort tears a session down on disconnect: the running job is cancelled
// and drained.
func (ss *session) abort() {
	ss.s.leaveRoom(ss.room(), ss.conn)
	if ss.pw == nil {
		return
	}
	ss.cancel()
	_ = ss.pw.CloseWithError(io.ErrUnexpectedEOF)
	<-ss.done
	ss.pw = nil
}

func (s *Server) joinRoom(room string, c *websocket.Conn, meta *clientMeta) {
	if room == "" {
		return
	}
	s.mu.Lock()
	m := s.rooms[room]
	if m == nil {
		m = make(map[*websocket.Conn]*clientMeta)
		s.rooms[room] = m
	}
	m[c] = meta
	s.mu.Unlock()
	s.broadcastRoster(room)
}

func (s *Server) leaveRoom(room string, c *websocket.Conn) {
	if room == "" || c == nil {
		return
	}
	s.mu.Lock()
	if m := s.rooms[room]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(s.rooms, room)
		}
	}
	s.mu.Unlock()
	s.broadcastRoster(room)
}

func (s *Server) broadcast(room string, sender *websocket.Conn, senderPeerID string, payload map[string]any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c, info := range s.rooms[room] {
		if c == sender || info == nil {
			continue
		}
		if senderPeerID != "" && info.identity().peerID == senderPeerID {
			continue
		}
		_ = info.send(payload)
	}
}

func (s *Server) broadcastRoster(room string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.rooms[room]
	members := make([]map[string]any, 0, len(m))
	for _, info := range m {
		id := info.identity()
		members = append(members, map[string]any{
			"peer_id":    id.peerID,
			"peer_label": id.peerLabel,
			"channel_id": id.channelID,
		})
	}
	payload := map[string]any{"type": "room_roster", "members": members}
	for _, info := range m {
		_ = info.send(payload)
	}
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f
	default:
		return 0
	}
}
