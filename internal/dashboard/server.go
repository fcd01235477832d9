// Package dashboard serves the controller to renderers: a JSON API, a
// websocket state stream and the Prometheus endpoint.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/alex/biotutor/internal/engine"
	"github.com/alex/biotutor/internal/llm"
	"github.com/alex/biotutor/internal/metrics"
	"github.com/alex/biotutor/internal/observe"
	"github.com/alex/biotutor/internal/scenario"
)

const (
	// DefaultBroadcastInterval is how often the full state is pushed.
	DefaultBroadcastInterval = 250 * time.Millisecond

	maxSceneFile = 1 << 20
	chatTimeout  = 90 * time.Second
)

// Server is the dashboard HTTP server.
type Server struct {
	addr     string
	ctrl     *engine.Controller
	hub      *Hub
	tutor    *llm.Tutor
	metrics  *metrics.Recorder
	log      zerolog.Logger
	interval time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithTutor enables POST /api/chat.
func WithTutor(t *llm.Tutor) ServerOption {
	return func(s *Server) { s.tutor = t }
}

// WithMetrics enables GET /metrics and feeds the recorder.
func WithMetrics(m *metrics.Recorder) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the server's logger.
func WithLogger(log zerolog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// WithBroadcastInterval sets how often the state is pushed to websocket
// clients.
func WithBroadcastInterval(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.interval = d
		}
	}
}

// NewServer creates a dashboard server for ctrl and registers its hub,
// and the metrics recorder if any, as controller listeners.
func NewServer(addr string, ctrl *engine.Controller, opts ...ServerOption) *Server {
	s := &Server{
		addr:     addr,
		ctrl:     ctrl,
		log:      zerolog.Nop(),
		interval: DefaultBroadcastInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "dashboard").Logger()
	s.hub = NewHub(s.log)
	ctrl.AddListener(s.hub)
	if s.metrics != nil {
		ctrl.AddListener(s.metrics)
	}
	return s
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/observations", s.handleObservation)
	mux.HandleFunc("/api/mode", s.handleMode)
	mux.HandleFunc("/api/scenes", s.handleScenes)
	mux.HandleFunc("/api/scenes/load", s.handleScenesLoad)
	mux.HandleFunc("/api/scenes/start", s.handleSceneStart)
	mux.HandleFunc("/api/scenes/advance", s.handleSceneAdvance)
	mux.HandleFunc("/api/scenes/reset", s.handleSceneReset)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/emotion-status", s.handleEmotionStatus)
	mux.HandleFunc("/api/emotion-aggregate", s.handleEmotionAggregate)
	mux.HandleFunc("/ws", s.hub.ServeWs)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// Run serves until ctx is cancelled, together with the hub and the
// periodic state push.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.broadcastLoop(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		s.log.Info().Str("addr", s.addr).Msg("dashboard listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	return g.Wait()
}

// broadcastLoop pushes the full state on every interval.
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pushState()
		}
	}
}

func (s *Server) pushState() {
	st := s.ctrl.State()
	if s.metrics != nil {
		s.metrics.ObserveState(st)
	}
	s.hub.Broadcast(Message{Type: MessageState, At: st.UpdatedAt, Data: st})
}

// stateResponse is the state plus the scene it belongs to.
type stateResponse struct {
	engine.State
	SceneName  string `json:"sceneName,omitempty"`
	SceneCount int    `json:"sceneCount"`
}

func (s *Server) currentState() stateResponse {
	resp := stateResponse{
		State:      s.ctrl.State(),
		SceneCount: len(s.ctrl.Scenes()),
	}
	if sc, _, ok := s.ctrl.CurrentScene(); ok {
		resp.SceneName = sc.Name
	}
	return resp
}

// handleIndex serves the status page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(indexHTML))
}

// handleState returns the live state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.currentState())
}

// handleSnapshot scores the window and returns the snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.ctrl.CaptureSnapshot())
}

// handleObservation accepts one detector sighting. Confidence is a
// percentage.
func (s *Server) handleObservation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Emotion    string    `json:"emotion"`
		Confidence float64   `json:"confidence"`
		Timestamp  time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Emotion == "" {
		http.Error(w, "emotion is required", http.StatusBadRequest)
		return
	}

	obs, kept := s.ctrl.ReportObservation(req.Emotion, req.Confidence, req.Timestamp)
	writeJSON(w, struct {
		Observation observe.Observation `json:"observation"`
		Kept        bool                `json:"kept"`
	}{obs, kept})
}

// handleMode returns or switches the controller's mode.
func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, map[string]engine.Mode{"mode": s.ctrl.Mode()})

	case http.MethodPost:
		var req struct {
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		m, err := engine.ParseMode(req.Mode)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.ctrl.SetMode(m); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, s.currentState())

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleScenes lists the loaded script.
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := struct {
		Scenes  []scenario.Scene `json:"scenes"`
		Current int              `json:"current"`
	}{Scenes: s.ctrl.Scenes(), Current: -1}
	if _, i, ok := s.ctrl.CurrentScene(); ok {
		resp.Current = i
	}
	writeJSON(w, resp)
}

// handleScenesLoad replaces the script with a YAML scene file.
func (s *Server) handleScenesLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	scenes, err := scenario.Parse(io.LimitReader(r.Body, maxSceneFile))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.ctrl.LoadScenes(scenes); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.log.Info().Int("scenes", len(scenes)).Msg("scene script loaded")
	writeJSON(w, map[string]int{"loaded": len(scenes)})
}

// handleSceneStart jumps to a scene by index.
func (s *Server) handleSceneStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	s.sceneResult(w, s.ctrl.StartScene(req.Index))
}

func (s *Server) handleSceneAdvance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.sceneResult(w, s.ctrl.AdvanceScene())
}

func (s *Server) handleSceneReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.sceneResult(w, s.ctrl.ResetScenes())
}

// sceneResult maps scene driver errors to status codes.
func (s *Server) sceneResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, s.currentState())
	case errors.Is(err, engine.ErrNoScenes):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrSceneOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Warn().Err(err).Msg("scene operation failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleChat answers the learner, conditioned on a fresh snapshot.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.tutor == nil {
		http.Error(w, "tutor disabled", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), chatTimeout)
	defer cancel()

	snap := s.ctrl.CaptureSnapshot()
	reply := s.tutor.RespondWithFallback(ctx, req.Message, snap)
	if s.metrics != nil {
		s.metrics.ChatReplied(snap.Emotion, reply.Fallback)
	}
	if s.ctrl.Mode() == engine.ModeAutonomous {
		s.ctrl.TriggerDrift()
	}
	writeJSON(w, reply)
}

// handleReset clears the conversation.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.tutor != nil {
		s.tutor.Reset()
	}
	writeJSON(w, map[string]string{"status": "reset"})
}

// handleEmotionStatus returns the newest buffered observation.
func (s *Server) handleEmotionStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := struct {
		Status      string               `json:"status"`
		Observation *observe.Observation `json:"observation,omitempty"`
	}{Status: "no_data"}
	if obs, ok := s.ctrl.LatestObservation(); ok {
		resp.Status = "success"
		resp.Observation = &obs
	}
	writeJSON(w, resp)
}

// handleEmotionAggregate summarizes the observation window.
func (s *Server) handleEmotionAggregate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.ctrl.Summary())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// indexHTML is the embedded status page.
const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Bio-Adaptive Tutor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            max-width: 720px;
            margin: 0 auto;
            padding: 20px;
            background: #1a1a2e;
            color: #eee;
        }
        h1 { color: #00d9ff; }
        .card {
            background: #16213e;
            border-radius: 12px;
            padding: 20px;
            margin: 20px 0;
        }
        .bar { height: 8px; background: #333; border-radius: 4px; overflow: hidden; margin: 4px 0 12px; }
        .bar div { height: 100%; background: #00d9ff; transition: width 0.3s; }
        button {
            background: #00d9ff;
            color: #1a1a2e;
            border: none;
            padding: 10px 18px;
            border-radius: 8px;
            cursor: pointer;
            margin: 4px;
        }
        #emotion { font-size: 32px; text-transform: capitalize; }
        .muted { color: #888; font-size: 13px; }
    </style>
</head>
<body>
    <h1>Bio-Adaptive Tutor</h1>

    <div class="card">
        <div id="emotion">connecting...</div>
        <div id="mode" class="muted"></div>
        <div>Intensity</div><div class="bar"><div id="intensity"></div></div>
        <div>Engagement</div><div class="bar"><div id="engagement"></div></div>
        <div>Attention</div><div class="bar"><div id="attention"></div></div>
        <div>Cognitive load</div><div class="bar"><div id="cognitiveLoad"></div></div>
        <div id="waves" class="muted"></div>
    </div>

    <div class="card">
        <button onclick="setMode('scripted')">Scripted</button>
        <button onclick="setMode('external')">External</button>
        <button onclick="setMode('autonomous')">Autonomous</button>
        <button onclick="post('/api/scenes/advance')">Next scene</button>
        <button onclick="post('/api/scenes/reset')">Restart script</button>
    </div>

    <script>
        function bar(id, v) {
            document.getElementById(id).style.width = Math.round(v * 100) + '%';
        }

        function render(s) {
            document.getElementById('emotion').textContent = s.emotion;
            document.getElementById('mode').textContent =
                s.mode + (s.scene >= 0 ? ' | scene ' + (s.scene + 1) + ' ' + s.scenePhase : '');
            bar('intensity', s.intensity);
            bar('engagement', s.engagement);
            bar('attention', s.attention);
            bar('cognitiveLoad', s.cognitiveLoad);
            const w = s.waves;
            document.getElementById('waves').textContent =
                'alpha ' + w.alpha.toFixed(2) + ' beta ' + w.beta.toFixed(2) +
                ' theta ' + w.theta.toFixed(2) + ' delta ' + w.delta.toFixed(2);
        }

        async function post(path, body) {
            await fetch(path, {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify(body || {})
            });
        }

        function setMode(mode) { post('/api/mode', { mode }); }

        function connect() {
            const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
            ws.onmessage = (ev) => {
                const msg = JSON.parse(ev.data);
                if (msg.type === 'state') render(msg.data);
            };
            ws.onclose = () => setTimeout(connect, 1000);
        }

        fetch('/api/state').then(r => r.json()).then(render);
        connect();
    </script>
</body>
</html>
`
