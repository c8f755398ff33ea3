package api

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/image/draw"

	"github.com/banshee-data/tryon/internal/catalog"
	"github.com/banshee-data/tryon/internal/db"
	"github.com/banshee-data/tryon/internal/httputil"
	"github.com/banshee-data/tryon/internal/monitoring"
	"github.com/banshee-data/tryon/internal/tryon/compose"
	"github.com/banshee-data/tryon/internal/tryon/landmarks"
	"github.com/banshee-data/tryon/internal/tryon/monitor"
	"github.com/banshee-data/tryon/internal/version"
)

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httputil.JSON.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("Invalid JSON: %v", err))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		httputil.BadRequest(w, err.Error())
		return false
	}
	return true
}

func (s *Server) listResources(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "No asset catalog configured")
		return
	}
	items, err := s.catalog.List(r.Context(), r.PathValue("folder"))
	if errors.Is(err, catalog.ErrInvalidFolder) {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		monitoring.Logf("[api] catalog error: %v", err)
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, items)
}

type selectRequest struct {
	Src string `json:"src" validate:"required"`
}

type selectResponse struct {
	AssetID  string `json:"asset_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Previous string `json:"previous,omitempty"`
}

// selectAsset loads the asset before touching the session, so a failed
// download leaves the current asset on screen.
func (s *Server) selectAsset(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	a, err := s.loader.Load(r.Context(), req.Src)
	if err != nil {
		monitoring.Logf("[api] asset %s not loaded: %v", req.Src, err)
		httputil.BadGateway(w, fmt.Sprintf("Failed to load asset: %v", err))
		return
	}
	resp := selectResponse{AssetID: a.ID, Width: a.Width, Height: a.Height}
	if prev := s.session.SelectAsset(a); prev.Usable() {
		resp.Previous = prev.ID
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) clearAsset(w http.ResponseWriter, r *http.Request) {
	s.session.SelectAsset(nil)
	w.WriteHeader(http.StatusNoContent)
}

// processFrame runs one detector result through the session. A frame that
// reports its size resizes the surface before it is drawn.
func (s *Server) processFrame(w http.ResponseWriter, r *http.Request) {
	var in landmarks.Frame
	if !s.decodeJSON(w, r, &in) {
		return
	}
	set, err := in.Set()
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := in.CheckSize(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if in.Width > 0 && in.Height > 0 {
		s.session.Resize(in.Width, in.Height)
	}

	s.mu.Lock()
	f := s.session.ProcessFrame(set)
	s.last = f
	s.mu.Unlock()

	httputil.WriteJSONOK(w, f)
}

func (s *Server) lastFrame(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	f := s.last
	s.mu.Unlock()
	if f.Index == 0 {
		httputil.NotFound(w, "No frame processed yet")
		return
	}
	httputil.WriteJSONOK(w, f)
}

// captureFrame flattens the last video still and the overlay into a PNG.
// Without a still the overlay is drawn on black.
func (s *Server) captureFrame(w http.ResponseWriter, r *http.Request) {
	label := s.session.Config().Watermark
	if q := r.URL.Query(); q.Has("label") {
		label = q.Get("label")
	}

	s.videoMu.RLock()
	video := s.video
	s.videoMu.RUnlock()

	s.mu.Lock()
	var overlay image.Image
	if is, ok := s.session.Surface().(*compose.ImageSurface); ok {
		overlay = is.Image()
	}
	b := s.session.Surface().Bounds()
	if video == nil {
		if b.Empty() {
			s.mu.Unlock()
			httputil.WriteJSONError(w, http.StatusConflict, "Surface has no size yet")
			return
		}
		bg := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(bg, bg.Bounds(), image.Black, image.Point{}, draw.Src)
		video = bg
	}
	out := compose.Capture(video, overlay, label)
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to encode capture: %v", err))
		return
	}
	w.Header().Set("Content-Disposition", `inline; filename="tryon.png"`)
	httputil.WriteBody(w, "image/png", buf.Bytes())
}

// putVideo stores the latest camera still for captures and sizes the
// surface to match it. The header is checked before any pixels are
// allocated.
func (s *Server) putVideo(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("Failed to read image: %v", err))
		return
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("Invalid image: %v", err))
		return
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > landmarks.MaxDimension || cfg.Height > landmarks.MaxDimension {
		httputil.BadRequest(w, fmt.Sprintf("Image size %dx%d out of range (max %d)", cfg.Width, cfg.Height, landmarks.MaxDimension))
		return
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("Invalid image: %v", err))
		return
	}
	s.videoMu.Lock()
	s.video = img
	s.videoMu.Unlock()

	b := img.Bounds()
	s.session.Resize(b.Dx(), b.Dy())
	httputil.WriteJSONOK(w, map[string]int{"width": b.Dx(), "height": b.Dy()})
}

type resizeRequest struct {
	Width  int `json:"width" validate:"gte=0,lte=16384"`
	Height int `json:"height" validate:"gte=0,lte=16384"`
}

func (s *Server) resize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	s.session.Resize(req.Width, req.Height)
	httputil.WriteJSON(w, http.StatusAccepted, req)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.session.Reset()
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.session.Config()
	s.mu.Lock()
	b := s.session.Surface().Bounds()
	s.mu.Unlock()
	out := map[string]interface{}{
		"session_id":       s.session.ID(),
		"smoothing_alpha":  cfg.SmoothingAlpha,
		"anchor_alpha":     cfg.AnchorAlpha,
		"ear_width_ratio":  cfg.Layout.EarWidthRatio,
		"ear_lift_ratio":   cfg.Layout.EarLiftRatio,
		"neck_width_ratio": cfg.Layout.NeckWidthRatio,
		"neck_lift_ratio":  cfg.Layout.NeckLiftRatio,
		"watermark":        cfg.Watermark,
		"width":            b.Dx(),
		"height":           b.Dy(),
		"version":          version.Version,
	}
	if a := s.session.Asset(); a.Usable() {
		out["asset_id"] = a.ID
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "Session recording is disabled")
		return false
	}
	return true
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = n
	}
	sessions, err := s.db.ListSessions(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list sessions: %v", err))
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	id := r.PathValue("id")
	s.flushLive(id)
	sess, err := s.db.GetSession(id)
	if errors.Is(err, db.ErrSessionNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, sess)
}

// trace loads the recorded frames of a session, answering 404 for unknown
// ids. The bool is false when a response has already been written.
func (s *Server) trace(w http.ResponseWriter, id string) ([]db.FrameRecord, bool) {
	s.flushLive(id)
	if _, err := s.db.GetSession(id); err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			httputil.NotFound(w, err.Error())
		} else {
			httputil.InternalServerError(w, err.Error())
		}
		return nil, false
	}
	records, err := s.db.FrameTrace(id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return nil, false
	}
	return records, true
}

func (s *Server) sessionJitter(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	records, ok := s.trace(w, r.PathValue("id"))
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, monitor.Analyze(records))
}

// traceChart renders the recorded anchor traces of a session as an echarts
// page. Debugging only.
func (s *Server) traceChart(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	id := r.PathValue("id")
	records, ok := s.trace(w, id)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := monitor.RenderTraceChart(&buf, id, records); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	httputil.WriteBody(w, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) flushLive(id string) {
	if s.recorder == nil || id != s.session.ID() {
		return
	}
	if err := s.recorder.Flush(); err != nil {
		monitoring.Logf("[api] flush before trace read: %v", err)
	}
}
