package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/forestplot/pkg/buildinfo"
	"github.com/matzehuels/forestplot/pkg/dataset"
	"github.com/matzehuels/forestplot/pkg/effect"
	"github.com/matzehuels/forestplot/pkg/errors"
	"github.com/matzehuels/forestplot/pkg/pipeline"
	"github.com/matzehuels/forestplot/pkg/store"
)

// forestRequest is the body of POST /v1/forest. Records are row objects;
// Columns fixes the column order, otherwise keys are sorted.
type forestRequest struct {
	Records []map[string]any `json:"records"`
	Columns []string         `json:"columns,omitempty"`
	Options pipeline.Options `json:"options"`
}

// renderRequest is the body of POST /v1/render.
type renderRequest struct {
	Rows    []effect.Row     `json:"rows"`
	Options pipeline.Options `json:"options"`
}

type runResponse struct {
	ID        string            `json:"id"`
	Rows      []effect.Row      `json:"rows"`
	Stats     statsResponse     `json:"stats"`
	Artifacts map[string]string `json:"artifacts"`
	Cached    cachedResponse    `json:"cached"`
}

type statsResponse struct {
	Rows        int   `json:"rows"`
	Empty       int   `json:"empty"`
	Degenerate  int   `json:"degenerate"`
	ExtractTime int64 `json:"extract_ms"`
	LayoutTime  int64 `json:"layout_ms"`
	RenderTime  int64 `json:"render_ms"`
}

type cachedResponse struct {
	Rows   bool `json:"rows"`
	Render bool `json:"render"`
}

type healthResponse struct {
	Status string `json:"status"`
	buildinfo.Info
}

type errorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Info: buildinfo.Get()})
}

func (s *Server) handleForest(w http.ResponseWriter, r *http.Request) {
	var req forestRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Records) == 0 {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "records must not be empty"))
		return
	}
	if err := serverFormats(&req.Options); err != nil {
		s.writeError(w, r, err)
		return
	}
	ds, err := dataset.FromRecords(req.Records, req.Columns)
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "records"))
		return
	}

	res, err := s.runner.Execute(r.Context(), ds, req.Options)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondRun(w, r, req.Options, res)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := serverFormats(&req.Options); err != nil {
		s.writeError(w, r, err)
		return
	}
	for i, row := range req.Rows {
		if row.Status == "" {
			req.Rows[i].Status = effect.StatusOK
		}
		if err := req.Rows[i].Validate(); err != nil {
			s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "row %d", i))
			return
		}
	}

	res, err := s.runner.RenderRows(r.Context(), req.Rows, req.Options)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondRun(w, r, req.Options, res)
}

func (s *Server) respondRun(w http.ResponseWriter, r *http.Request, opts pipeline.Options, res *pipeline.Result) {
	run := store.NewRun(opts, res)
	if err := s.store.Save(r.Context(), run); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "archive run"))
		return
	}

	artifacts := make(map[string]string, len(res.Artifacts))
	for f, data := range res.Artifacts {
		artifacts[f] = string(data)
	}
	w.Header().Set("Location", "/v1/runs/"+run.ID)
	writeJSON(w, http.StatusCreated, runResponse{
		ID:        run.ID,
		Rows:      res.Rows,
		Artifacts: artifacts,
		Stats: statsResponse{
			Rows:        res.Stats.Rows,
			Empty:       res.Stats.Empty,
			Degenerate:  res.Stats.Degenerate,
			ExtractTime: res.Stats.ExtractTime.Milliseconds(),
			LayoutTime:  res.Stats.LayoutTime.Milliseconds(),
			RenderTime:  res.Stats.RenderTime.Milliseconds(),
		},
		Cached: cachedResponse{Rows: res.CacheInfo.RowsHit, Render: res.CacheInfo.RenderHit},
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	runs, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetPlot(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(run.SVG) == 0 {
		s.writeError(w, r, errors.New(errors.ErrCodeNotFound, "run %s has no plot", run.ID))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Last-Modified", run.CreatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(run.SVG)
}

// serverFormats restricts formats to the text outputs and always adds svg
// so the run can be archived with its plot.
func serverFormats(opts *pipeline.Options) error {
	for _, f := range opts.Formats {
		if err := pipeline.ValidateFormat(f); err != nil {
			return err
		}
		if f == pipeline.FormatPNG || f == pipeline.FormatPDF {
			return errors.New(errors.ErrCodeUnsupported, "format %q is not served over HTTP", f)
		}
	}
	if !slices.Contains(opts.Formats, pipeline.FormatSVG) {
		opts.Formats = append([]string{pipeline.FormatSVG}, opts.Formats...)
	}
	opts.Refresh = false
	return nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request body")
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	msg := errors.UserMessage(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", RequestID(r.Context()), "err", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "code", code, "err", err)
	}
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: msg}})
}

// statusFor maps error codes to HTTP status codes.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeConfiguration,
		errors.ErrCodeInvalidInput,
		errors.ErrCodeInvalidFormat,
		errors.ErrCodeInvalidStyle,
		errors.ErrCodeInvalidPath,
		errors.ErrCodeEmptyData:
		return http.StatusBadRequest
	case errors.ErrCodeUnsupported:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

