package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/chrissnell/electrotonic/internal/constants"
	"github.com/chrissnell/electrotonic/internal/electrotonic"
	"github.com/chrissnell/electrotonic/internal/skeleton"
	"github.com/chrissnell/electrotonic/internal/skeleton/ingest"
	"github.com/chrissnell/electrotonic/internal/store"
	"github.com/chrissnell/electrotonic/pkg/responseformat"
)

// SegmentsResponse is the body returned by POST /v1/segments.
type SegmentsResponse struct {
	RunID            string                       `json:"run_id,omitempty"`
	SkeletonID       int64                        `json:"skeleton_id"`
	Name             string                       `json:"name"`
	Constants        electrotonic.Constants       `json:"constants"`
	ConversionFactor float64                      `json:"conversion_factor"`
	Mode             electrotonic.SurfaceAreaMode `json:"mode"`
	Segments         []electrotonic.SegmentRecord `json:"segments"`
	Summary          electrotonic.Summary         `json:"summary"`
}

// Health reports liveness.
func (s *Server) Health(w http.ResponseWriter, req *http.Request) {
	body := map[string]any{"status": "ok", "version": constants.Version, "storage": s.store != nil}
	s.respond(w, req, http.StatusOK, body)
}

// ComputeSegments reads a CATMAID compact skeleton from the request body and
// returns its segment property table.
func (s *Server) ComputeSegments(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	opts, radius, err := s.requestOptions(q)
	if err != nil {
		s.fail(w, req, http.StatusBadRequest, err)
		return
	}

	save, err := boolParam(q, "save")
	if err != nil {
		s.fail(w, req, http.StatusBadRequest, err)
		return
	}
	if save && s.store == nil {
		s.fail(w, req, http.StatusServiceUnavailable, store.ErrNotConfigured)
		return
	}

	neurons, err := ingest.ReadCATMAID(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, req, http.StatusBadRequest, err)
		return
	}
	neuron, err := skeleton.Single(neurons)
	if err != nil {
		s.fail(w, req, http.StatusUnprocessableEntity, err)
		return
	}

	analysis, err := electrotonic.Analyze(req.Context(), neuron, opts, radius, s.logger)
	if err != nil {
		s.logger.Warnw("segment computation failed", "skeleton_id", neuron.SkeletonID, "error", err)
		s.fail(w, req, statusFor(err), err)
		return
	}

	resp := SegmentsResponse{
		SkeletonID:       neuron.SkeletonID,
		Name:             neuron.Name,
		Constants:        analysis.Options.Constants,
		ConversionFactor: analysis.Options.ConversionFactor,
		Mode:             analysis.Options.Mode,
		Segments:         analysis.Records,
		Summary:          analysis.Summary,
	}

	if save {
		run := store.NewRun(neuron.SkeletonID, neuron.Name, analysis.Options, analysis.Records)
		if err := s.store.SaveRun(req.Context(), run); err != nil {
			s.logger.Errorw("saving run", "skeleton_id", neuron.SkeletonID, "error", err)
			s.fail(w, req, http.StatusInternalServerError, err)
			return
		}
		resp.RunID = run.ID.String()
	}

	switch format := responseformat.Format(q.Get("format")); format {
	case responseformat.FormatCSV, responseformat.FormatTable:
		contentType := "text/plain; charset=utf-8"
		if format == responseformat.FormatCSV {
			contentType = "text/csv"
		}
		w.Header().Set("Content-Type", contentType)
		if resp.RunID != "" {
			w.Header().Set("X-Run-Id", resp.RunID)
		}
		w.WriteHeader(http.StatusOK)
		if err := s.formatter.WriteTable(w, format, resp.Segments, &resp.Summary); err != nil {
			s.logger.Errorw("error writing table", "format", format, "error", err)
		}
	default:
		s.respond(w, req, http.StatusOK, resp)
	}
}

// ListRuns returns stored run headers, newest first.
func (s *Server) ListRuns(w http.ResponseWriter, req *http.Request) {
	if s.store == nil {
		s.fail(w, req, http.StatusServiceUnavailable, store.ErrNotConfigured)
		return
	}

	limit := 0
	if v := req.URL.Query().Get("limit"); v != "" {
		var err error
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.fail(w, req, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
	}

	runs, err := s.store.ListRuns(req.Context(), limit)
	if err != nil {
		s.fail(w, req, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	s.respond(w, req, http.StatusOK, runs)
}

// GetRun returns one stored run with its records.
func (s *Server) GetRun(w http.ResponseWriter, req *http.Request) {
	if s.store == nil {
		s.fail(w, req, http.StatusServiceUnavailable, store.ErrNotConfigured)
		return
	}

	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		s.fail(w, req, http.StatusBadRequest, fmt.Errorf("invalid run id: %w", err))
		return
	}

	run, err := s.store.GetRun(req.Context(), id)
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		s.fail(w, req, http.StatusNotFound, err)
	case err != nil:
		s.fail(w, req, http.StatusInternalServerError, err)
	default:
		s.respond(w, req, http.StatusOK, run)
	}
}

// requestOptions layers query parameters over the server configuration.
func (s *Server) requestOptions(q url.Values) (electrotonic.Options, skeleton.RadiusOptions, error) {
	cfg := *s.cfg

	for name, dst := range map[string]*float64{"rm": &cfg.Model.Rm, "cm": &cfg.Model.Cm, "ri": &cfg.Model.Ri} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return electrotonic.Options{}, skeleton.RadiusOptions{}, fmt.Errorf("invalid %s %q", name, v)
		}
		*dst = f
	}
	if v := q.Get("mode"); v != "" {
		cfg.Compute.SurfaceAreaMode = v
	}
	if v := q.Get("radius_method"); v != "" {
		cfg.Compute.RadiusMethod = v
	}
	if q.Has("smooth") {
		smooth, err := boolParam(q, "smooth")
		if err != nil {
			return electrotonic.Options{}, skeleton.RadiusOptions{}, err
		}
		cfg.Compute.Smooth = &smooth
	}

	opts, err := cfg.CalculatorOptions()
	if err != nil {
		return electrotonic.Options{}, skeleton.RadiusOptions{}, err
	}
	radius, err := cfg.RadiusOptions()
	if err != nil {
		return electrotonic.Options{}, skeleton.RadiusOptions{}, err
	}
	return opts, radius, nil
}

func boolParam(q url.Values, name string) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", name, v)
	}
	return b, nil
}

// respond writes data and logs any failure. An encoding failure happens
// before anything is sent, so the client gets a 500 instead.
func (s *Server) respond(w http.ResponseWriter, req *http.Request, status int, data any) {
	err := s.formatter.WriteResponse(w, req, status, data)
	if err == nil {
		return
	}
	s.logger.Errorw("error writing response", "path", req.URL.Path, "status", status, "error", err)
	if errors.Is(err, responseformat.ErrEncoding) && status != http.StatusInternalServerError {
		s.fail(w, req, http.StatusInternalServerError, err)
	}
}

func (s *Server) fail(w http.ResponseWriter, req *http.Request, status int, err error) {
	if werr := s.formatter.WriteError(w, req, status, err); werr != nil {
		s.logger.Errorw("error writing error response", "path", req.URL.Path, "status", status, "error", werr)
	}
}

// statusFor maps a computation failure to an HTTP status.
func statusFor(err error) int {
	var segErr *electrotonic.SegmentError
	switch {
	case errors.As(err, &segErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
