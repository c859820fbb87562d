package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/snowball-gateway/pkg/batch"
	"github.com/Sternrassler/snowball-gateway/pkg/credential"
	"github.com/Sternrassler/snowball-gateway/pkg/gateway"
	"github.com/Sternrassler/snowball-gateway/pkg/normalize"
	"github.com/Sternrassler/snowball-gateway/pkg/snowball"
	"github.com/go-chi/chi/v5"
)

// Query keys consumed by the server rather than forwarded as operation args.
const (
	queryProfile = "profile"
	queryRaw     = "raw"
	querySymbols = "symbols"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status      string `json:"status"`
	Credentials int    `json:"credentials"`
	Cache       string `json:"cache"`
}

type paramInfo struct {
	Name     string `json:"name"`
	Default  string `json:"default,omitempty"`
	Required bool   `json:"required,omitempty"`
}

type opInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Host        string      `json:"host"`
	Profile     string      `json:"profile,omitempty"`
	Params      []paramInfo `json:"params"`
}

type invokeResponse struct {
	Operation string `json:"operation"`
	Profile   string `json:"profile,omitempty"`
	Data      any    `json:"data"`
}

type batchResponse struct {
	Operation string         `json:"operation"`
	Profile   string         `json:"profile,omitempty"`
	Data      map[string]any `json:"data"`
	Errors    []string       `json:"errors,omitempty"`
}

type limiterStatus struct {
	Interval    string    `json:"interval"`
	MinInterval string    `json:"min_interval"`
	MaxInterval string    `json:"max_interval"`
	LastRequest time.Time `json:"last_request"`
	BackedOff   bool      `json:"backed_off"`
}

type statusResponse struct {
	Credentials []credential.Status `json:"credentials"`
	Limiter     limiterStatus       `json:"limiter"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Cache: "disabled"}
	if s.deps.Pool != nil {
		resp.Credentials = len(s.deps.Pool.Snapshot())
	}

	status := http.StatusOK
	if s.deps.Cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Cache.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Cache = "error: " + err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Cache = "ok"
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListOps(w http.ResponseWriter, r *http.Request) {
	specs := snowball.Operations()
	out := make([]opInfo, 0, len(specs))
	for _, spec := range specs {
		info := opInfo{
			Name:        spec.Name,
			Description: spec.Description,
			Host:        string(spec.Host),
			Profile:     string(spec.Profile),
			Params:      make([]paramInfo, 0, len(spec.Params)),
		}
		for _, p := range spec.Params {
			info.Params = append(info.Params, paramInfo{Name: p.Name, Default: p.Default, Required: p.Required})
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "operation")
	query := r.URL.Query()

	profile, err := resolveProfile(name, query)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	op, err := snowball.BuildOperation(name, operationArgs(query))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	if raw, _ := strconv.ParseBool(query.Get(queryRaw)); raw {
		payload, err := s.deps.Gateway.Fetch(r.Context(), op)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
		return
	}

	data, err := s.deps.Gateway.Invoke(r.Context(), op, profile)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, invokeResponse{Operation: name, Profile: string(profile), Data: data})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Batch == nil {
		writeError(w, http.StatusNotImplemented, "batch fetching is not enabled")
		return
	}

	name := chi.URLParam(r, "operation")
	query := r.URL.Query()

	symbols := splitList(query.Get(querySymbols))
	if len(symbols) == 0 {
		writeError(w, http.StatusBadRequest, "symbols is required")
		return
	}

	profile, err := resolveProfile(name, query)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	args := operationArgs(query)
	delete(args, querySymbols)

	data, err := s.deps.Batch.FetchSymbols(r.Context(), name, symbols, args, profile)
	if err != nil && (len(data) == 0 || errors.Is(err, gateway.ErrAuthExpired)) {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{
		Operation: name,
		Profile:   string(profile),
		Data:      data,
		Errors:    errorList(err),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	if s.deps.Pool != nil {
		resp.Credentials = s.deps.Pool.Snapshot()
	}
	if s.deps.Limiter != nil {
		st := s.deps.Limiter.State()
		resp.Limiter = limiterStatus{
			Interval:    st.CurrentInterval.String(),
			MinInterval: st.MinInterval.String(),
			MaxInterval: st.MaxInterval.String(),
			LastRequest: st.LastRequest,
			BackedOff:   st.IsBackedOff(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolveProfile returns the ?profile= override, or the operation's own profile.
func resolveProfile(name string, query url.Values) (normalize.Profile, error) {
	spec, ok := snowball.Lookup(name)
	if !ok {
		return normalize.ProfileNone, fmt.Errorf("%w: %q", snowball.ErrUnknownOperation, name)
	}
	if !query.Has(queryProfile) {
		return spec.Profile, nil
	}
	return normalize.ParseProfile(query.Get(queryProfile))
}

// operationArgs turns the query into operation arguments, dropping server keys.
func operationArgs(query url.Values) map[string]string {
	args := make(map[string]string, len(query))
	for k, vs := range query {
		if k == queryProfile || k == queryRaw || len(vs) == 0 {
			continue
		}
		args[k] = vs[0]
	}
	return args
}

// statusFor maps a gateway error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, gateway.ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.Is(err, snowball.ErrUnknownOperation):
		return http.StatusNotFound
	case errors.Is(err, snowball.ErrMissingParam),
		errors.Is(err, snowball.ErrUnknownParam),
		errors.Is(err, normalize.ErrUnknownProfile),
		errors.Is(err, batch.ErrNoSymbolParam):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func errorList(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
