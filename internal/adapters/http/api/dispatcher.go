package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/featreg/internal/domain/model"
	"github.com/okian/featreg/internal/domain/registry"
)

const apiPrefix = "/api/"

// Feature operations addressed by the last path segment. opRecord is the
// bare /api/v{id} resource.
const (
	opRecord   = ""
	opHealth   = "health"
	opData     = "data"
	opRegister = "register"
)

// Collection resources under /api/.
const (
	collFeatures = "features"
	collChanges  = "changes"
)

var allowedMethods = map[string][]string{
	opRecord:     {http.MethodGet, http.MethodPatch, http.MethodDelete},
	opHealth:     {http.MethodGet},
	opData:       {http.MethodGet},
	opRegister:   {http.MethodPost},
	collFeatures: {http.MethodGet},
	collChanges:  {http.MethodGet},
}

// target is a parsed /api path. Either collection is set, or id and op are.
type target struct {
	collection string
	id         int64
	op         string
}

// parsePath parses /api/v{id}[/{op}], /api/features and /api/changes.
func parsePath(path string) (target, error) {
	const op = "parse"

	rest, ok := strings.CutPrefix(path, apiPrefix)
	if !ok || rest == "" {
		return target{}, NewKind(op, ErrBadRequest, "malformed path %q", path)
	}

	segs := strings.Split(rest, "/")
	switch segs[0] {
	case collFeatures, collChanges:
		if len(segs) != 1 {
			return target{}, NewKind(op, ErrBadRequest, "malformed path %q", path)
		}
		return target{collection: segs[0]}, nil
	}

	if len(segs) > 2 {
		return target{}, NewKind(op, ErrBadRequest, "malformed path %q: too many segments", path)
	}
	literal, ok := strings.CutPrefix(segs[0], "v")
	if !ok {
		return target{}, NewKind(op, ErrBadRequest, "malformed path %q: expected /api/v{id}", path)
	}
	id, err := parseID(literal)
	if err != nil {
		return target{}, WrapKind(op, ErrBadRequest, err)
	}

	t := target{id: id, op: opRecord}
	if len(segs) == 2 {
		if segs[1] == "" {
			return target{}, NewKind(op, ErrBadRequest, "malformed path %q: empty operation", path)
		}
		t.op = segs[1]
		if _, known := allowedMethods[t.op]; !known || t.op == collFeatures || t.op == collChanges {
			return target{}, NewKind(op, ErrNotFound, "unknown operation %q", t.op)
		}
	}
	return t, nil
}

// parseID accepts a non-negative decimal literal without leading zeros.
func parseID(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("missing feature id")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errors.New("feature id must be a non-negative integer")
		}
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, errors.New("feature id must not have leading zeros")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New("feature id out of range")
	}
	return id, nil
}

// Dispatcher maps (method, path) pairs under /api/ onto registry operations.
type Dispatcher struct {
	deps   Dependencies
	server *Server
}

// NewDispatcher creates a dispatcher over deps. Errors are rendered and
// logged through server.
func NewDispatcher(deps Dependencies, server *Server) *Dispatcher {
	return &Dispatcher{deps: deps, server: server}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t, err := parsePath(r.URL.Path)
	if err != nil {
		d.server.fail(w, r, err)
		return
	}

	key := t.op
	if t.collection != "" {
		key = t.collection
	}
	if !methodAllowed(key, r.Method) {
		w.Header().Set("Allow", strings.Join(allowedMethods[key], ", "))
		d.server.fail(w, r, NewKind("dispatch", ErrMethodNotAllowed, "%s not allowed on %s", r.Method, r.URL.Path))
		return
	}

	switch {
	case t.collection == collFeatures:
		d.handleList(w, r)
	case t.collection == collChanges:
		d.handleChanges(w, r)
	case t.op == opHealth:
		d.handleHealth(w, r, t.id)
	case t.op == opData:
		d.handleData(w, r, t.id)
	case t.op == opRegister:
		d.handleRegister(w, r, t.id)
	case r.Method == http.MethodGet:
		d.handleGet(w, r, t.id)
	case r.Method == http.MethodPatch:
		d.handleUpdate(w, r, t.id)
	default:
		d.handleDelete(w, r, t.id)
	}
}

func methodAllowed(key, method string) bool {
	for _, m := range allowedMethods[key] {
		if m == method {
			return true
		}
	}
	return false
}

type healthResponse struct {
	Status    model.Status `json:"status"`
	FeatureID int64        `json:"feature_id"`
	Timestamp time.Time    `json:"timestamp"`
}

// handleHealth always answers 200. An absent feature reports "unknown" so
// liveness probes never fail on registry state.
func (d *Dispatcher) handleHealth(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := d.deps.Get(r.Context(), id)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeJSON(w, http.StatusOK, healthResponse{Status: model.StatusUnknown, FeatureID: id, Timestamp: d.server.now()})
	case err != nil:
		d.server.fail(w, r, Wrap("health", err))
	default:
		writeJSON(w, http.StatusOK, healthResponse{Status: rec.Status, FeatureID: id, Timestamp: rec.UpdatedAt})
	}
}

type dataResponse struct {
	Data      string    `json:"data"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

func (d *Dispatcher) handleData(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := d.deps.Get(r.Context(), id)
	if err != nil {
		d.server.fail(w, r, Wrap("data", err))
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: rec.Data, Version: rec.Version, CreatedAt: rec.CreatedAt})
}

func (d *Dispatcher) handleGet(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := d.deps.Get(r.Context(), id)
	if err != nil {
		d.server.fail(w, r, Wrap("get", err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (d *Dispatcher) handleRegister(w http.ResponseWriter, r *http.Request, id int64) {
	const op = "register"

	body, err := decodeStringFields(w, r)
	if err != nil {
		d.server.fail(w, r, Wrap(op, err))
		return
	}
	for key := range body {
		if key != model.FieldData {
			d.server.fail(w, r, NewKind(op, ErrInvalidField, "unrecognized field %q", key))
			return
		}
	}
	data, ok := body[model.FieldData]
	if !ok {
		d.server.fail(w, r, NewKind(op, ErrInvalidInput, "missing data"))
		return
	}

	rec, err := d.deps.Register(r.Context(), id, data)
	if err != nil {
		d.server.fail(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/api/v"+strconv.FormatInt(id, 10))
	writeJSON(w, http.StatusCreated, rec)
}

func (d *Dispatcher) handleUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	const op = "update"

	body, err := decodeStringFields(w, r)
	if err != nil {
		d.server.fail(w, r, Wrap(op, err))
		return
	}
	rec, err := d.deps.Update(r.Context(), id, model.Fields(body))
	if err != nil {
		d.server.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (d *Dispatcher) handleDelete(w http.ResponseWriter, r *http.Request, id int64) {
	if err := d.deps.Delete(r.Context(), id); err != nil {
		d.server.fail(w, r, Wrap("delete", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type listResponse struct {
	Features []model.FeatureRecord `json:"features"`
	Total    int                   `json:"total"`
}

func (d *Dispatcher) handleList(w http.ResponseWriter, r *http.Request) {
	features := d.deps.List(r.Context())
	if features == nil {
		features = []model.FeatureRecord{}
	}
	writeJSON(w, http.StatusOK, listResponse{Features: features, Total: len(features)})
}

type changesResponse struct {
	Changes []model.Change `json:"changes"`
	Limit   int            `json:"limit"`
}

func (d *Dispatcher) handleChanges(w http.ResponseWriter, r *http.Request) {
	limit := defaultChangesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			d.server.fail(w, r, NewKind("changes", ErrBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	if limit > d.server.maxChangesLimit {
		limit = d.server.maxChangesLimit
	}

	changes := d.deps.RecentChanges(r.Context(), limit)
	if changes == nil {
		changes = []model.Change{}
	}
	writeJSON(w, http.StatusOK, changesResponse{Changes: changes, Limit: limit})
}

// decodeStringFields reads a JSON object whose values are all strings.
func decodeStringFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, NewKind("decode", ErrTooLarge, "request body exceeds %d bytes", maxBodyBytes)
		case errors.Is(err, io.EOF):
			return nil, NewKind("decode", ErrBadRequest, "request body is required")
		default:
			return nil, NewKind("decode", ErrBadRequest, "malformed JSON body: %v", err)
		}
	}
	if raw == nil {
		return nil, NewKind("decode", ErrBadRequest, "request body must be a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, NewKind("decode", ErrBadRequest, "request body must contain a single JSON object")
	}

	out := make(map[string]string, len(raw))
	for key, val := range raw {
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			return nil, NewKind("decode", ErrInvalidInput, "field %q must be a string", key)
		}
		out[key] = s
	}
	return out, nil
}
