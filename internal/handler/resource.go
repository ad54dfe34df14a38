package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"RestJSON/internal/logger"
	"RestJSON/internal/metrics"
	"RestJSON/internal/model"
	"RestJSON/internal/rescue"
	"RestJSON/internal/resolver"
)

// HandlerFunc is an HTTP handler that hands unhandled errors back to the
// router.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

type actionFunc func(ctx context.Context, res *model.Resource, r *http.Request) (value any, successCode int, err error)

// ResourceHandler serves the REST actions of every registered resource.
// The resource is taken from the {resource} path segment.
type ResourceHandler struct {
	Registry   *model.Registry
	Compiler   *resolver.Compiler
	Writer     *resolver.Writer
	Dispatcher *Dispatcher
}

const maxBodyBytes = 1 << 20

// Index lists records: GET /{resource}.
func (h *ResourceHandler) Index(w http.ResponseWriter, r *http.Request) error {
	return h.serve(w, r, "index", h.list("index"))
}

// Member serves GET /{resource}/{id}. A segment naming a declared query
// action runs that action instead of show.
func (h *ResourceHandler) Member(w http.ResponseWriter, r *http.Request) error {
	seg := r.PathValue("id")
	if res, ok := h.resource(r); ok && res.IsQueryAction(seg) {
		return h.serve(w, r, seg, h.list(seg))
	}
	return h.serve(w, r, "show", h.show)
}

// New returns an unsaved record with defaults: GET /{resource}/new.
func (h *ResourceHandler) New(w http.ResponseWriter, r *http.Request) error {
	return h.serve(w, r, "new", func(ctx context.Context, res *model.Resource, _ *http.Request) (any, int, error) {
		rec, err := h.Writer.New(ctx, res)
		return rec, http.StatusOK, err
	})
}

// Edit fetches a record for editing and fails when it is missing:
// GET /{resource}/{id}/edit.
func (h *ResourceHandler) Edit(w http.ResponseWriter, r *http.Request) error {
	return h.serve(w, r, "edit", func(ctx context.Context, res *model.Resource, r *http.Request) (any, int, error) {
		rec, err := h.Writer.MustFind(ctx, res, r.PathValue("id"))
		return rec, http.StatusOK, err
	})
}

// Create inserts a record: POST /{resource}.
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) error {
	return h.serve(w, r, "create", func(ctx context.Context, res *model.Resource, r *http.Request) (any, int, error) {
		input, err := decodeBody(r, res)
		if err != nil {
			return nil, 0, err
		}
		rec, err := h.Writer.Create(ctx, res, input)
		return rec, http.StatusCreated, err
	})
}

// Update changes a record: PUT or PATCH /{resource}/{id}.
func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) error {
	return h.serve(w, r, "update", func(ctx context.Context, res *model.Resource, r *http.Request) (any, int, error) {
		input, err := decodeBody(r, res)
		if err != nil {
			return nil, 0, err
		}
		rec, err := h.Writer.Update(ctx, res, r.PathValue("id"), input)
		return rec, http.StatusOK, err
	})
}

// Destroy deletes a record: DELETE /{resource}/{id}. Deleting a missing
// record succeeds.
func (h *ResourceHandler) Destroy(w http.ResponseWriter, r *http.Request) error {
	return h.serve(w, r, "destroy", func(ctx context.Context, res *model.Resource, r *http.Request) (any, int, error) {
		rec, err := h.Writer.Destroy(ctx, res, r.PathValue("id"))
		return rec, http.StatusOK, err
	})
}

func (h *ResourceHandler) list(action string) actionFunc {
	return func(ctx context.Context, res *model.Resource, r *http.Request) (any, int, error) {
		result, err := h.Compiler.Index(ctx, res, action, r.URL.Query())
		if err != nil {
			return nil, 0, err
		}
		return result.Value(), http.StatusOK, nil
	}
}

func (h *ResourceHandler) show(ctx context.Context, res *model.Resource, r *http.Request) (any, int, error) {
	rec, err := h.Writer.Find(ctx, res, r.PathValue("id"))
	return rec, http.StatusOK, err
}

func (h *ResourceHandler) resource(r *http.Request) (*model.Resource, bool) {
	return h.Registry.Get(r.PathValue("resource"))
}

func (h *ResourceHandler) serve(w http.ResponseWriter, r *http.Request, action string, fn actionFunc) error {
	res, ok := h.resource(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, rescue.Payload{
			Status: rescue.StatusName(http.StatusNotFound),
			Error:  "unknown resource " + strconv.Quote(r.PathValue("resource")),
		})
		return nil
	}

	logger.Debug("action_called", map[string]any{
		"resource":     res.Name(),
		"action":       action,
		"method":       r.Method,
		"content_type": r.Header.Get("Content-Type"),
		"params":       r.URL.RawQuery,
	})

	started := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(res.Name(), action).Observe(time.Since(started).Seconds())
	}()

	value, code, err := fn(r.Context(), res, r)
	if err != nil {
		status, handled := h.Dispatcher.RenderError(w, res, err)
		if !handled {
			return err
		}
		metrics.RequestsTotal.WithLabelValues(res.Name(), action, strconv.Itoa(status)).Inc()
		return nil
	}

	status := h.Dispatcher.RenderOrRespond(w, res, action, value, code)
	metrics.RequestsTotal.WithLabelValues(res.Name(), action, strconv.Itoa(status)).Inc()
	return nil
}

// decodeBody reads a JSON object. A body of the form {"<singular>": {...}}
// is unwrapped. Whole numbers decode as int64; nested values are rejected.
func decodeBody(r *http.Request, res *model.Resource) (map[string]any, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, rescue.BadRequest("read body: %v", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var input map[string]any
	if err := dec.Decode(&input); err != nil {
		return nil, rescue.BadRequest("invalid JSON body: %v", err)
	}
	if inner, ok := input[res.Singular()].(map[string]any); ok && len(input) == 1 {
		input = inner
	}
	for k, v := range input {
		switch v.(type) {
		case map[string]any, []any:
			return nil, rescue.BadRequest("attribute %q must be a scalar", k)
		}
		input[k] = normalizeNumber(v)
	}
	return input, nil
}

func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
