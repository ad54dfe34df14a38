package handler

import (
	"encoding/json"
	"net/http"

	"RestJSON/internal/logger"
	"RestJSON/internal/metrics"
	"RestJSON/internal/model"
	"RestJSON/internal/rescue"
	"RestJSON/internal/serializer"
)

// Dispatcher turns action results and errors into HTTP responses.
type Dispatcher struct {
	Dict            *model.Dictionary
	ReturnErrorData bool
}

// RenderOrRespond writes value for action and returns the status sent.
// Invalid records answer 422 with their errors, destroy answers a bodiless
// 200 and a missing record a bodiless 404.
func (d *Dispatcher) RenderOrRespond(w http.ResponseWriter, res *model.Resource, action string, value any, successCode int) int {
	if rec, ok := value.(*model.Record); ok {
		switch {
		case rec != nil && !rec.Valid():
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": rec.Errors})
			return http.StatusUnprocessableEntity
		case action == "destroy":
			w.WriteHeader(http.StatusOK)
			return http.StatusOK
		case rec == nil:
			w.WriteHeader(http.StatusNotFound)
			return http.StatusNotFound
		}
	}

	writeJSON(w, successCode, serializer.Render(res, action, value, d.Dict))
	return successCode
}

// RenderError renders err through the resource's rescue rules. It reports
// false when no rule handles err; the caller must then propagate it.
func (d *Dispatcher) RenderError(w http.ResponseWriter, res *model.Resource, err error) (int, bool) {
	kind := rescue.KindOf(err)
	metrics.ErrorsTotal.WithLabelValues(kind.Name()).Inc()

	rule, ok := res.Classifier().Classify(err)
	if !ok {
		return 0, false
	}

	withData := d.ReturnErrorData
	if v, set := res.ReturnErrorData(); set {
		withData = v
	}
	status := rule.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	rule.Status = status

	fields := map[string]any{
		"resource": res.Name(),
		"kind":     kind.Name(),
		"status":   status,
		"error":    err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("action_failed", fields)
	} else {
		logger.Warn("action_rejected", fields)
	}

	writeJSON(w, status, rescue.NewPayload(err, rule, d.Dict, withData))
	return status, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("write_response_failed", map[string]any{"error": err.Error()})
	}
}
