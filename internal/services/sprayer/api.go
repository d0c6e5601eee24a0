package sprayer

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/analyzer"
)

const defaultMaxImageBytes = 16 << 20

// API is the HTTP adapter of the Service.
type API struct {
	svc      *Service
	maxImage int64
}

func NewAPI(svc *Service, maxImageBytes int64) *API {
	if maxImageBytes <= 0 {
		maxImageBytes = defaultMaxImageBytes
	}
	return &API{svc: svc, maxImage: maxImageBytes}
}

// Routes returns the mux with every endpoint wrapped by the metrics middleware.
func (a *API) Routes() http.Handler {
	m := a.svc.metrics
	mux := http.NewServeMux()
	handle := func(pattern, route string, h http.HandlerFunc) {
		mux.Handle(pattern, m.WrapHandler(route, h))
	}

	handle("GET /{$}", "/", a.HandleIndex)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", m.Handler())

	handle("GET /sensors", "/sensors", a.HandleSensors)
	handle("POST /sensors/update", "/sensors/update", a.HandleSensorUpdate)
	handle("POST /assess", "/assess", a.HandleAssess)
	handle("POST /analyze", "/analyze", a.HandleAnalyze)
	handle("POST /control/spray", "/control/spray", a.HandleSpray)
	handle("GET /control/status", "/control/status", a.HandleStatus)
	return mux
}

func (a *API) HandleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Intelligent Pesticide Sprinkler System API",
		"version": "1.0.0",
		"endpoints": []string{
			"POST /analyze - Analyze leaf image",
			"POST /assess - Evaluate a disease assessment",
			"GET /sensors - Get sensor readings",
			"POST /sensors/update - Update sensor data from IoT",
			"POST /control/spray - Control spray pump",
			"GET /control/status - Get spray system status",
		},
	})
}

// ============== Sensors ==============

func (a *API) HandleSensors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": a.svc.CurrentSensorReading()})
}

func (a *API) HandleSensorUpdate(w http.ResponseWriter, r *http.Request) {
	var patch entities.SensorPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reading := a.svc.RecordSensorReading(patch)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Sensor data updated",
		"data":    reading,
	})
}

// ============== Assessment ==============

func (a *API) HandleAssess(w http.ResponseWriter, r *http.Request) {
	var req AssessRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeAssessment(w, a.svc.Assess(req))
}

// HandleAnalyze takes the raw image as body; soil_moisture may be passed as
// query parameter.
func (a *API) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var moisture *float64
	if v := r.URL.Query().Get("soil_moisture"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			writeError(w, http.StatusBadRequest, "soil moisture must be a number")
			return
		}
		moisture = &f
	}

	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxImage))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		writeError(w, http.StatusBadRequest, "cannot read image")
		return
	}

	res, err := a.svc.AnalyzeImage(r.Context(), image, moisture)
	switch {
	case err == nil:
		writeAssessment(w, res)
	case errors.Is(err, entities.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, analyzer.ErrAnalyzerUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// ============== Spray control ==============

type sprayBody struct {
	Command      string   `json:"command"`
	Duration     *float64 `json:"duration"`
	SoilMoisture *float64 `json:"soil_moisture"`
}

type sprayResponse struct {
	entities.CommandResult
	SprayAllowed bool   `json:"spray_allowed"`
	Message      string `json:"message"`
}

func (a *API) HandleSpray(w http.ResponseWriter, r *http.Request) {
	var body sprayBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := SprayCommandRequest{Command: body.Command, SoilMoisture: body.SoilMoisture}
	// Only START reads a duration; STOP ignores it.
	if cmd, err := entities.ParseCommand(body.Command); err == nil && cmd == entities.CommandStart && body.Duration != nil {
		n, err := entities.DurationSeconds(*body.Duration)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Duration = &n
	}

	res, err := a.svc.SubmitSprayCommand(r.Context(), req)
	if err != nil {
		if errors.Is(err, entities.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	code := http.StatusOK
	if !res.Accepted {
		code = http.StatusForbidden
	}
	writeJSON(w, code, sprayResponse{
		CommandResult: res,
		SprayAllowed:  res.Accepted,
		Message:       res.Message(),
	})
}

func (a *API) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	st := a.svc.SpraySystemStatus()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"is_spraying":  st.IsSpraying(),
		"spray_status": st,
	})
}

// --------------------- helpers ---------------------

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeAssessment(w http.ResponseWriter, a Assessment) {
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		Assessment
	}{Success: true, Assessment: a})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"success": false, "error": msg})
}
