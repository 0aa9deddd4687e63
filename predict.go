package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
)

// The ML forecasting service is the system of record for predictions; these
// handlers only forward the caller's identity and translate failure modes.

// POST /api/predict  {model_type?}
func (a *app) handlePredict(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var in struct {
		ModelType string `json:"model_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		errorJSON(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if in.ModelType == "" {
		in.ModelType = "linear"
	}

	log.Printf("[predict] requesting prediction for user %d with model %s", user.ID, in.ModelType)

	ctx, cancel := context.WithTimeout(r.Context(), a.cfg.PredictTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/predict/%d?model_type=%s",
		a.cfg.MLBackendURL, user.ID, url.QueryEscape(in.ModelType))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		a.serverError(w, "predict", "Failed to generate prediction", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.ml.Do(req)
	if err != nil {
		log.Printf("[predict] upstream error: %v", err)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			errorJSON(w, http.StatusGatewayTimeout, "ML prediction timeout. Please try again.")
		case isConnectionFailure(err):
			errorJSON(w, http.StatusServiceUnavailable, "ML service temporarily unavailable")
		default:
			errorJSON(w, http.StatusInternalServerError, "Failed to generate prediction")
		}
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		a.serverError(w, "predict", "Failed to generate prediction", err)
		return
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		// The forecaster rejects users without enough history; pass its
		// detail through when present.
		var detail struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(body, &detail)
		if detail.Detail == "" {
			detail.Detail = "Not enough transaction history for prediction"
		}
		errorJSON(w, http.StatusBadRequest, detail.Detail)

	case resp.StatusCode == http.StatusBadGateway:
		errorJSON(w, http.StatusBadGateway, "ML service cannot connect to transaction service. Please try again later.")

	case resp.StatusCode/100 == 2:
		if !json.Valid(body) {
			log.Printf("[predict] invalid JSON from ML backend (status %d)", resp.StatusCode)
			errorJSON(w, http.StatusInternalServerError, "Failed to generate prediction")
			return
		}
		log.Printf("[predict] prediction successful for user %d", user.ID)
		dataJSON(w, http.StatusOK, "", json.RawMessage(body))

	default:
		log.Printf("[predict] unexpected ML status %d", resp.StatusCode)
		errorJSON(w, http.StatusInternalServerError, "Failed to generate prediction")
	}
}

// GET /api/predict/history?limit=
func (a *app) handlePredictHistory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.cfg.HistoryTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/predictions/%d?limit=%d", a.cfg.MLBackendURL, user.ID, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		a.serverError(w, "predict", "Failed to fetch prediction history", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.ml.Do(req)
	if err != nil {
		log.Printf("[predict] history upstream error: %v", err)
		if !errors.Is(err, context.DeadlineExceeded) && isConnectionFailure(err) {
			errorJSON(w, http.StatusServiceUnavailable, "ML service temporarily unavailable")
			return
		}
		errorJSON(w, http.StatusInternalServerError, "Failed to fetch prediction history")
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		a.serverError(w, "predict", "Failed to fetch prediction history", err)
		return
	}

	if resp.StatusCode/100 != 2 || !json.Valid(body) {
		log.Printf("[predict] history unexpected ML status %d", resp.StatusCode)
		errorJSON(w, http.StatusInternalServerError, "Failed to fetch prediction history")
		return
	}

	dataJSON(w, http.StatusOK, "", json.RawMessage(body))
}

// isConnectionFailure reports whether the ML backend could not be reached at
// all (refused, unreachable, DNS failure) as opposed to failing mid-request.
func isConnectionFailure(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
