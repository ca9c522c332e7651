package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/limits"
	"mercator-hq/tollgate/pkg/limits/bucket"
	"mercator-hq/tollgate/pkg/limits/cost"
	"mercator-hq/tollgate/pkg/server/types"
	"mercator-hq/tollgate/pkg/telemetry/logging"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
)

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.NewBucketList(s.manager.List()))
}

func (s *Server) handleGetBucket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state, err := s.manager.Get(id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewBucket(id, state))
}

// handlePutBucket creates or replaces a bucket. It answers 201 when the
// bucket did not exist and 200 when it was replaced.
func (s *Server) handlePutBucket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req types.PutBucketRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	spec, err := config.BucketConfig{
		Capacity:       req.Capacity,
		InitialBalance: req.InitialBalance,
		RefillRate:     req.RefillRate,
	}.Spec()
	if err != nil {
		if !errors.Is(err, limits.ErrInvalidArgument) {
			err = fmt.Errorf("%w: %v", limits.ErrInvalidArgument, err)
		}
		handleError(w, r, err)
		return
	}

	replaced, err := s.manager.PutBucket(id, spec.Capacity, spec.InitialBalance, spec.RefillRate)
	if err != nil {
		handleError(w, r, err)
		return
	}

	state, err := s.manager.Get(id)
	if err != nil {
		handleError(w, r, err)
		return
	}

	status := http.StatusCreated
	if replaced {
		status = http.StatusOK
	}
	writeJSON(w, status, types.NewBucket(id, state))
}

func (s *Server) handleDeleteBucket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.manager.Remove(id) {
		handleError(w, r, fmt.Errorf("%w: %q", limits.ErrNotFound, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleConsume charges a bucket for one request.
//
//	200: allowed (or unlimited)
//	429: exhausted, with Retry-After when the bucket refills
//	404: no such bucket
func (s *Server) handleConsume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := logging.WithBucket(r.Context(), id)

	var req types.ConsumeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	charged, usage, err := s.price(req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	ctx, span := s.tracer.Start(ctx, "limits.consume")
	defer span.End()

	decision, err := s.manager.TryConsume(id, charged)
	tracing.SetError(span, err)
	if err != nil {
		handleError(w, r, err)
		return
	}
	tracing.SetDecisionAttributes(span, id, charged, string(decision.Outcome), decision.Balance, decision.RetryAfter)
	if req.Model != "" {
		tracing.SetModelAttribute(span, req.Model)
	}

	if decision.Outcome == limits.OutcomeNotFound {
		writeError(w, http.StatusNotFound, newNotFound(
			fmt.Sprintf("%v: %q", limits.ErrNotFound, id), types.CodeBucketNotFound))
		return
	}

	usageTokens := charged
	if usage != nil {
		usageTokens = float64(usage.Total())
	}
	s.metrics.RecordCharge(req.Model, usageTokens, charged, decision.Allowed)

	logging.FromContext(ctx).DebugContext(ctx, "consume decision",
		"tokens", charged,
		"outcome", decision.Outcome,
	)

	view := types.NewDecision(decision, charged, usage)
	if !decision.Allowed {
		if decision.RetryAfter > 0 {
			w.Header().Set("Retry-After", retryAfterSeconds(decision.RetryAfter))
		}
		writeJSON(w, http.StatusTooManyRequests, view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// price returns the number of tokens a consume request costs, and the
// usage it was derived from when it was not a raw count.
func (s *Server) price(req types.ConsumeRequest) (float64, *cost.Usage, error) {
	switch {
	case req.Tokens != nil:
		return *req.Tokens, nil, nil
	case req.Usage != nil:
		usage := *req.Usage
		return s.costTable().For(req.Model)(usage), &usage, nil
	case len(req.Messages) > 0:
		usage := s.estimator.EstimateTurn(req.Messages, req.MaxCompletionTokens)
		return s.costTable().For(req.Model)(usage), &usage, nil
	default:
		return bucket.DefaultCost, nil, nil
	}
}

// retryAfterSeconds formats d for the Retry-After header, rounding up so
// clients never retry early.
func retryAfterSeconds(d time.Duration) string {
	return strconv.FormatInt(int64(math.Ceil(d.Seconds())), 10)
}

func (s *Server) handleRefillBucket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.manager.Refill(id); err != nil {
		handleError(w, r, err)
		return
	}
	state, err := s.manager.Get(id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewBucket(id, state))
}

// handleWait reports how long until ?tokens=N will be available.
func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	raw := r.URL.Query().Get("tokens")
	if raw == "" {
		writeError(w, http.StatusBadRequest, newInvalid("tokens query parameter is required", "tokens", types.CodeMissingField))
		return
	}
	tokens, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, newInvalid(
			fmt.Sprintf("tokens must be a number, got %q", raw), "tokens", types.CodeInvalidValue))
		return
	}

	wait, err := s.manager.TimeUntilAvailable(id, tokens)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.Wait{
		Tokens: tokens,
		WaitMs: wait.Milliseconds(),
		Ready:  wait == 0,
	})
}

func (s *Server) handleRefillAll(w http.ResponseWriter, r *http.Request) {
	var n int
	if s.scheduler != nil {
		n = s.scheduler.RefillNow(r.Context())
	} else {
		n = s.manager.RefillAll()
	}
	writeJSON(w, http.StatusOK, types.Refill{Refilled: n})
}
