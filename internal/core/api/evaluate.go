package api

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/opbuilder/internal/rules"
	"github.com/solatis/opbuilder/internal/types"
)

// EvaluateRequest is the decoded Evaluate payload:
//
//	{"field": "/process/name", "helper": "string_equal", "args": ["sshd"],
//	 "events": [{"id": "e1", "document": {...}}]}
//
// Events without an id get a generated UUIDv7.
type EvaluateRequest struct {
	Field  string
	Helper string
	Args   []string
	Events []EventInput
}

// EventInput is one event of a batch.
type EventInput struct {
	ID       types.EventID
	Document map[string]any
}

// EvaluateResponse is encoded as:
//
//	{"term": "helper.string_equal[/process/name, sshd]",
//	 "results": [{"event_id": "e1", "success": true, "trace": "...", "event": {...}}]}
type EvaluateResponse struct {
	Term    string
	Results []EventResult
}

// EventResult is the outcome for one event.
type EventResult struct {
	EventID types.EventID
	Result  rules.Result
}

// Evaluate builds the requested term once and runs it over every event.
// Data problems are per-event failures; a malformed event fails the batch.
func (s *EvaluatorService) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	defer func() {
		s.metrics.RequestDuration.WithLabelValues("evaluate").Observe(time.Since(start).Seconds())
	}()

	in, err := decodeEvaluateRequest(req)
	if err != nil {
		return nil, toStatus(err)
	}
	if len(in.Events) > s.cfg.MaxBatchSize {
		return nil, toStatus(fmt.Errorf("%w: %d events, maximum is %d",
			types.ErrBatchTooLarge, len(in.Events), s.cfg.MaxBatchSize))
	}

	resp, err := s.evaluate(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := encodeEvaluateResponse(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func (s *EvaluatorService) evaluate(ctx context.Context, in *EvaluateRequest) (*EvaluateResponse, error) {
	term, err := s.Engine().Build(in.Field, in.Helper, in.Args)
	if err != nil {
		s.metrics.Builds.WithLabelValues(resultError).Inc()
		return nil, err
	}
	s.metrics.Builds.WithLabelValues(resultOK).Inc()

	resp := &EvaluateResponse{Term: term.Name(), Results: make([]EventResult, 0, len(in.Events))}
	for _, ev := range in.Events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := term.Evaluate(types.NewEvent(ev.Document))
		if err != nil {
			s.metrics.Evaluations.WithLabelValues(term.Helper(), resultError).Inc()
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		s.metrics.Evaluations.WithLabelValues(term.Helper(), outcomeLabel(r.Success)).Inc()
		resp.Results = append(resp.Results, EventResult{EventID: ev.ID, Result: r})
	}

	s.logger.Debugw("batch evaluated", "term", term.Name(), "events", len(in.Events))
	return resp, nil
}

func decodeEvaluateRequest(req *structpb.Struct) (*EvaluateRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", types.ErrInvalidArgument)
	}
	m := req.AsMap()

	in := &EvaluateRequest{}
	var ok bool
	if in.Field, ok = m["field"].(string); !ok {
		return nil, fmt.Errorf("%w: field must be a string", types.ErrInvalidArgument)
	}
	if in.Helper, ok = m["helper"].(string); !ok {
		return nil, fmt.Errorf("%w: helper must be a string", types.ErrInvalidArgument)
	}

	rawArgs, ok := m["args"].([]any)
	if !ok && m["args"] != nil {
		return nil, fmt.Errorf("%w: args must be a list", types.ErrInvalidArgument)
	}
	in.Args = make([]string, 0, len(rawArgs))
	for i, a := range rawArgs {
		s, ok := a.(string)
		if !ok {
			return nil, fmt.Errorf("%w: args[%d] must be a string", types.ErrInvalidArgument, i)
		}
		in.Args = append(in.Args, s)
	}

	rawEvents, ok := m["events"].([]any)
	if !ok || len(rawEvents) == 0 {
		return nil, fmt.Errorf("%w: events must be a non-empty list", types.ErrInvalidArgument)
	}
	in.Events = make([]EventInput, 0, len(rawEvents))
	for i, raw := range rawEvents {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: events[%d] must be an object", types.ErrInvalidArgument, i)
		}
		doc, ok := entry["document"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: events[%d].document must be an object", types.ErrMalformedEvent, i)
		}
		id, _ := entry["id"].(string)
		if id == "" {
			id = string(types.NewEventID())
		}
		in.Events = append(in.Events, EventInput{ID: types.EventID(id), Document: doc})
	}
	return in, nil
}

func encodeEvaluateResponse(resp *EvaluateResponse) (*structpb.Struct, error) {
	results := make([]any, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]any{
			"event_id": string(r.EventID),
			"success":  r.Result.Success,
			"trace":    r.Result.Trace,
			"event":    r.Result.Event.Root(),
		})
	}
	return structpb.NewStruct(map[string]any{
		"term":    resp.Term,
		"results": results,
	})
}

// ReloadDefinitions rebinds the service to a stored definition set:
//
//	{"definition_set": "prod"} -> {"definition_set": "prod", "definitions": 12}
func (s *EvaluatorService) ReloadDefinitions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	defer func() {
		s.metrics.RequestDuration.WithLabelValues("reload").Observe(time.Since(start).Seconds())
	}()

	name, _ := req.AsMap()["definition_set"].(string)
	if name == "" {
		name = s.cfg.DefinitionSet
	}
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "definition_set is required")
	}

	n, err := s.LoadDefinitions(ctx, name)
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := structpb.NewStruct(map[string]any{"definition_set": name, "definitions": n})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}
