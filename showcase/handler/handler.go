package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/byte4ever/showcase_publisher/showcase/contribution"
	"github.com/byte4ever/showcase_publisher/showcase/publisher"
)

// DefaultMaxBodyBytes caps request bodies when
// Options.MaxBodyBytes is unset.
const DefaultMaxBodyBytes int64 = 8 << 20

// HeaderRequestID carries the request id on every
// response.
const HeaderRequestID = "X-Request-Id"

// Publisher publishes one validated contribution.
type Publisher interface {
	Publish(
		ctx context.Context,
		req *contribution.Request,
	) (*publisher.Result, error)
}

// Options tunes the inbound surface.
type Options struct {
	// AllowedOrigin is sent as
	// Access-Control-Allow-Origin. Defaults to "*".
	AllowedOrigin string
	// MaxBodyBytes limits the request body size.
	MaxBodyBytes int64
}

// Handler turns HTTP requests and API gateway events
// into publisher calls.
type Handler struct {
	pub   Publisher
	opts  Options
	newID func() string
}

var _ http.Handler = (*Handler)(nil)

// New returns a Handler publishing through pub.
func New(pub Publisher, opts Options) *Handler {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}

	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return &Handler{
		pub:   pub,
		opts:  opts,
		newID: uuid.NewString,
	}
}

type pullRequestBody struct {
	Number int64  `json:"number"`
	URL    string `json:"url"`
}

type successBody struct {
	RequestID   string          `json:"requestId"`
	Branch      string          `json:"branch"`
	PullRequest pullRequestBody `json:"pullRequest"`
	Files       []string        `json:"files"`
}

type errorBody struct {
	RequestID  string                    `json:"requestId"`
	Error      string                    `json:"error"`
	Fields     []contribution.FieldError `json:"fields,omitempty"`
	Step       publisher.Step            `json:"step,omitempty"`
	RolledBack *bool                     `json:"rolledBack,omitempty"`
}

type response struct {
	status int
	body   any
}

func failure(status int, id, msg string) response {
	return response{
		status: status,
		body:   errorBody{RequestID: id, Error: msg},
	}
}

// ServeHTTP accepts a JSON contribution on POST.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := h.newID()

	w.Header().Set(HeaderRequestID, id)
	h.writeCORS(w.Header())

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		writeJSON(w, failure(
			http.StatusMethodNotAllowed, id, "method not allowed",
		))

		return
	}

	body, err := io.ReadAll(
		http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes),
	)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, failure(
				http.StatusRequestEntityTooLarge,
				id, "request body too large",
			))

			return
		}

		writeJSON(w, failure(
			http.StatusBadRequest, id, "reading request body",
		))

		return
	}

	writeJSON(w, h.process(r.Context(), id, body))
}

// HandleEvent is the serverless entry point. It always
// returns a response; failures are reported through the
// status code.
func (h *Handler) HandleEvent(
	ctx context.Context,
	ev events.APIGatewayProxyRequest,
) (*events.APIGatewayProxyResponse, error) {
	id := h.newID()

	header := http.Header{}
	header.Set(HeaderRequestID, id)
	h.writeCORS(header)

	var resp response

	switch strings.ToUpper(ev.HTTPMethod) {
	case http.MethodOptions:
		resp = response{status: http.StatusNoContent}
	case http.MethodPost:
		resp = h.processEvent(ctx, id, ev)
	default:
		header.Set("Allow", "POST, OPTIONS")
		resp = failure(
			http.StatusMethodNotAllowed, id, "method not allowed",
		)
	}

	out := &events.APIGatewayProxyResponse{
		StatusCode: resp.status,
		Headers:    make(map[string]string, len(header)+1),
	}

	for k := range header {
		out.Headers[k] = header.Get(k)
	}

	if resp.body != nil {
		data, err := json.Marshal(resp.body)
		if err != nil {
			return nil, err //nolint:wrapcheck // lambda runtime reports it
		}

		out.Headers["Content-Type"] = "application/json"
		out.Body = string(data)
	}

	return out, nil
}

func (h *Handler) processEvent(
	ctx context.Context,
	id string,
	ev events.APIGatewayProxyRequest,
) response {
	body := []byte(ev.Body)

	if ev.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			return failure(
				http.StatusBadRequest, id, "body is not valid base64",
			)
		}

		body = decoded
	}

	if int64(len(body)) > h.opts.MaxBodyBytes {
		return failure(
			http.StatusRequestEntityTooLarge,
			id, "request body too large",
		)
	}

	return h.process(ctx, id, body)
}

func (h *Handler) process(
	ctx context.Context,
	id string,
	body []byte,
) response {
	if len(body) == 0 {
		return failure(http.StatusBadRequest, id, "empty request body")
	}

	var req contribution.Request
	if err := json.Unmarshal(body, &req); err != nil {
		slog.Warn(
			"rejected malformed contribution",
			"requestId", id,
			"error", err,
		)

		return failure(http.StatusBadRequest, id, "malformed JSON body")
	}

	res, err := h.pub.Publish(ctx, &req)
	if err != nil {
		return h.mapError(id, err)
	}

	if res == nil || res.PullRequest == nil {
		slog.Error(
			"publisher returned no pull request",
			"requestId", id,
		)

		return failure(http.StatusInternalServerError, id, "internal error")
	}

	slog.Info(
		"published contribution",
		"requestId", id,
		"branch", res.Branch,
		"pr", res.PullRequest.Number,
	)

	return response{
		status: http.StatusCreated,
		body: successBody{
			RequestID: id,
			Branch:    res.Branch,
			PullRequest: pullRequestBody{
				Number: res.PullRequest.Number,
				URL:    res.PullRequest.URL,
			},
			Files: res.Files(),
		},
	}
}

func (h *Handler) mapError(id string, err error) response {
	var verr *contribution.ValidationError
	if errors.As(err, &verr) {
		slog.Info(
			"rejected invalid contribution",
			"requestId", id,
			"error", err,
		)

		return response{
			status: http.StatusBadRequest,
			body: errorBody{
				RequestID: id,
				Error:     "invalid contribution",
				Fields:    verr.Fields,
			},
		}
	}

	var serr *publisher.StepError
	if !errors.As(err, &serr) {
		slog.Error(
			"publishing contribution failed",
			"requestId", id,
			"error", err,
		)

		return failure(http.StatusInternalServerError, id, "internal error")
	}

	slog.Error(
		"publishing contribution failed",
		"requestId", id,
		"step", serr.Step,
		"branch", serr.Branch,
		"rolledBack", serr.RolledBack,
		"error", err,
	)

	if publisher.IsBranchConflict(err) {
		return response{
			status: http.StatusConflict,
			body: errorBody{
				RequestID: id,
				Error:     "branch already exists",
				Step:      serr.Step,
			},
		}
	}

	rolledBack := serr.RolledBack

	return response{
		status: http.StatusBadGateway,
		body: errorBody{
			RequestID:  id,
			Error:      serr.Err.Error(),
			Step:       serr.Step,
			RolledBack: &rolledBack,
		},
	}
}

func (h *Handler) writeCORS(hd http.Header) {
	hd.Set("Access-Control-Allow-Origin", h.opts.AllowedOrigin)
	hd.Set("Vary", "Origin")
	hd.Set("Access-Control-Allow-Methods", "POST,OPTIONS")
	hd.Set(
		"Access-Control-Allow-Headers",
		"Content-Type,Authorization,Accept",
	)
}

func writeJSON(w http.ResponseWriter, resp response) {
	data, err := json.Marshal(resp.body)
	if err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = w.Write(data)
}
