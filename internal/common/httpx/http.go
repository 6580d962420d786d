package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/apperrors"
)

func GetRequestData(r *http.Request, data any) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("Empty request body")
		return ErrUnableToParseReqData()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return ErrUnableToParseReqData()
	}
	return nil
}

// Response is what a RequestHandler returns. JSON responses set Response; any
// other content type carries its payload in Body.
type Response struct {
	StatusCode  int
	Location    string //in case of http.StatusCreated
	Response    any
	ContentType string
	Body        []byte
	Headers     http.Header
}

type RequestHandler func(r *http.Request) (*Response, error)

func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			SendError(r.Context(), w, err)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		if rsp.StatusCode == 0 {
			rsp.StatusCode = http.StatusOK
		}
		if rsp.ContentType == "" {
			rsp.ContentType = "application/json"
		}
		for k, v := range rsp.Headers {
			for _, vv := range v {
				w.Header().Add(k, vv)
			}
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		if rsp.ContentType == "application/json" && rsp.Body == nil {
			SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
			return
		}
		SendRawRsp(r.Context(), w, rsp.StatusCode, rsp.ContentType, rsp.Body)
	})
}

// SendJsonRsp encodes rsp as the JSON body of the response.
func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, rsp any, location ...string) {
	body, err := json.Marshal(rsp)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to encode response")
		ErrApplicationError().Send(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if len(location) > 0 && location[0] != "" {
		w.Header().Set("Location", location[0])
	}
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to write response")
	}
}

// SendRawRsp writes body as is with the given content type.
func SendRawRsp(ctx context.Context, w http.ResponseWriter, statusCode int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(statusCode)
	if len(body) == 0 {
		return
	}
	if _, err := w.Write(body); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to write response")
	}
}

// SendError converts err into an error response. Server side failures are logged
// with their full cause chain and reported to the client without internals.
func SendError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch e := err.(type) {
	case *Error:
		e.Send(w)
	case apperrors.Error:
		statusCode := e.StatusCode()
		if statusCode == 0 {
			statusCode = http.StatusInternalServerError
		}
		if statusCode >= http.StatusInternalServerError {
			log.Ctx(ctx).Error().Str("code", e.Code()).Msg(e.SetExpandError(true).ErrorAll())
			(&Error{
				StatusCode:  statusCode,
				Description: "Internal server error",
				Code:        e.Code(),
			}).Send(w)
			return
		}
		(&Error{
			StatusCode:  statusCode,
			Description: e.Error(),
			Code:        e.Code(),
			Details:     e.Details(),
		}).Send(w)
	default:
		log.Ctx(ctx).Error().Err(err).Msg("unhandled error")
		ErrApplicationError().Send(w)
	}
}

type ResponseHandlerParam struct {
	Method  string
	Path    string
	Handler RequestHandler
}
