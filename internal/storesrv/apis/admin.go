package apis

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/httpx"
	"github.com/vicinaehq/backend/internal/storesrv/downloads"
	"github.com/vicinaehq/backend/internal/storesrv/publish"
	"github.com/vicinaehq/backend/pkg/api"
)

const (
	uploadField = "file"
	// room for the multipart envelope around the archive
	multipartOverhead = 1 << 20
)

func (s *Service) uploadExtension(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	maxSize := s.publisher.MaxUploadSize()
	r.Body = http.MaxBytesReader(nil, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, publish.ErrPayloadTooLarge
		}
		return nil, ErrInvalidUpload.Err(err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, ErrMissingFile
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, ErrInvalidUpload.Err(err)
	}

	result, err := s.publisher.Publish(ctx, publish.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Author:      r.FormValue("author"),
		Data:        data,
	})
	if err != nil {
		return nil, err
	}

	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}
	return &httpx.Response{
		StatusCode: status,
		Location:   s.cfg.BaseURL + "/v1/store/" + result.Key,
		Response: &api.PublishResponse{
			Success: true,
			Extension: api.PublishedExtension{
				ID:    result.ID.String(),
				Key:   result.Key,
				Name:  result.Name,
				Title: result.Title,
				Author: api.AuthorView{
					Handle:     result.Author.Handle,
					Name:       result.Author.Name,
					AvatarURL:  result.Author.AvatarURL,
					ProfileURL: result.Author.ProfileURL,
				},
				Checksum:    result.Checksum,
				DownloadURL: result.DownloadURL,
				IsNew:       result.IsNew,
			},
		},
	}, nil
}

func (s *Service) updateTrending(r *http.Request) (*httpx.Response, error) {
	res, err := s.ranker.Run(r.Context())
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Trending))
	for _, id := range res.Trending {
		ids = append(ids, id.String())
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &api.TrendingResponse{
			Success:    true,
			Message:    "Trending status updated for all extensions",
			Candidates: res.Candidates,
			Trending:   ids,
		},
	}, nil
}

func (s *Service) setKillListed(r *http.Request, remove bool) (*httpx.Response, error) {
	ctx := r.Context()
	ext, err := s.lookupExtension(r, true)
	if err != nil {
		return nil, err
	}
	key := downloads.Key(chi.URLParam(r, "author"), ext.Name)
	msg := key + " restored"
	if remove {
		now := s.now().UTC()
		if err := s.catalog.SetKillListed(ctx, ext.ID, &now); err != nil {
			return nil, err
		}
		msg = key + " removed from the store"
	} else if err := s.catalog.SetKillListed(ctx, ext.ID, nil); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("extension", key).Bool("kill_listed", remove).Msg("kill list updated")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &api.ActionResponse{Success: true, Message: msg},
	}, nil
}

func (s *Service) killList(r *http.Request) (*httpx.Response, error) {
	return s.setKillListed(r, true)
}

func (s *Service) restore(r *http.Request) (*httpx.Response, error) {
	return s.setKillListed(r, false)
}

func (s *Service) setTrending(r *http.Request, trending bool) (*httpx.Response, error) {
	ctx := r.Context()
	ext, err := s.lookupExtension(r, false)
	if err != nil {
		return nil, err
	}
	key := downloads.Key(chi.URLParam(r, "author"), ext.Name)
	msg := key + " is no longer trending"
	if trending {
		err = s.ranker.Mark(ctx, ext.ID)
		msg = key + " marked as trending"
	} else {
		err = s.ranker.Unmark(ctx, ext.ID)
	}
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &api.ActionResponse{Success: true, Message: msg},
	}, nil
}

func (s *Service) markTrending(r *http.Request) (*httpx.Response, error) {
	return s.setTrending(r, true)
}

func (s *Service) unmarkTrending(r *http.Request) (*httpx.Response, error) {
	return s.setTrending(r, false)
}
