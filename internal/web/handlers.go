package web

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/KaramelBytes/datalens-cli/internal/analysis"
	"github.com/KaramelBytes/datalens-cli/internal/assistant"
	"github.com/KaramelBytes/datalens-cli/internal/logging"
	"github.com/KaramelBytes/datalens-cli/internal/upload"
)

// DescribeResponse is returned by POST /api/describe.
type DescribeResponse struct {
	Session  string              `json:"session"`
	Summary  *analysis.Summary   `json:"summary"`
	Notices  []assistant.Notice  `json:"notices"`
	Sections []assistant.Section `json:"sections"`
}

// AskResponse is returned by POST /api/ask.
type AskResponse struct {
	Session  string             `json:"session"`
	Question string             `json:"question"`
	Answer   string             `json:"answer"`
	Notices  []assistant.Notice `json:"notices"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]string{"status": "ok"})
}

// readUpload parses the multipart body and returns the "file" part as an
// Upload. The caller closes the returned file.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload.Upload, multipart.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, nil, errTooLarge
		}
		return nil, nil, errBadForm
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errNoFile
	}
	return upload.New(header.Filename, file), file, nil
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	u, file, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	ctx, id := logging.WithSession(r.Context())
	sink := &assistant.Collector{}
	sess := assistant.NewSession(s.cfg.Session, sink, nil)
	if err := sess.Upload(ctx, u); err != nil {
		respondError(w, r, err)
		return
	}
	sess.Report(assistant.AllExtras)
	writeJSON(w, r, DescribeResponse{
		Session:  id,
		Summary:  sess.Summary(),
		Notices:  sink.Notices,
		Sections: sink.Sections,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	u, file, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	question := r.FormValue("question")
	ctx, id := logging.WithSession(r.Context())
	sink := &assistant.Collector{}
	sess := assistant.NewSession(s.cfg.Session, sink, s.cfg.Completer)
	if err := sess.Upload(ctx, u); err != nil {
		respondError(w, r, err)
		return
	}
	answer, err := sess.Ask(ctx, question)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, AskResponse{
		Session:  id,
		Question: question,
		Answer:   answer,
		Notices:  sink.Notices,
	})
}
