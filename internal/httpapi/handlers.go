package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"

	"github.com/cognicore/simscore/pkg/simscore"
	"github.com/cognicore/simscore/pkg/simscore/extract"
	"github.com/cognicore/simscore/pkg/simscore/internalerr"
)

// multipartSlack covers form fields and part headers around the file.
const multipartSlack = 1 << 20

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *server) submit(w http.ResponseWriter, r *http.Request) {
	assignmentID := mux.Vars(r)["assignmentID"]

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartSlack)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.tooLarge(w)
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}

	studentID, ok := studentFromContext(r.Context())
	if !ok {
		studentID = strings.TrimSpace(r.FormValue("studentId"))
	}
	if studentID == "" {
		writeError(w, http.StatusBadRequest, "studentId is required")
		return
	}

	// Documents are always uploaded. Locators are resolved on the server
	// and are only accepted from trusted tooling.
	file, fh, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read file")
		return
	}
	defer file.Close()
	if fh.Size > s.maxUpload {
		s.tooLarge(w)
		return
	}
	format, ok := uploadFormat(fh.Filename, fh.Header.Get("Content-Type"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported file type, expected pdf, txt, docx or html")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read file")
		return
	}

	req := simscore.SubmitRequest{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Document:     data,
		Format:       format,
	}

	res, err := s.svc.ScoreSubmission(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusCreated)
}

func (s *server) list(w http.ResponseWriter, r *http.Request) {
	subs, err := s.svc.Submissions(r.Context(), mux.Vars(r)["assignmentID"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]submissionPayload, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubmissionPayload(sub))
	}
	writeJSON(w, out, http.StatusOK)
}

func (s *server) get(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Report(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, toStatusPayload(st), http.StatusOK)
}

func (s *server) rescore(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Rescore(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

func (s *server) tooLarge(w http.ResponseWriter) {
	writeError(w, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("file too large (max %s)", humanize.IBytes(uint64(s.maxUpload))))
}

// fail maps domain errors to status codes.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, internalerr.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, internalerr.ErrDuplicate):
		writeError(w, http.StatusConflict, "submission already exists for this assignment")
	case errors.Is(err, internalerr.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, internalerr.ErrTransient),
		errors.Is(err, internalerr.ErrCorpusUnavailable),
		errors.Is(err, internalerr.ErrStoreUnavailable):
		s.log.Warn("dependency unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "dependency unavailable, retry later")
	default:
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// uploadFormat accepts the formats the extractor understands, judged by
// file name first and declared content type second.
func uploadFormat(filename, contentType string) (string, bool) {
	if extract.ParseHint(filename) != extract.FormatUnknown {
		return filename, true
	}
	if extract.ParseHint(contentType) != extract.FormatUnknown {
		return contentType, true
	}
	return "", false
}
