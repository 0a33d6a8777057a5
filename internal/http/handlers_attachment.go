package http

import (
	"errors"
	"net/http"

	"famledger/internal/attachments"
	"famledger/internal/log"
)

type uploadResponse struct {
	URL string `json:"url"`
}

// handleUploadAttachment stores the multipart "file" field and returns a URL
// suitable for attachmentURL. The ledger never checks that URL.
func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	if s.deps.Attachments == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "attachments are not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, attachments.MaxSize+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "attachment too large"})
			return
		}
		badRequest(w, "missing multipart field \"file\"")
		return
	}
	defer file.Close()
	if header.Size > attachments.MaxSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "attachment too large"})
		return
	}

	key := attachments.Key(s.newID(), header.Filename)
	url, err := s.deps.Attachments.Put(r.Context(), key, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.writeError(w, r, log.OpUpload, err)
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentAttachments).InfoContext(r.Context(), "Attachment stored",
		"key", key, "size", header.Size)
	writeJSON(w, http.StatusCreated, uploadResponse{URL: url})
}
