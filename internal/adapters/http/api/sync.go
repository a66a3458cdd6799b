package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/ffnsync/internal/domain/model"
	"github.com/okian/ffnsync/internal/domain/types"
	"github.com/okian/ffnsync/pkg/logger"
)

// flexID accepts an identifier sent either as a JSON string or a JSON number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("must be a string or a number")
	}
	*f = flexID(n.String())
	return nil
}

// syncRequest is the body of POST /sync.
type syncRequest struct {
	AthleteID   flexID `json:"athlete_id"`
	AthleteName string `json:"athlete_name"`
	IUF         flexID `json:"iuf"`
}

func (req syncRequest) validate() error {
	switch {
	case strings.TrimSpace(string(req.AthleteID)) == "":
		return errors.New("missing athlete_id")
	case strings.TrimSpace(string(req.IUF)) == "":
		return errors.New("missing iuf")
	}
	return nil
}

// SyncHandler handles sync requests.
type SyncHandler struct {
	syncer Syncer
	logger logger.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(syncer Syncer, log logger.Logger) *SyncHandler {
	return &SyncHandler{syncer: syncer, logger: log}
}

// HandleSync handles POST /sync requests. The sync runs inline and the
// response carries the merge summary.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	const op = "api.sync"

	var req syncRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSyncBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := expectEOF(dec); err != nil {
		writeError(w, r, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}

	summary, err := h.syncer.Sync(r.Context(), model.SyncRequest{
		AthleteID:   string(req.AthleteID),
		AthleteName: req.AthleteName,
		IUF:         string(req.IUF),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewSyncResponse(summary))
}

// expectEOF rejects anything but whitespace after the first JSON value.
func expectEOF(dec *json.Decoder) error {
	_, err := dec.Token()
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return fmt.Errorf("unexpected data after JSON body: %w", err)
	default:
		return errors.New("unexpected data after JSON body")
	}
}
