package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/okian/ffnsync/internal/domain/model"
	"github.com/okian/ffnsync/internal/domain/types"
	"github.com/okian/ffnsync/pkg/logger"
)

// ParseHandler runs the results parser on an uploaded page.
type ParseHandler struct {
	parser   PageParser
	maxBytes int64
	logger   logger.Logger
}

// NewParseHandler creates a new parse handler.
func NewParseHandler(p PageParser, maxBytes int64, log logger.Logger) *ParseHandler {
	return &ParseHandler{parser: p, maxBytes: maxBytes, logger: log}
}

// HandleParse handles POST /parse requests. The body is the raw HTML page.
func (h *ParseHandler) HandleParse(w http.ResponseWriter, r *http.Request) {
	const op = "api.parse"

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		writeError(w, r, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}

	records, stats := h.parser.Parse(r.Context(), string(body))
	if records == nil {
		records = []model.ParsedRecord{}
	}
	writeJSON(w, http.StatusOK, types.ParseResponse{
		Records: records,
		Stats: types.ParseStats{
			Sections:  stats.Sections,
			Rows:      stats.Rows,
			Emitted:   stats.Emitted,
			Discarded: stats.Discarded,
			Unique:    stats.Unique,
		},
	})
}

// RecordsHandler serves an athlete's stored records.
type RecordsHandler struct {
	reader RecordReader
	logger logger.Logger
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(reader RecordReader, log logger.Logger) *RecordsHandler {
	return &RecordsHandler{reader: reader, logger: log}
}

// HandleGetRecords handles GET /athletes/{athleteID}/records requests.
func (h *RecordsHandler) HandleGetRecords(w http.ResponseWriter, r *http.Request) {
	const op = "api.records"

	athleteID := strings.TrimSpace(chi.URLParam(r, "athleteID"))
	if athleteID == "" {
		writeError(w, r, h.logger, NewKind(op, ErrBadRequest))
		return
	}

	records, err := h.reader.Records(r.Context(), athleteID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if records == nil {
		records = []model.StoredRecord{}
	}
	writeJSON(w, http.StatusOK, types.RecordsResponse{AthleteID: athleteID, Records: records})
}

// ResyncHandler queues a background sync of every registered athlete.
type ResyncHandler struct {
	resyncer Resyncer
	logger   logger.Logger
}

// NewResyncHandler creates a new resync handler.
func NewResyncHandler(r Resyncer, log logger.Logger) *ResyncHandler {
	return &ResyncHandler{resyncer: r, logger: log}
}

// HandleResync handles POST /resync requests.
func (h *ResyncHandler) HandleResync(w http.ResponseWriter, r *http.Request) {
	queued, err := h.resyncer.ResyncAll(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, types.ResyncResponse{Status: types.StatusAccepted, Queued: queued})
}
