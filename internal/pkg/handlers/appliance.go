package handlers

import (
	"net/http"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
	"github.com/gorilla/mux"

	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
	"github.com/jake-scott/ondus-bridge/internal/pkg/monitor"
	"github.com/jake-scott/ondus-bridge/internal/pkg/ondusapi"
	"github.com/jake-scott/ondus-bridge/internal/pkg/sink"
)

/*
 * ApplianceHandler polls one appliance of the location on request and
 * returns the report, optionally sending a Sense Guard command first.  Every
 * report is also handed to the sink so subscribers see on-demand polls.
 */

type ApplianceHandler struct {
	poller     *monitor.Poller
	sink       sink.Sink
	dataWindow time.Duration
	groupBy    ondusapi.GroupBy
}

func NewApplianceHandler(poller *monitor.Poller, s sink.Sink, dataWindow time.Duration, groupBy ondusapi.GroupBy) ApplianceHandler {
	return ApplianceHandler{
		poller:     poller,
		sink:       s,
		dataWindow: dataWindow,
		groupBy:    groupBy,
	}
}

// commandBody is the JSON accepted by the command route
type commandBody struct {
	ValveOpen          *bool `json:"valveOpen"`
	MeasureNow         *bool `json:"measureNow"`
	BuzzerOn           *bool `json:"buzzerOn"`
	BuzzerSoundProfile *int  `json:"buzzerSoundProfile"`
	TemporaryValveOpen *bool `json:"temporaryValveOpen"`
}

func (b commandBody) request() ondusapi.CommandRequest {
	return ondusapi.CommandRequest{
		ApplianceType: ondusapi.ApplianceTypeSenseGuard,
		Command: ondusapi.Command{
			ValveOpen:          b.ValveOpen,
			MeasureNow:         b.MeasureNow,
			BuzzerOn:           b.BuzzerOn,
			BuzzerSoundProfile: b.BuzzerSoundProfile,
			TemporaryValveOpen: b.TemporaryValveOpen,
		},
	}
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}

	if err := validate.FormatOf(name, "query", "date-time", v, formats); err != nil {
		return time.Time{}, err
	}

	dt, err := strfmt.ParseDateTime(v)
	if err != nil {
		return time.Time{}, err
	}

	return time.Time(dt), nil
}

// dataRequest builds the data window from the from/to/groupBy query
// parameters, defaulting to the configured window ending now
func (h *ApplianceHandler) dataRequest(r *http.Request) (*monitor.DataRequest, error) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		return nil, err
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		return nil, err
	}

	groupBy := h.groupBy
	if g := r.URL.Query().Get("groupBy"); g != "" {
		groupBy = ondusapi.GroupBy(g)
	}
	if err := groupBy.Validate(formats); err != nil {
		return nil, err
	}

	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() && h.dataWindow > 0 {
		from = to.Add(-h.dataWindow)
	}

	return &monitor.DataRequest{From: from, To: to, GroupBy: groupBy}, nil
}

func (h *ApplianceHandler) poll(w http.ResponseWriter, r *http.Request, cmd *ondusapi.CommandRequest) {
	vars := mux.Vars(r)

	data, err := h.dataRequest(r)
	if err != nil {
		sendAPIError(w, r, err)
		return
	}

	report, err := h.poller.Poll(r.Context(), vars["room"], vars["appliance"], cmd, data)
	if err != nil {
		sendAPIError(w, r, err)
		return
	}

	if h.sink != nil {
		if err := h.sink.Publish(r.Context(), report); err != nil {
			logging.Logger(r.Context()).WithError(err).Warn("publishing on-demand report")
		}
	}

	sendJSONResponse(w, r, http.StatusOK, report)
}

// Report handles GET /rooms/{room}/appliances/{appliance}
func (h *ApplianceHandler) Report() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.poll(w, r, nil)
	})
}

// Command handles POST /rooms/{room}/appliances/{appliance}/command
func (h *ApplianceHandler) Command() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body commandBody
		if err := decodeJSONBody(w, r, &body); err != nil {
			logging.Logger(r.Context()).WithError(err).Warn("decoding command")
			sendError(w, r, http.StatusBadRequest, "unable to parse JSON")
			return
		}

		cmd := body.request()
		if err := cmd.Validate(formats); err != nil {
			sendAPIError(w, r, err)
			return
		}

		h.poll(w, r, &cmd)
	})
}
