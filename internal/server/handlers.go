package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tournevent/parcelgate/internal/checkout"
)

// AJAX actions understood by /ajax.
const (
	ActionGetLockerCarriers = "get_locker_carriers"
	ActionUpdateLocker      = "update_locker_shipping"
	ActionGetLockers        = "get_lockers"
)

const maxBodyBytes = 1 << 20

var errUnsupportedBody = errors.New("unsupported request body")

func (s *Server) handleAjax(w http.ResponseWriter, r *http.Request) {
	form, err := ajaxForm(w, r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	shopper := shopperFrom(ctx)
	token := form.Get("security")
	if token == "" {
		token = form.Get("nonce")
	}
	instanceID := formInt(form, "instance_id")

	switch form.Get("action") {
	case ActionGetLockerCarriers:
		carriers, err := s.service.GetLockerCarriers(ctx, shopper, checkout.LockerCarriersRequest{
			InstanceID: instanceID,
			Token:      token,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeSuccess(w, map[string]any{"carriers": carriers})

	case ActionUpdateLocker:
		res, err := s.service.UpdateLockerSelection(ctx, shopper, checkout.UpdateLockerRequest{
			InstanceID:    instanceID,
			CarrierID:     formInt(form, "carrier_id"),
			LockerID:      form.Get("locker_id"),
			LockerName:    form.Get("locker_name"),
			LockerAddress: form.Get("locker_address"),
			CarrierName:   form.Get("carrier_name"),
			Token:         token,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeSuccess(w, res)

	case ActionGetLockers:
		lockers, err := s.service.FindLockers(ctx, shopper, checkout.FindLockersRequest{
			InstanceID: instanceID,
			Country:    form.Get("country_code"),
			County:     form.Get("county_name"),
			Locality:   form.Get("locality_name"),
			Token:      token,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeSuccess(w, map[string]any{"lockers": lockers})

	default:
		writeFailure(w, http.StatusBadRequest, "unknown action")
	}
}

func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	blocks := q.Get("checkout_type") == checkout.CheckoutBlocks

	data, err := s.service.Bootstrap(r.Context(), shopperFrom(r.Context()), q.Get("chosen_method"), blocks)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, data)
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req checkout.CalculateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.InstanceID <= 0 {
		writeFailure(w, http.StatusBadRequest, "instance_id is required")
		return
	}

	offered := s.service.CalculateShipping(r.Context(), shopperFrom(r.Context()), req.InstanceID, req.Package)
	writeSuccess(w, map[string]any{"rates": offered})
}

func (s *Server) handleOrderLocker(w http.ResponseWriter, r *http.Request) {
	var req checkout.OrderLockerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	meta, err := s.service.CaptureOrderLocker(r.Context(), shopperFrom(r.Context()), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, map[string]any{"locker": meta})
}

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	var req checkout.ShipmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := s.service.CreateShipment(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, map[string]any{"order": order})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeFailure(w, http.StatusBadRequest, "invalid instance id")
		return
	}

	overview, err := s.service.AccountOverview(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, overview)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ajaxForm reads the action payload from a form post, as sent by the classic
// checkout, or from a JSON object, as sent by the block checkout.
func ajaxForm(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		form := make(url.Values, len(raw))
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				form.Set(k, val)
			case float64:
				form.Set(k, strconv.FormatFloat(val, 'f', -1, 64))
			case bool:
				form.Set(k, strconv.FormatBool(val))
			case nil:
			default:
				return nil, fmt.Errorf("%w: field %q", errUnsupportedBody, k)
			}
		}
		return form, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, err
		}
		return r.Form, nil
	case "application/x-www-form-urlencoded", "":
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return r.Form, nil
	default:
		return nil, errUnsupportedBody
	}
}

func formInt(form url.Values, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(form.Get(key)))
	if err != nil {
		return 0
	}
	return n
}
