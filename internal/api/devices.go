package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/blue-hydra/internal/btmon"
	"github.com/nerrad567/blue-hydra/internal/device"
)

// handleListDevices returns the catalog, most recently seen first.
//
// Query parameters:
//   - status: new, online, offline or old
//   - mode: classic, le, dual or unknown
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := device.Status(q.Get("status"))
	if status != "" && !status.Valid() {
		writeBadRequest(w, "invalid status")
		return
	}
	mode := device.Mode(q.Get("mode"))
	if mode != "" && !validMode(mode) {
		writeBadRequest(w, "invalid mode")
		return
	}

	devices := s.catalog.Snapshot()
	if status != "" || mode != "" {
		filtered := devices[:0]
		for i := range devices {
			if status != "" && devices[i].Status != status {
				continue
			}
			if mode != "" && devices[i].Mode() != mode {
				continue
			}
			filtered = append(filtered, devices[i])
		}
		devices = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by hardware address.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}

	d, err := s.catalog.Get(address)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// addressParam canonicalises the {address} URL parameter, writing a 400
// response when it is not a hardware address.
func addressParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	address, ok := btmon.CanonicalAddress(chi.URLParam(r, "address"))
	if !ok {
		writeBadRequest(w, "invalid device address")
		return "", false
	}
	return address, true
}

func validMode(m device.Mode) bool {
	switch m {
	case device.ModeClassic, device.ModeLE, device.ModeDual, device.ModeUnknown:
		return true
	}
	return false
}
