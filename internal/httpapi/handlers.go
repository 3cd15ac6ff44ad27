package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"tipd/internal/runtime/supervisor"
	"tipd/internal/tip"
)

type handlers struct {
	d Deps
}

type decisionResponse struct {
	Type    string `json:"type"`
	Matched bool   `json:"matched"`
}

type healthResponse struct {
	Status string                 `json:"status"`
	Error  string                 `json:"error,omitempty"`
	Tasks  []supervisor.TaskStats `json:"tasks,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.d.Tasks != nil {
		resp.Tasks = h.d.Tasks()
	}
	if h.d.Health != nil {
		if err := h.d.Health(); err != nil {
			resp.Status = "degraded"
			resp.Error = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) decision(w http.ResponseWriter, r *http.Request) {
	c := tip.ParseContext(r.URL.Query().Get("context"))
	typ, ok := h.d.Decider.Evaluate(c)
	writeJSON(w, http.StatusOK, decisionResponse{Type: typ, Matched: ok})
}

func (h *handlers) signal(w http.ResponseWriter, r *http.Request) {
	ev, ok := signals[chi.URLParam(r, "signal")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown signal")
		return
	}
	h.d.Bus.Publish(ev)
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) category(w http.ResponseWriter, r *http.Request) (tip.Category, bool) {
	cat, ok := tip.ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown category")
	}
	return cat, ok
}

func (h *handlers) shown(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.category(w, r)
	if !ok {
		return
	}
	typ := chi.URLParam(r, "type")
	if !h.d.Decider.Acknowledge(tip.Shown{Type: typ, Category: cat}) {
		writeError(w, http.StatusUnprocessableEntity, "not recorded")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listTips(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.category(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.d.History.All(cat))
}

func (h *handlers) clearTips(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.category(w, r)
	if !ok {
		return
	}
	h.d.History.ClearAll(cat)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) timers(w http.ResponseWriter, _ *http.Request) {
	pending := h.d.Timers.Pending()
	names := make([]string, 0, len(pending))
	for _, n := range pending {
		names = append(names, n.String())
	}
	writeJSON(w, http.StatusOK, map[string][]string{"pending": names})
}

func (h *handlers) messages(w http.ResponseWriter, _ *http.Request) {
	var types []string
	if h.d.Catalog != nil {
		if c := h.d.Catalog(); c != nil {
			types = c.ListTypes()
		}
	}
	if types == nil {
		types = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"types": types})
}

func (h *handlers) compact(w http.ResponseWriter, _ *http.Request) {
	if h.d.Compact == nil || !h.d.Compact() {
		writeError(w, http.StatusNotImplemented, "storage driver does not compact")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
