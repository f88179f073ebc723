package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"linkpaste/config"
	"linkpaste/editor"
	"linkpaste/history"
	"linkpaste/notify"
	"linkpaste/paste"
)

type pasteRequest struct {
	Text       string         `json:"text"`
	Document   string         `json:"document"`
	Selections []editor.Range `json:"selections"`
}

type pasteResponse struct {
	Handled    bool           `json:"handled"`
	Applied    bool           `json:"applied"`
	Document   string         `json:"document"`
	Selections []editor.Range `json:"selections"`
	Origin     string         `json:"origin,omitempty"`
	Notices    []string       `json:"notices"`
}

type formatsResponse struct {
	Formats []config.Format `json:"formats"`
	Active  int             `json:"active"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *handler) handlePaste(w http.ResponseWriter, r *http.Request) {
	var req pasteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	buf := editor.New(req.Document)
	buf.SetSelections(req.Selections...)

	rec := &notify.Recorder{}
	ph := h.paste.With(paste.WithNotifier(rec))

	resp := pasteResponse{}
	if op := ph.HandlePaste(r.Context(), paste.NewEvent(req.Text), buf); op != nil {
		resp.Handled = true
		applied, err := op.Wait()
		if err != nil {
			http.Error(w, "failed to apply paste", http.StatusInternalServerError)
			return
		}
		resp.Applied = applied
	}

	resp.Document = buf.Text()
	resp.Selections = buf.ListSelections()
	resp.Origin = buf.LastOrigin()
	resp.Notices = rec.Messages()
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) formats() formatsResponse {
	s := h.paste.Settings()
	return formatsResponse{Formats: s.Formats, Active: s.FormatIndex}
}

func (h *handler) getFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.formats())
}

func (h *handler) selectFormat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.edit(w, func(s *config.Settings) error {
		return s.SelectFormat(body.Name)
	})
}

func (h *handler) addFormat(w http.ResponseWriter, r *http.Request) {
	var f config.Format
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.edit(w, func(s *config.Settings) error {
		return s.AddFormat(f)
	})
}

// formatPatch holds the fields of a format to change; absent fields are
// left alone.
type formatPatch struct {
	Name         *string `json:"name"`
	Template     *string `json:"template"`
	RequireFetch *bool   `json:"requireFetch"`
}

func (h *handler) updateFormat(w http.ResponseWriter, r *http.Request) {
	var patch formatPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	name := formatName(r)
	h.edit(w, func(s *config.Settings) error {
		i, err := s.FormatByName(name)
		if err != nil {
			return err
		}
		if patch.Template != nil {
			if err := s.SetTemplate(i, *patch.Template); err != nil {
				return err
			}
		}
		if patch.RequireFetch != nil {
			if err := s.SetRequireFetch(i, *patch.RequireFetch); err != nil {
				return err
			}
		}
		if patch.Name != nil {
			return s.RenameFormat(i, *patch.Name)
		}
		return nil
	})
}

func (h *handler) deleteFormat(w http.ResponseWriter, r *http.Request) {
	name := formatName(r)
	h.edit(w, func(s *config.Settings) error {
		i, err := s.FormatByName(name)
		if err != nil {
			return err
		}
		return s.DeleteFormat(i)
	})
}

// formatName returns the unescaped {name} path parameter.
func formatName(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		if n, err := url.PathUnescape(name); err == nil {
			return n
		}
	}
	return name
}

// edit applies fn to a copy of the current settings, saves the result when
// a config path is set and makes it the handler's settings.
func (h *handler) edit(w http.ResponseWriter, fn func(*config.Settings) error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.paste.Settings().Clone()
	if err := fn(next); err != nil {
		http.Error(w, config.Message(err), editStatus(err))
		return
	}
	if h.opts.ConfigPath != "" {
		if err := config.Save(h.opts.ConfigPath, next); err != nil {
			h.opts.Logger.Error("Failed to save config", "path", h.opts.ConfigPath, "error", err)
			http.Error(w, "failed to save config", http.StatusInternalServerError)
			return
		}
	}
	h.paste.UpdateSettings(next)

	writeJSON(w, http.StatusOK, h.formats())
}

func editStatus(err error) int {
	switch {
	case errors.Is(err, config.ErrUnknownFormat):
		return http.StatusNotFound
	case errors.Is(err, config.ErrDuplicateName), errors.Is(err, config.ErrLastFormat):
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	if h.opts.History == nil {
		writeJSON(w, http.StatusOK, []history.Entry{})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.opts.History.Recent(limit))
}
