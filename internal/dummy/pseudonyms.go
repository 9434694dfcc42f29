package dummy

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"pseudobench/internal/connector"
	"pseudobench/internal/connector/trustdeck"
)

func (s *Server) registerPseudonymRoutes(api *mux.Router) {
	api.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api.HandleFunc("/dbmaintenance/tables", func(w http.ResponseWriter, r *http.Request) {
		s.store.Clear()
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)
	api.HandleFunc("/dbmaintenance/domains/{domain}/rights-and-roles", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)
	api.HandleFunc("/dbmaintenance/storage", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"table":   r.URL.Query().Get("table"),
			"records": s.store.Size(),
		})
	}).Methods(http.MethodGet)

	api.HandleFunc("/pseudonymization/domain", s.createDomain).Methods(http.MethodPost)

	const pseudonym = "/pseudonymization/domains/{domain}/pseudonym"
	api.HandleFunc(pseudonym, s.createPseudonym).Methods(http.MethodPost)
	api.HandleFunc(pseudonym, s.readPseudonym).Methods(http.MethodGet)
	api.HandleFunc(pseudonym, s.updatePseudonym).Methods(http.MethodPut)
	api.HandleFunc(pseudonym, s.deletePseudonym).Methods(http.MethodDelete)
}

func (s *Server) createDomain(w http.ResponseWriter, r *http.Request) {
	var d trustdeck.Domain
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil || d.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid domain")
		return
	}
	if !s.store.CreateDomain(d.Name) {
		writeError(w, http.StatusConflict, "domain exists")
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) createPseudonym(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]
	var p trustdeck.Pseudonym
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Identifier == "" {
		writeError(w, http.StatusBadRequest, "invalid identifier")
		return
	}
	if !s.store.HasDomain(domain) {
		writeError(w, http.StatusNotFound, "unknown domain")
		return
	}
	p.PSN = s.store.Put(domain, connector.RecordRef{IDType: p.IDType, IDString: p.Identifier})
	writeJSON(w, http.StatusCreated, p)
}

func refFromQuery(r *http.Request) connector.RecordRef {
	q := r.URL.Query()
	return connector.RecordRef{IDType: q.Get("idType"), IDString: q.Get("identifier")}
}

func (s *Server) readPseudonym(w http.ResponseWriter, r *http.Request) {
	ref := refFromQuery(r)
	psn, err := s.store.Get(mux.Vars(r)["domain"], ref)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trustdeck.Pseudonym{Identifier: ref.IDString, IDType: ref.IDType, PSN: psn})
}

func (s *Server) updatePseudonym(w http.ResponseWriter, r *http.Request) {
	ref := refFromQuery(r)
	psn, err := s.store.Renew(mux.Vars(r)["domain"], ref)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trustdeck.Pseudonym{Identifier: ref.IDString, IDType: ref.IDType, PSN: psn})
}

func (s *Server) deletePseudonym(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Remove(mux.Vars(r)["domain"], refFromQuery(r)); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
