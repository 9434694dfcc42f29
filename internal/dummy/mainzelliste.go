package dummy

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"pseudobench/internal/connector"
	"pseudobench/internal/connector/mainzelliste"
	"pseudobench/internal/connector/memory"
)

const patientDomain = "patients"

type patientID struct {
	IDType   string `json:"idType"`
	IDString string `json:"idString"`
}

type mlToken struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// patientList keeps the Mainzelliste sessions and single-use tokens.
type patientList struct {
	mu       sync.Mutex
	sessions map[string]struct{}
	tokens   map[string]mlToken
	patients *memory.Store
}

func newPatientList() *patientList {
	return &patientList{
		sessions: make(map[string]struct{}),
		tokens:   make(map[string]mlToken),
		patients: memory.NewStore(),
	}
}

// take consumes a token of the given type.
func (l *patientList) take(id, typ string) (mlToken, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tokens[id]
	if !ok || t.Type != typ {
		return mlToken{}, false
	}
	delete(l.tokens, id)
	return t, true
}

func (s *Server) registerMainzellisteRoutes(r *mux.Router) {
	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"distname": "Mainzelliste", "version": "dummy"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/sessions", s.mlCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{session}/tokens", s.mlCreateToken).Methods(http.MethodPost)
	r.HandleFunc("/patients", s.mlAddPatient).Methods(http.MethodPost)
	r.HandleFunc("/patients", s.mlReadPatients).Methods(http.MethodGet)
	r.HandleFunc("/patients/tokenId/{token}", s.mlEditPatient).Methods(http.MethodPut)
	r.HandleFunc("/patients/tokenId/{token}", s.mlDeletePatient).Methods(http.MethodDelete)
}

func (s *Server) mlAuthorized(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.APIKey != "" && r.Header.Get(mainzelliste.APIKeyHeader) != s.cfg.APIKey {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return false
	}
	return true
}

func (s *Server) mlCreateSession(w http.ResponseWriter, r *http.Request) {
	if !s.mlAuthorized(w, r) {
		return
	}
	id := uuid.NewString()
	s.ml.mu.Lock()
	s.ml.sessions[id] = struct{}{}
	s.ml.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": id})
}

func (s *Server) mlCreateToken(w http.ResponseWriter, r *http.Request) {
	if !s.mlAuthorized(w, r) {
		return
	}
	var t mlToken
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil || t.Type == "" {
		writeError(w, http.StatusBadRequest, "invalid token request")
		return
	}

	s.ml.mu.Lock()
	defer s.ml.mu.Unlock()
	if _, ok := s.ml.sessions[mux.Vars(r)["session"]]; !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	id := uuid.NewString()
	s.ml.tokens[id] = t
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "type": t.Type})
}

func (s *Server) mlAddPatient(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ml.take(r.URL.Query().Get("tokenId"), "addPatient")
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	var data struct {
		IDs map[string]string `json:"ids"`
	}
	if err := json.Unmarshal(t.Data, &data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var created []patientID
	for idType, idString := range data.IDs {
		s.ml.patients.Put(patientDomain, connector.RecordRef{IDType: idType, IDString: idString})
		created = append(created, patientID{IDType: idType, IDString: idString})
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) mlReadPatients(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ml.take(r.URL.Query().Get("tokenId"), "readPatients")
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	var data struct {
		SearchIDs []patientID `json:"searchIds"`
	}
	if err := json.Unmarshal(t.Data, &data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	found := []map[string]any{}
	for _, id := range data.SearchIDs {
		if _, err := s.ml.patients.Get(patientDomain, connector.RecordRef(id)); err == nil {
			found = append(found, map[string]any{"ids": []patientID{id}})
		}
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) patientOf(w http.ResponseWriter, r *http.Request, typ string) (connector.RecordRef, bool) {
	t, ok := s.ml.take(mux.Vars(r)["token"], typ)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return connector.RecordRef{}, false
	}
	var data struct {
		PatientID patientID `json:"patientId"`
	}
	if err := json.Unmarshal(t.Data, &data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return connector.RecordRef{}, false
	}
	return connector.RecordRef(data.PatientID), true
}

func (s *Server) mlEditPatient(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.patientOf(w, r, "editPatient")
	if !ok {
		return
	}
	if _, err := s.ml.patients.Renew(patientDomain, ref); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) mlDeletePatient(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.patientOf(w, r, "deletePatient")
	if !ok {
		return
	}
	if err := s.ml.patients.Remove(patientDomain, ref); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
