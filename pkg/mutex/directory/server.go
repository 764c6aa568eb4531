package directory

import (
	"encoding/json"
	"net/http"

	"github.com/jabolina/peer-mutex/pkg/mutex/definition"
)

// Server exposes an InMemoryDirectory over JSON/HTTP, backing the
// standalone cmd/directoryd binary — the production naming service every
// peer registers with and discovers peers through.
type Server struct {
	dir *InMemoryDirectory
	log definition.Logger
}

// NewServer wraps a fresh directory in an HTTP handler.
func NewServer(log definition.Logger) *Server {
	return &Server{dir: NewInMemoryDirectory(), log: log}
}

type registerRequest struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

type lookupResponse struct {
	Endpoint string `json:"endpoint,omitempty"`
	Error    string `json:"error,omitempty"`
}

type listResponse struct {
	Records map[string]string `json:"records"`
}

// Routes registers this server's handlers on the given mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/directory/register", s.handleRegister)
	mux.HandleFunc("/directory/lookup", s.handleLookup)
	mux.HandleFunc("/directory/list", s.handleList)
	mux.HandleFunc("/directory/remove", s.handleRemove)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.dir.Register(req.Name, req.Endpoint); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Debugf("directory: registered %s -> %s", req.Name, req.Endpoint)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	endpoint, err := s.dir.Lookup(name)
	res := lookupResponse{Endpoint: endpoint}
	if err != nil {
		res.Error = err.Error()
	}
	writeJSON(w, res)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	records, err := s.dir.List(prefix)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, listResponse{Records: records})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if err := s.dir.Remove(name); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
