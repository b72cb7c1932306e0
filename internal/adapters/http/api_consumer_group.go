package httpserver

import (
	"net/http"
)

func (s *Server) apiListConsumerGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groups.ListConsumerGroups(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}
